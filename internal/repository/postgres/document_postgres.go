package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, uid, description, category, classification, reference, comment,
	file_name, file_path, file_size, mime_type, hash, version, tags, metadata,
	owner_id, team_id, created_at, updated_at, deleted_at`

// Create inserts a new document row. The whole assignment runs in one
// transaction: a per-hash advisory lock serializes version selection within a
// lineage, the single-row counter serializes uid assignment globally, and the
// byte write happens after the version is known but before the insert, so a
// committed row always points at written bytes.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document, writeBytes repository.WriteBytesFunc) (*model.Document, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Serialize concurrent creations sharing this content hash. The lock is
	// released at commit/rollback.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, doc.Hash); err != nil {
		return nil, fmt.Errorf("acquire hash lock: %w", err)
	}

	// Soft-deleted rows still count toward the lineage; only purged rows drop out.
	var version int
	const qVersion = `SELECT COALESCE(MAX(version), 0) + 1 FROM documents WHERE hash = $1`
	if err := tx.QueryRowContext(ctx, qVersion, doc.Hash).Scan(&version); err != nil {
		return nil, fmt.Errorf("next version: %w", err)
	}

	path, err := writeBytes(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("write bytes: %w", err)
	}

	// Row-level lock on the counter serializes uid assignment; a rollback
	// rolls the counter back with it, so committed uids stay gapless.
	var uid int64
	const qUID = `UPDATE document_counters SET value = value + 1 WHERE name = 'document_uid' RETURNING value`
	if err := tx.QueryRowContext(ctx, qUID).Scan(&uid); err != nil {
		return nil, fmt.Errorf("next uid: %w", err)
	}

	tags, err := json.Marshal(doc.Tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	q := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, NULL)
		RETURNING ` + documentColumns
	row := tx.QueryRowContext(ctx, q,
		doc.ID,
		uid,
		doc.Description,
		doc.Category,
		doc.Classification,
		doc.Reference,
		doc.Comment,
		doc.FileName,
		path,
		doc.FileSize,
		doc.MimeType,
		doc.Hash,
		version,
		tags,
		metadata,
		doc.OwnerID,
		doc.TeamID,
		doc.CreatedAt,
		doc.UpdatedAt,
	)
	out, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

// FindByID fetches a single document by its ID within the given scope.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string, scope repository.Scope) (*model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1` + scopePredicate(scope)
	row := r.db.QueryRowContext(ctx, q, id)
	return scanDocument(row)
}

// List returns documents matching the query filter, newest first, with a
// total count over the same filter.
func (r *DocumentPostgres) List(ctx context.Context, lq repository.ListQuery) (*repository.PageResult[model.Document], error) {
	where, args := buildFilter(lq)

	var total int
	qCount := `SELECT COUNT(*) FROM documents` + where
	if err := r.db.QueryRowContext(ctx, qCount, args...).Scan(&total); err != nil {
		return nil, err
	}

	qList := fmt.Sprintf(`SELECT `+documentColumns+` FROM documents%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, qList, append(args, lq.Limit, lq.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// SoftDelete sets deleted_at on an active row. A row that is already trashed
// is left untouched; repeating the call is harmless.
func (r *DocumentPostgres) SoftDelete(ctx context.Context, id string) error {
	const q = `UPDATE documents SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// Restore clears deleted_at on a trashed row. The id must resolve among
// trashed rows or sql.ErrNoRows is returned.
func (r *DocumentPostgres) Restore(ctx context.Context, id string) error {
	const q = `UPDATE documents SET deleted_at = NULL, updated_at = now() WHERE id = $1 AND deleted_at IS NOT NULL`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a document row permanently, whatever its state.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scopePredicate(scope repository.Scope) string {
	switch scope {
	case repository.ScopeTrashed:
		return ` AND deleted_at IS NOT NULL`
	case repository.ScopeAll:
		return ``
	default:
		return ` AND deleted_at IS NULL`
	}
}

// buildFilter assembles the WHERE clause for List. The owner restriction is an
// explicit predicate, never an implicit global filter.
func buildFilter(lq repository.ListQuery) (string, []any) {
	conds := make([]string, 0, 3)
	args := make([]any, 0, 2)

	switch lq.Scope {
	case repository.ScopeTrashed:
		conds = append(conds, `deleted_at IS NOT NULL`)
	case repository.ScopeAll:
		// no state predicate
	default:
		conds = append(conds, `deleted_at IS NULL`)
	}

	if lq.OwnerID != "" {
		args = append(args, lq.OwnerID)
		conds = append(conds, fmt.Sprintf(`owner_id = $%d`, len(args)))
	}

	if lq.Search != "" {
		args = append(args, "%"+lq.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			`(description ILIKE $%d OR category ILIKE $%d OR classification ILIKE $%d OR reference ILIKE $%d OR file_name ILIKE $%d OR CAST(uid AS TEXT) LIKE $%d)`,
			n, n, n, n, n, n))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d         model.Document
		tags      []byte
		metadata  []byte
		teamID    sql.NullString
		deletedAt sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&d.UID,
		&d.Description,
		&d.Category,
		&d.Classification,
		&d.Reference,
		&d.Comment,
		&d.FileName,
		&d.FilePath,
		&d.FileSize,
		&d.MimeType,
		&d.Hash,
		&d.Version,
		&tags,
		&metadata,
		&d.OwnerID,
		&teamID,
		&d.CreatedAt,
		&d.UpdatedAt,
		&deletedAt,
	); err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &d.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	if teamID.Valid {
		d.TeamID = &teamID.String
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		d.DeletedAt = &t
	}
	return &d, nil
}
