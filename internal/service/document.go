package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"docvault/internal/auth"
	"docvault/internal/identity"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/signedlink"
	"docvault/internal/storage"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("document not found")
	ErrReaderNil  = errors.New("reader is nil")
	ErrEmptyFile  = errors.New("file is empty")

	// ErrNotTrashed rejects a purge of a document that has not been trashed
	// first. Business policy, not a state-machine rule: the raw capability
	// could purge an active record, the policy forbids it for everyone.
	ErrNotTrashed = errors.New("document must be trashed before purge")

	// ErrInconsistentPurge reports a purge that deleted the storage tree but
	// failed to remove the record: the two stores now disagree and the
	// condition must be surfaced, never swallowed.
	ErrInconsistentPurge = errors.New("purge left record without bytes")
)

// DefaultPageSize is the fixed page size for document listings.
const DefaultPageSize = 10

// UploadInput carries everything the versioning engine needs for one upload.
// FileSize and MimeType are taken from the upload envelope and trusted; the
// calling layer validates them against policy before invoking Upload.
type UploadInput struct {
	Description    string
	Category       string
	Classification string
	Reference      string
	Comment        string

	Reader   io.Reader
	FileName string
	MimeType string
	FileSize int64

	Tags     []string
	Metadata map[string]any
	OwnerID  string // defaults to the acting user
	TeamID   *string
}

// ListOptions filters a document listing.
type ListOptions struct {
	Scope  string
	Search string
	Page   int
}

// DocumentListResult is the service-level DTO for paginated documents.
type DocumentListResult struct {
	Items    []model.Document `json:"data"`
	Total    int              `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// DocumentService defines the document lifecycle use cases. Every operation
// is checked against the authorization gate; gate failures surface as
// ErrNotFound so ordinary actors cannot probe for document existence.
type DocumentService interface {
	// Upload hashes the content, assigns a version within the content-hash
	// lineage, writes the bytes, and creates the record. Each upload is a new
	// document, even for duplicate content.
	Upload(ctx context.Context, actor model.Actor, in UploadInput) (*model.Document, error)

	// List returns a page of documents visible to the actor.
	List(ctx context.Context, actor model.Actor, opts ListOptions) (*DocumentListResult, error)

	// Get returns a single document by its ID, in any lifecycle state.
	Get(ctx context.Context, actor model.Actor, id string) (*model.Document, error)

	// SoftDelete moves a document to the trashed state. Bytes are untouched.
	SoftDelete(ctx context.Context, actor model.Actor, id string) error

	// Restore moves a trashed document back to active.
	Restore(ctx context.Context, actor model.Actor, id string) error

	// Purge permanently removes the record and every stored version.
	Purge(ctx context.Context, actor model.Actor, id string) error

	// IssueDownloadLink produces a signed, expiring download URL path.
	IssueDownloadLink(ctx context.Context, actor model.Actor, id string, ttl time.Duration) (string, error)

	// Download streams the document bytes. A signed token, when supplied,
	// must validate and match the document; the gate check still applies.
	Download(ctx context.Context, actor model.Actor, id, token string) (io.ReadCloser, *model.Document, error)
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store  storage.Storage
	repo   repository.DocumentRepository
	gate   *auth.Gate
	ids    *identity.Generator
	signer *signedlink.Signer
	log    *zap.Logger
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.Storage, repo repository.DocumentRepository, gate *auth.Gate, ids *identity.Generator, signer *signedlink.Signer, log *zap.Logger) DocumentService {
	if log == nil {
		log = zap.NewNop()
	}
	return &documentService{store: store, repo: repo, gate: gate, ids: ids, signer: signer, log: log}
}

func (s *documentService) Upload(ctx context.Context, actor model.Actor, in UploadInput) (*model.Document, error) {
	if in.Reader == nil {
		return nil, ErrReaderNil
	}
	content, err := io.ReadAll(in.Reader)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}

	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	id := s.ids.New()
	fileName := SafeFileName(in.FileName)

	owner := in.OwnerID
	if owner == "" {
		owner = actor.ID
	}

	now := time.Now().UTC()
	doc := &model.Document{
		ID:             id,
		Description:    in.Description,
		Category:       in.Category,
		Classification: in.Classification,
		Reference:      in.Reference,
		Comment:        in.Comment,
		FileName:       fileName,
		FileSize:       in.FileSize,
		MimeType:       in.MimeType,
		Hash:           hash,
		Tags:           in.Tags,
		Metadata:       in.Metadata,
		OwnerID:        owner,
		TeamID:         in.TeamID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// The repository assigns version and uid inside its transaction; the
	// callback writes the bytes once the version is known, so no record is
	// ever inserted before its bytes exist.
	stored, err := s.repo.Create(ctx, doc, func(ctx context.Context, version int) (string, error) {
		path := fmt.Sprintf("documents/%s/v%d/%s", id, version, fileName)
		_, putErr := s.store.Put(ctx, path, bytes.NewReader(content), storage.PutObjectOptions{
			Size:        int64(len(content)),
			ContentType: in.MimeType,
			Metadata: map[string]string{
				"original-filename": in.FileName,
			},
		})
		if putErr != nil {
			return "", putErr
		}
		return path, nil
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return stored, nil
}

func (s *documentService) List(ctx context.Context, actor model.Actor, opts ListOptions) (*DocumentListResult, error) {
	scope := repository.NormalizeScope(opts.Scope)
	page := opts.Page
	if page < 1 {
		page = 1
	}

	q := repository.ListQuery{
		Scope:  scope,
		Search: opts.Search,
		Limit:  DefaultPageSize,
		Offset: (page - 1) * DefaultPageSize,
	}
	// The administrative bypass is the only way to see other owners' documents.
	if !actor.Admin {
		q.OwnerID = actor.ID
	}

	res, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return &DocumentListResult{
		Items:    res.Items,
		Total:    res.Total,
		Page:     page,
		PageSize: DefaultPageSize,
	}, nil
}

func (s *documentService) Get(ctx context.Context, actor model.Actor, id string) (*model.Document, error) {
	return s.authorized(ctx, actor, auth.ActionView, id)
}

func (s *documentService) SoftDelete(ctx context.Context, actor model.Actor, id string) error {
	doc, err := s.authorized(ctx, actor, auth.ActionDelete, id)
	if err != nil {
		return err
	}
	if doc.Trashed() {
		// Re-applying is harmless.
		return nil
	}
	return s.repo.SoftDelete(ctx, id)
}

func (s *documentService) Restore(ctx context.Context, actor model.Actor, id string) error {
	if _, err := s.authorized(ctx, actor, auth.ActionRestore, id); err != nil {
		return err
	}
	if err := s.repo.Restore(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *documentService) Purge(ctx context.Context, actor model.Actor, id string) error {
	doc, err := s.authorized(ctx, actor, auth.ActionPurge, id)
	if err != nil {
		return err
	}
	if !doc.Trashed() {
		return ErrNotTrashed
	}

	// Bytes first: a record without bytes is an invariant violation, orphaned
	// bytes after a failed record delete are the reported inconsistency.
	prefix := fmt.Sprintf("documents/%s/", doc.ID)
	if err := s.store.DeleteTree(ctx, prefix); err != nil {
		return fmt.Errorf("delete storage tree: %w", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.Error("purge inconsistency: storage tree removed but record delete failed",
			zap.String("document_id", id),
			zap.String("prefix", prefix),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrInconsistentPurge, err)
	}
	return nil
}

func (s *documentService) IssueDownloadLink(ctx context.Context, actor model.Actor, id string, ttl time.Duration) (string, error) {
	if _, err := s.authorized(ctx, actor, auth.ActionDownload, id); err != nil {
		return "", err
	}
	token, err := s.signer.Issue(id, ttl)
	if err != nil {
		return "", fmt.Errorf("issue link: %w", err)
	}
	return fmt.Sprintf("/documents/%s/download?token=%s", id, token), nil
}

func (s *documentService) Download(ctx context.Context, actor model.Actor, id, token string) (io.ReadCloser, *model.Document, error) {
	if token != "" {
		tokenID, err := s.signer.Validate(token)
		if err != nil {
			return nil, nil, err
		}
		if tokenID != id {
			return nil, nil, signedlink.ErrInvalid
		}
	}
	// A valid signature proves link integrity, not authorization.
	doc, err := s.authorized(ctx, actor, auth.ActionDownload, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, doc.FilePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read storage: %w", err)
	}
	return rc, doc, nil
}

// authorized resolves a document in any scope and gates the action. Gate
// failures are reported as ErrNotFound: ordinary actors get the same outward
// signal for "missing" and "not yours", so existence does not leak.
func (s *documentService) authorized(ctx context.Context, actor model.Actor, action auth.Action, id string) (*model.Document, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	doc, err := s.repo.FindByID(ctx, id, repository.ScopeAll)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !s.gate.Can(actor, action, doc) {
		return nil, ErrNotFound
	}
	return doc, nil
}
