package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id             CHAR(26)    PRIMARY KEY,
  uid            BIGINT      NOT NULL UNIQUE,
  description    TEXT        NOT NULL DEFAULT '',
  category       TEXT        NOT NULL DEFAULT '',
  classification TEXT        NOT NULL DEFAULT '',
  reference      TEXT        NOT NULL DEFAULT '',
  comment        TEXT        NOT NULL DEFAULT '',
  file_name      TEXT        NOT NULL,
  file_path      TEXT        NOT NULL UNIQUE,
  file_size      BIGINT      NOT NULL CHECK (file_size >= 0),
  mime_type      TEXT        NOT NULL,
  hash           CHAR(64)    NOT NULL,
  version        INT         NOT NULL CHECK (version >= 1),
  tags           JSONB       NOT NULL DEFAULT '[]',
  metadata       JSONB       NOT NULL DEFAULT '{}',
  owner_id       TEXT        NOT NULL,
  team_id        TEXT,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  deleted_at     TIMESTAMPTZ
);`,
	},
	{
		Name: "create_unique_index_documents_hash_version",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_hash_version ON documents (hash, version);`,
	},
	{
		Name: "create_index_documents_file_name",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_file_name ON documents (file_name);`,
	},
	{
		Name: "create_index_documents_owner_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_owner_id ON documents (owner_id);`,
	},
	{
		Name: "create_index_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents (created_at);`,
	},
	{
		Name: "create_index_documents_deleted_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_deleted_at ON documents (deleted_at);`,
	},
	{
		Name: "create_table_document_counters",
		SQL: `CREATE TABLE IF NOT EXISTS document_counters (
  name  TEXT   PRIMARY KEY,
  value BIGINT NOT NULL
);`,
	},
	{
		Name: "seed_document_uid_counter",
		SQL: `INSERT INTO document_counters (name, value) VALUES ('document_uid', 0)
  ON CONFLICT (name) DO NOTHING;`,
	},
}

// EnsureMigrated checks whether the documents table exists and applies the
// schema when it does not. The counter seed step is idempotent, so re-running
// against a half-migrated database is safe.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger, dbHost string) error {
	if log == nil {
		log = zap.NewNop()
	}
	start := time.Now()

	var exists bool
	query := "SELECT to_regclass('public.documents') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("migration sentinel check failed",
			zap.String("db_host", dbHost),
			zap.Error(err),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("schema already exists, skipping migration",
			zap.String("db_host", dbHost),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	}

	log.Info("running migrations", zap.String("db_host", dbHost))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("migration step failed",
				zap.String("migration_step", step.Name),
				zap.String("db_host", dbHost),
				zap.Error(err),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		log.Info("migration step applied",
			zap.String("migration_step", step.Name),
			zap.Duration("elapsed", time.Since(stepStart)),
		)
	}

	log.Info("migrations complete",
		zap.String("db_host", dbHost),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
