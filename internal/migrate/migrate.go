// Package migrate applies the embedded SQL migrations in lexical order and
// records each one in schema_migrations.
package migrate

import (
	"context"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed sql/*.sql
var migrationsFS embed.FS

// Migration is one embedded SQL file
type Migration struct {
	Filename string
	Checksum string
	SQL      string
}

// Load returns the embedded migrations sorted by filename
func Load() ([]Migration, error) {
	entries, err := fs.ReadDir(migrationsFS, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(migrationsFS, "sql/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(content)
		out = append(out, Migration{
			Filename: e.Name(),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(content),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Filename < out[j].Filename })
	return out, nil
}

// Apply runs every migration not yet recorded. A recorded migration whose
// checksum differs from the embedded file is an error.
func Apply(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT NOT NULL UNIQUE,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return 0, fmt.Errorf("create schema_migrations: %w", err)
	}

	migrations, err := Load()
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		var recorded string
		err := pool.QueryRow(ctx,
			"SELECT checksum FROM schema_migrations WHERE filename = $1", m.Filename,
		).Scan(&recorded)
		switch {
		case err == nil:
			if recorded != m.Checksum {
				return applied, fmt.Errorf("migration %s changed after it was applied", m.Filename)
			}
			logger.Debug("migration already applied", zap.String("file", m.Filename))
			continue
		case !errors.Is(err, pgx.ErrNoRows):
			return applied, fmt.Errorf("check migration %s: %w", m.Filename, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (filename, checksum) VALUES ($1, $2)",
				m.Filename, m.Checksum)
			return err
		})
		if err != nil {
			return applied, fmt.Errorf("apply migration %s: %w", m.Filename, err)
		}
		logger.Info("migration applied", zap.String("file", m.Filename))
		applied++
	}
	return applied, nil
}
