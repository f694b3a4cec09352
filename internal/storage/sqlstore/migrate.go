package sqlstore

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrations returns the embedded migration files of a dialect, sorted by name.
func Migrations(d Dialect) ([]string, error) {
	dir := path.Join("migrations", string(d))
	ents, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", d, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, path.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// Migrate applies the embedded migrations not yet recorded in
// schema_migrations and returns the names it applied. Each file runs in a
// transaction; MySQL commits DDL implicitly.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	ts := "TIMESTAMPTZ NOT NULL DEFAULT now()"
	if s.dialect == MySQL {
		ts = "DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)"
	}
	if _, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  filename VARCHAR(255) PRIMARY KEY,
  applied_at `+ts+`
)`); err != nil {
		return nil, err
	}

	files, err := Migrations(s.dialect)
	if err != nil {
		return nil, err
	}
	var applied []string
	for _, f := range files {
		name := path.Base(f)
		var n int
		if err := s.queryRow(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name).Scan(&n); err != nil {
			return applied, err
		}
		if n > 0 {
			continue
		}
		body, err := migrationsFS.ReadFile(f)
		if err != nil {
			return applied, err
		}
		stmts := splitStatements(string(body))
		if len(stmts) == 0 {
			return applied, errors.New("empty migration: " + name)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return applied, err
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return applied, fmt.Errorf("migration %s failed: %w", name, err)
			}
		}
		if _, err := tx.ExecContext(ctx, s.dialect.Rebind(`INSERT INTO schema_migrations (filename) VALUES (?)`), name); err != nil {
			_ = tx.Rollback()
			return applied, err
		}
		if err := tx.Commit(); err != nil {
			return applied, err
		}
		log.Info().Str("migration", name).Str("dialect", string(s.dialect)).Msg("migration applied")
		applied = append(applied, name)
	}
	return applied, nil
}

// splitStatements splits a migration on semicolons ending a line.
func splitStatements(body string) []string {
	var out []string
	var cur strings.Builder
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") {
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
		if strings.HasSuffix(trimmed, ";") {
			if stmt := strings.TrimSuffix(strings.TrimSpace(cur.String()), ";"); stmt != "" {
				out = append(out, stmt)
			}
			cur.Reset()
		}
	}
	if stmt := strings.TrimSpace(cur.String()); stmt != "" {
		out = append(out, stmt)
	}
	return out
}
