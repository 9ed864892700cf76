/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend publishes annotation documents to a shared Postgres store
// so several workstations can fetch and search them.
package backend

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	applog "markcanvas/internal/log"
	"markcanvas/internal/storage"
	"markcanvas/internal/vector"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned by Fetch for an unknown document name.
var ErrNotFound = errors.New("document not found")

// Store is a handle on the remote annotation database.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// Open connects to dsn, overriding the password with token when it is set,
// and applies pending migrations.
func Open(ctx context.Context, dsn, token string) (*Store, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if token != "" {
		cfg.Password = token
	}
	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	s := &Store{db: db, log: applog.WithComponent("backend").With(slog.String("host", cfg.Host))}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// migrate applies embedded SQL migrations in filename order, each in its own transaction.
func (s *Store) migrate(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	// dialect=PostgreSQL
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	applied := map[int64]bool{}
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("select schema_migrations: %w", err)
	}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return err
		}
		applied[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, fname := range files {
		version, err := parseVersion(fname)
		if err != nil {
			return err
		}
		if applied[version] {
			continue
		}
		b, err := migrationsFS.ReadFile(path.Join("migrations", fname))
		if err != nil {
			return err
		}
		s.log.Info("applying migration", slog.String("file", fname))
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(b)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", fname, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, name) VALUES($1, $2)`, version, fname); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record %s: %w", fname, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit %s: %w", fname, err)
		}
	}
	return nil
}

func parseVersion(name string) (int64, error) {
	prefix, _, ok := strings.Cut(path.Base(name), "_")
	if !ok {
		return 0, errors.New("invalid migration filename: " + name)
	}
	v, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse version from %s: %w", name, err)
	}
	return v, nil
}

// Publish stores doc under name, replacing any earlier revision, and returns
// the new revision number.
func (s *Store) Publish(ctx context.Context, name string, doc storage.Document) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("document name is required")
	}
	body, err := storage.Marshal(doc)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id, rev int64
	err = tx.QueryRowContext(ctx, `INSERT INTO documents(name, body) VALUES($1, $2)
		ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body, version = documents.version + 1, updated_at = now()
		RETURNING id, version`, name, string(body)).Scan(&id, &rev)
	if err != nil {
		return 0, fmt.Errorf("upsert document: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE document_id = $1`, id); err != nil {
		return 0, fmt.Errorf("clear annotations: %w", err)
	}
	for _, e := range storage.Entries(doc) {
		var sid sql.NullString
		if e.ShapeID != "" {
			sid = sql.NullString{String: e.ShapeID, Valid: true}
		}
		b := e.Bounds
		if _, err := tx.ExecContext(ctx, `INSERT INTO annotations(document_id, shape_id, layer, ord, name, kind, min_x, min_y, max_x, max_y)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, id, sid, e.Layer, e.Index, e.Name, e.Kind, b.X, b.Y, b.X+b.W, b.Y+b.H); err != nil {
			return 0, fmt.Errorf("insert annotation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.log.Info("document published", slog.String("name", name), slog.Int64("version", rev))
	return rev, nil
}

// Fetch returns the latest revision of a published document.
func (s *Store) Fetch(ctx context.Context, name string) (storage.Document, int64, error) {
	var body string
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT body::text, version FROM documents WHERE name = $1`, name).Scan(&body, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Document{}, 0, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return storage.Document{}, 0, fmt.Errorf("select document: %w", err)
	}
	if err := storage.Validate([]byte(body)); err != nil {
		return storage.Document{}, 0, err
	}
	var doc storage.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return storage.Document{}, 0, fmt.Errorf("decode document: %w", err)
	}
	return doc, rev, nil
}

// Summary is a row of List.
type Summary struct {
	Name      string
	Version   int64
	UpdatedAt time.Time
	Shapes    int
}

// List returns published documents, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT d.name, d.version, d.updated_at,
			(SELECT COUNT(*) FROM annotations a WHERE a.document_id = d.id AND a.layer = $1)
		FROM documents d ORDER BY d.updated_at DESC, d.name`, storage.LayerShape)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.Name, &sm.Version, &sm.UpdatedAt, &sm.Shapes); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Delete removes a published document and its annotations.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return nil
}

// SearchByName finds annotations of one document whose names match every
// term by prefix, like storage.SearchByName does on the local index.
func (s *Store) SearchByName(ctx context.Context, docName, text string) ([]storage.Entry, error) {
	tsq := tsPrefixQuery(text)
	if tsq == "" {
		return nil, errors.New("search text is empty")
	}
	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(a.shape_id, ''), a.layer, a.ord, a.name, a.kind, a.min_x, a.min_y, a.max_x, a.max_y
		FROM annotations a JOIN documents d ON d.id = a.document_id
		WHERE d.name = $1 AND a.search_vector @@ to_tsquery('simple', $2)
		ORDER BY a.layer, a.ord`, docName, tsq)
	if err != nil {
		return nil, fmt.Errorf("search annotations: %w", err)
	}
	defer rows.Close()
	var out []storage.Entry
	for rows.Next() {
		var e storage.Entry
		var x0, y0, x1, y1 float64
		if err := rows.Scan(&e.ShapeID, &e.Layer, &e.Index, &e.Name, &e.Kind, &x0, &y0, &x1, &y1); err != nil {
			return nil, err
		}
		e.Bounds = vector.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
		out = append(out, e)
	}
	return out, rows.Err()
}

// tsPrefixQuery builds "a:* & b:*" from the letter/digit runs of text.
func tsPrefixQuery(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		words[i] = w + ":*"
	}
	return strings.Join(words, " & ")
}
