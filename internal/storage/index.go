/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "markcanvas/internal/log"
	"markcanvas/internal/vector"
	"markcanvas/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName holds per-document derived data under the document root.
	IndexDirName  = ".mkc"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// Layer names stored in the annotations table.
const (
	LayerShape     = "shape"
	LayerDetection = "detection"
	LayerField     = "field"
)

// IndexPath returns the full path to the document's index database file.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the SQLite index exists at .mkc/index.sqlite,
// opens the database, enables WAL mode, and brings the schema up to date.
// Callers close the returned *sql.DB.
func InitOrOpenIndex(root string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", root),
	)
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("document root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}

	path := IndexPath(root)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema so runMigrations can see it
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{
				`CREATE INDEX IF NOT EXISTS idx_annotations_x ON annotations(min_x, max_x);`,
				`CREATE INDEX IF NOT EXISTS idx_annotations_y ON annotations(min_y, max_y);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates the annotation table and its FTS mirror if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS annotations (
			row_id   INTEGER PRIMARY KEY,
			shape_id TEXT,
			layer    TEXT    NOT NULL,
			ord      INTEGER NOT NULL,
			name     TEXT    NOT NULL,
			kind     TEXT    NOT NULL,
			min_x    REAL    NOT NULL,
			min_y    REAL    NOT NULL,
			max_x    REAL    NOT NULL,
			max_y    REAL    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_layer ON annotations(layer, ord);`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_x ON annotations(min_x, max_x);`,
		`CREATE INDEX IF NOT EXISTS idx_annotations_y ON annotations(min_y, max_y);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_annotations USING fts5(
			name,
			content='',
			tokenize = 'unicode61'
		);`,
		`CREATE TRIGGER IF NOT EXISTS annotations_ai AFTER INSERT ON annotations BEGIN
			INSERT INTO fts_annotations(rowid, name) VALUES (new.row_id, new.name);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS annotations_ad AFTER DELETE ON annotations BEGIN
			INSERT INTO fts_annotations(fts_annotations, rowid, name) VALUES ('delete', old.row_id, old.name);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS annotations_au AFTER UPDATE OF name ON annotations BEGIN
			INSERT INTO fts_annotations(fts_annotations, rowid, name) VALUES ('delete', old.row_id, old.name);
			INSERT INTO fts_annotations(rowid, name) VALUES (new.row_id, new.name);
		END;`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	return nil
}

// Entry is one indexed annotation. Bounds are in image-pixel space.
type Entry struct {
	ShapeID string
	Layer   string
	Index   int
	Name    string
	Kind    string
	Bounds  vector.Rect
}

// Entries flattens doc into index rows: shapes, then detections, then fields.
func Entries(doc Document) []Entry {
	out := make([]Entry, 0, len(doc.Shapes)+len(doc.Detections)+len(doc.Fields))
	add := func(layer string, shapes []vector.Shape) {
		for i, s := range shapes {
			out = append(out, Entry{ShapeID: s.ID, Layer: layer, Index: i, Name: s.Name, Kind: s.Kind().String(), Bounds: s.Bounds()})
		}
	}
	add(LayerShape, doc.Shapes)
	add(LayerDetection, doc.Detections)
	for i, f := range doc.Fields {
		out = append(out, Entry{Layer: LayerField, Index: i, Name: f.Name, Kind: "field", Bounds: f.Bounds})
	}
	return out
}

// ReindexDocument replaces the index content with the annotations of doc.
func ReindexDocument(ctx context.Context, root string, doc Document) error {
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return err
	}
	defer db.Close()
	return reindex(ctx, db, doc)
}

func reindex(ctx context.Context, db *sql.DB, doc Document) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM annotations;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear annotations: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, `INSERT INTO annotations(shape_id, layer, ord, name, kind, min_x, min_y, max_x, max_y) VALUES(?,?,?,?,?,?,?,?,?);`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, e := range Entries(doc) {
		var id sql.NullString
		if e.ShapeID != "" {
			id = sql.NullString{String: e.ShapeID, Valid: true}
		}
		b := e.Bounds
		if _, err := ins.ExecContext(ctx, id, e.Layer, e.Index, e.Name, e.Kind, b.X, b.Y, b.X+b.W, b.Y+b.H); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert annotation: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DetectAndRebuildIndex checks the index for corruption or a missing schema and
// rebuilds it from doc if needed. It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, root string, doc Document) (bool, error) {
	path := IndexPath(root)
	db, err := InitOrOpenIndex(root)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := ReindexDocument(ctx, root, doc); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM annotations LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	backupIndexFile(path)
	_ = os.Remove(path)
	if err := ReindexDocument(ctx, root, doc); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into .mkc/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}
