/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"markcanvas/internal/canvas"
	applog "markcanvas/internal/log"
	"markcanvas/internal/vector"
)

const (
	DocumentFileName = "document.json"
	BackupsDirName   = "backups"
	DocumentVersion  = 1

	backupStamp = "20060102-150405.000"
)

// Standard subfolders created next to document.json.
var standardSubDirs = []string{
	"images",
	"exports",
	BackupsDirName,
}

// ImageRef points at the raster image the annotations are drawn on. Path is
// relative to the document root when the image lives inside it.
type ImageRef struct {
	Path   string  `json:"path"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r ImageRef) Size() vector.Size { return vector.Size{W: r.Width, H: r.Height} }

// Document is the persisted form of an annotation canvas.
type Document struct {
	Version int      `json:"version"`
	Image   ImageRef `json:"image"`
	canvas.State
}

// NewDocument returns an empty document for the given image.
func NewDocument(img ImageRef) Document {
	return Document{
		Version: DocumentVersion,
		Image:   img,
		State: canvas.State{
			Tool:  canvas.ToolSelect,
			Zoom:  1,
			Style: vector.DefaultStyle(),
		},
	}
}

// Handle keeps track of a document loaded from or saved to disk.
// Root is the directory containing document.json and its subfolders.
type Handle struct {
	Root         string
	DocumentPath string
	Doc          Document
}

// Init creates a new document directory at root (creating it if it doesn't exist),
// scaffolds the standard subfolders, and writes the document transactionally.
func Init(root string, doc Document) (*Handle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	h := &Handle{Root: root, DocumentPath: filepath.Join(root, DocumentFileName), Doc: doc}
	if err := Save(h); err != nil {
		return nil, err
	}
	return h, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create document root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads an existing document from root. If document.json is missing,
// unreadable or fails validation, the newest backup is used instead.
func Open(root string) (*Handle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	path := filepath.Join(root, DocumentFileName)
	doc, err := readDocument(path)
	if err != nil {
		l.Warn("document unreadable, trying backup", slog.Any("err", err))
		bdoc, bpath, berr := openFromLatestBackup(root)
		if berr != nil {
			return nil, fmt.Errorf("open document: %w; backup attempt: %v", err, berr)
		}
		l.Info("recovered from backup", slog.String("backup", bpath))
		doc = bdoc
	}
	return &Handle{Root: root, DocumentPath: path, Doc: doc}, nil
}

func readDocument(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	if err := Validate(b); err != nil {
		return Document{}, err
	}
	var d Document
	if err := json.Unmarshal(b, &d); err != nil {
		return Document{}, fmt.Errorf("parse document: %w", err)
	}
	if d.Version > DocumentVersion {
		return Document{}, fmt.Errorf("document version %d is newer than supported %d", d.Version, DocumentVersion)
	}
	return d, nil
}

// Marshal renders the document as indented, schema-valid JSON.
func Marshal(doc Document) ([]byte, error) {
	if doc.Version == 0 {
		doc.Version = DocumentVersion
	}
	// the schema wants arrays, not null
	if doc.Shapes == nil {
		doc.Shapes = []vector.Shape{}
	}
	if doc.Detections == nil {
		doc.Detections = []vector.Shape{}
	}
	if doc.Fields == nil {
		doc.Fields = []canvas.Field{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	if err := Validate(data); err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Save writes h.Doc to disk with transactional semantics and a timestamped
// backup of the previous document (if present).
func Save(h *Handle) error {
	if h == nil {
		return errors.New("nil Handle")
	}
	if h.Root == "" || h.DocumentPath == "" {
		return errors.New("invalid Handle: missing paths")
	}
	data, err := Marshal(h.Doc)
	if err != nil {
		return err
	}

	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(h.DocumentPath); statErr == nil {
		bname := fmt.Sprintf("%s.%s.bak", DocumentFileName, time.Now().Format(backupStamp))
		if cerr := copyFile(h.DocumentPath, filepath.Join(bdir, bname)); cerr != nil {
			return fmt.Errorf("backup current document: %w", cerr)
		}
	}
	return replaceFile(h.DocumentPath, data)
}

// replaceFile writes to a temp file in the same directory, then renames it over path.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	temp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp document: %w", err)
	}
	// Windows refuses to rename over an existing file
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}

// SaveAs writes the document to a new root folder, scaffolding structure if needed, and updates the handle.
func SaveAs(h *Handle, newRoot string) error {
	if h == nil {
		return errors.New("nil Handle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	h.Root = newRoot
	h.DocumentPath = filepath.Join(newRoot, DocumentFileName)
	return Save(h)
}

// AutosaveCrashSnapshot writes h.Doc next to the backups without touching
// document.json. It returns the path written.
func AutosaveCrashSnapshot(h *Handle) (string, error) {
	if h == nil || h.Root == "" {
		return "", errors.New("invalid Handle")
	}
	data, err := Marshal(h.Doc)
	if err != nil {
		return "", err
	}
	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, fmt.Sprintf("%s.crash-%s.json", DocumentFileName, time.Now().Format(backupStamp)))
	if err := writeFileSync(path, data); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// PruneBackups removes all but the newest keep document backups and returns
// how many were deleted. keep <= 0 keeps everything.
func PruneBackups(root string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	backups, err := listBackups(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	n := 0
	for len(backups) > keep {
		if err := os.Remove(backups[0]); err != nil {
			return n, fmt.Errorf("remove backup: %w", err)
		}
		backups = backups[1:]
		n++
	}
	return n, nil
}

// listBackups returns backup paths oldest first; the timestamp in the name sorts lexicographically.
func listBackups(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, DocumentFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// writeFileSync writes data to a file, ensures it is flushed to disk.
func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

// copyFile copies a file from src to dst (overwrites dst if exists).
func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}

// openFromLatestBackup walks backups newest first and returns the first that validates.
func openFromLatestBackup(root string) (Document, string, error) {
	backups, err := listBackups(root)
	if err != nil {
		return Document{}, "", fmt.Errorf("read backups dir: %w", err)
	}
	if len(backups) == 0 {
		return Document{}, "", errors.New("no backups found")
	}
	var lastErr error
	for i := len(backups) - 1; i >= 0; i-- {
		d, err := readDocument(backups[i])
		if err == nil {
			return d, backups[i], nil
		}
		lastErr = err
	}
	return Document{}, "", fmt.Errorf("no usable backup: %w", lastErr)
}
