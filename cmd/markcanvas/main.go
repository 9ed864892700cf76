/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"markcanvas/internal/backend"
	"markcanvas/internal/canvas"
	"markcanvas/internal/config"
	"markcanvas/internal/crash"
	"markcanvas/internal/detect"
	"markcanvas/internal/export"
	applog "markcanvas/internal/log"
	"markcanvas/internal/storage"
	"markcanvas/internal/ui"
	"markcanvas/internal/vector"
	"markcanvas/internal/version"
)

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, "markcanvas: vector annotation canvas")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  markcanvas version|-v|--version               Show version")
	fmt.Fprintln(w, "  markcanvas init <dir> <image>                   Create a document for <image> at <dir>")
	fmt.Fprintln(w, "  markcanvas open <dir>                           Print a document summary")
	fmt.Fprintln(w, "  markcanvas export [-layers l,..] [-labels] [-no-image] <dir> <out.png|pdf|svg>")
	fmt.Fprintln(w, "  markcanvas index <dir>                          Rebuild the annotation index")
	fmt.Fprintln(w, "  markcanvas search [-layers l,..] <dir> <text>   Find annotations by name")
	fmt.Fprintln(w, "  markcanvas overlap <dir> <x,y,w,h>              Find annotations overlapping a rect")
	fmt.Fprintln(w, "  markcanvas detect [-lang eng] [-min 60] <dir>   Run OCR and store word detections")
	fmt.Fprintln(w, "  markcanvas publish <dir> [name]                 Publish to the backend store")
	fmt.Fprintln(w, "  markcanvas fetch <name> <dir>                   Fetch a published document into <dir>")
	fmt.Fprintln(w, "  markcanvas list                                 List published documents")
	fmt.Fprintln(w, "  markcanvas ui [<dir>]                           Launch desktop UI (build with -tags fyne)")
}

// cli carries what every command needs. handle points at the open document
// so a crash report can autosave it.
type cli struct {
	cfg    config.AppConfig
	token  string
	out    io.Writer
	log    *slog.Logger
	handle *storage.Handle
}

func main() {
	cfg, token, cfgErr := config.Load()
	if cfgErr != nil {
		cfg = config.Defaults()
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded; using defaults", slog.Any("err", cfgErr))
	}

	c := &cli{cfg: cfg, token: token, out: os.Stdout, log: l}
	defer crash.Recover(func() *storage.Handle { return c.handle })

	l.Debug("start", slog.Int("args", len(os.Args)))
	if err := c.run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stdout)
			os.Exit(2)
		}
		l.Error("command failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func (c *cli) run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(c.out, version.String())
		return nil
	case "init":
		return c.initCmd(rest)
	case "open":
		return c.openCmd(rest)
	case "export":
		return c.exportCmd(rest)
	case "index":
		return c.indexCmd(rest)
	case "search":
		return c.searchCmd(rest)
	case "overlap":
		return c.overlapCmd(rest)
	case "detect":
		return c.detectCmd(rest)
	case "publish":
		return c.publishCmd(rest)
	case "fetch":
		return c.fetchCmd(rest)
	case "list":
		return c.listCmd()
	case "ui":
		var dir string
		if len(rest) > 0 {
			dir = rest[0]
		}
		return ui.Run(dir, c.cfg)
	}
	return errUsage
}

func (c *cli) initCmd(args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "init requires <dir> and <image>")
		return errUsage
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	ref, err := importImage(root, args[1])
	if err != nil {
		return err
	}
	doc := storage.NewDocument(ref)
	if st, err := c.cfg.Canvas.Style(); err == nil {
		doc.Style = st
	}
	c.log.Info("init document", slog.String("root", root), slog.String("image", ref.Path))
	h, err := storage.Init(root, doc)
	if err != nil {
		return err
	}
	c.handle = h
	c.reindex(h)
	fmt.Fprintf(c.out, "Created document at %s (%gx%g)\n", root, ref.Width, ref.Height)
	return nil
}

// importImage copies src into <root>/images and reads its pixel size.
func importImage(root, src string) (storage.ImageRef, error) {
	f, err := os.Open(src)
	if err != nil {
		return storage.ImageRef{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	ic, format, err := image.DecodeConfig(f)
	if err != nil {
		return storage.ImageRef{}, fmt.Errorf("decode image %s: %w", src, err)
	}
	rel := filepath.Join("images", filepath.Base(src))
	dst := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return storage.ImageRef{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return storage.ImageRef{}, err
	}
	out, err := os.Create(dst)
	if err != nil {
		return storage.ImageRef{}, fmt.Errorf("copy image: %w", err)
	}
	if _, err := io.Copy(out, f); err != nil {
		_ = out.Close()
		return storage.ImageRef{}, fmt.Errorf("copy image: %w", err)
	}
	if err := out.Close(); err != nil {
		return storage.ImageRef{}, err
	}
	applog.WithComponent("cli").Debug("image imported", slog.String("format", format), slog.String("path", dst))
	return storage.ImageRef{Path: filepath.ToSlash(rel), Width: float64(ic.Width), Height: float64(ic.Height)}, nil
}

func (c *cli) open(dir string) (*storage.Handle, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	h, err := storage.Open(root)
	if err != nil {
		return nil, err
	}
	c.handle = h
	return h, nil
}

// save writes the document and keeps the index and backups in line with it.
func (c *cli) save(h *storage.Handle) error {
	if err := storage.Save(h); err != nil {
		return err
	}
	c.reindex(h)
	if _, err := storage.PruneBackups(h.Root, c.cfg.Storage.BackupsKept); err != nil {
		c.log.Warn("prune backups failed", slog.Any("err", err))
	}
	return nil
}

func (c *cli) reindex(h *storage.Handle) {
	if c.cfg.Storage.DisableIndex {
		return
	}
	ctx := applog.WithDocument(context.Background(), h.DocumentPath)
	if err := storage.ReindexDocument(ctx, h.Root, h.Doc); err != nil {
		c.log.Warn("reindex failed", slog.Any("err", err))
	}
}

func imagePath(h *storage.Handle) string {
	p := h.Doc.Image.Path
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(h.Root, filepath.FromSlash(p))
}

func (c *cli) openCmd(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "open requires <dir>")
		return errUsage
	}
	h, err := c.open(args[0])
	if err != nil {
		return err
	}
	d := h.Doc
	fmt.Fprintf(c.out, "Root: %s\n", h.Root)
	fmt.Fprintf(c.out, "Image: %s (%gx%g)\n", d.Image.Path, d.Image.Width, d.Image.Height)
	fmt.Fprintf(c.out, "Shapes: %d\n", len(d.Shapes))
	fmt.Fprintf(c.out, "Detections: %d\n", len(d.Detections))
	fmt.Fprintf(c.out, "Fields: %d\n", len(d.Fields))
	fmt.Fprintf(c.out, "Tool: %s  Zoom: %g\n", d.Tool, d.Zoom)
	for _, s := range d.Shapes {
		b := s.Bounds()
		fmt.Fprintf(c.out, "  %-10s %-24q %g,%g %gx%g\n", s.Kind(), s.Name, b.X, b.Y, b.W, b.H)
	}
	return nil
}

func (c *cli) exportCmd(args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(c.out)
	layers := fs.String("layers", "", "comma-separated layers: detection,field,shape,grid,image")
	noImage := fs.Bool("no-image", false, "do not draw the document image")
	labels := fs.Bool("labels", false, "draw annotation names")
	labelFont := fs.String("font", "", "TTF/OTF file for PNG labels")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(c.out, "export requires <dir> and <out>")
		return errUsage
	}
	h, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	opt := export.Options{Labels: *labels, LabelFont: *labelFont}
	if *layers != "" {
		if opt.Layers, err = parseCategories(*layers); err != nil {
			return err
		}
	}
	if !*noImage {
		opt.ImagePath = imagePath(h)
	}
	out, err := export.WriteFile(h.Doc, h.Root, fs.Arg(1), opt)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Exported", out)
	return nil
}

func parseCategories(s string) ([]canvas.Category, error) {
	var out []canvas.Category
	for _, name := range strings.Split(s, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		found := false
		for cat := canvas.CategoryImage; cat <= canvas.CategoryGuide; cat++ {
			if cat.String() == name {
				out = append(out, cat)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown layer %q", name)
		}
	}
	return out, nil
}

func (c *cli) indexCmd(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "index requires <dir>")
		return errUsage
	}
	h, err := c.open(args[0])
	if err != nil {
		return err
	}
	ctx := applog.WithDocument(context.Background(), h.DocumentPath)
	rebuilt, err := storage.DetectAndRebuildIndex(ctx, h.Root, h.Doc)
	if err != nil {
		return err
	}
	if !rebuilt {
		if err := storage.ReindexDocument(ctx, h.Root, h.Doc); err != nil {
			return err
		}
	}
	fmt.Fprintf(c.out, "Indexed %d annotations\n", len(storage.Entries(h.Doc)))
	return nil
}

func (c *cli) printEntries(entries []storage.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "No matches")
		return
	}
	for _, e := range entries {
		b := e.Bounds
		fmt.Fprintf(c.out, "%-9s %3d %-10s %-24q %g,%g %gx%g\n", e.Layer, e.Index, e.Kind, e.Name, b.X, b.Y, b.W, b.H)
	}
}

func splitLayers(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *cli) searchCmd(args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	fs.SetOutput(c.out)
	layers := fs.String("layers", "", "comma-separated index layers: shape,detection,field")
	limit := fs.Int("limit", 0, "maximum results")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 2 {
		fmt.Fprintln(c.out, "search requires <dir> and <text>")
		return errUsage
	}
	root, err := filepath.Abs(fs.Arg(0))
	if err != nil {
		return err
	}
	q := storage.Query{Layers: splitLayers(*layers), Limit: *limit}
	entries, err := storage.SearchByName(context.Background(), root, strings.Join(fs.Args()[1:], " "), q)
	if err != nil {
		return err
	}
	c.printEntries(entries)
	return nil
}

func (c *cli) overlapCmd(args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "overlap requires <dir> and <x,y,w,h>")
		return errUsage
	}
	root, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	r, err := parseRect(args[1])
	if err != nil {
		return err
	}
	entries, err := storage.QueryOverlapping(context.Background(), root, r, storage.Query{})
	if err != nil {
		return err
	}
	c.printEntries(entries)
	return nil
}

func parseRect(s string) (vector.Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return vector.Rect{}, fmt.Errorf("rect %q: want x,y,w,h", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return vector.Rect{}, fmt.Errorf("rect %q: %w", s, err)
		}
		v[i] = f
	}
	return vector.R(v[0], v[1], v[2], v[3]), nil
}

func (c *cli) detectCmd(args []string) error {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(c.out)
	lang := fs.String("lang", "eng", "tesseract language")
	minConf := fs.Float64("min", 60, "minimum word confidence (0-100)")
	whitelist := fs.String("whitelist", "", "restrict recognised characters")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(c.out, "detect requires <dir>")
		return errUsage
	}
	h, err := c.open(fs.Arg(0))
	if err != nil {
		return err
	}
	img := imagePath(h)
	if img == "" {
		return errors.New("document has no image")
	}
	d, err := detect.NewTesseract(*lang, *whitelist)
	if err != nil {
		return err
	}
	defer d.Close()
	shapes, err := detect.Run(context.Background(), d, img, *minConf)
	if err != nil {
		return err
	}
	h.Doc.Detections = shapes
	if err := c.save(h); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Stored %d detections\n", len(shapes))
	return nil
}

func (c *cli) backend() (*backend.Store, context.Context, context.CancelFunc, error) {
	if strings.TrimSpace(c.cfg.Backend.DSN) == "" {
		return nil, nil, nil, fmt.Errorf("backend DSN not configured (set %s)", config.EnvBackendDSN)
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Backend.Timeout())
	s, err := backend.Open(ctx, c.cfg.Backend.DSN, c.token)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return s, ctx, cancel, nil
}

func (c *cli) publishCmd(args []string) error {
	if len(args) < 1 {
		fmt.Fprintln(c.out, "publish requires <dir>")
		return errUsage
	}
	h, err := c.open(args[0])
	if err != nil {
		return err
	}
	name := filepath.Base(h.Root)
	if len(args) > 1 {
		name = args[1]
	}
	s, ctx, cancel, err := c.backend()
	if err != nil {
		return err
	}
	defer cancel()
	defer s.Close()
	rev, err := s.Publish(ctx, name, h.Doc)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Published %s revision %d\n", name, rev)
	return nil
}

func (c *cli) fetchCmd(args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(c.out, "fetch requires <name> and <dir>")
		return errUsage
	}
	root, err := filepath.Abs(args[1])
	if err != nil {
		return err
	}
	s, ctx, cancel, err := c.backend()
	if err != nil {
		return err
	}
	defer cancel()
	defer s.Close()
	doc, rev, err := s.Fetch(ctx, args[0])
	if err != nil {
		return err
	}
	h, err := storage.Init(root, doc)
	if err != nil {
		return err
	}
	c.handle = h
	c.reindex(h)
	fmt.Fprintf(c.out, "Fetched %s revision %d into %s\n", args[0], rev, root)
	return nil
}

func (c *cli) listCmd() error {
	s, ctx, cancel, err := c.backend()
	if err != nil {
		return err
	}
	defer cancel()
	defer s.Close()
	docs, err := s.List(ctx)
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Fprintf(c.out, "%-30s rev %-4d %3d shapes  %s\n", d.Name, d.Version, d.Shapes, d.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
