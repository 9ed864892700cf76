/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"markcanvas/internal/canvas"
	"markcanvas/internal/config"
	applog "markcanvas/internal/log"
	"markcanvas/internal/storage"
	"markcanvas/internal/vector"
)

func newCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &cli{cfg: config.Defaults(), out: &out, log: applog.WithComponent("cli")}, &out
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestInitOpenExportIndex(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "scan.png")
	writePNG(t, src, 64, 48)
	root := filepath.Join(tmp, "doc")

	c, out := newCLI(t)
	if err := c.run([]string{"init", root, src}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "images", "scan.png")); err != nil {
		t.Fatalf("image not copied: %v", err)
	}

	h, err := storage.Open(root)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if h.Doc.Image.Path != "images/scan.png" || h.Doc.Image.Width != 64 || h.Doc.Image.Height != 48 {
		t.Fatalf("image ref = %+v", h.Doc.Image)
	}
	g, err := vector.NewRectangle(vector.Pt{X: 4, Y: 4}, vector.Pt{X: 30, Y: 20})
	if err != nil {
		t.Fatal(err)
	}
	h.Doc.Shapes = append(h.Doc.Shapes, vector.NewShape("Invoice number", vector.DefaultStyle(), g))
	if err := storage.Save(h); err != nil {
		t.Fatal(err)
	}

	out.Reset()
	if err := c.run([]string{"open", root}); err != nil {
		t.Fatalf("open cmd: %v", err)
	}
	if !strings.Contains(out.String(), "Shapes: 1") || !strings.Contains(out.String(), `"Invoice number"`) {
		t.Fatalf("open output:\n%s", out.String())
	}

	out.Reset()
	if err := c.run([]string{"index", root}); err != nil {
		t.Fatalf("index: %v", err)
	}
	if !strings.Contains(out.String(), "Indexed 1 annotations") {
		t.Fatalf("index output: %q", out.String())
	}

	out.Reset()
	if err := c.run([]string{"search", root, "invoice"}); err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out.String(), "Invoice number") {
		t.Fatalf("search output: %q", out.String())
	}

	out.Reset()
	if err := c.run([]string{"overlap", root, "0,0,10,10"}); err != nil {
		t.Fatalf("overlap: %v", err)
	}
	if !strings.Contains(out.String(), "Invoice number") {
		t.Fatalf("overlap output: %q", out.String())
	}

	out.Reset()
	if err := c.run([]string{"export", "-layers", "shape", root, "out.svg"}); err != nil {
		t.Fatalf("export: %v", err)
	}
	svg, err := os.ReadFile(filepath.Join(root, "exports", "out.svg"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(svg), "Invoice number") {
		t.Fatalf("svg missing shape title")
	}
}

func TestUsageErrors(t *testing.T) {
	c, _ := newCLI(t)
	for _, args := range [][]string{nil, {"bogus"}, {"init", "only-dir"}, {"open"}, {"export", "dir"}} {
		if err := c.run(args); !errors.Is(err, errUsage) {
			t.Errorf("run(%q) = %v, want errUsage", args, err)
		}
	}
}

func TestVersion(t *testing.T) {
	c, out := newCLI(t)
	if err := c.run([]string{"--version"}); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) == "" {
		t.Fatalf("empty version output")
	}
}

func TestBackendNeedsDSN(t *testing.T) {
	c, _ := newCLI(t)
	c.cfg.Backend.DSN = ""
	err := c.run([]string{"list"})
	if err == nil || !strings.Contains(err.Error(), config.EnvBackendDSN) {
		t.Fatalf("list without DSN: %v", err)
	}
}

func TestParseHelpers(t *testing.T) {
	cats, err := parseCategories("shape, field")
	if err != nil || len(cats) != 2 || cats[0] != canvas.CategoryShape || cats[1] != canvas.CategoryField {
		t.Fatalf("parseCategories = %v, %v", cats, err)
	}
	if _, err := parseCategories("nope"); err == nil {
		t.Fatalf("unknown layer accepted")
	}
	r, err := parseRect("1, 2,3,4.5")
	if err != nil || r != vector.R(1, 2, 3, 4.5) {
		t.Fatalf("parseRect = %+v, %v", r, err)
	}
	if _, err := parseRect("1,2,3"); err == nil {
		t.Fatalf("short rect accepted")
	}
}
