/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes a document's annotations in image-pixel space to
// PDF, PNG or SVG. Every writer consumes the same canvas render list.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"markcanvas/internal/canvas"
	"markcanvas/internal/storage"
	"markcanvas/internal/vector"
)

// Options controls which layers are exported and what is drawn beneath them.
type Options struct {
	// Layers to include; empty means detections, fields and shapes.
	Layers []canvas.Category
	// Background fills the page first; the zero colour means white.
	Background vector.Color
	// ImagePath, when set, is drawn under the annotations at image size.
	// Rotated images are skipped.
	ImagePath string
	// Labels draws each named annotation's name above it.
	Labels bool
	// LabelFont is an optional TTF/OTF file for PNG labels; LabelSize is
	// its size in pixels (default 12).
	LabelFont string
	LabelSize float64
}

var defaultLayers = []canvas.Category{canvas.CategoryDetection, canvas.CategoryField, canvas.CategoryShape}

func (o Options) background() vector.Color {
	if o.Background == (vector.Color{}) {
		return vector.White
	}
	return o.Background
}

// FrameFor renders doc at fit scale 1 and zoom 1 into a viewport the size of
// the image, so item coordinates are image pixels. Documents without an image
// size are sized to their annotations.
func FrameFor(doc storage.Document, opt Options) canvas.Frame {
	size := doc.Image.Size()
	if size.Empty() {
		size = vector.Size{W: 1, H: 1}
		for _, e := range storage.Entries(doc) {
			size.W = max(size.W, e.Bounds.X+e.Bounds.W)
			size.H = max(size.H, e.Bounds.Y+e.Bounds.H)
		}
	}
	c := canvas.New(canvas.DefaultSettings())
	c.SetViewport(vector.R(0, 0, size.W, size.H))
	c.SetImageSize(size)
	c.Restore(doc.State)
	c.ResetView()

	layers := opt.Layers
	if len(layers) == 0 {
		layers = defaultLayers
	}
	f := c.Render()
	f.Items = slices.DeleteFunc(f.Items, func(it canvas.Item) bool { return !slices.Contains(layers, it.Category) })
	return f
}

// imageDrawable reports whether the raster can be drawn axis-aligned.
func imageDrawable(doc storage.Document, opt Options) bool {
	return opt.ImagePath != "" && doc.ImageRotation == 0
}

// WriteFile exports doc to path, picking the format from the extension.
// Relative paths are resolved under <root>/exports.
func WriteFile(doc storage.Document, root, path string, opt Options) (string, error) {
	if !filepath.IsAbs(path) && root != "" {
		path = filepath.Join(root, "exports", path)
	}
	var write func(io.Writer, storage.Document, Options) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		write = WritePDF
	case ".png":
		write = WritePNG
	case ".svg":
		write = WriteSVG
	default:
		return "", fmt.Errorf("unsupported export format %q", filepath.Ext(path))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, doc, opt); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
