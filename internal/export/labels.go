/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

// Name labels drawn next to annotations. Measurement goes through
// x/image/font so PNG output is deterministic; the built-in face is
// basicfont 7x13 unless a TTF/OTF file is configured.

import (
	"fmt"
	"image"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"markcanvas/internal/canvas"
	mv "markcanvas/internal/vector"
)

const (
	defaultLabelSize = 12
	labelGap         = 3
	ellipsis         = "..."
)

// labelFace resolves the label font. The DPI is 72 so sizes are pixels.
func labelFace(opt Options) (font.Face, error) {
	if opt.LabelFont == "" {
		return basicfont.Face7x13, nil
	}
	data, err := os.ReadFile(opt.LabelFont)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", opt.LabelFont, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", opt.LabelFont, err)
	}
	size := opt.LabelSize
	if size <= 0 {
		size = defaultLabelSize
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	return face, nil
}

// measure returns the advance of s in pixels.
type measure func(s string) float64

func faceMeasure(face font.Face) measure {
	return func(s string) float64 { return float64(font.MeasureString(face, s)) / 64 }
}

// fitLabel shortens text with a trailing ellipsis until it fits maxWidth.
// It returns "" when not even the ellipsis fits.
func fitLabel(m measure, text string, maxWidth float64) string {
	if m(text) <= maxWidth {
		return text
	}
	runes := []rune(text)
	for n := len(runes) - 1; n >= 0; n-- {
		if s := string(runes[:n]) + ellipsis; m(s) <= maxWidth {
			return s
		}
	}
	return ""
}

// label is a placed name: baseline origin in image pixels.
type label struct {
	Text  string
	At    mv.Pt
	Color mv.Color
}

// placeLabels lays out one label per named shape, detection or field. A
// label sits above the item's bounds, or just inside the top edge when there
// is no room above, and is cut to the item width.
func placeLabels(items []canvas.Item, m measure, ascent float64) []label {
	var out []label
	for _, it := range items {
		switch it.Category {
		case canvas.CategoryShape, canvas.CategoryDetection, canvas.CategoryField:
		default:
			continue
		}
		if it.Name == "" {
			continue
		}
		b, ok := mv.BoundsOf(it.Points)
		if !ok {
			continue
		}
		text := fitLabel(m, it.Name, b.W)
		if text == "" {
			continue
		}
		y := b.Y - labelGap
		if y-ascent < 0 {
			y = b.Y + ascent + labelGap
		}
		col := mv.Black
		if it.Style.Stroke.Enabled && it.Style.Stroke.Color.A > 0 {
			col = it.Style.Stroke.Color
		}
		out = append(out, label{Text: text, At: mv.Pt{X: b.X, Y: y}, Color: col})
	}
	return out
}

func rasterLabels(dst *image.RGBA, items []canvas.Item, opt Options) error {
	face, err := labelFace(opt)
	if err != nil {
		return err
	}
	ascent := float64(face.Metrics().Ascent.Round())
	for _, lb := range placeLabels(items, faceMeasure(face), ascent) {
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(toNRGBA(lb.Color)),
			Face: face,
			Dot:  fixed.P(int(lb.At.X), int(lb.At.Y)),
		}
		d.DrawString(lb.Text)
	}
	return nil
}
