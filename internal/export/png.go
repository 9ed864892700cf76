/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"
	"math"
	"os"

	"golang.org/x/image/vector"

	"markcanvas/internal/canvas"
	"markcanvas/internal/storage"
	mv "markcanvas/internal/vector"
)

// WritePNG rasterises the frame at one pixel per image pixel.
func WritePNG(w io.Writer, doc storage.Document, opt Options) error {
	img, err := Rasterize(doc, opt)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// Rasterize draws the frame into a new RGBA image.
func Rasterize(doc storage.Document, opt Options) (*image.RGBA, error) {
	f := FrameFor(doc, opt)
	pw := int(math.Ceil(f.Viewport.W))
	ph := int(math.Ceil(f.Viewport.H))
	dst := image.NewRGBA(image.Rect(0, 0, pw, ph))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(toNRGBA(opt.background())), image.Point{}, draw.Src)

	if imageDrawable(doc, opt) {
		src, err := decodeImage(opt.ImagePath)
		if err != nil {
			return nil, err
		}
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
	}
	for _, it := range f.Items {
		rasterItem(dst, it)
	}
	if opt.Labels {
		if err := rasterLabels(dst, f.Items, opt); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func decodeImage(path string) (image.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer fh.Close()
	img, _, err := image.Decode(fh)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

func rasterItem(dst *image.RGBA, it canvas.Item) {
	if len(it.Points) < 2 {
		return
	}
	b := dst.Bounds()
	st := it.Style
	if it.Closed && st.Fill.Enabled && st.Fill.Color.A > 0 {
		r := vector.NewRasterizer(b.Dx(), b.Dy())
		r.MoveTo(float32(it.Points[0].X), float32(it.Points[0].Y))
		for _, p := range it.Points[1:] {
			r.LineTo(float32(p.X), float32(p.Y))
		}
		r.ClosePath()
		r.Draw(dst, b, image.NewUniform(toNRGBA(st.Fill.Color)), image.Point{})
	}
	if !st.Stroke.Enabled || st.Stroke.Width <= 0 || st.Stroke.Color.A == 0 {
		return
	}
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	pts := it.Points
	if it.Closed {
		pts = append(pts[:len(pts):len(pts)], pts[0])
	}
	half := math.Max(st.Stroke.Width, 1) / 2
	for i := 1; i < len(pts); i++ {
		strokeSegment(r, pts[i-1], pts[i], half)
	}
	r.Draw(dst, b, image.NewUniform(toNRGBA(st.Stroke.Color)), image.Point{})
}

// strokeSegment adds the quad around a-b, extended by half at both ends so
// joins are covered. All quads share one winding so overlaps accumulate.
func strokeSegment(r *vector.Rasterizer, a, b mv.Pt, half float64) {
	d := b.Sub(a)
	l := math.Hypot(d.X, d.Y)
	if l == 0 {
		return
	}
	u := d.Scale(half / l)
	n := mv.Pt{X: -u.Y, Y: u.X}
	a, b = a.Sub(u), b.Add(u)
	quad := []mv.Pt{a.Add(n), b.Add(n), b.Sub(n), a.Sub(n)}
	r.MoveTo(float32(quad[0].X), float32(quad[0].Y))
	for _, p := range quad[1:] {
		r.LineTo(float32(p.X), float32(p.Y))
	}
	r.ClosePath()
}

func toNRGBA(c mv.Color) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}
