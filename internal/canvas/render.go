/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"math"

	"markcanvas/internal/vector"
	"markcanvas/internal/view"
)

// maxGridLines caps grid output per axis for tiny spacings.
const maxGridLines = 400

// Category tells the renderer what an Item is.
type Category uint8

const (
	CategoryImage Category = iota
	CategoryGrid
	CategoryDetection
	CategoryField
	CategoryShape
	CategoryPreview
	CategoryGuide
)

var categoryNames = [...]string{"image", "grid", "detection", "field", "shape", "preview", "guide"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// Item is one drawable: a polyline or closed ring in screen space.
type Item struct {
	Category Category
	Kind     vector.Kind
	// Index into the shape, detection or field list; -1 otherwise.
	Index    int
	Name     string
	Points   []vector.Pt
	Closed   bool
	Style    vector.Style
	Selected bool
	// Handles are screen-space edit handles, set for the selected shape in Edit mode.
	Handles []vector.Pt
}

// Frame is the render list for one frame, bottom to top.
type Frame struct {
	Viewport vector.Rect
	Items    []Item
}

var (
	imageStyle = vector.Style{Stroke: vector.Stroke{Color: vector.Color{R: 120, G: 120, B: 120, A: 255}, Width: 1, Enabled: true}}
	gridStyle  = vector.Style{Stroke: vector.Stroke{Color: vector.Color{R: 128, G: 128, B: 128, A: 90}, Width: 1, Enabled: true}}
	fieldStyle = vector.Style{
		Stroke: vector.Stroke{Color: vector.Color{R: 40, G: 110, B: 230, A: 255}, Width: 1.5, Enabled: true},
		Fill:   vector.Fill{Color: vector.Color{R: 40, G: 110, B: 230, A: 40}, Enabled: true},
	}
	guideStyle = vector.Style{Stroke: vector.Stroke{Color: vector.Color{R: 255, G: 0, B: 200, A: 255}, Width: 1, Enabled: true}}
)

// Render maps everything visible forward to screen space. The controller is
// not modified.
func (c *Controller) Render() Frame {
	pl := c.Pipeline()
	f := Frame{Viewport: c.viewport}
	pivot := c.viewport.Center()

	if !c.image.Empty() {
		w, h := c.image.W, c.image.H
		corners := []vector.Pt{{X: 0, Y: 0}, {X: w, Y: 0}, {X: w, Y: h}, {X: 0, Y: h}}
		for i, p := range corners {
			corners[i] = pl.ToScreenRotated(p, c.imageRotation, pivot)
		}
		f.Items = append(f.Items, Item{Category: CategoryImage, Index: -1, Points: corners, Closed: true, Style: imageStyle})
	}
	if c.gridVisible {
		f.Items = append(f.Items, c.gridItems(pl)...)
	}
	for i, d := range c.detections {
		if !d.Visible || d.Geom == nil {
			continue
		}
		f.Items = append(f.Items, shapeItem(pl, d, CategoryDetection, i))
	}
	for i, fl := range c.fields {
		b := fl.Bounds
		pts := []vector.Pt{b.Min(), {X: b.X + b.W, Y: b.Y}, b.Max(), {X: b.X, Y: b.Y + b.H}}
		for j, p := range pts {
			pts[j] = pl.ToScreen(p)
		}
		f.Items = append(f.Items, Item{Category: CategoryField, Index: i, Name: fl.Name, Points: pts, Closed: true, Style: fieldStyle})
	}
	for i, s := range c.shapes {
		if !s.Visible {
			continue
		}
		it := shapeItem(pl, s, CategoryShape, i)
		if i == c.selected {
			it.Selected = true
			if c.tool == ToolEdit {
				for _, v := range s.Vertices() {
					it.Handles = append(it.Handles, pl.ToScreen(v))
				}
			}
		}
		f.Items = append(f.Items, it)
	}
	if d, ok := c.gesture.(Drawing); ok {
		if it, ok := c.previewItem(pl, d); ok {
			f.Items = append(f.Items, it)
		}
	}
	for _, g := range c.guides {
		f.Items = append(f.Items, Item{
			Category: CategoryGuide,
			Index:    -1,
			Points:   []vector.Pt{pl.ToScreen(g.From), pl.ToScreen(g.To)},
			Style:    guideStyle,
		})
	}
	return f
}

func shapeItem(pl view.Pipeline, s vector.Shape, cat Category, i int) Item {
	ring := s.Outline()
	for j, p := range ring {
		ring[j] = pl.ToScreen(p)
	}
	return Item{Category: cat, Kind: s.Kind(), Index: i, Name: s.Name, Points: ring, Closed: true, Style: s.Style}
}

// previewItem draws the shape being drawn without validating it.
func (c *Controller) previewItem(pl view.Pipeline, d Drawing) (Item, bool) {
	it := Item{Category: CategoryPreview, Index: -1, Style: c.style, Closed: true}
	var pts []vector.Pt
	switch d.Tool {
	case ToolRectangle:
		it.Kind = vector.KindRectangle
		r := vector.RectFromPoints(d.Start, d.End)
		pts = []vector.Pt{r.Min(), {X: r.X + r.W, Y: r.Y}, r.Max(), {X: r.X, Y: r.Y + r.H}}
	case ToolCircle:
		it.Kind = vector.KindCircle
		pts = vector.Circle{Center: d.Start, Radius: d.Start.Dist(d.End)}.Outline(vector.CircleSegments)
	case ToolFreehand:
		it.Kind = vector.KindPolygon
		it.Closed = false
		pts = append([]vector.Pt(nil), d.Points...)
	default:
		return Item{}, false
	}
	for i, p := range pts {
		pts[i] = pl.ToScreen(p)
	}
	it.Points = pts
	return it, true
}

// gridItems returns grid lines covering the visible canvas, rotated by the
// grid rotation about the viewport centre.
func (c *Controller) gridItems(pl view.Pipeline) []Item {
	vis := vector.RectFromPoints(pl.ScreenToCanvas(c.viewport.Min()), pl.ScreenToCanvas(c.viewport.Max()))
	if vis.Area() == 0 {
		return nil
	}
	pivot := c.viewport.Center()
	s := c.settings.GridSpacing
	r := math.Hypot(vis.W, vis.H) / 2
	gc := vector.RotatePoint(vis.Center(), -c.gridRotation, pivot)

	line := func(a, b vector.Pt) Item {
		a = pl.CanvasToScreen(vector.RotatePoint(a, c.gridRotation, pivot))
		b = pl.CanvasToScreen(vector.RotatePoint(b, c.gridRotation, pivot))
		return Item{Category: CategoryGrid, Index: -1, Points: []vector.Pt{a, b}, Style: gridStyle}
	}
	var out []Item
	k0, k1 := math.Floor((gc.X-r-pivot.X)/s), math.Ceil((gc.X+r-pivot.X)/s)
	for k := k0; k <= k1 && k-k0 < maxGridLines; k++ {
		x := pivot.X + k*s
		out = append(out, line(vector.Pt{X: x, Y: gc.Y - r}, vector.Pt{X: x, Y: gc.Y + r}))
	}
	k0, k1 = math.Floor((gc.Y-r-pivot.Y)/s), math.Ceil((gc.Y+r-pivot.Y)/s)
	for k := k0; k <= k1 && k-k0 < maxGridLines; k++ {
		y := pivot.Y + k*s
		out = append(out, line(vector.Pt{X: gc.X - r, Y: y}, vector.Pt{X: gc.X + r, Y: y}))
	}
	return out
}
