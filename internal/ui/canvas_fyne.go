//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	annot "markcanvas/internal/canvas"
	"markcanvas/internal/vector"
)

const handleSize = 8

// AnnotCanvas hosts an annotation controller. It owns no state of its own
// beyond the background image; every frame is drawn from Controller.Render.
type AnnotCanvas struct {
	widget.BaseWidget

	ctrl   *annot.Controller
	router *Router
	image  *canvas.Image

	// OnChanged runs after any pointer event that may have changed the model.
	OnChanged func()
}

func NewAnnotCanvas(c *annot.Controller) *AnnotCanvas {
	ac := &AnnotCanvas{ctrl: c, router: NewRouter(c)}
	ac.ExtendBaseWidget(ac)
	return ac
}

// SetImage loads the background raster; an empty path removes it.
func (a *AnnotCanvas) SetImage(path string) {
	if path == "" {
		a.image = nil
	} else {
		a.image = canvas.NewImageFromFile(path)
		a.image.FillMode = canvas.ImageFillStretch
	}
	a.Refresh()
}

func (a *AnnotCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{R: 38, G: 38, B: 42, A: 255})
	return &annotRenderer{ac: a, bg: bg, objects: []fyne.CanvasObject{bg}}
}

func (a *AnnotCanvas) MinSize() fyne.Size { return fyne.NewSize(640, 480) }

func (a *AnnotCanvas) Tapped(e *fyne.PointEvent) {
	a.router.Tapped(toPt(e.Position))
	a.changed()
}

func (a *AnnotCanvas) Dragged(e *fyne.DragEvent) {
	a.router.Dragged(toPt(e.Position), vector.Pt{X: float64(e.Dragged.DX), Y: float64(e.Dragged.DY)})
	a.Refresh()
}

func (a *AnnotCanvas) DragEnd() {
	a.router.DragEnd()
	a.changed()
}

func (a *AnnotCanvas) Scrolled(e *fyne.ScrollEvent) {
	a.router.Scrolled(toPt(e.Position), float64(e.Scrolled.DY))
	a.changed()
}

func (a *AnnotCanvas) changed() {
	a.Refresh()
	if a.OnChanged != nil {
		a.OnChanged()
	}
}

func toPt(p fyne.Position) vector.Pt { return vector.Pt{X: float64(p.X), Y: float64(p.Y)} }
func toPos(p vector.Pt) fyne.Position { return fyne.NewPos(float32(p.X), float32(p.Y)) }

func nrgba(c vector.Color) color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

// annotRenderer rebuilds its object list from the controller frame on every
// layout pass.
type annotRenderer struct {
	ac      *AnnotCanvas
	bg      *canvas.Rectangle
	objects []fyne.CanvasObject
}

func (r *annotRenderer) Destroy()                     {}
func (r *annotRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *annotRenderer) MinSize() fyne.Size           { return r.ac.MinSize() }
func (r *annotRenderer) Refresh()                     { r.Layout(r.ac.Size()); canvas.Refresh(r.ac) }

func (r *annotRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))
	r.ac.ctrl.SetViewport(vector.R(0, 0, float64(size.Width), float64(size.Height)))

	frame := r.ac.ctrl.Render()
	objs := []fyne.CanvasObject{r.bg}
	for _, it := range frame.Items {
		if it.Category == annot.CategoryImage && r.ac.image != nil && r.ac.ctrl.ImageRotation() == 0 {
			if b, ok := vector.BoundsOf(it.Points); ok {
				r.ac.image.Move(toPos(b.Min()))
				r.ac.image.Resize(fyne.NewSize(float32(b.W), float32(b.H)))
				objs = append(objs, r.ac.image)
			}
		}
		objs = append(objs, itemObjects(it)...)
	}
	r.objects = objs
}

// itemObjects draws one render item. Fills use the item's bounding box since
// the toolkit has no polygon primitive.
func itemObjects(it annot.Item) []fyne.CanvasObject {
	var out []fyne.CanvasObject
	if it.Style.Fill.Enabled && it.Closed {
		if b, ok := vector.BoundsOf(it.Points); ok {
			fill := canvas.NewRectangle(nrgba(it.Style.Fill.Color))
			fill.Move(toPos(b.Min()))
			fill.Resize(fyne.NewSize(float32(b.W), float32(b.H)))
			out = append(out, fill)
		}
	}
	if it.Style.Stroke.Enabled && len(it.Points) > 1 {
		width := float32(it.Style.Stroke.Width)
		if it.Selected {
			width++
		}
		n := len(it.Points)
		segs := n - 1
		if it.Closed {
			segs = n
		}
		for i := 0; i < segs; i++ {
			ln := canvas.NewLine(nrgba(it.Style.Stroke.Color))
			ln.StrokeWidth = width
			ln.Position1 = toPos(it.Points[i])
			ln.Position2 = toPos(it.Points[(i+1)%n])
			out = append(out, ln)
		}
	}
	if it.Name != "" && len(it.Points) > 0 && (it.Category == annot.CategoryShape || it.Category == annot.CategoryField) {
		label := canvas.NewText(it.Name, nrgba(it.Style.Stroke.Color))
		label.TextSize = 11
		label.Move(toPos(it.Points[0].Add(vector.Pt{Y: -15})))
		out = append(out, label)
	}
	for _, h := range it.Handles {
		hr := canvas.NewRectangle(color.NRGBA{R: 0, G: 170, B: 255, A: 255})
		hr.Move(toPos(h.Sub(vector.Pt{X: handleSize / 2, Y: handleSize / 2})))
		hr.Resize(fyne.NewSize(handleSize, handleSize))
		out = append(out, hr)
	}
	return out
}
