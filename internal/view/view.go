/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package view maps points between the three coordinate spaces used by the
// annotation canvas:
//
//	image  - native pixel grid of the loaded raster; shapes are stored here
//	canvas - image uniformly scaled and centred to fit the viewport
//	screen - canvas after user zoom and pan about the viewport centre
//
// Forward mapping is always image -> canvas -> screen and the inverse runs in
// reverse order. Every function documents the space of its arguments.
package view

import (
	"math"

	"markcanvas/internal/vector"
)

const (
	DefaultMinZoom = 1.0
	DefaultMaxZoom = 10.0
)

// Fit is the image -> canvas transform: uniform scale plus centring offset.
type Fit struct {
	Scale  float64
	Offset vector.Pt
}

// IdentityFit is used when no image is loaded; canvas space equals image space.
var IdentityFit = Fit{Scale: 1}

// NewFit computes the aspect-preserving fit of an image of the given pixel
// size into viewport (canvas space). An empty image or viewport yields
// IdentityFit.
func NewFit(image vector.Size, viewport vector.Rect) Fit {
	if image.Empty() || !(viewport.W > 0 && viewport.H > 0) {
		return IdentityFit
	}
	s := math.Min(viewport.W/image.W, viewport.H/image.H)
	fitted := vector.Size{W: image.W * s, H: image.H * s}
	return Fit{
		Scale: s,
		Offset: vector.Pt{
			X: viewport.X + (viewport.W-fitted.W)/2,
			Y: viewport.Y + (viewport.H-fitted.H)/2,
		},
	}
}

// ToCanvas maps an image-space point to canvas space.
func (f Fit) ToCanvas(p vector.Pt) vector.Pt { return p.Scale(f.Scale).Add(f.Offset) }

// ToImage maps a canvas-space point to image space.
func (f Fit) ToImage(p vector.Pt) vector.Pt { return p.Sub(f.Offset).Scale(1 / f.Scale) }

func (f Fit) Affine() vector.Affine2D {
	return vector.Translate(f.Offset.X, f.Offset.Y).Mul(vector.Scale(f.Scale, f.Scale))
}

// View is the canvas -> screen transform: zoom and pan about Center.
type View struct {
	Zoom   float64
	Pan    vector.Pt
	Center vector.Pt
}

// ToScreen maps a canvas-space point to screen space.
func (v View) ToScreen(p vector.Pt) vector.Pt {
	return v.Center.Add(v.Pan).Add(p.Sub(v.Center).Scale(v.Zoom))
}

// ToCanvas maps a screen-space point back to canvas space.
func (v View) ToCanvas(p vector.Pt) vector.Pt {
	return v.Center.Add(p.Sub(v.Center).Sub(v.Pan).Scale(1 / v.Zoom))
}

// Affine is translate(center+pan) * scale(zoom) * translate(-center).
func (v View) Affine() vector.Affine2D {
	return vector.Translate(v.Center.X+v.Pan.X, v.Center.Y+v.Pan.Y).
		Mul(vector.Scale(v.Zoom, v.Zoom)).
		Mul(vector.Translate(-v.Center.X, -v.Center.Y))
}

// ClampZoom limits z to [lo, hi]. NaN maps to lo.
func ClampZoom(z, lo, hi float64) float64 {
	if math.IsNaN(z) || z < lo {
		return lo
	}
	if z > hi {
		return hi
	}
	return z
}

// ZoomAt changes the zoom to target (clamped to [lo, hi]) while keeping the
// canvas point under pointer (screen space) fixed on screen.
func (v View) ZoomAt(target float64, pointer vector.Pt, lo, hi float64) View {
	z := ClampZoom(target, lo, hi)
	if v.Zoom <= 0 || z == v.Zoom {
		v.Zoom = z
		return v
	}
	r := z / v.Zoom
	v.Pan = v.Pan.Scale(r).Add(pointer.Sub(v.Center).Scale(1 - r))
	v.Zoom = z
	return v
}

// Pipeline composes the fit and view stages.
type Pipeline struct {
	Fit  Fit
	View View
}

// NewPipeline builds the per-frame pipeline for an image shown in viewport.
// zoom and pan are the user view parameters; the view centre is the
// viewport centre.
func NewPipeline(image vector.Size, viewport vector.Rect, zoom float64, pan vector.Pt) Pipeline {
	return Pipeline{
		Fit:  NewFit(image, viewport),
		View: View{Zoom: zoom, Pan: pan, Center: viewport.Center()},
	}
}

// ToScreen maps image space to screen space.
func (p Pipeline) ToScreen(pt vector.Pt) vector.Pt { return p.View.ToScreen(p.Fit.ToCanvas(pt)) }

// ToImage maps screen space to image space.
func (p Pipeline) ToImage(pt vector.Pt) vector.Pt { return p.Fit.ToImage(p.View.ToCanvas(pt)) }

// ScreenToCanvas maps screen space to canvas space.
func (p Pipeline) ScreenToCanvas(pt vector.Pt) vector.Pt { return p.View.ToCanvas(pt) }

// CanvasToScreen maps canvas space to screen space.
func (p Pipeline) CanvasToScreen(pt vector.Pt) vector.Pt { return p.View.ToScreen(pt) }

// Affine is the full image -> screen matrix.
func (p Pipeline) Affine() vector.Affine2D { return p.View.Affine().Mul(p.Fit.Affine()) }

// ToScreenRotated maps an image-space point that belongs to a layer rotated
// by angle about pivot (canvas space). The rotation is applied in canvas
// space before the view stage.
func (p Pipeline) ToScreenRotated(pt vector.Pt, angle float64, pivot vector.Pt) vector.Pt {
	c := p.Fit.ToCanvas(pt)
	if angle != 0 {
		c = vector.RotatePoint(c, angle, pivot)
	}
	return p.View.ToScreen(c)
}

// MapShape returns a canvas-space copy of s (image space) under the fit
// transform (fitScale, offset). s itself is not modified.
func MapShape(s vector.Shape, fitScale float64, offset vector.Pt) vector.Shape {
	f := Fit{Scale: fitScale, Offset: offset}
	return s.Map(f.ToCanvas)
}

// MapRect maps an image-space rect to canvas space.
func MapRect(r vector.Rect, fitScale float64, offset vector.Pt) vector.Rect {
	f := Fit{Scale: fitScale, Offset: offset}
	return vector.RectFromPoints(f.ToCanvas(r.Min()), f.ToCanvas(r.Max()))
}
