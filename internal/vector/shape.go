/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Annotation shapes. Stored coordinates are always image-pixel space.
// Geometry is a closed set of variants: Rectangle, Circle and Polygon.

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r2"
)

var (
	ErrDegenerate   = errors.New("degenerate shape")
	ErrNonFinite    = errors.New("non-finite coordinate")
	ErrRadius       = errors.New("radius must be positive and finite")
	ErrTooFewPoints = errors.New("polygon needs at least 3 points")
)

// CircleSegments is the number of edges used when a circle is flattened to a ring.
const CircleSegments = 64

type Kind uint8

const (
	KindRectangle Kind = iota
	KindCircle
	KindPolygon
)

func (k Kind) String() string {
	switch k {
	case KindRectangle:
		return "rectangle"
	case KindCircle:
		return "circle"
	case KindPolygon:
		return "polygon"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "rectangle":
		return KindRectangle, nil
	case "circle":
		return KindCircle, nil
	case "polygon":
		return KindPolygon, nil
	}
	return 0, fmt.Errorf("unknown shape kind %q", s)
}

// Geometry is implemented only by Rectangle, Circle and Polygon.
type Geometry interface {
	Kind() Kind
	// Vertices returns the editable handles in vertex-index order.
	Vertices() []Pt
	Contains(p Pt) bool
	Centroid() Pt
	Bounds() Rect

	withVertex(i int, p Pt) (Geometry, bool)
	rotated(rot r2.Rotation) Geometry
	mapped(f func(Pt) Pt) Geometry
}

// Rectangle holds four ordered corners. Corners start axis-aligned in
// TL, TR, BR, BL order but may become any quadrilateral after edits.
type Rectangle struct {
	Corners [4]Pt
}

// NewRectangle builds an axis-aligned rectangle from two opposite corners.
func NewRectangle(a, b Pt) (Rectangle, error) {
	if !a.IsFinite() || !b.IsFinite() {
		return Rectangle{}, fmt.Errorf("rectangle: %w", ErrNonFinite)
	}
	r := RectFromPoints(a, b)
	if !(r.W > 0 && r.H > 0) {
		return Rectangle{}, fmt.Errorf("rectangle %gx%g: %w", r.W, r.H, ErrDegenerate)
	}
	return Rectangle{Corners: [4]Pt{
		{r.X, r.Y},
		{r.X + r.W, r.Y},
		{r.X + r.W, r.Y + r.H},
		{r.X, r.Y + r.H},
	}}, nil
}

// NewQuad builds a rectangle from four arbitrary corners, e.g. after rotation.
func NewQuad(c [4]Pt) (Rectangle, error) {
	r, err := quadOf(c)
	if err != nil {
		return Rectangle{}, err
	}
	if signedArea(c[:]) == 0 {
		return Rectangle{}, fmt.Errorf("quad: %w", ErrDegenerate)
	}
	return r, nil
}

// quadOf only checks finiteness. Vertex edits may collapse a rectangle to
// zero area, and such a shape must still load.
func quadOf(c [4]Pt) (Rectangle, error) {
	for _, p := range c {
		if !p.IsFinite() {
			return Rectangle{}, fmt.Errorf("quad: %w", ErrNonFinite)
		}
	}
	return Rectangle{Corners: c}, nil
}

func (r Rectangle) Kind() Kind         { return KindRectangle }
func (r Rectangle) Vertices() []Pt     { return append([]Pt(nil), r.Corners[:]...) }
func (r Rectangle) Contains(p Pt) bool { return p.IsFinite() && pointInRing(r.Corners[:], p) }
func (r Rectangle) Centroid() Pt       { return mean(r.Corners[:]) }
func (r Rectangle) Bounds() Rect {
	b, _ := BoundsOf(r.Corners[:])
	return b
}

func (r Rectangle) withVertex(i int, p Pt) (Geometry, bool) {
	if i < 0 || i >= len(r.Corners) {
		return r, false
	}
	r.Corners[i] = p
	return r, true
}

func (r Rectangle) rotated(rot r2.Rotation) Geometry {
	for i, p := range r.Corners {
		r.Corners[i] = rotatePt(rot, p)
	}
	return r
}

func (r Rectangle) mapped(f func(Pt) Pt) Geometry {
	for i, p := range r.Corners {
		r.Corners[i] = f(p)
	}
	return r
}

// Circle is a center and a radius. Vertex 0 is the center and vertex 1 is
// the point (cx+r, cy); moving vertex 1 changes the radius.
type Circle struct {
	Center Pt
	Radius float64
}

func NewCircle(center Pt, radius float64) (Circle, error) {
	if !center.IsFinite() {
		return Circle{}, fmt.Errorf("circle: %w", ErrNonFinite)
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return Circle{}, fmt.Errorf("circle radius %g: %w", radius, ErrRadius)
	}
	return Circle{Center: center, Radius: radius}, nil
}

func (c Circle) Kind() Kind     { return KindCircle }
func (c Circle) Vertices() []Pt { return []Pt{c.Center, {c.Center.X + c.Radius, c.Center.Y}} }
func (c Circle) Centroid() Pt   { return c.Center }
func (c Circle) Contains(p Pt) bool {
	return p.IsFinite() && p.Dist(c.Center) <= c.Radius
}
func (c Circle) Bounds() Rect {
	return Rect{X: c.Center.X - c.Radius, Y: c.Center.Y - c.Radius, W: 2 * c.Radius, H: 2 * c.Radius}
}

// Outline flattens the circle into n points, starting at vertex 1.
func (c Circle) Outline(n int) []Pt {
	if n < 3 {
		n = 3
	}
	pts := make([]Pt, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts[i] = Pt{c.Center.X + c.Radius*math.Cos(a), c.Center.Y + c.Radius*math.Sin(a)}
	}
	return pts
}

func (c Circle) withVertex(i int, p Pt) (Geometry, bool) {
	switch i {
	case 0:
		c.Center = p
		return c, true
	case 1:
		r := p.Dist(c.Center)
		if !(r > 0) || math.IsInf(r, 0) {
			return c, false
		}
		c.Radius = r
		return c, true
	}
	return c, false
}

func (c Circle) rotated(rot r2.Rotation) Geometry {
	c.Center = rotatePt(rot, c.Center)
	return c
}

func (c Circle) mapped(f func(Pt) Pt) Geometry {
	center := f(c.Center)
	edge := f(Pt{c.Center.X + c.Radius, c.Center.Y})
	return Circle{Center: center, Radius: edge.Dist(center)}
}

// Polygon is a closed ring; the last point connects back to the first.
type Polygon struct {
	Points []Pt
}

func NewPolygon(pts []Pt) (Polygon, error) {
	if len(pts) < 3 {
		return Polygon{}, fmt.Errorf("polygon with %d points: %w", len(pts), ErrTooFewPoints)
	}
	for _, p := range pts {
		if !p.IsFinite() {
			return Polygon{}, fmt.Errorf("polygon: %w", ErrNonFinite)
		}
	}
	return Polygon{Points: append([]Pt(nil), pts...)}, nil
}

func (g Polygon) Kind() Kind         { return KindPolygon }
func (g Polygon) Vertices() []Pt     { return append([]Pt(nil), g.Points...) }
func (g Polygon) Contains(p Pt) bool { return p.IsFinite() && pointInRing(g.Points, p) }
func (g Polygon) Centroid() Pt       { return mean(g.Points) }
func (g Polygon) Bounds() Rect {
	b, _ := BoundsOf(g.Points)
	return b
}

func (g Polygon) withVertex(i int, p Pt) (Geometry, bool) {
	if i < 0 || i >= len(g.Points) {
		return g, false
	}
	pts := append([]Pt(nil), g.Points...)
	pts[i] = p
	return Polygon{Points: pts}, true
}

func (g Polygon) rotated(rot r2.Rotation) Geometry {
	pts := make([]Pt, len(g.Points))
	for i, p := range g.Points {
		pts[i] = rotatePt(rot, p)
	}
	return Polygon{Points: pts}
}

func (g Polygon) mapped(f func(Pt) Pt) Geometry {
	pts := make([]Pt, len(g.Points))
	for i, p := range g.Points {
		pts[i] = f(p)
	}
	return Polygon{Points: pts}
}

// Shape is a named, styled annotation.
type Shape struct {
	ID      string
	Name    string
	Style   Style
	Visible bool
	Geom    Geometry
}

// NewShape wraps g with a fresh ID. Shapes start visible.
func NewShape(name string, style Style, g Geometry) Shape {
	return Shape{ID: uuid.NewString(), Name: name, Style: style, Visible: true, Geom: g}
}

func (s Shape) Kind() Kind         { return s.Geom.Kind() }
func (s Shape) Vertices() []Pt     { return s.Geom.Vertices() }
func (s Shape) Contains(p Pt) bool { return s.Geom != nil && s.Geom.Contains(p) }
func (s Shape) Centroid() Pt       { return s.Geom.Centroid() }
func (s Shape) Bounds() Rect       { return s.Geom.Bounds() }

// Vertex returns handle i.
func (s Shape) Vertex(i int) (Pt, bool) {
	vs := s.Geom.Vertices()
	if i < 0 || i >= len(vs) {
		return Pt{}, false
	}
	return vs[i], true
}

// SetVertex moves handle i to p. Out-of-range indices, non-finite points and
// a circle radius that would collapse to zero leave the shape unchanged.
func (s *Shape) SetVertex(i int, p Pt) bool {
	if !p.IsFinite() {
		return false
	}
	g, ok := s.Geom.withVertex(i, p)
	if ok {
		s.Geom = g
	}
	return ok
}

// RotateAbout rotates every vertex by rad around pivot, in place.
func (s *Shape) RotateAbout(rad float64, pivot Pt) {
	if !finite(rad) || !pivot.IsFinite() || rad == 0 {
		return
	}
	s.Geom = s.Geom.rotated(r2.NewRotation(rad, r2.Vec{X: pivot.X, Y: pivot.Y}))
}

// Map returns a copy of s with every point passed through f. The receiver is
// not modified; points of a polygon are copied.
func (s Shape) Map(f func(Pt) Pt) Shape {
	out := s
	out.Geom = s.Geom.mapped(f)
	return out
}

// Outline returns the closed ring used for drawing; circles are flattened.
func (s Shape) Outline() []Pt {
	if c, ok := s.Geom.(Circle); ok {
		return c.Outline(CircleSegments)
	}
	return s.Geom.Vertices()
}

// RotatePoint rotates p by rad around pivot.
func RotatePoint(p Pt, rad float64, pivot Pt) Pt {
	return rotatePt(r2.NewRotation(rad, r2.Vec{X: pivot.X, Y: pivot.Y}), p)
}

func rotatePt(rot r2.Rotation, p Pt) Pt {
	v := rot.Rotate(r2.Vec{X: p.X, Y: p.Y})
	return Pt{X: v.X, Y: v.Y}
}

func mean(pts []Pt) Pt {
	if len(pts) == 0 {
		return Pt{}
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p.X
		sy += p.Y
	}
	n := float64(len(pts))
	return Pt{sx / n, sy / n}
}

// pointInRing is the even-odd ray casting test over a closed ring.
func pointInRing(ring []Pt, p Pt) bool {
	in := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				in = !in
			}
		}
	}
	return in
}

func signedArea(ring []Pt) float64 {
	var a float64
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a += ring[j].X*ring[i].Y - ring[i].X*ring[j].Y
	}
	return a / 2
}
