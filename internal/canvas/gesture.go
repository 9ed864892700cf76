/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"markcanvas/internal/vector"
)

// Press handles a click (press and release without a drag) at a screen
// position. Select, Edit and Rotate hit-test and select; the drawing tools
// ignore clicks. A click during a gesture is ignored.
func (c *Controller) Press(screen vector.Pt) {
	if _, ok := c.gesture.(Idle); !ok {
		return
	}
	switch c.tool {
	case ToolSelect, ToolEdit, ToolRotate:
		c.selectAt(screen)
	}
}

// HitTest returns the topmost visible shape containing the screen point, or
// -1. Shapes are scanned from the most recently added down.
func (c *Controller) HitTest(screen vector.Pt) int {
	p := c.Pipeline().ToImage(screen)
	if !p.IsFinite() {
		return -1
	}
	for i := len(c.shapes) - 1; i >= 0; i-- {
		if c.shapes[i].Visible && c.shapes[i].Contains(p) {
			return i
		}
	}
	return -1
}

func (c *Controller) selectAt(screen vector.Pt) {
	c.setSelection(c.HitTest(screen))
}

// DragStart begins a gesture at a screen position according to the tool.
func (c *Controller) DragStart(screen vector.Pt) {
	if _, ok := c.gesture.(Idle); !ok || !screen.IsFinite() {
		return
	}
	if c.fieldEdit {
		if i := c.fieldAt(screen); i >= 0 {
			c.BeginFieldDrag(i, screen)
		}
		return
	}
	p := c.Pipeline().ToImage(screen)
	switch c.tool {
	case ToolRectangle, ToolCircle:
		c.begin(Drawing{Tool: c.tool, Start: p, End: p})
	case ToolFreehand:
		c.begin(Drawing{Tool: c.tool, Start: p, End: p, Points: []vector.Pt{p}})
	case ToolEdit:
		c.beginVertexDrag(screen)
	case ToolRotate:
		c.beginRotate(screen)
	}
}

func (c *Controller) begin(g Interaction) {
	c.gesture = g
	c.log.Debug("gesture begin", slog.String("state", g.String()))
}

func (c *Controller) beginVertexDrag(screen vector.Pt) {
	if c.selected < 0 {
		c.selectAt(screen)
		return
	}
	v := c.vertexAt(c.selected, screen)
	if v < 0 {
		c.selectAt(screen)
		return
	}
	c.backup = c.shapes[c.selected]
	c.begin(DraggingVertex{Shape: c.selected, Vertex: v})
}

// vertexAt returns the vertex of shape i nearest to the screen point within
// the pick radius, measured in canvas space, or -1.
func (c *Controller) vertexAt(i int, screen vector.Pt) int {
	pl := c.Pipeline()
	p := pl.ScreenToCanvas(screen)
	best, bestD := -1, c.settings.VertexRadius
	for j, v := range c.shapes[i].Vertices() {
		if d := pl.Fit.ToCanvas(v).Dist(p); d <= bestD {
			best, bestD = j, d
		}
	}
	return best
}

func (c *Controller) beginRotate(screen vector.Pt) {
	pl := c.Pipeline()
	switch c.layer {
	case LayerShapes:
		if c.selected < 0 {
			break
		}
		s := c.shapes[c.selected]
		center := s.Centroid()
		c.backup = s
		c.begin(Rotating{
			Target:     LayerShapes,
			Shape:      c.selected,
			Center:     center,
			StartAngle: pl.ToImage(screen).Angle(center),
		})
		return
	case LayerGrid, LayerImage:
		// The canvas origin is the viewport centre, the pivot of the view transform.
		center := c.viewport.Center()
		if c.layer == LayerGrid {
			c.backupAngle = c.gridRotation
		} else {
			c.backupAngle = c.imageRotation
		}
		c.begin(Rotating{
			Target:     c.layer,
			Shape:      -1,
			Center:     center,
			StartAngle: pl.ScreenToCanvas(screen).Angle(center),
		})
		return
	}
	c.selectAt(screen)
}

// DragMove advances the gesture in progress to a screen position.
func (c *Controller) DragMove(screen vector.Pt) {
	if !screen.IsFinite() {
		return
	}
	pl := c.Pipeline()
	switch g := c.gesture.(type) {
	case Drawing:
		p := pl.ToImage(screen)
		g.End = p
		if g.Tool == ToolFreehand {
			g.Points = append(g.Points, p)
		}
		c.gesture = g
	case DraggingVertex:
		c.shapes[g.Shape].SetVertex(g.Vertex, pl.ToImage(screen))
	case Rotating:
		var cur float64
		if g.Target == LayerShapes {
			cur = pl.ToImage(screen).Angle(g.Center)
		} else {
			cur = pl.ScreenToCanvas(screen).Angle(g.Center)
		}
		delta := math.Remainder(cur-g.StartAngle, 2*math.Pi)
		switch g.Target {
		case LayerShapes:
			c.shapes[g.Shape].RotateAbout(-delta, g.Center)
		case LayerGrid:
			c.gridRotation -= delta
		case LayerImage:
			c.imageRotation -= delta
		}
		g.StartAngle = cur
		c.gesture = g
	case DraggingField:
		p := pl.ToImage(screen)
		b := g.Original.Translate(p.Sub(g.DragStart))
		c.fields[g.Field].Bounds = b
		c.guides = vector.AlignmentGuides(b, c.detectionBounds(), c.settings.GuideThreshold)
	}
}

// DragStop ends the gesture in progress. Drawing gestures are finalized;
// all gestures return to Idle.
func (c *Controller) DragStop() {
	switch g := c.gesture.(type) {
	case Idle:
		return
	case Drawing:
		c.finalize(g)
	case DraggingVertex:
		c.recordEdit(g.Shape)
	case Rotating:
		if g.Target == LayerShapes {
			c.recordEdit(g.Shape)
		}
	case DraggingField:
		c.guides = nil
	}
	c.log.Debug("gesture end", slog.String("state", c.gesture.String()))
	c.gesture = Idle{}
}

// Cancel aborts the gesture in progress without finalizing it. Edits made by
// the gesture are rolled back. It reports whether a gesture was active.
func (c *Controller) Cancel() bool {
	switch g := c.gesture.(type) {
	case Idle:
		return false
	case DraggingVertex:
		c.shapes[g.Shape] = c.backup
	case Rotating:
		switch g.Target {
		case LayerShapes:
			c.shapes[g.Shape] = c.backup
		case LayerGrid:
			c.gridRotation = c.backupAngle
		case LayerImage:
			c.imageRotation = c.backupAngle
		}
	case DraggingField:
		c.fields[g.Field].Bounds = g.Original
		c.guides = nil
	}
	c.log.Debug("gesture cancelled", slog.String("state", c.gesture.String()))
	c.gesture = Idle{}
	return true
}

// finalize turns a drawing gesture into a shape. Shapes that cannot be built
// are dropped.
func (c *Controller) finalize(d Drawing) {
	var (
		g   vector.Geometry
		err error
	)
	switch d.Tool {
	case ToolRectangle:
		g, err = vector.NewRectangle(d.Start, d.End)
	case ToolCircle:
		g, err = vector.NewCircle(d.Start, d.Start.Dist(d.End))
	case ToolFreehand:
		g, err = vector.NewPolygon(d.Points)
	default:
		err = fmt.Errorf("tool %s does not draw", d.Tool)
	}
	if err != nil {
		c.log.Debug("shape dropped", slog.String("tool", d.Tool.String()), slog.Any("err", err),
			slog.Bool("degenerate", errors.Is(err, vector.ErrDegenerate)))
		return
	}
	c.seq++
	s := vector.NewShape(fmt.Sprintf("%s %d", title(g.Kind()), c.seq), c.style, g)
	c.shapes = append(c.shapes, s)
	c.setSelection(len(c.shapes) - 1)
	c.focusName = true
	c.log.Debug("shape added", slog.String("id", s.ID), slog.String("kind", g.Kind().String()))
}

func title(k vector.Kind) string {
	s := k.String()
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func (c *Controller) recordEdit(i int) {
	if i < 0 || i >= len(c.shapes) || c.backup.ID != c.shapes[i].ID {
		return
	}
	before, err := c.snapshotOf(c.backup)
	if err != nil {
		c.log.Warn("edit snapshot failed", slog.Any("err", err))
		return
	}
	after, err := c.snapshotOf(c.shapes[i])
	if err != nil || bytes.Equal(before.Blob, after.Blob) {
		return
	}
	c.history.Push(before)
}
