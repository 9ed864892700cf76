/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package canvas is the interactive annotation controller. It owns the
// shape, detection and field lists, the selection, the view parameters and
// the tool state machine, and turns pointer events in screen space into
// geometry edits in image space.
//
// A Controller is driven from a single UI goroutine and is not safe for
// concurrent use.
package canvas

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	applog "markcanvas/internal/log"
	"markcanvas/internal/undo"
	"markcanvas/internal/vector"
	"markcanvas/internal/view"
)

// Settings tune the controller. Zero fields are replaced by DefaultSettings.
type Settings struct {
	MinZoom float64
	MaxZoom float64
	// ZoomStep is the zoom factor for one wheel notch or key press.
	ZoomStep float64
	// VertexRadius is the edit-handle pick radius in canvas pixels.
	VertexRadius float64
	// GuideThreshold is the alignment-guide distance in image pixels.
	GuideThreshold float64
	// GridSpacing is the distance between grid lines in canvas pixels.
	GridSpacing float64
}

func DefaultSettings() Settings {
	return Settings{
		MinZoom:        view.DefaultMinZoom,
		MaxZoom:        view.DefaultMaxZoom,
		ZoomStep:       1.1,
		VertexRadius:   8,
		GuideThreshold: 6,
		GridSpacing:    50,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MinZoom <= 0 {
		s.MinZoom = d.MinZoom
	}
	if s.MaxZoom < s.MinZoom {
		s.MaxZoom = max(d.MaxZoom, s.MinZoom)
	}
	if s.ZoomStep <= 1 {
		s.ZoomStep = d.ZoomStep
	}
	if s.VertexRadius <= 0 {
		s.VertexRadius = d.VertexRadius
	}
	if s.GuideThreshold <= 0 {
		s.GuideThreshold = d.GuideThreshold
	}
	if s.GridSpacing <= 0 {
		s.GridSpacing = d.GridSpacing
	}
	return s
}

// Field is a template form field box supplied by the template editor.
type Field struct {
	Name   string      `json:"name"`
	Bounds vector.Rect `json:"bounds"`
}

type Controller struct {
	log      *slog.Logger
	settings Settings
	now      func() time.Time

	shapes     []vector.Shape
	detections []vector.Shape
	fields     []Field

	gesture     Interaction
	tool        ToolMode
	selected    int
	layer       Layer
	focusName   bool
	fieldEdit   bool
	gridVisible bool

	zoom          float64
	pan           vector.Pt
	gridRotation  float64
	imageRotation float64
	image         vector.Size
	viewport      vector.Rect

	style vector.Style
	seq   int

	// pre-gesture state used by Cancel and the edit history
	backup      vector.Shape
	backupAngle float64
	guides      []vector.GuideLine

	history *undo.Manager
}

// New returns an idle controller with the Select tool, no selection and the
// minimum zoom.
func New(s Settings) *Controller {
	s = s.withDefaults()
	return &Controller{
		log:      applog.WithComponent("canvas"),
		settings: s,
		now:      time.Now,
		gesture:  Idle{},
		tool:     ToolSelect,
		selected: -1,
		zoom:     s.MinZoom,
		style:    vector.DefaultStyle(),
		history:  undo.NewManager(undo.Config{MaxPerKey: 64}),
	}
}

// SetLogger replaces the controller logger.
func (c *Controller) SetLogger(l *slog.Logger) {
	if l != nil {
		c.log = l
	}
}

func (c *Controller) Settings() Settings       { return c.settings }
func (c *Controller) Tool() ToolMode           { return c.tool }
func (c *Controller) Interaction() Interaction { return c.gesture }
func (c *Controller) SelectedLayer() Layer     { return c.layer }
func (c *Controller) Zoom() float64            { return c.zoom }
func (c *Controller) Pan() vector.Pt           { return c.pan }
func (c *Controller) GridRotation() float64    { return c.gridRotation }
func (c *Controller) ImageRotation() float64   { return c.imageRotation }
func (c *Controller) Style() vector.Style      { return c.style }
func (c *Controller) Len() int                 { return len(c.shapes) }
func (c *Controller) GridVisible() bool        { return c.gridVisible }
func (c *Controller) FieldEditing() bool       { return c.fieldEdit }

// Selection returns the selected shape index.
func (c *Controller) Selection() (int, bool) { return c.selected, c.selected >= 0 }

// ConsumeFocusRequest reports whether the property panel should focus the
// name field. The request is cleared by the call.
func (c *Controller) ConsumeFocusRequest() bool {
	f := c.focusName
	c.focusName = false
	return f
}

// Shapes returns a copy of the user shapes, bottom to top.
func (c *Controller) Shapes() []vector.Shape { return append([]vector.Shape(nil), c.shapes...) }

// Detections returns a copy of the detection overlays.
func (c *Controller) Detections() []vector.Shape {
	return append([]vector.Shape(nil), c.detections...)
}

// Fields returns a copy of the field boxes.
func (c *Controller) Fields() []Field { return append([]Field(nil), c.fields...) }

// Shape returns shape i.
func (c *Controller) Shape(i int) (vector.Shape, bool) {
	if i < 0 || i >= len(c.shapes) {
		return vector.Shape{}, false
	}
	return c.shapes[i], true
}

// Guides returns the alignment guides of the field drag in progress.
func (c *Controller) Guides() []vector.GuideLine { return append([]vector.GuideLine(nil), c.guides...) }

// SetTool switches the tool. A gesture in progress is cancelled first.
func (c *Controller) SetTool(t ToolMode) {
	if t == c.tool {
		return
	}
	c.Cancel()
	c.log.Debug("tool changed", slog.String("from", c.tool.String()), slog.String("to", t.String()))
	c.tool = t
}

// SelectLayer sets the layer targeted by the Rotate tool.
func (c *Controller) SelectLayer(l Layer) { c.layer = l }

// SetStyle sets the style used by the next finalized shape.
func (c *Controller) SetStyle(s vector.Style) { c.style = s }

// SetGridVisible toggles the grid overlay.
func (c *Controller) SetGridVisible(v bool) { c.gridVisible = v }

// SetViewport sets the canvas rectangle in screen coordinates.
func (c *Controller) SetViewport(r vector.Rect) { c.viewport = r }

// SetImageSize sets the loaded image's pixel size; the zero size means no
// image and makes canvas space equal image space.
func (c *Controller) SetImageSize(s vector.Size) { c.image = s }

// ImageSize returns the current image pixel size.
func (c *Controller) ImageSize() vector.Size { return c.image }

// Pipeline returns the transform pipeline for the current frame.
func (c *Controller) Pipeline() view.Pipeline {
	return view.NewPipeline(c.image, c.viewport, c.zoom, c.pan)
}

// Select selects shape i; a negative i clears the selection.
func (c *Controller) Select(i int) bool {
	if i >= len(c.shapes) {
		return false
	}
	if i < 0 {
		i = -1
	}
	c.setSelection(i)
	return true
}

func (c *Controller) setSelection(i int) {
	if i != c.selected {
		c.log.Debug("selection changed", slog.Int("from", c.selected), slog.Int("to", i))
		if i >= 0 {
			c.focusName = true
		}
	}
	c.selected = i
	if i >= 0 {
		c.selectShapesLayer()
	}
}

// selectShapesLayer points the Rotate tool at the selected shape.
func (c *Controller) selectShapesLayer() { c.layer = LayerShapes }

// Rename sets the display name of shape i.
func (c *Controller) Rename(i int, name string) bool {
	if i < 0 || i >= len(c.shapes) {
		return false
	}
	c.shapes[i].Name = name
	return true
}

// SetVisible shows or hides shape i. Hidden shapes are not hit-tested.
func (c *Controller) SetVisible(i int, v bool) bool {
	if i < 0 || i >= len(c.shapes) {
		return false
	}
	c.shapes[i].Visible = v
	return true
}

// Append adds a shape built elsewhere (e.g. an accepted detection) on top.
func (c *Controller) Append(s vector.Shape) int {
	c.shapes = append(c.shapes, s)
	c.seq++
	return len(c.shapes) - 1
}

// Delete removes shape i. The selection keeps pointing at the same logical
// shape: it is cleared when i was selected and shifts down when a higher
// index was selected.
func (c *Controller) Delete(i int) bool {
	if i < 0 || i >= len(c.shapes) {
		return false
	}
	id := c.shapes[i].ID
	c.shapes = append(c.shapes[:i:i], c.shapes[i+1:]...)
	c.history.Clear(id)
	switch {
	case c.selected == i:
		c.selected = -1
	case c.selected > i:
		c.selected--
	}
	c.shapeRemoved(i)
	c.log.Debug("shape deleted", slog.Int("index", i), slog.String("id", id))
	return true
}

// Undo removes the most recently added shape.
func (c *Controller) Undo() bool {
	if len(c.shapes) == 0 {
		return false
	}
	return c.Delete(len(c.shapes) - 1)
}

// shapeRemoved fixes up a gesture that referenced shape i.
func (c *Controller) shapeRemoved(i int) {
	switch g := c.gesture.(type) {
	case DraggingVertex:
		switch {
		case g.Shape == i:
			c.gesture = Idle{}
		case g.Shape > i:
			g.Shape--
			c.gesture = g
		}
	case Rotating:
		if g.Target != LayerShapes {
			return
		}
		switch {
		case g.Shape == i:
			c.gesture = Idle{}
		case g.Shape > i:
			g.Shape--
			c.gesture = g
		}
	}
}

// SetDetections replaces the detection overlays (image space).
func (c *Controller) SetDetections(d []vector.Shape) {
	c.detections = append([]vector.Shape(nil), d...)
}

// AddDetections appends detection overlays (image space).
func (c *Controller) AddDetections(d ...vector.Shape) {
	c.detections = append(c.detections, d...)
}

// SetFields replaces the field boxes. A field drag in progress is cancelled.
func (c *Controller) SetFields(f []Field) {
	if _, ok := c.gesture.(DraggingField); ok {
		c.gesture = Idle{}
		c.guides = nil
	}
	c.fields = append([]Field(nil), f...)
}

// SetFieldEditing engages the template editing mode in which drags move
// field boxes instead of dispatching to the tool.
func (c *Controller) SetFieldEditing(on bool) {
	if !on {
		if _, ok := c.gesture.(DraggingField); ok {
			c.Cancel()
		}
	}
	c.fieldEdit = on
}

// RevertEdit restores the selected shape to its state before the last
// vertex or rotate gesture.
func (c *Controller) RevertEdit() bool { return c.swapEdit(c.history.Undo) }

// ReapplyEdit re-applies the last reverted edit of the selected shape.
func (c *Controller) ReapplyEdit() bool { return c.swapEdit(c.history.Redo) }

func (c *Controller) swapEdit(op func(undo.Snapshot) (undo.Snapshot, bool)) bool {
	if _, ok := c.gesture.(Idle); !ok || c.selected < 0 {
		return false
	}
	cur, err := c.snapshotOf(c.shapes[c.selected])
	if err != nil {
		c.log.Warn("edit snapshot failed", slog.Any("err", err))
		return false
	}
	prev, ok := op(cur)
	if !ok {
		return false
	}
	var s vector.Shape
	if err := json.Unmarshal(prev.Blob, &s); err != nil {
		c.log.Warn("edit restore failed", slog.Any("err", err))
		return false
	}
	c.shapes[c.selected] = s
	return true
}

func (c *Controller) snapshotOf(s vector.Shape) (undo.Snapshot, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return undo.Snapshot{}, fmt.Errorf("snapshot %s: %w", s.ID, err)
	}
	return undo.Snapshot{Key: s.ID, Blob: b, TS: c.now()}, nil
}
