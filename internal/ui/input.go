/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

// Input routing from toolkit events to the canvas controller. Kept free of
// toolkit imports so it builds and tests headless.

import (
	"markcanvas/internal/canvas"
	"markcanvas/internal/vector"
)

// Action is a keyboard command.
type Action uint8

const (
	ActionNone Action = iota
	ActionCancel
	ActionDelete
	ActionToolSelect
	ActionToolRectangle
	ActionToolCircle
	ActionToolFreehand
	ActionToolEdit
	ActionToolRotate
	ActionZoomIn
	ActionZoomOut
	ActionResetView
	ActionToggleGrid
	ActionToggleFieldEdit
	ActionRotateGrid
	ActionRotateImage
	ActionUndo
	ActionRevertEdit
	ActionReapplyEdit
	ActionSave
)

// Plain keys use fyne key names; chords are "Ctrl+<key>" or "Ctrl+Shift+<key>".
var keymap = map[string]Action{
	"Escape":       ActionCancel,
	"Delete":       ActionDelete,
	"BackSpace":    ActionDelete,
	"S":            ActionToolSelect,
	"R":            ActionToolRectangle,
	"C":            ActionToolCircle,
	"F":            ActionToolFreehand,
	"E":            ActionToolEdit,
	"T":            ActionToolRotate,
	"+":            ActionZoomIn,
	"=":            ActionZoomIn,
	"-":            ActionZoomOut,
	"0":            ActionResetView,
	"G":            ActionToggleGrid,
	"D":            ActionToggleFieldEdit,
	"1":            ActionRotateGrid,
	"2":            ActionRotateImage,
	"Ctrl+Z":       ActionUndo,
	"Ctrl+Shift+Z": ActionRevertEdit,
	"Ctrl+Y":       ActionReapplyEdit,
	"Ctrl+S":       ActionSave,
}

// ActionFor looks up the command bound to a key or chord.
func ActionFor(key string) Action { return keymap[key] }

// Chords lists the bound Ctrl chords for shortcut registration.
func Chords() []string {
	return []string{"Ctrl+Z", "Ctrl+Shift+Z", "Ctrl+Y", "Ctrl+S"}
}

// Apply runs a command against the controller and reports whether the
// canvas needs a redraw. ActionSave is left to the caller.
func Apply(c *canvas.Controller, a Action) bool {
	switch a {
	case ActionCancel:
		return c.Cancel()
	case ActionDelete:
		i, ok := c.Selection()
		return ok && c.Delete(i)
	case ActionToolSelect, ActionToolRectangle, ActionToolCircle, ActionToolFreehand, ActionToolEdit, ActionToolRotate:
		c.SetTool(canvas.ToolMode(a - ActionToolSelect))
	case ActionZoomIn:
		c.KeyZoom(1)
	case ActionZoomOut:
		c.KeyZoom(-1)
	case ActionResetView:
		c.ResetView()
	case ActionToggleGrid:
		c.SetGridVisible(!c.GridVisible())
	case ActionToggleFieldEdit:
		c.SetFieldEditing(!c.FieldEditing())
	case ActionRotateGrid:
		c.SetTool(canvas.ToolRotate)
		c.SelectLayer(canvas.LayerGrid)
	case ActionRotateImage:
		c.SetTool(canvas.ToolRotate)
		c.SelectLayer(canvas.LayerImage)
	case ActionUndo:
		return c.Undo()
	case ActionRevertEdit:
		return c.RevertEdit()
	case ActionReapplyEdit:
		return c.ReapplyEdit()
	default:
		return false
	}
	return true
}

// scrollUnitsPerNotch converts toolkit scroll deltas to wheel notches.
const scrollUnitsPerNotch = 10

// Router turns tap, drag and scroll events into controller calls. Drags in
// the Select tool pan the view; every other drag is a controller gesture.
type Router struct {
	c        *canvas.Controller
	dragging bool
	panning  bool
}

func NewRouter(c *canvas.Controller) *Router { return &Router{c: c} }

// Tapped handles a click at pos.
func (r *Router) Tapped(pos vector.Pt) { r.c.Press(pos) }

// Dragged handles one drag event: pos is the current pointer and delta the
// movement since the previous event.
func (r *Router) Dragged(pos, delta vector.Pt) {
	if !r.dragging {
		r.dragging = true
		start := pos.Sub(delta)
		r.panning = r.c.Tool() == canvas.ToolSelect && !r.c.FieldEditing()
		if !r.panning {
			r.c.DragStart(start)
		}
	}
	if r.panning {
		r.c.PanBy(delta)
		return
	}
	r.c.DragMove(pos)
}

// DragEnd finishes the drag in progress.
func (r *Router) DragEnd() {
	if r.dragging && !r.panning {
		r.c.DragStop()
	}
	r.dragging, r.panning = false, false
}

// Scrolled zooms around pos; positive dy zooms in.
func (r *Router) Scrolled(pos vector.Pt, dy float64) {
	r.c.Scroll(pos, dy/scrollUnitsPerNotch)
}
