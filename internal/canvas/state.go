/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"log/slog"

	"markcanvas/internal/vector"
	"markcanvas/internal/view"
)

// State is the persistable part of a controller. The gesture, selection and
// edit history are transient and never part of it.
type State struct {
	Shapes        []vector.Shape `json:"shapes"`
	Detections    []vector.Shape `json:"detections"`
	Fields        []Field        `json:"fields"`
	Tool          ToolMode       `json:"tool"`
	Zoom          float64        `json:"zoom"`
	Pan           vector.Pt      `json:"pan"`
	GridRotation  float64        `json:"grid_rotation"`
	ImageRotation float64        `json:"image_rotation"`
	GridVisible   bool           `json:"grid_visible"`
	Style         vector.Style   `json:"style"`
}

// Snapshot copies the persistable state.
func (c *Controller) Snapshot() State {
	return State{
		Shapes:        c.Shapes(),
		Detections:    c.Detections(),
		Fields:        c.Fields(),
		Tool:          c.tool,
		Zoom:          c.zoom,
		Pan:           c.pan,
		GridRotation:  c.gridRotation,
		ImageRotation: c.imageRotation,
		GridVisible:   c.gridVisible,
		Style:         c.style,
	}
}

// Restore replaces the controller state. The gesture returns to Idle, the
// selection and layer are cleared and the edit history is dropped.
func (c *Controller) Restore(st State) {
	c.shapes = append([]vector.Shape(nil), st.Shapes...)
	c.detections = append([]vector.Shape(nil), st.Detections...)
	c.fields = append([]Field(nil), st.Fields...)
	c.tool = st.Tool
	c.zoom = view.ClampZoom(st.Zoom, c.settings.MinZoom, c.settings.MaxZoom)
	c.pan = st.Pan
	if !c.pan.IsFinite() {
		c.pan = vector.Pt{}
	}
	c.gridRotation = st.GridRotation
	c.imageRotation = st.ImageRotation
	c.gridVisible = st.GridVisible
	c.style = st.Style

	c.gesture = Idle{}
	c.selected = -1
	c.layer = LayerNone
	c.focusName = false
	c.guides = nil
	c.seq = len(c.shapes)
	c.history.Reset()
	c.log.Debug("state restored", slog.Int("shapes", len(c.shapes)), slog.Int("detections", len(c.detections)))
}
