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
	"math"

	"markcanvas/internal/vector"
)

// Scroll zooms by notches wheel steps (positive zooms in) keeping the point
// under the screen-space pointer fixed.
func (c *Controller) Scroll(pointer vector.Pt, notches float64) {
	if notches == 0 || math.IsNaN(notches) || math.IsInf(notches, 0) || !pointer.IsFinite() {
		return
	}
	c.zoomTo(c.zoom*math.Pow(c.settings.ZoomStep, notches), pointer)
}

// KeyZoom zooms by steps key presses toward the viewport centre.
func (c *Controller) KeyZoom(steps int) {
	if steps == 0 {
		return
	}
	c.zoomTo(c.zoom*math.Pow(c.settings.ZoomStep, float64(steps)), c.viewport.Center())
}

// SetZoom sets an absolute zoom about the viewport centre.
func (c *Controller) SetZoom(z float64) { c.zoomTo(z, c.viewport.Center()) }

func (c *Controller) zoomTo(target float64, pointer vector.Pt) {
	v := c.Pipeline().View.ZoomAt(target, pointer, c.settings.MinZoom, c.settings.MaxZoom)
	if v.Zoom != target {
		c.log.Debug("zoom clamped", slog.Float64("requested", target), slog.Float64("zoom", v.Zoom))
	}
	c.zoom, c.pan = v.Zoom, v.Pan
}

// PanBy moves the view by a screen-space delta.
func (c *Controller) PanBy(d vector.Pt) {
	if d.IsFinite() {
		c.pan = c.pan.Add(d)
	}
}

// ResetView returns to minimum zoom without pan.
func (c *Controller) ResetView() {
	c.zoom = c.settings.MinZoom
	c.pan = vector.Pt{}
}
