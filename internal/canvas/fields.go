/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import "markcanvas/internal/vector"

// fieldAt returns the topmost field containing the screen point, or -1.
func (c *Controller) fieldAt(screen vector.Pt) int {
	p := c.Pipeline().ToImage(screen)
	for i := len(c.fields) - 1; i >= 0; i-- {
		if c.fields[i].Bounds.Contains(p) {
			return i
		}
	}
	return -1
}

// BeginFieldDrag starts moving field i from a screen position. It only
// applies while field editing is engaged and no other gesture is active.
func (c *Controller) BeginFieldDrag(i int, screen vector.Pt) bool {
	if !c.fieldEdit || i < 0 || i >= len(c.fields) || !screen.IsFinite() {
		return false
	}
	if _, ok := c.gesture.(Idle); !ok {
		return false
	}
	c.begin(DraggingField{Field: i, DragStart: c.Pipeline().ToImage(screen), Original: c.fields[i].Bounds})
	return true
}

func (c *Controller) detectionBounds() []vector.Rect {
	out := make([]vector.Rect, 0, len(c.detections))
	for _, d := range c.detections {
		if d.Geom == nil {
			continue
		}
		out = append(out, d.Bounds())
	}
	return out
}

// BestDetection returns the detection whose bounding box overlaps field the
// most, with its IoU. It returns -1 when no detection reaches minIoU.
func BestDetection(field vector.Rect, detections []vector.Shape, minIoU float64) (int, float64) {
	best, bestIoU := -1, 0.0
	for i, d := range detections {
		if d.Geom == nil {
			continue
		}
		if v := vector.IoU(field, d.Bounds()); v >= minIoU && v > bestIoU {
			best, bestIoU = i, v
		}
	}
	return best, bestIoU
}

// FieldMatches pairs every field with its best detection index (or -1).
func (c *Controller) FieldMatches(minIoU float64) []int {
	out := make([]int, len(c.fields))
	for i, f := range c.fields {
		out[i], _ = BestDetection(f.Bounds, c.detections, minIoU)
	}
	return out
}
