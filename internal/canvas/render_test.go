/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"testing"

	"markcanvas/internal/vector"
)

func countCategory(f Frame, cat Category) int {
	n := 0
	for _, it := range f.Items {
		if it.Category == cat {
			n++
		}
	}
	return n
}

func TestRenderShapesAndHandles(t *testing.T) {
	c := newTestController(t)
	c.SetTool(ToolCircle)
	drag(c, pt(100, 100), pt(110, 100))
	addRect(c, pt(0, 0), pt(20, 20))

	f := c.Render()
	if countCategory(f, CategoryShape) != 2 {
		t.Fatalf("expected 2 shape items, got %+v", f.Items)
	}
	circle := f.Items[0]
	if circle.Kind != vector.KindCircle || len(circle.Points) != vector.CircleSegments || !circle.Closed {
		t.Fatalf("circle item %+v", circle)
	}
	if circle.Selected || !f.Items[1].Selected {
		t.Fatalf("only the newest shape should be selected")
	}
	if len(f.Items[1].Handles) != 0 {
		t.Fatalf("handles outside edit mode")
	}

	c.SetTool(ToolEdit)
	f = c.Render()
	if h := f.Items[1].Handles; len(h) != 4 || h[2] != pt(20, 20) {
		t.Fatalf("handles %+v", h)
	}
}

func TestRenderMapsThroughPipeline(t *testing.T) {
	c := newTestController(t)
	c.SetImageSize(vector.Size{W: 400, H: 300})
	r, _ := vector.NewRectangle(pt(0, 0), pt(10, 10))
	c.SetDetections([]vector.Shape{vector.NewShape("det", vector.DefaultStyle(), r)})
	c.SetFields([]Field{{Name: "f", Bounds: vector.R(5, 5, 10, 10)}})

	f := c.Render()
	if f.Items[0].Category != CategoryImage || f.Items[0].Points[2] != pt(800, 600) {
		t.Fatalf("image item %+v", f.Items[0])
	}
	det := f.Items[1]
	if det.Category != CategoryDetection || det.Points[2] != pt(20, 20) {
		t.Fatalf("detection item %+v", det)
	}
	field := f.Items[2]
	if field.Category != CategoryField || field.Points[0] != pt(10, 10) || field.Name != "f" {
		t.Fatalf("field item %+v", field)
	}
	if d := c.Detections()[0].Bounds(); d.W != 10 {
		t.Fatalf("render mutated stored detection: %+v", d)
	}
}

func TestRenderPreviewWhileDrawing(t *testing.T) {
	c := newTestController(t)
	c.SetTool(ToolFreehand)
	c.DragStart(pt(0, 0))
	c.DragMove(pt(10, 0))
	f := c.Render()
	if countCategory(f, CategoryPreview) != 1 {
		t.Fatalf("expected preview item")
	}
	p := f.Items[len(f.Items)-1]
	if p.Closed || len(p.Points) != 2 {
		t.Fatalf("freehand preview %+v", p)
	}
	c.DragStop()
	if countCategory(c.Render(), CategoryPreview) != 0 {
		t.Fatalf("preview outlived the gesture")
	}
}

func TestRenderGrid(t *testing.T) {
	c := newTestController(t)
	if countCategory(c.Render(), CategoryGrid) != 0 {
		t.Fatalf("grid drawn while hidden")
	}
	c.SetGridVisible(true)
	n := countCategory(c.Render(), CategoryGrid)
	if n == 0 || n > 2*maxGridLines {
		t.Fatalf("grid lines=%d", n)
	}
}
