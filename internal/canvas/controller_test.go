/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"encoding/json"
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"

	"markcanvas/internal/vector"
)

func pt(x, y float64) vector.Pt { return vector.Pt{X: x, Y: y} }

func near(a, b vector.Pt) bool {
	return scalar.EqualWithinAbs(a.X, b.X, 1e-9) && scalar.EqualWithinAbs(a.Y, b.Y, 1e-9)
}

// newTestController has no image and zoom 1, so screen, canvas and image
// coordinates coincide.
func newTestController(t *testing.T) *Controller {
	t.Helper()
	c := New(Settings{})
	c.SetViewport(vector.R(0, 0, 800, 600))
	return c
}

func drag(c *Controller, pts ...vector.Pt) {
	c.DragStart(pts[0])
	for _, p := range pts[1:] {
		c.DragMove(p)
	}
	c.DragStop()
}

func isIdle(c *Controller) bool {
	_, ok := c.Interaction().(Idle)
	return ok
}

func TestFinalizeRectangleSelectsAndRequestsFocus(t *testing.T) {
	c := newTestController(t)
	c.SetTool(ToolRectangle)
	drag(c, pt(10, 10), pt(50, 30), pt(60, 40))
	if c.Len() != 1 {
		t.Fatalf("expected one shape, got %d", c.Len())
	}
	s, _ := c.Shape(0)
	if s.Kind() != vector.KindRectangle || s.Name != "Rectangle 1" || !s.Visible {
		t.Fatalf("unexpected shape %+v", s)
	}
	if b := s.Bounds(); b != vector.R(10, 10, 50, 30) {
		t.Fatalf("bounds %+v", b)
	}
	if i, ok := c.Selection(); !ok || i != 0 {
		t.Fatalf("new shape not selected: %d %v", i, ok)
	}
	if c.SelectedLayer() != LayerShapes {
		t.Fatalf("layer=%s", c.SelectedLayer())
	}
	if !c.ConsumeFocusRequest() || c.ConsumeFocusRequest() {
		t.Fatalf("focus request must fire exactly once")
	}
	if !isIdle(c) {
		t.Fatalf("gesture still active: %s", c.Interaction())
	}
}

func TestFinalizeDropsDegenerateShapes(t *testing.T) {
	c := newTestController(t)

	c.SetTool(ToolRectangle)
	drag(c, pt(100, 100), pt(100, 100))
	c.SetTool(ToolCircle)
	drag(c, pt(100, 100), pt(100, 100))
	c.SetTool(ToolFreehand)
	drag(c, pt(100, 100), pt(120, 130))
	c.SetTool(ToolRectangle)
	drag(c, pt(100, 100), pt(200, 100))

	if c.Len() != 0 {
		t.Fatalf("degenerate gestures created %d shapes", c.Len())
	}
	if !isIdle(c) {
		t.Fatalf("gesture still active: %s", c.Interaction())
	}
	if _, ok := c.Selection(); ok {
		t.Fatalf("nothing should be selected")
	}
}

func TestFinalizeCircleAndFreehand(t *testing.T) {
	c := newTestController(t)
	c.SetTool(ToolCircle)
	drag(c, pt(100, 100), pt(103, 104))
	c.SetTool(ToolFreehand)
	drag(c, pt(0, 0), pt(40, 0), pt(40, 40), pt(0, 40))
	if c.Len() != 2 {
		t.Fatalf("expected 2 shapes, got %d", c.Len())
	}
	circle, _ := c.Shape(0)
	if g := circle.Geom.(vector.Circle); g.Center != pt(100, 100) || g.Radius != 5 {
		t.Fatalf("circle %+v", g)
	}
	poly, _ := c.Shape(1)
	if g := poly.Geom.(vector.Polygon); len(g.Points) != 4 || g.Points[0] != pt(0, 0) {
		t.Fatalf("polygon %+v", g)
	}
	if poly.Name != "Polygon 2" {
		t.Fatalf("name=%q", poly.Name)
	}
}

func TestNewShapesUseControllerStyle(t *testing.T) {
	c := newTestController(t)
	st := vector.Style{Stroke: vector.Stroke{Color: vector.Black, Width: 4, Enabled: true}}
	c.SetStyle(st)
	c.SetTool(ToolRectangle)
	drag(c, pt(0, 0), pt(10, 10))
	if s, _ := c.Shape(0); s.Style != st {
		t.Fatalf("style %+v", s.Style)
	}
}

func addRect(c *Controller, a, b vector.Pt) {
	prev := c.Tool()
	c.SetTool(ToolRectangle)
	drag(c, a, b)
	c.SetTool(prev)
}

func TestHitTestPrefersMostRecentShape(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	addRect(c, pt(50, 50), pt(150, 150))
	c.Select(-1)
	c.ConsumeFocusRequest()

	c.Press(pt(75, 75))
	if i, _ := c.Selection(); i != 1 {
		t.Fatalf("selected %d, want 1", i)
	}
	c.Press(pt(25, 25))
	if i, _ := c.Selection(); i != 0 {
		t.Fatalf("selected %d, want 0", i)
	}
	c.SetVisible(1, false)
	if i := c.HitTest(pt(75, 75)); i != 0 {
		t.Fatalf("hidden shape was hit: %d", i)
	}
	c.Press(pt(500, 500))
	if _, ok := c.Selection(); ok {
		t.Fatalf("click on empty canvas should clear the selection")
	}
	if c.HitTest(pt(math.NaN(), 10)) != -1 {
		t.Fatalf("NaN pointer must hit nothing")
	}
}

func TestFocusRaisedOnlyWhenSelectionChanges(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	c.ConsumeFocusRequest()
	c.Press(pt(10, 10))
	if c.ConsumeFocusRequest() {
		t.Fatalf("re-selecting the same shape must not request focus")
	}
	c.Select(-1)
	c.Press(pt(10, 10))
	if !c.ConsumeFocusRequest() {
		t.Fatalf("selection change must request focus")
	}
}

func TestSelectingSwitchesLayerToShapes(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	c.SelectLayer(LayerGrid)
	c.Press(pt(10, 10))
	if c.SelectedLayer() != LayerShapes {
		t.Fatalf("layer=%s", c.SelectedLayer())
	}
}

func TestDrawingToolsIgnoreClicks(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	c.Select(-1)
	c.SetTool(ToolCircle)
	c.Press(pt(10, 10))
	if _, ok := c.Selection(); ok {
		t.Fatalf("drawing tool selected a shape")
	}
}

func TestVertexDragMovesOnlyThatCorner(t *testing.T) {
	c := newTestController(t)
	c.SetImageSize(vector.Size{W: 400, H: 300}) // fit scale 2, offset 0
	addRect(c, pt(20, 20), pt(220, 120))        // image (10,10)-(110,60)
	before, _ := c.Shape(0)

	c.SetTool(ToolEdit)
	c.DragStart(pt(225, 24))
	if g, ok := c.Interaction().(DraggingVertex); !ok || g.Vertex != 1 || g.Shape != 0 {
		t.Fatalf("expected vertex 1 drag, got %s", c.Interaction())
	}
	c.DragMove(pt(260, 30))
	c.DragMove(pt(300, 40))
	c.DragStop()

	after, _ := c.Shape(0)
	bv, av := before.Vertices(), after.Vertices()
	for _, i := range []int{0, 2, 3} {
		if av[i] != bv[i] {
			t.Fatalf("corner %d moved from %v to %v", i, bv[i], av[i])
		}
	}
	if !near(av[1], pt(150, 20)) {
		t.Fatalf("corner 1 at %v", av[1])
	}
	if !isIdle(c) {
		t.Fatalf("gesture still active")
	}
}

func TestVertexPickRadiusIsCanvasSpace(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(400, 300), pt(500, 400))
	c.SetZoom(4) // about the viewport centre, which is vertex 0
	c.SetTool(ToolEdit)
	c.DragStart(pt(420, 300)) // 20 screen px, 5 canvas px
	if g, ok := c.Interaction().(DraggingVertex); !ok || g.Vertex != 0 {
		t.Fatalf("expected vertex 0 drag, got %s", c.Interaction())
	}
	c.Cancel()
	c.SetZoom(1)
	c.DragStart(pt(420, 300))
	if _, ok := c.Interaction().(DraggingVertex); ok {
		t.Fatalf("20 canvas px is outside the pick radius")
	}
}

func TestEditWithoutSelectionSelectsFirst(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	c.Select(-1)
	c.SetTool(ToolEdit)
	c.DragStart(pt(5, 5))
	if !isIdle(c) {
		t.Fatalf("vertex search without selection: %s", c.Interaction())
	}
	if i, ok := c.Selection(); !ok || i != 0 {
		t.Fatalf("expected selection attempt to pick shape 0")
	}
	c.DragStop()
}

func TestCircleRadiusHandle(t *testing.T) {
	c := newTestController(t)
	c.SetTool(ToolCircle)
	drag(c, pt(100, 100), pt(110, 100))
	c.SetTool(ToolEdit)
	drag(c, pt(111, 101), pt(100, 130))
	s, _ := c.Shape(0)
	if g := s.Geom.(vector.Circle); g.Center != pt(100, 100) || g.Radius != 30 {
		t.Fatalf("circle after radius drag %+v", g)
	}
	drag(c, pt(99, 99), pt(200, 200))
	s, _ = c.Shape(0)
	if g := s.Geom.(vector.Circle); g.Center != pt(200, 200) || g.Radius != 30 {
		t.Fatalf("circle after center drag %+v", g)
	}
}

func TestRotationIsIncremental(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	ref, _ := c.Shape(0)

	c.SetTool(ToolRotate)
	c.DragStart(pt(150, 50)) // angle 0 about the centroid (50,50)
	if g, ok := c.Interaction().(Rotating); !ok || g.Target != LayerShapes || g.Center != pt(50, 50) {
		t.Fatalf("expected shape rotation, got %s", c.Interaction())
	}
	c.DragMove(pt(50, 150)) // pi/2
	c.DragMove(pt(-50, 50)) // pi
	c.DragMove(pt(50, -50)) // -pi/2, a further +pi/2 step
	if g := c.Interaction().(Rotating); !scalar.EqualWithinAbs(g.StartAngle, -math.Pi/2, 1e-12) {
		t.Fatalf("start angle not overwritten: %v", g.StartAngle)
	}
	c.DragStop()

	ref.RotateAbout(-3*math.Pi/2, pt(50, 50))
	got, _ := c.Shape(0)
	for i, v := range got.Vertices() {
		if !near(v, ref.Vertices()[i]) {
			t.Fatalf("vertex %d: stepwise %v vs single %v", i, v, ref.Vertices()[i])
		}
	}
}

func TestRotationNeedsValidTarget(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	c.SetTool(ToolRotate)
	c.SelectLayer(LayerDetections)
	c.Select(-1)
	c.DragStart(pt(10, 10))
	if !isIdle(c) {
		t.Fatalf("detections layer must not rotate")
	}
	if i, ok := c.Selection(); !ok || i != 0 {
		t.Fatalf("press should still select")
	}
	c.DragStop()

	c.Select(-1)
	c.SelectLayer(LayerShapes)
	c.DragStart(pt(500, 500))
	if !isIdle(c) {
		t.Fatalf("shapes layer without selection must not rotate")
	}
}

func TestGridAndImageRotation(t *testing.T) {
	c := newTestController(t)
	c.SetTool(ToolRotate)
	c.SelectLayer(LayerGrid)
	drag(c, pt(500, 300), pt(400, 400)) // quarter turn about the viewport centre
	if !scalar.EqualWithinAbs(c.GridRotation(), -math.Pi/2, 1e-12) {
		t.Fatalf("grid rotation %v", c.GridRotation())
	}
	if c.ImageRotation() != 0 {
		t.Fatalf("image rotation changed")
	}
	c.SelectLayer(LayerImage)
	drag(c, pt(400, 400), pt(500, 300))
	if !scalar.EqualWithinAbs(c.ImageRotation(), math.Pi/2, 1e-12) {
		t.Fatalf("image rotation %v", c.ImageRotation())
	}
}

func TestDeleteFixesSelection(t *testing.T) {
	c := newTestController(t)
	for i := 0; i < 3; i++ {
		x := float64(i * 100)
		addRect(c, pt(x, 0), pt(x+50, 50))
	}
	c.Select(2)
	c.Delete(0)
	if i, ok := c.Selection(); !ok || i != 1 {
		t.Fatalf("selection should follow shape to index 1, got %d %v", i, ok)
	}
	if s, _ := c.Shape(1); s.Bounds().X != 200 {
		t.Fatalf("selection points at the wrong shape")
	}
	c.Delete(1)
	if _, ok := c.Selection(); ok {
		t.Fatalf("deleting the selected shape must clear the selection")
	}
	c.Select(0)
	c.Delete(0)
	if _, ok := c.Selection(); ok || c.Len() != 0 {
		t.Fatalf("unexpected state after deleting last shape")
	}
	if c.Delete(0) {
		t.Fatalf("delete out of range succeeded")
	}
}

func TestUndoPopsMostRecentShape(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(10, 10))
	addRect(c, pt(20, 20), pt(30, 30))
	first, _ := c.Shape(0)
	if !c.Undo() || c.Len() != 1 {
		t.Fatalf("undo failed")
	}
	if s, _ := c.Shape(0); s.ID != first.ID {
		t.Fatalf("undo removed the wrong shape")
	}
	if _, ok := c.Selection(); ok {
		t.Fatalf("selection of the removed shape survived")
	}
	c.Undo()
	if c.Undo() {
		t.Fatalf("undo on empty list succeeded")
	}
}

func TestDeleteDuringVertexDragEndsGesture(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	c.SetTool(ToolEdit)
	c.DragStart(pt(0, 0))
	c.Delete(0)
	if !isIdle(c) {
		t.Fatalf("gesture referencing a removed shape must end")
	}
	c.DragMove(pt(5, 5))
	c.DragStop()
}

func TestCancelDiscardsAndRestores(t *testing.T) {
	c := newTestController(t)
	c.SetTool(ToolRectangle)
	c.DragStart(pt(0, 0))
	c.DragMove(pt(50, 50))
	if !c.Cancel() || c.Len() != 0 || !isIdle(c) {
		t.Fatalf("cancelled drawing must not create a shape")
	}

	addRect(c, pt(0, 0), pt(100, 100))
	before, _ := c.Shape(0)
	c.SetTool(ToolRotate)
	c.DragStart(pt(150, 50))
	c.DragMove(pt(50, 150))
	c.Cancel()
	if after, _ := c.Shape(0); after.Bounds() != before.Bounds() || after.Vertices()[0] != before.Vertices()[0] {
		t.Fatalf("rotation not rolled back")
	}

	c.SelectLayer(LayerGrid)
	c.DragStart(pt(500, 300))
	c.DragMove(pt(400, 400))
	c.Cancel()
	if c.GridRotation() != 0 {
		t.Fatalf("grid rotation not rolled back: %v", c.GridRotation())
	}
	if c.Cancel() {
		t.Fatalf("cancel while idle reported a gesture")
	}
}

func TestSetToolCancelsGesture(t *testing.T) {
	c := newTestController(t)
	c.SetTool(ToolRectangle)
	c.DragStart(pt(0, 0))
	c.DragMove(pt(50, 50))
	c.SetTool(ToolSelect)
	c.DragStop()
	if c.Len() != 0 || !isIdle(c) {
		t.Fatalf("switching tools must abandon the drawing")
	}
}

func TestRevertAndReapplyEdit(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	c.SetTool(ToolEdit)
	drag(c, pt(100, 0), pt(140, -20))
	moved, _ := c.Shape(0)
	if moved.Vertices()[1] != pt(140, -20) {
		t.Fatalf("vertex not moved")
	}
	if !c.RevertEdit() {
		t.Fatalf("revert failed")
	}
	if s, _ := c.Shape(0); s.Vertices()[1] != pt(100, 0) || s.ID != moved.ID {
		t.Fatalf("revert restored %v", s.Vertices()[1])
	}
	if !c.ReapplyEdit() {
		t.Fatalf("reapply failed")
	}
	if s, _ := c.Shape(0); s.Vertices()[1] != pt(140, -20) {
		t.Fatalf("reapply restored %v", s.Vertices()[1])
	}
	if c.ReapplyEdit() {
		t.Fatalf("nothing left to reapply")
	}
}

func TestCollapsedRectangleSurvivesReloadAndHistory(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	c.SetTool(ToolEdit)
	drag(c, pt(100, 100), pt(0, 0))
	want := []vector.Pt{pt(0, 0), pt(100, 0), pt(0, 0), pt(0, 100)}
	collapsed, _ := c.Shape(0)
	for i, v := range collapsed.Vertices() {
		if v != want[i] {
			t.Fatalf("corner %d at %v", i, v)
		}
	}

	if !c.RevertEdit() {
		t.Fatalf("revert failed")
	}
	if !c.ReapplyEdit() {
		t.Fatalf("reapply of the collapsed edit failed")
	}
	if s, _ := c.Shape(0); s.Vertices()[2] != pt(0, 0) {
		t.Fatalf("reapply restored %v", s.Vertices()[2])
	}

	b, err := json.Marshal(c.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatalf("saved state cannot be reloaded: %v", err)
	}
	d := newTestController(t)
	d.Restore(st)
	s, ok := d.Shape(0)
	if !ok || s.ID != collapsed.ID {
		t.Fatalf("restored shape missing")
	}
	for i, v := range s.Vertices() {
		if v != want[i] {
			t.Fatalf("restored corner %d at %v", i, v)
		}
	}
}

func TestScrollZoomKeepsPointerFixed(t *testing.T) {
	c := newTestController(t)
	c.SetImageSize(vector.Size{W: 1600, H: 1200})
	pointer := pt(600, 100)
	under := c.Pipeline().ToImage(pointer)
	c.Scroll(pointer, 3)
	if !scalar.EqualWithinAbs(c.Zoom(), math.Pow(1.1, 3), 1e-12) {
		t.Fatalf("zoom=%v", c.Zoom())
	}
	if got := c.Pipeline().ToScreen(under); !near(got, pointer) {
		t.Fatalf("point under pointer moved to %v", got)
	}
	c.Scroll(pointer, 100)
	if c.Zoom() != 10 {
		t.Fatalf("zoom not clamped to max: %v", c.Zoom())
	}
	if got := c.Pipeline().ToScreen(under); !near(got, pointer) {
		t.Fatalf("clamped zoom moved the pointer to %v", got)
	}
	c.Scroll(pointer, -100)
	if c.Zoom() != 1 {
		t.Fatalf("zoom not clamped to min: %v", c.Zoom())
	}
	c.KeyZoom(1)
	if !scalar.EqualWithinAbs(c.Zoom(), 1.1, 1e-12) {
		t.Fatalf("key zoom=%v", c.Zoom())
	}
}

func TestFieldDragIsAbsoluteAndGuidesDoNotSnap(t *testing.T) {
	c := newTestController(t)
	c.SetFields([]Field{{Name: "total", Bounds: vector.R(100, 100, 50, 20)}})
	det, _ := vector.NewRectangle(pt(200, 300), pt(300, 340))
	c.SetDetections([]vector.Shape{vector.NewShape("word", vector.DefaultStyle(), det)})
	c.SetFieldEditing(true)

	c.DragStart(pt(110, 110))
	if _, ok := c.Interaction().(DraggingField); !ok {
		t.Fatalf("expected field drag, got %s", c.Interaction())
	}
	c.DragMove(pt(213, 110))
	if b := c.Fields()[0].Bounds; b != vector.R(203, 100, 50, 20) {
		t.Fatalf("bounds %+v", b)
	}
	if g := c.Guides(); len(g) != 1 || g[0].Orientation != vector.Vertical || g[0].Position != 200 {
		t.Fatalf("guides %+v", g)
	}
	c.DragMove(pt(120, 130))
	if b := c.Fields()[0].Bounds; b != vector.R(110, 120, 50, 20) {
		t.Fatalf("bounds must derive from the original: %+v", b)
	}
	c.DragStop()
	if !isIdle(c) || len(c.Guides()) != 0 {
		t.Fatalf("field drag did not end cleanly")
	}
	if c.Len() != 0 {
		t.Fatalf("field editing must not draw shapes")
	}
}

func TestFieldDragSkipsDetectionsWithoutGeometry(t *testing.T) {
	c := newTestController(t)
	c.SetFields([]Field{{Name: "total", Bounds: vector.R(100, 100, 50, 20)}})
	det, _ := vector.NewRectangle(pt(200, 300), pt(300, 340))
	c.SetDetections([]vector.Shape{{Name: "empty"}, vector.NewShape("word", vector.DefaultStyle(), det)})
	c.SetFieldEditing(true)

	c.DragStart(pt(110, 110))
	c.DragMove(pt(213, 110))
	if g := c.Guides(); len(g) != 1 || g[0].Position != 200 {
		t.Fatalf("guides %+v", g)
	}
	c.DragStop()
}

func TestBestDetection(t *testing.T) {
	a, _ := vector.NewRectangle(pt(0, 0), pt(10, 10))
	b, _ := vector.NewRectangle(pt(2, 0), pt(12, 10))
	dets := []vector.Shape{vector.NewShape("a", vector.DefaultStyle(), a), vector.NewShape("b", vector.DefaultStyle(), b)}
	i, iou := BestDetection(vector.R(3, 0, 10, 10), dets, 0.5)
	if i != 1 || !scalar.EqualWithinAbs(iou, 90.0/110.0, 1e-12) {
		t.Fatalf("best=%d iou=%v", i, iou)
	}
	if i, _ := BestDetection(vector.R(100, 100, 5, 5), dets, 0.1); i != -1 {
		t.Fatalf("expected no match, got %d", i)
	}
}

func TestSnapshotRestoreResetsTransientState(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(100, 100))
	c.SetTool(ToolEdit)
	c.SetZoom(3)
	c.SetGridVisible(true)
	st := c.Snapshot()

	d := newTestController(t)
	d.SetTool(ToolRotate)
	d.DragStart(pt(1, 1))
	d.Restore(st)
	if !isIdle(d) {
		t.Fatalf("restore must reset the gesture")
	}
	if _, ok := d.Selection(); ok {
		t.Fatalf("restore must clear the selection")
	}
	if d.Tool() != ToolEdit || d.Zoom() != 3 || !d.GridVisible() || d.Len() != 1 {
		t.Fatalf("restored state mismatch: tool=%s zoom=%v", d.Tool(), d.Zoom())
	}
	st.Zoom = 99
	d.Restore(st)
	if d.Zoom() != 10 {
		t.Fatalf("restored zoom not clamped: %v", d.Zoom())
	}
}

func TestShapesReturnsCopy(t *testing.T) {
	c := newTestController(t)
	addRect(c, pt(0, 0), pt(10, 10))
	got := c.Shapes()
	got[0].Name = "changed"
	if s, _ := c.Shape(0); s.Name == "changed" {
		t.Fatalf("caller mutated controller state")
	}
}
