/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import (
	"fmt"

	"markcanvas/internal/vector"
)

// Interaction is the transient state of the gesture in progress. It is one
// of Idle, Drawing, DraggingVertex, Rotating or DraggingField and always
// returns to Idle when the gesture ends.
type Interaction interface {
	fmt.Stringer
	interaction()
}

// Idle means no gesture is in progress.
type Idle struct{}

// Drawing tracks a shape being drawn. All points are image space.
// Points is only filled for freehand gestures.
type Drawing struct {
	Tool   ToolMode
	Start  vector.Pt
	End    vector.Pt
	Points []vector.Pt
}

// DraggingVertex moves vertex Vertex of shape Shape to the pointer.
type DraggingVertex struct {
	Shape  int
	Vertex int
}

// Rotating rotates Target around Center. For LayerShapes Center is in image
// space and Shape names the rotated shape; for LayerGrid and LayerImage it is
// in canvas space. StartAngle is overwritten after every move so each step
// rotates by the increment since the previous one.
type Rotating struct {
	Target     Layer
	Shape      int
	Center     vector.Pt
	StartAngle float64
}

// DraggingField moves field Field so that its bounds are always
// Original + (pointer - DragStart), image space.
type DraggingField struct {
	Field     int
	DragStart vector.Pt
	Original  vector.Rect
}

func (Idle) interaction()           {}
func (Drawing) interaction()        {}
func (DraggingVertex) interaction() {}
func (Rotating) interaction()       {}
func (DraggingField) interaction()  {}

func (Idle) String() string { return "idle" }
func (d Drawing) String() string {
	return fmt.Sprintf("drawing(%s)", d.Tool)
}
func (d DraggingVertex) String() string {
	return fmt.Sprintf("dragging-vertex(%d/%d)", d.Shape, d.Vertex)
}
func (r Rotating) String() string {
	return fmt.Sprintf("rotating(%s)", r.Target)
}
func (f DraggingField) String() string {
	return fmt.Sprintf("dragging-field(%d)", f.Field)
}
