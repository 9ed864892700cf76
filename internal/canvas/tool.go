/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package canvas

import "fmt"

// ToolMode is the persistent tool chosen by the user. Changing it never
// mutates shapes.
type ToolMode uint8

const (
	ToolSelect ToolMode = iota
	ToolRectangle
	ToolCircle
	ToolFreehand
	ToolEdit
	ToolRotate
)

var toolNames = [...]string{"select", "rectangle", "circle", "freehand", "edit", "rotate"}

func (t ToolMode) String() string {
	if int(t) < len(toolNames) {
		return toolNames[t]
	}
	return fmt.Sprintf("tool(%d)", uint8(t))
}

// ParseTool is the inverse of ToolMode.String.
func ParseTool(s string) (ToolMode, error) {
	for i, n := range toolNames {
		if n == s {
			return ToolMode(i), nil
		}
	}
	return ToolSelect, fmt.Errorf("unknown tool %q", s)
}

func (t ToolMode) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *ToolMode) UnmarshalText(b []byte) error {
	v, err := ParseTool(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// draws reports whether the tool creates shapes by dragging.
func (t ToolMode) draws() bool {
	return t == ToolRectangle || t == ToolCircle || t == ToolFreehand
}

// Layer is the logical layer targeted by the Rotate tool.
type Layer uint8

const (
	LayerNone Layer = iota
	LayerShapes
	LayerDetections
	LayerGrid
	LayerImage
)

var layerNames = [...]string{"none", "shapes", "detections", "grid", "image"}

func (l Layer) String() string {
	if int(l) < len(layerNames) {
		return layerNames[l]
	}
	return fmt.Sprintf("layer(%d)", uint8(l))
}

// ParseLayer is the inverse of Layer.String.
func ParseLayer(s string) (Layer, error) {
	for i, n := range layerNames {
		if n == s {
			return Layer(i), nil
		}
	}
	return LayerNone, fmt.Errorf("unknown layer %q", s)
}
