/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"encoding/json"
	"fmt"
)

// shapeJSON is the persisted form of a Shape. Exactly one of the geometry
// groups is populated, selected by Kind.
type shapeJSON struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Visible bool    `json:"visible"`
	Style   Style   `json:"style"`
	Corners []Pt    `json:"corners,omitempty"`
	Center  *Pt     `json:"center,omitempty"`
	Radius  float64 `json:"radius,omitempty"`
	Points  []Pt    `json:"points,omitempty"`
}

func (s Shape) MarshalJSON() ([]byte, error) {
	if s.Geom == nil {
		return nil, fmt.Errorf("shape %q has no geometry", s.Name)
	}
	w := shapeJSON{ID: s.ID, Name: s.Name, Kind: s.Kind().String(), Visible: s.Visible, Style: s.Style}
	switch g := s.Geom.(type) {
	case Rectangle:
		w.Corners = g.Corners[:]
	case Circle:
		c := g.Center
		w.Center = &c
		w.Radius = g.Radius
	case Polygon:
		w.Points = g.Points
	}
	return json.Marshal(w)
}

// UnmarshalJSON rebuilds the geometry through the validating constructors,
// so a document with invalid coordinates is rejected.
func (s *Shape) UnmarshalJSON(b []byte) error {
	var w shapeJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	k, err := ParseKind(w.Kind)
	if err != nil {
		return err
	}
	var g Geometry
	switch k {
	case KindRectangle:
		if len(w.Corners) != 4 {
			return fmt.Errorf("rectangle %q: want 4 corners, got %d", w.Name, len(w.Corners))
		}
		g, err = quadOf([4]Pt{w.Corners[0], w.Corners[1], w.Corners[2], w.Corners[3]})
	case KindCircle:
		if w.Center == nil {
			return fmt.Errorf("circle %q: missing center", w.Name)
		}
		g, err = NewCircle(*w.Center, w.Radius)
	case KindPolygon:
		g, err = NewPolygon(w.Points)
	}
	if err != nil {
		return fmt.Errorf("shape %q: %w", w.Name, err)
	}
	*s = Shape{ID: w.ID, Name: w.Name, Style: w.Style, Visible: w.Visible, Geom: g}
	return nil
}
