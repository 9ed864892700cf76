/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Alignment guides for dragged field boxes. Guides are feedback only: the
// moving rect is never adjusted.

import (
	"math"
	"sort"
)

type Orientation uint8

const (
	Vertical Orientation = iota
	Horizontal
)

func (o Orientation) String() string {
	if o == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// GuideLine is a line to draw when an edge or centre of the moving rect lines
// up with one of the anchors. Position is x for vertical guides and y for
// horizontal ones; From/To span both rects.
type GuideLine struct {
	Orientation Orientation
	Center      bool
	Position    float64
	Distance    float64
	From        Pt
	To          Pt
}

// AlignmentGuides returns at most one vertical and one horizontal guide: the
// closest alignment within threshold on each axis.
func AlignmentGuides(moving Rect, anchors []Rect, threshold float64) []GuideLine {
	if threshold <= 0 {
		threshold = 6
	}
	var vs, hs []GuideLine
	mx := []float64{moving.X, moving.X + moving.W/2, moving.X + moving.W}
	my := []float64{moving.Y, moving.Y + moving.H/2, moving.Y + moving.H}
	for _, a := range anchors {
		ax := []float64{a.X, a.X + a.W/2, a.X + a.W}
		ay := []float64{a.Y, a.Y + a.H/2, a.Y + a.H}
		for i := range mx {
			for j := range ax {
				if (i == 1) != (j == 1) {
					continue
				}
				if d := math.Abs(mx[i] - ax[j]); d <= threshold {
					vs = append(vs, vertical(ax[j], d, i == 1, moving, a))
				}
				if d := math.Abs(my[i] - ay[j]); d <= threshold {
					hs = append(hs, horizontal(ay[j], d, i == 1, moving, a))
				}
			}
		}
	}
	var out []GuideLine
	for _, set := range [][]GuideLine{vs, hs} {
		if len(set) == 0 {
			continue
		}
		sort.SliceStable(set, func(i, j int) bool { return set[i].Distance < set[j].Distance })
		out = append(out, set[0])
	}
	return out
}

func vertical(x, d float64, center bool, a, b Rect) GuideLine {
	x = FloatRound(x, 3)
	minY := math.Min(a.Y, b.Y)
	maxY := math.Max(a.Y+a.H, b.Y+b.H)
	return GuideLine{Orientation: Vertical, Center: center, Position: x, Distance: d, From: Pt{x, minY}, To: Pt{x, maxY}}
}

func horizontal(y, d float64, center bool, a, b Rect) GuideLine {
	y = FloatRound(y, 3)
	minX := math.Min(a.X, b.X)
	maxX := math.Max(a.X+a.W, b.X+b.W)
	return GuideLine{Orientation: Horizontal, Center: center, Position: y, Distance: d, From: Pt{minX, y}, To: Pt{maxX, y}}
}
