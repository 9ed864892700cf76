/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "testing"

func TestAlignmentGuides_EdgesWithinThreshold(t *testing.T) {
	anchor := R(0, 0, 200, 100)
	moving := R(3, 4, 80, 40)
	guides := AlignmentGuides(moving, []Rect{anchor}, 6)
	if len(guides) != 2 {
		t.Fatalf("expected a vertical and a horizontal guide, got %+v", guides)
	}
	if guides[0].Orientation != Vertical || guides[0].Position != 0 {
		t.Fatalf("unexpected vertical guide: %+v", guides[0])
	}
	if guides[1].Orientation != Horizontal || guides[1].Position != 0 {
		t.Fatalf("unexpected horizontal guide: %+v", guides[1])
	}
}

func TestAlignmentGuides_CentersAndDoesNotMove(t *testing.T) {
	anchor := R(100, 100, 100, 100) // centre 150,150
	moving := R(128, 300, 40, 20)   // centre x 148
	before := moving
	guides := AlignmentGuides(moving, []Rect{anchor}, 6)
	if len(guides) != 1 || !guides[0].Center || guides[0].Position != 150 {
		t.Fatalf("expected one centre guide at 150, got %+v", guides)
	}
	if moving != before {
		t.Fatalf("moving rect changed")
	}
	if guides[0].From.Y != 100 || guides[0].To.Y != 320 {
		t.Fatalf("guide should span both rects: %+v", guides[0])
	}
}

func TestAlignmentGuides_NoneOutsideThreshold(t *testing.T) {
	if g := AlignmentGuides(R(50, 50, 10, 10), []Rect{R(0, 0, 20, 20)}, 6); len(g) != 0 {
		t.Fatalf("expected no guides, got %+v", g)
	}
}
