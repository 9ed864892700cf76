/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
}

func TestRectFromPointsNormalizes(t *testing.T) {
	r := RectFromPoints(Pt{50, 10}, Pt{10, 40})
	if r != (Rect{X: 10, Y: 10, W: 40, H: 30}) {
		t.Fatalf("unexpected rect: %+v", r)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
}

func TestAffineInvertRoundTrip(t *testing.T) {
	m := Translate(-7, 3).Mul(RotateAround(0.7, Pt{4, 9})).Mul(Scale(2.5, 2.5))
	inv, ok := m.Invert()
	if !ok {
		t.Fatalf("expected invertible transform")
	}
	p := Pt{123.25, -40.5}
	q := inv.Apply(m.Apply(p))
	if !scalar.EqualWithinAbs(p.X, q.X, 1e-9) || !scalar.EqualWithinAbs(p.Y, q.Y, 1e-9) {
		t.Fatalf("round trip mismatch: %+v vs %+v", p, q)
	}
	if _, ok := Scale(0, 1).Invert(); ok {
		t.Fatalf("singular transform must not invert")
	}
}

func TestIoU(t *testing.T) {
	a := R(0, 0, 10, 10)
	if got := IoU(a, a); got != 1 {
		t.Fatalf("identical rects IoU=%v", got)
	}
	if got := IoU(a, R(20, 20, 5, 5)); got != 0 {
		t.Fatalf("disjoint rects IoU=%v", got)
	}
	// overlap 5x10=50, union 100+100-50=150
	if got := IoU(a, R(5, 0, 10, 10)); !scalar.EqualWithinAbs(got, 50.0/150.0, 1e-12) {
		t.Fatalf("half overlap IoU=%v", got)
	}
}

func TestBoundsOf(t *testing.T) {
	if _, ok := BoundsOf(nil); ok {
		t.Fatalf("empty input must report !ok")
	}
	b, _ := BoundsOf([]Pt{{3, 9}, {-1, 4}, {7, 2}})
	if b != (Rect{X: -1, Y: 2, W: 8, H: 7}) {
		t.Fatalf("unexpected bounds: %+v", b)
	}
}

func TestPtHelpers(t *testing.T) {
	if d := (Pt{0, 0}).Dist(Pt{3, 4}); d != 5 {
		t.Fatalf("dist=%v", d)
	}
	if (Pt{math.NaN(), 0}).IsFinite() || (Pt{0, math.Inf(1)}).IsFinite() {
		t.Fatalf("non-finite points reported finite")
	}
	if a := (Pt{0, 5}).Angle(Pt{0, 0}); !scalar.EqualWithinAbs(a, math.Pi/2, 1e-12) {
		t.Fatalf("angle=%v", a)
	}
}

func TestColorHexRoundTrip(t *testing.T) {
	c, err := ParseColor("#ff8000")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c != (Color{255, 128, 0, 255}) {
		t.Fatalf("unexpected colour %+v", c)
	}
	if c.Hex() != "#ff8000ff" {
		t.Fatalf("hex=%s", c.Hex())
	}
	if _, err := ParseColor("#12"); err == nil {
		t.Fatalf("expected error for short colour")
	}
}
