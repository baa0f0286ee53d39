/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package vector

// Basic 2D geometry in PDF points. Rectangles use a top-left origin with Y
// growing downwards, matching how editor geometry is stored.

import "math"

// Pt is a 2D point.
type Pt struct{ X, Y float64 }

// Rect is an axis-aligned rectangle defined by its top-left corner and size.
type Rect struct {
	X, Y float64
	W, H float64
}

func R(x, y, w, h float64) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) Min() Pt { return Pt{r.X, r.Y} }
func (r Rect) Max() Pt { return Pt{r.X + r.W, r.Y + r.H} }

// Area is never negative; degenerate rectangles have zero area.
func (r Rect) Area() float64 {
	if r.W <= 0 || r.H <= 0 {
		return 0
	}
	return r.W * r.H
}

func (r Rect) Contains(p Pt) bool {
	return p.X >= r.X && p.Y >= r.Y && p.X <= r.X+r.W && p.Y <= r.Y+r.H
}

// Intersect returns the overlapping part of r and o, or a zero Rect.
func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.X+r.W, o.X+o.W)
	y1 := math.Min(r.Y+r.H, o.Y+o.H)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// Union returns the minimal rect containing both.
func (r Rect) Union(o Rect) Rect {
	minX := math.Min(r.X, o.X)
	minY := math.Min(r.Y, o.Y)
	maxX := math.Max(r.X+r.W, o.X+o.W)
	maxY := math.Max(r.Y+r.H, o.Y+o.H)
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// CoveredFraction is the share of r's area that lies inside o.
func (r Rect) CoveredFraction(o Rect) float64 {
	a := r.Area()
	if a == 0 {
		return 0
	}
	return r.Intersect(o).Area() / a
}

// Affine2D represents a 2D affine transform as matrix:
// | a c e |
// | b d f |
// | 0 0 1 |
// stored as [a b c d e f], the same order as a PDF "cm" operator.
type Affine2D struct{ A, B, C, D, E, F float64 }

var Identity = Affine2D{A: 1, D: 1}

func (m Affine2D) Mul(n Affine2D) Affine2D {
	return Affine2D{
		A: m.A*n.A + m.C*n.B,
		B: m.B*n.A + m.D*n.B,
		C: m.A*n.C + m.C*n.D,
		D: m.B*n.C + m.D*n.D,
		E: m.A*n.E + m.C*n.F + m.E,
		F: m.B*n.E + m.D*n.F + m.F,
	}
}

func (m Affine2D) Apply(p Pt) Pt {
	return Pt{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

func Translate(tx, ty float64) Affine2D { return Affine2D{A: 1, D: 1, E: tx, F: ty} }
func Scale(sx, sy float64) Affine2D     { return Affine2D{A: sx, D: sy} }

// NormalizeDegrees folds any angle into [0, 360).
func NormalizeDegrees(deg int) int {
	return ((deg % 360) + 360) % 360
}

// FloatRound rounds v to n decimal places deterministically.
func FloatRound(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// RotatedSize returns the page size after a clockwise rotation by deg.
func RotatedSize(w, h float64, deg int) (float64, float64) {
	switch NormalizeDegrees(deg) {
	case 90, 270:
		return h, w
	default:
		return w, h
	}
}

// RotationCTM maps bottom-left page space of an unrotated w x h page onto the
// same page turned clockwise by deg (a multiple of 90).
func RotationCTM(w, h float64, deg int) Affine2D {
	switch NormalizeDegrees(deg) {
	case 90:
		return Affine2D{A: 0, B: -1, C: 1, D: 0, E: 0, F: w}
	case 180:
		return Affine2D{A: -1, B: 0, C: 0, D: -1, E: w, F: h}
	case 270:
		return Affine2D{A: 0, B: 1, C: -1, D: 0, E: h, F: 0}
	default:
		return Identity
	}
}

// Bounds returns the axis-aligned box of r after applying m.
func (m Affine2D) Bounds(r Rect) Rect {
	ps := []Pt{m.Apply(r.Min()), m.Apply(Pt{r.X + r.W, r.Y}), m.Apply(r.Max()), m.Apply(Pt{r.X, r.Y + r.H})}
	out := Rect{X: ps[0].X, Y: ps[0].Y}
	for _, p := range ps[1:] {
		out = out.Union(Rect{X: p.X, Y: p.Y})
	}
	return out
}
