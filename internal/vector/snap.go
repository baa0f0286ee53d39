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

// Snapping of a dragged annotation to the page and to its neighbours.
// UI-agnostic so the page canvas and its tests share it.

import "math"

// SnapOptions controls which guide candidates are considered and the threshold.
type SnapOptions struct {
	// Threshold is the maximum distance in points at which snapping occurs.
	Threshold float64
	Edges     bool
	Centers   bool
}

// Anchor is a static reference rect, such as the page or another object.
// A higher Weight wins ties.
type Anchor struct {
	Rect   Rect
	Weight float64
}

// Orientation of a guide line.
type Orientation string

const (
	Vertical   Orientation = "vertical"
	Horizontal Orientation = "horizontal"
)

// Guide is a line to draw while an alignment is active. Position is the x
// (vertical) or y (horizontal) coordinate; From and To span both rects.
type Guide struct {
	Orientation Orientation
	Kind        string // "edge" or "center"
	Position    float64
	From, To    Pt
}

type candidate struct {
	delta float64
	score float64
	guide Guide
	ok    bool
}

func (c *candidate) consider(delta, threshold, weight float64, g Guide) {
	dist := math.Abs(delta)
	if dist > threshold {
		return
	}
	score := dist / math.Max(1, weight)
	if !c.ok || score < c.score {
		*c = candidate{delta: delta, score: score, guide: g, ok: true}
	}
}

// Snap moves r onto the closest edge or centre line of the anchors within
// the threshold, independently per axis, and returns the guides to show.
func Snap(r Rect, anchors []Anchor, opts SnapOptions) (Rect, []Guide) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	var bx, by candidate
	for _, a := range anchors {
		ar := a.Rect
		if opts.Edges {
			for _, p := range [][2]float64{
				{r.X, ar.X}, {r.X + r.W, ar.X + ar.W}, {r.X, ar.X + ar.W}, {r.X + r.W, ar.X},
			} {
				bx.consider(p[0]-p[1], opts.Threshold, a.Weight, vguide(p[1], r, ar, "edge"))
			}
			for _, p := range [][2]float64{
				{r.Y, ar.Y}, {r.Y + r.H, ar.Y + ar.H}, {r.Y, ar.Y + ar.H}, {r.Y + r.H, ar.Y},
			} {
				by.consider(p[0]-p[1], opts.Threshold, a.Weight, hguide(p[1], r, ar, "edge"))
			}
		}
		if opts.Centers {
			cx := ar.X + ar.W/2
			cy := ar.Y + ar.H/2
			bx.consider(r.X+r.W/2-cx, opts.Threshold, a.Weight, vguide(cx, r, ar, "center"))
			by.consider(r.Y+r.H/2-cy, opts.Threshold, a.Weight, hguide(cy, r, ar, "center"))
		}
	}
	var guides []Guide
	if bx.ok {
		r.X = FloatRound(r.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if by.ok {
		r.Y = FloatRound(r.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return r, guides
}

func vguide(x float64, a, b Rect, kind string) Guide {
	x = FloatRound(x, 3)
	return Guide{
		Orientation: Vertical,
		Kind:        kind,
		Position:    x,
		From:        Pt{x, math.Min(a.Y, b.Y)},
		To:          Pt{x, math.Max(a.Y+a.H, b.Y+b.H)},
	}
}

func hguide(y float64, a, b Rect, kind string) Guide {
	y = FloatRound(y, 3)
	return Guide{
		Orientation: Horizontal,
		Kind:        kind,
		Position:    y,
		From:        Pt{math.Min(a.X, b.X), y},
		To:          Pt{math.Max(a.X+a.W, b.X+b.W), y},
	}
}
