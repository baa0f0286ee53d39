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

import "testing"

func hasGuide(gs []Guide, o Orientation, pos float64) bool {
	for _, g := range gs {
		if g.Orientation == o && g.Position == pos {
			return true
		}
	}
	return false
}

func TestSnap_PageEdges(t *testing.T) {
	page := R(0, 0, 612, 792)
	moving := R(3, 4, 80, 40)
	snapped, guides := Snap(moving, []Anchor{{Rect: page, Weight: 1}}, SnapOptions{Threshold: 6, Edges: true})
	if snapped.X != 0 || snapped.Y != 0 {
		t.Fatalf("expected snap to 0,0, got %v,%v", snapped.X, snapped.Y)
	}
	if snapped.W != 80 || snapped.H != 40 {
		t.Fatalf("snapping must not resize: %+v", snapped)
	}
	if !hasGuide(guides, Vertical, 0) || !hasGuide(guides, Horizontal, 0) {
		t.Fatalf("expected guides at x=0 and y=0, got %+v", guides)
	}
}

func TestSnap_Centers(t *testing.T) {
	page := R(0, 0, 200, 100)
	moving := R(200/2-50-2, 100/2-30-3, 100, 60)
	snapped, guides := Snap(moving, []Anchor{{Rect: page, Weight: 1}}, SnapOptions{Threshold: 5, Centers: true})
	if snapped.X != 50 || snapped.Y != 20 {
		t.Fatalf("expected centre snap to 50,20, got %v,%v", snapped.X, snapped.Y)
	}
	for _, g := range guides {
		if g.Kind != "center" {
			t.Fatalf("unexpected guide kind %q", g.Kind)
		}
	}
}

func TestSnap_AbutsNeighbour(t *testing.T) {
	other := R(100, 100, 50, 50)
	moving := R(153, 300, 20, 20) // left edge near other's right edge
	snapped, guides := Snap(moving, []Anchor{{Rect: other, Weight: 1}}, SnapOptions{Threshold: 6, Edges: true})
	if snapped.X != 150 {
		t.Fatalf("expected abutting snap to x=150, got %v", snapped.X)
	}
	if snapped.Y != 300 || len(guides) != 1 {
		t.Fatalf("y is out of range and must not snap: %+v %+v", snapped, guides)
	}
	g := guides[0]
	if g.From.Y != 100 || g.To.Y != 320 {
		t.Fatalf("guide should span both rects: %+v", g)
	}
}

func TestSnap_OutsideThresholdAndWeight(t *testing.T) {
	moving := R(20, 20, 10, 10)
	if snapped, guides := Snap(moving, []Anchor{{Rect: R(0, 0, 5, 5)}}, SnapOptions{Threshold: 4, Edges: true}); snapped != moving || guides != nil {
		t.Fatalf("nothing within threshold, got %+v %+v", snapped, guides)
	}
	// two anchors at equal distance on opposite sides; the heavier one wins
	light := Anchor{Rect: R(18, 100, 10, 10), Weight: 1}
	heavy := Anchor{Rect: R(22, 200, 10, 10), Weight: 3}
	snapped, _ := Snap(moving, []Anchor{light, heavy}, SnapOptions{Threshold: 4, Edges: true})
	if snapped.X != 22 {
		t.Fatalf("heavier anchor should win, got x=%v", snapped.X)
	}
}
