/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayer

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"editpdfs/internal/textlayout"
	"editpdfs/internal/vector"
)

func near(a, b vector.Rect) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.W-b.W) < eps && math.Abs(a.H-b.H) < eps
}

func catLayer(zoom float64) *StaticLayer {
	return NewStatic(1, zoom, []Run{
		{ID: "r0", Text: "the cat sat", Box: vector.R(10, 20, 77, 12), FontSize: 12},
		{ID: "r1", Text: "on the mat", Box: vector.R(10, 40, 70, 12), FontSize: 12},
	}, textlayout.BasicProvider{})
}

func TestBoundsSubRange(t *testing.T) {
	l := catLayer(100)
	got, err := l.Bounds("r0", 4, 7)
	if err != nil {
		t.Fatalf("Bounds: %v", err)
	}
	if !near(got, vector.R(38, 20, 21, 12)) {
		t.Fatalf("Bounds = %+v", got)
	}
	l.SetZoom(200)
	got, _ = l.Bounds("r0", 4, 7)
	if !near(got, vector.R(76, 40, 42, 24)) {
		t.Fatalf("Bounds at 200%% = %+v", got)
	}
	if _, err := l.Bounds("r0", 5, 50); !errors.Is(err, ErrRange) {
		t.Fatalf("expected ErrRange, got %v", err)
	}
	if _, err := l.Bounds("nope", 0, 1); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("expected ErrUnknownRun, got %v", err)
	}
}

func TestRunsAreScaled(t *testing.T) {
	l := catLayer(50)
	r := l.Runs()[0]
	if !near(r.Box, vector.R(5, 10, 38.5, 6)) || r.FontSize != 6 {
		t.Fatalf("scaled run = %+v", r)
	}
	if l.PDFRuns()[0].FontSize != 12 {
		t.Fatalf("stored geometry must stay in PDF space")
	}
}

func TestHighlightSegmentsAndClear(t *testing.T) {
	l := catLayer(100)
	_ = l.Highlight("r0", 5, 7, false)
	_ = l.Highlight("r0", 9, 11, true)
	_ = l.Highlight("r0", 5, 7, true)
	segs, err := l.Segments("r0")
	if err != nil {
		t.Fatalf("Segments: %v", err)
	}
	want := []Segment{
		{Text: "the c"},
		{Text: "at", Highlighted: true, Active: true},
		{Text: " s"},
		{Text: "at", Highlighted: true, Active: true},
	}
	if !reflect.DeepEqual(segs, want) {
		t.Fatalf("segments = %+v", segs)
	}
	if len(l.Highlights()) != 2 {
		t.Fatalf("re-highlighting a range must not duplicate it")
	}
	l.ClearHighlights()
	segs, _ = l.Segments("r0")
	if len(segs) != 1 || segs[0].Text != "the cat sat" {
		t.Fatalf("clear should unwrap everything: %+v", segs)
	}
}

func TestHide(t *testing.T) {
	l := catLayer(100)
	if err := l.Hide("r1"); err != nil {
		t.Fatalf("Hide: %v", err)
	}
	if !l.Runs()[1].Hidden {
		t.Fatalf("run should be hidden")
	}
	if err := l.Hide("zz"); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("expected ErrUnknownRun, got %v", err)
	}
	if err := l.Show("r1"); err != nil || l.Runs()[1].Hidden {
		t.Fatalf("Show should reveal the run again: %v", err)
	}
	if err := l.Show("zz"); !errors.Is(err, ErrUnknownRun) {
		t.Fatalf("expected ErrUnknownRun, got %v", err)
	}
}

const sampleLayer = `<!doctype html>
<html><head><style>.x{left:0}</style></head><body>
<div class="textLayer" data-page-number="3">
  <span id="a" style="left: 20px; top: 40px; font-size: 24px; font-family: 'Times New Roman', serif;" data-width="154">the cat sat</span>
  <span style="left: 20px; top: 80px; font-size: 24px; display: none">gone</span>
  <span style="left:50%; top:calc(var(--scale-factor)*100.00px); font-size:calc(var(--scale-factor)*10.00px)">scaled</span>
  <span style="left: 1px; top: 1px">   </span>
</div>
</body></html>`

func TestParseHTML(t *testing.T) {
	l, err := ParseHTML(strings.NewReader(sampleLayer), ParseOptions{Zoom: 200, PageWidth: 600, PageHeight: 800, Provider: textlayout.BasicProvider{}})
	if err != nil {
		t.Fatalf("ParseHTML: %v", err)
	}
	if l.Page() != 3 {
		t.Fatalf("page = %d", l.Page())
	}
	runs := l.PDFRuns()
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d: %+v", len(runs), runs)
	}
	a := runs[0]
	if a.ID != "a" || a.FontFamily != "Times New Roman" || a.FontSize != 12 || !near(a.Box, vector.R(10, 20, 77, 12)) {
		t.Fatalf("run a = %+v", a)
	}
	if !runs[1].Hidden || runs[1].Text != "gone" {
		t.Fatalf("display:none should mark the run hidden: %+v", runs[1])
	}
	c := runs[2]
	if c.Box.X != 300 || c.Box.Y != 100 || c.FontSize != 10 || c.Box.W != 42 {
		t.Fatalf("run c = %+v", c)
	}
}
