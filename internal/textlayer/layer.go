/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package textlayer models the selectable text drawn over a rendered page:
// positioned runs of text that can be measured, highlighted and hidden.
package textlayer

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"editpdfs/internal/textlayout"
	"editpdfs/internal/vector"
)

var (
	ErrUnknownRun = errors.New("unknown text run")
	ErrRange      = errors.New("range outside run text")
)

// Run is one positioned piece of page text. Offsets into Text are rune offsets.
type Run struct {
	ID         string
	Text       string
	Box        vector.Rect // top-left origin
	FontSize   float64
	FontFamily string
	Hidden     bool
}

// Layer is the text layer of the page currently shown. Geometry returned by
// Runs and Bounds is in screen space at the layer's zoom.
type Layer interface {
	Page() int
	Zoom() float64
	Runs() []Run
	Bounds(runID string, start, end int) (vector.Rect, error)
	Highlight(runID string, start, end int, active bool) error
	ClearHighlights()
	Hide(runID string) error
	Show(runID string) error
}

// Highlight marks a range of a run.
type Highlight struct {
	RunID      string
	Start, End int
	Active     bool
}

// Segment is a piece of run text after highlight wrapping.
type Segment struct {
	Text        string
	Highlighted bool
	Active      bool
}

// StaticLayer is an in-memory Layer. Runs are stored in PDF space and scaled
// on the way out.
type StaticLayer struct {
	mu         sync.Mutex
	page       int
	zoom       float64
	runs       []Run
	provider   textlayout.Provider
	highlights []Highlight
}

// NewStatic builds a layer from runs given in PDF space. A nil provider
// measures with the default Go fonts.
func NewStatic(page int, zoom float64, runs []Run, provider textlayout.Provider) *StaticLayer {
	if provider == nil {
		provider = textlayout.DefaultProvider()
	}
	if zoom <= 0 {
		zoom = 100
	}
	return &StaticLayer{page: page, zoom: zoom, runs: slices.Clone(runs), provider: provider}
}

func (l *StaticLayer) Page() int { return l.page }

func (l *StaticLayer) Zoom() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zoom
}

// SetZoom changes the display zoom; stored geometry is unaffected.
func (l *StaticLayer) SetZoom(z float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if z > 0 {
		l.zoom = z
	}
}

func (l *StaticLayer) viewport() vector.Viewport { return vector.Viewport{Zoom: l.zoom} }

// Runs returns the runs scaled to screen space.
func (l *StaticLayer) Runs() []Run {
	l.mu.Lock()
	defer l.mu.Unlock()
	vp := l.viewport()
	out := make([]Run, len(l.runs))
	for i, r := range l.runs {
		r.Box = vp.RectToScreen(r.Box)
		r.FontSize = vp.ScreenLen(r.FontSize)
		out[i] = r
	}
	return out
}

// PDFRuns returns the runs in PDF space.
func (l *StaticLayer) PDFRuns() []Run {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.runs)
}

func (l *StaticLayer) find(id string) (*Run, error) {
	for i := range l.runs {
		if l.runs[i].ID == id {
			return &l.runs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownRun, id)
}

func checkRange(r *Run, start, end int) error {
	if n := len([]rune(r.Text)); start < 0 || end > n || start >= end {
		return fmt.Errorf("%w: [%d,%d) of %d runes in %s", ErrRange, start, end, n, r.ID)
	}
	return nil
}

// Bounds measures the rune range [start,end) of a run in screen space.
func (l *StaticLayer) Bounds(runID string, start, end int) (vector.Rect, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.find(runID)
	if err != nil {
		return vector.Rect{}, err
	}
	if err := checkRange(r, start, end); err != nil {
		return vector.Rect{}, err
	}
	spec := textlayout.FontSpec{Family: textlayout.NormalizeFamily(r.FontFamily), SizePt: r.FontSize}
	x, w := textlayout.SubRange(l.provider, spec, r.Text, start, end, r.Box.W)
	return l.viewport().RectToScreen(vector.R(r.Box.X+x, r.Box.Y, w, r.Box.H)), nil
}

// Highlight marks a range. Marking the same range again only updates Active.
func (l *StaticLayer) Highlight(runID string, start, end int, active bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.find(runID)
	if err != nil {
		return err
	}
	if err := checkRange(r, start, end); err != nil {
		return err
	}
	for i, h := range l.highlights {
		if h.RunID == runID && h.Start == start && h.End == end {
			l.highlights[i].Active = active
			return nil
		}
	}
	l.highlights = append(l.highlights, Highlight{RunID: runID, Start: start, End: end, Active: active})
	return nil
}

// ClearHighlights unwraps every highlight.
func (l *StaticLayer) ClearHighlights() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.highlights = nil
}

// Highlights returns the current highlights.
func (l *StaticLayer) Highlights() []Highlight {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.highlights)
}

// Hide stops a run from being drawn or searched.
func (l *StaticLayer) Hide(runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.find(runID)
	if err != nil {
		return err
	}
	r.Hidden = true
	return nil
}

// Show makes a run hidden by Hide visible again.
func (l *StaticLayer) Show(runID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.find(runID)
	if err != nil {
		return err
	}
	r.Hidden = false
	return nil
}

// Segments splits a run's text at its highlight boundaries, the way the
// viewer wraps matches in marker elements. Overlapping highlights are
// clipped to the earlier one.
func (l *StaticLayer) Segments(runID string) ([]Segment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, err := l.find(runID)
	if err != nil {
		return nil, err
	}
	var hs []Highlight
	for _, h := range l.highlights {
		if h.RunID == runID {
			hs = append(hs, h)
		}
	}
	slices.SortFunc(hs, func(a, b Highlight) int { return a.Start - b.Start })
	text := []rune(r.Text)
	var out []Segment
	pos := 0
	for _, h := range hs {
		if h.Start < pos {
			continue
		}
		if h.Start > pos {
			out = append(out, Segment{Text: string(text[pos:h.Start])})
		}
		out = append(out, Segment{Text: string(text[h.Start:h.End]), Highlighted: true, Active: h.Active})
		pos = h.End
	}
	if pos < len(text) {
		out = append(out, Segment{Text: string(text[pos:])})
	}
	return out, nil
}
