/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package findreplace searches the text of the current page and turns
// replacements into text edits. Matches come from two sources: runs of the
// page's text layer and text edits already placed on the page.
package findreplace

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"unicode/utf8"

	"editpdfs/internal/domain"
	applog "editpdfs/internal/log"
	"editpdfs/internal/textlayer"
	"editpdfs/internal/vector"
)

var (
	ErrEmptySearch = errors.New("search text is empty")
	ErrNoMatch     = errors.New("no current match")
	ErrStaleMatch  = errors.New("match refers to a text edit that no longer exists")
)

// coverThreshold is the share of a run match that must lie under an
// existing edit's cover for the match to count as already replaced.
const coverThreshold = 0.5

// State of the engine.
type State int

const (
	Idle State = iota
	Searching
	MatchesFound
	NoMatches
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Searching:
		return "searching"
	case MatchesFound:
		return "matches-found"
	case NoMatches:
		return "no-matches"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options control matching.
type Options struct {
	CaseSensitive bool
	WholeWord     bool
}

// Match is one occurrence. Offsets are rune offsets into SpanText and Box is
// in PDF space with a top-left origin.
type Match struct {
	Page       int
	RunID      string // set for text-layer matches
	EditID     string // set for matches inside an existing text edit
	SpanText   string
	MatchText  string
	Start, End int
	Box        vector.Rect
	FontSize   float64
	FontFamily string
}

func (m Match) key() string {
	if m.EditID != "" {
		return "edit:" + m.EditID
	}
	return "run:" + m.RunID
}

func (m Match) overlaps(o Match) bool {
	return m.key() == o.key() && m.Start < o.End && o.Start < m.End
}

// Editor is the part of the editing session the engine works against.
type Editor interface {
	CurrentPage() int
	GoToPage(page int) error
	TextEditsOnPage(page int) []domain.TextEdit
	TextEdit(id string) (domain.TextEdit, bool)
	UpsertTextEdit(e domain.TextEdit) string
	UpsertTextEdits(edits ...domain.TextEdit) []string
}

// Config tunes new text edits.
type Config struct {
	// Color of replacement text; black when empty.
	Color string
}

// Engine runs find and replace over one text layer at a time.
type Engine struct {
	mu      sync.Mutex
	ed      Editor
	layer   textlayer.Layer
	cfg     Config
	state   State
	query   string
	opts    Options
	matches []Match
	current int
	// hidden maps runs hidden by EditRun to the edit that replaced them.
	hidden map[runKey]string
	log    *slog.Logger
}

type runKey struct {
	page int
	run  string
}

// NewEngine binds an engine to a session and the layer of the shown page.
func NewEngine(ed Editor, layer textlayer.Layer, cfg Config) *Engine {
	if cfg.Color == "" {
		cfg.Color = domain.Black.Hex()
	}
	return &Engine{ed: ed, layer: layer, cfg: cfg, hidden: map[runKey]string{}, log: applog.WithComponent("findreplace")}
}

// SetLayer switches to the layer of another page and drops any results.
func (e *Engine) SetLayer(l textlayer.Layer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.layer = l
}

// SyncHidden shows runs whose replacing edit is gone, after an undo for
// example, and hides them again once the edit is back.
func (e *Engine) SyncHidden() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.syncHiddenLocked()
}

func (e *Engine) syncHiddenLocked() {
	page := e.layer.Page()
	for k, editID := range e.hidden {
		if k.page != page {
			continue
		}
		var err error
		if _, ok := e.ed.TextEdit(editID); ok {
			err = e.layer.Hide(k.run)
		} else {
			err = e.layer.Show(k.run)
		}
		if err != nil {
			e.log.Warn("cannot sync hidden run", slog.String("run", k.run), slog.Any("err", err))
		}
	}
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Matches returns the pending matches.
func (e *Engine) Matches() []Match {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.matches)
}

// Current returns the active match and its index.
func (e *Engine) Current() (Match, int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != MatchesFound {
		return Match{}, -1, false
	}
	return e.matches[e.current], e.current, true
}

// Find searches the layer's visible runs and the page's text edits.
func (e *Engine) Find(query string, opts Options) ([]Match, error) {
	if query == "" {
		return nil, ErrEmptySearch
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layer.ClearHighlights()
	e.syncHiddenLocked()
	e.state = Searching
	e.query, e.opts = query, opts
	e.matches = nil
	e.current = 0

	page := e.layer.Page()
	vp := vector.Viewport{Zoom: e.layer.Zoom()}
	edits := e.ed.TextEditsOnPage(page)

	for _, run := range e.layer.Runs() {
		if run.Hidden {
			continue
		}
		for _, sp := range findAll(run.Text, query, opts) {
			box, err := e.layer.Bounds(run.ID, sp.start, sp.end)
			if err != nil {
				e.log.Warn("cannot measure match", slog.String("run", run.ID), slog.Any("err", err))
				continue
			}
			pdfBox := vp.RectToPDF(box)
			if coveredByEdit(pdfBox, edits) {
				continue
			}
			e.matches = append(e.matches, Match{
				Page:       page,
				RunID:      run.ID,
				SpanText:   run.Text,
				MatchText:  string([]rune(run.Text)[sp.start:sp.end]),
				Start:      sp.start,
				End:        sp.end,
				Box:        pdfBox,
				FontSize:   vp.Len(run.FontSize),
				FontFamily: run.FontFamily,
			})
		}
	}
	for _, ed := range edits {
		n := utf8.RuneCountInString(ed.NewText)
		if n == 0 {
			continue
		}
		charW := ed.Width / float64(n)
		for _, sp := range findAll(ed.NewText, query, opts) {
			e.matches = append(e.matches, Match{
				Page:       page,
				EditID:     ed.ID,
				SpanText:   ed.NewText,
				MatchText:  string([]rune(ed.NewText)[sp.start:sp.end]),
				Start:      sp.start,
				End:        sp.end,
				Box:        vector.R(ed.X+float64(sp.start)*charW, ed.Y, float64(sp.end-sp.start)*charW, ed.Height),
				FontSize:   ed.FontSize,
				FontFamily: ed.FontFamily,
			})
		}
	}

	if len(e.matches) == 0 {
		e.state = NoMatches
	} else {
		e.state = MatchesFound
		e.highlightLocked()
	}
	e.log.Debug("find", slog.Int("page", page), slog.Int("matches", len(e.matches)))
	return slices.Clone(e.matches), nil
}

func coveredByEdit(box vector.Rect, edits []domain.TextEdit) bool {
	for _, ed := range edits {
		x, y := ed.CoverOrigin()
		if box.CoveredFraction(vector.R(x, y, ed.Width, ed.Height)) >= coverThreshold {
			return true
		}
	}
	return false
}

// highlightLocked rewraps every run match, marking the current one active.
func (e *Engine) highlightLocked() {
	e.layer.ClearHighlights()
	for i, m := range e.matches {
		if m.RunID == "" {
			continue
		}
		if err := e.layer.Highlight(m.RunID, m.Start, m.End, i == e.current); err != nil {
			e.log.Warn("cannot highlight match", slog.String("run", m.RunID), slog.Any("err", err))
		}
	}
}

// Next moves to the following match, wrapping around.
func (e *Engine) Next() (Match, bool) { return e.step(1) }

// Prev moves to the preceding match, wrapping around.
func (e *Engine) Prev() (Match, bool) { return e.step(-1) }

func (e *Engine) step(d int) (Match, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != MatchesFound {
		return Match{}, false
	}
	n := len(e.matches)
	e.current = ((e.current+d)%n + n) % n
	m := e.matches[e.current]
	e.highlightLocked()
	if m.Page != e.ed.CurrentPage() {
		if err := e.ed.GoToPage(m.Page); err != nil {
			e.log.Warn("cannot switch page", slog.Int("page", m.Page), slog.Any("err", err))
		}
	}
	return m, true
}

// Clear drops results and highlighting.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
}

func (e *Engine) resetLocked() {
	if e.layer != nil {
		e.layer.ClearHighlights()
	}
	e.state = Idle
	e.query = ""
	e.matches = nil
	e.current = 0
}
