/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package findreplace

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"editpdfs/internal/domain"
	"editpdfs/internal/textlayer"
	"editpdfs/internal/vector"
)

// editForRun builds a new text edit covering a run match.
func (e *Engine) editForRun(m Match, newText string) domain.TextEdit {
	ox, oy := m.Box.X, m.Box.Y
	return domain.TextEdit{
		PageNumber:   m.Page,
		OriginalText: m.MatchText,
		NewText:      newText,
		X:            m.Box.X,
		Y:            m.Box.Y,
		Width:        m.Box.W,
		Height:       m.Box.H,
		OriginalX:    &ox,
		OriginalY:    &oy,
		FontSize:     m.FontSize,
		FontFamily:   m.FontFamily,
		Color:        e.cfg.Color,
	}
}

func splice(text string, start, end int, repl string) string {
	r := []rune(text)
	return string(r[:start]) + repl + string(r[end:])
}

// Replace turns the current match into a text edit. Pending matches later
// in the same run or edit are dropped because their offsets no longer hold.
func (e *Engine) Replace(newText string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != MatchesFound {
		return "", ErrNoMatch
	}
	m := e.matches[e.current]
	var id string
	if m.EditID == "" {
		id = e.ed.UpsertTextEdit(e.editForRun(m, newText))
	} else {
		ed, ok := e.ed.TextEdit(m.EditID)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrStaleMatch, m.EditID)
		}
		ed.NewText = splice(ed.NewText, m.Start, m.End, newText)
		id = e.ed.UpsertTextEdit(ed)
	}

	at := e.current
	var kept []Match
	for i, o := range e.matches {
		if i == at || (o.key() == m.key() && o.Start >= m.Start) {
			continue
		}
		kept = append(kept, o)
	}
	// matches before the consumed one keep their positions
	before := 0
	for _, o := range e.matches[:at] {
		if !(o.key() == m.key() && o.Start >= m.Start) {
			before++
		}
	}
	e.matches = kept
	if len(kept) == 0 {
		e.state = NoMatches
		e.current = 0
		e.layer.ClearHighlights()
	} else {
		e.current = before % len(kept)
		e.highlightLocked()
	}
	e.log.Debug("replace", slog.String("edit", id), slog.Int("remaining", len(kept)))
	return id, nil
}

// ReplaceAll replaces every pending match under a single history entry and
// returns how many occurrences were replaced.
func (e *Engine) ReplaceAll(newText string) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != MatchesFound {
		return 0, ErrNoMatch
	}
	groups := map[string][]Match{}
	var keys []string
	for _, m := range e.matches {
		k := m.key()
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], m)
	}

	var edits []domain.TextEdit
	count := 0
	for _, k := range keys {
		ms := groups[k]
		slices.SortFunc(ms, func(a, b Match) int { return b.Start - a.Start })
		var done []Match
		var target *domain.TextEdit
		for _, m := range ms {
			if slices.ContainsFunc(done, m.overlaps) {
				continue
			}
			done = append(done, m)
			if m.EditID == "" {
				edits = append(edits, e.editForRun(m, newText))
				count++
				continue
			}
			if target == nil {
				ed, ok := e.ed.TextEdit(m.EditID)
				if !ok {
					e.log.Warn("skipping stale edit match", slog.String("edit", m.EditID))
					break
				}
				target = &ed
			}
			// descending order keeps earlier offsets valid
			target.NewText = splice(target.NewText, m.Start, m.End, newText)
			count++
		}
		if target != nil {
			edits = append(edits, *target)
		}
	}
	e.ed.UpsertTextEdits(edits...)
	e.layer.ClearHighlights()
	e.matches = nil
	e.current = 0
	e.state = NoMatches
	e.log.Info("replace all", slog.String("query", e.query), slog.Int("replaced", count), slog.Int("edits", len(edits)))
	return count, nil
}

// EditRun replaces a whole run of the layer with newText and hides the run
// so only the edit is shown. The run stays hidden only while the edit exists.
func (e *Engine) EditRun(runID, newText string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var run *textlayer.Run
	for _, r := range e.layer.Runs() {
		if r.ID == runID {
			rr := r
			run = &rr
			break
		}
	}
	if run == nil {
		return "", fmt.Errorf("edit run %s: %w", runID, textlayer.ErrUnknownRun)
	}
	vp := vector.Viewport{Zoom: e.layer.Zoom()}
	box := vp.RectToPDF(run.Box)
	ox, oy := box.X, box.Y
	id := e.ed.UpsertTextEdit(domain.TextEdit{
		PageNumber:   e.layer.Page(),
		OriginalText: strings.TrimSpace(run.Text),
		NewText:      newText,
		X:            box.X,
		Y:            box.Y,
		Width:        box.W,
		Height:       box.H,
		OriginalX:    &ox,
		OriginalY:    &oy,
		FontSize:     vp.Len(run.FontSize),
		FontFamily:   run.FontFamily,
		Color:        e.cfg.Color,
	})
	if err := e.layer.Hide(runID); err != nil {
		return id, err
	}
	e.hidden[runKey{page: e.layer.Page(), run: runID}] = id
	return id, nil
}
