/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package editor

import (
	"log/slog"

	"editpdfs/internal/domain"

	"github.com/google/uuid"
)

// Text edits commit a history snapshot on every upsert, unlike objects,
// which snapshot only at the end of a gesture.

func (s *Session) textEditIndex(id string) int {
	for i := range s.textEdits {
		if s.textEdits[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Session) upsertLocked(e domain.TextEdit) string {
	c := e.Clone()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if i := s.textEditIndex(c.ID); i >= 0 {
		s.textEdits[i] = c
	} else {
		s.textEdits = append(s.textEdits, c)
	}
	return c.ID
}

// UpsertTextEdit replaces the edit with the same id or appends it, then
// records history. An empty id is assigned. It returns the id.
func (s *Session) UpsertTextEdit(e domain.TextEdit) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.upsertLocked(e)
	s.snapshotLocked()
	s.log.Debug("text edit upserted", slog.String("id", id), slog.Int("page", e.PageNumber))
	return id
}

// UpsertTextEdits applies several upserts under one history snapshot.
func (s *Session) UpsertTextEdits(edits ...domain.TextEdit) []string {
	if len(edits) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(edits))
	for i, e := range edits {
		ids[i] = s.upsertLocked(e)
	}
	s.snapshotLocked()
	s.log.Debug("text edits upserted", slog.Int("count", len(ids)))
	return ids
}

// DeleteTextEdit removes an edit and records history. Unknown ids are ignored.
func (s *Session) DeleteTextEdit(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.textEditIndex(id)
	if i < 0 {
		return false
	}
	s.textEdits = append(s.textEdits[:i:i], s.textEdits[i+1:]...)
	s.snapshotLocked()
	return true
}

// UpdateTextEditPosition moves an edit while dragging, without history.
// The cover stays anchored at the original position.
func (s *Session) UpdateTextEditPosition(id string, x, y float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.textEditIndex(id)
	if i < 0 {
		return false
	}
	e := &s.textEdits[i]
	if e.OriginalX == nil {
		ox := e.X
		e.OriginalX = &ox
	}
	if e.OriginalY == nil {
		oy := e.Y
		e.OriginalY = &oy
	}
	e.X, e.Y = x, y
	return true
}

// TextEdit returns a copy of the edit with the given id.
func (s *Session) TextEdit(id string) (domain.TextEdit, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.textEditIndex(id); i >= 0 {
		return s.textEdits[i].Clone(), true
	}
	return domain.TextEdit{}, false
}

// TextEdits returns copies of all edits.
func (s *Session) TextEdits() []domain.TextEdit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TextEdit, len(s.textEdits))
	for i, e := range s.textEdits {
		out[i] = e.Clone()
	}
	return out
}

// TextEditsOnPage returns copies of the edits on page.
func (s *Session) TextEditsOnPage(page int) []domain.TextEdit {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.TextEdit
	for _, e := range s.textEdits {
		if e.PageNumber == page {
			out = append(out, e.Clone())
		}
	}
	return out
}
