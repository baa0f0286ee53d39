/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package editor holds the live editing session: annotation objects, text
// edits over existing page text, history, page ordering and the viewport.
// All methods are safe for concurrent use.
package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"editpdfs/internal/domain"
	applog "editpdfs/internal/log"
	"editpdfs/internal/undo"
	"editpdfs/internal/vector"

	"github.com/google/uuid"
)

const (
	MinZoom     = 10.0
	MaxZoom     = 500.0
	DefaultZoom = 100.0
)

var (
	ErrUnknownPage  = errors.New("unknown page")
	ErrLastPage     = errors.New("cannot delete the last remaining page")
	ErrInvalidState = errors.New("invalid session state")
)

// Config tunes a new session.
type Config struct {
	HistoryDepth int
	Zoom         float64
	// ID reuses a stored session id; a new one is generated when empty.
	ID string
}

// Session is one document being edited.
type Session struct {
	mu        sync.RWMutex
	id        string
	fileName  string
	pageCount int

	objects   []domain.EditorObject
	textEdits []domain.TextEdit
	selected  string
	history   *undo.Manager

	order       []int
	deleted     map[int]bool
	rotations   map[int]int
	currentPage int
	zoom        float64

	log *slog.Logger
}

// New starts a session over a document with pageCount pages.
func New(fileName string, pageCount int, cfg Config) (*Session, error) {
	if pageCount < 1 {
		return nil, fmt.Errorf("%w: page count %d", ErrInvalidState, pageCount)
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	s := &Session{
		id:          id,
		fileName:    fileName,
		pageCount:   pageCount,
		history:     undo.NewManager(undo.Config{MaxDepth: cfg.HistoryDepth}),
		order:       make([]int, pageCount),
		deleted:     map[int]bool{},
		rotations:   map[int]int{},
		currentPage: 1,
		zoom:        clampZoom(cfg.Zoom),
		log:         applog.WithComponent("editor"),
	}
	for i := range s.order {
		s.order[i] = i + 1
	}
	return s, nil
}

// ID identifies the session for storage and log correlation.
func (s *Session) ID() string { return s.id }

// FileName returns the name of the document being edited.
func (s *Session) FileName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fileName
}

// PageCount returns the number of pages of the original document.
func (s *Session) PageCount() int { return s.pageCount }

func (s *Session) snapshotLocked() {
	s.history.Push(domain.Snapshot{Objects: s.objects, TextEdits: s.textEdits})
}

func (s *Session) objectIndex(id string) int {
	for i := range s.objects {
		if s.objects[i].ID == id {
			return i
		}
	}
	return -1
}

// AddObject stores obj under a fresh id, selects it and records history.
// A zero PageNumber places the object on the current page.
func (s *Session) AddObject(obj domain.EditorObject) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := obj.Clone()
	o.ID = uuid.NewString()
	if o.PageNumber == 0 {
		o.PageNumber = s.currentPage
	}
	s.objects = append(s.objects, o)
	s.selected = o.ID
	s.snapshotLocked()
	s.log.Debug("object added", slog.String("id", o.ID), slog.String("type", string(o.Type)), slog.Int("page", o.PageNumber))
	return o.ID
}

// UpdateObject mutates an object in place without recording history.
// It reports false for an unknown id.
func (s *Session) UpdateObject(id string, mutate func(*domain.EditorObject)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.objectIndex(id)
	if i < 0 {
		return false
	}
	mutate(&s.objects[i])
	s.objects[i].ID = id
	return true
}

// MoveObject shifts an object by a screen-space delta.
func (s *Session) MoveObject(id string, screenDX, screenDY float64) bool {
	vp := s.Viewport()
	return s.UpdateObject(id, func(o *domain.EditorObject) {
		dx, dy := vp.Len(screenDX), vp.Len(screenDY)
		o.X += dx
		o.Y += dy
		if o.HasEndpoint() {
			o.EndX += dx
			o.EndY += dy
		}
		for i := range o.Points {
			o.Points[i].X += dx
			o.Points[i].Y += dy
		}
	})
}

// ResizeObject grows an object by a screen-space delta. Negative results
// are kept as they are.
func (s *Session) ResizeObject(id string, screenDW, screenDH float64) bool {
	vp := s.Viewport()
	return s.UpdateObject(id, func(o *domain.EditorObject) {
		o.Width += vp.Len(screenDW)
		o.Height += vp.Len(screenDH)
	})
}

// CommitObjectChange records the current state, ending a drag or resize.
func (s *Session) CommitObjectChange() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshotLocked()
}

// DeleteObject removes an object and records history. Unknown ids are ignored.
func (s *Session) DeleteObject(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.objectIndex(id)
	if i < 0 {
		return false
	}
	s.objects = append(s.objects[:i:i], s.objects[i+1:]...)
	if s.selected == id {
		s.selected = ""
	}
	s.snapshotLocked()
	return true
}

// Select marks an object as selected; an empty or unknown id clears the selection.
func (s *Session) Select(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objectIndex(id) < 0 {
		s.selected = ""
		return false
	}
	s.selected = id
	return true
}

// Selected returns the selected object, if any.
func (s *Session) Selected() (domain.EditorObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.objectIndex(s.selected); i >= 0 {
		return s.objects[i].Clone(), true
	}
	return domain.EditorObject{}, false
}

// Object returns a copy of the object with the given id.
func (s *Session) Object(id string) (domain.EditorObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.objectIndex(id); i >= 0 {
		return s.objects[i].Clone(), true
	}
	return domain.EditorObject{}, false
}

// Objects returns copies of all objects in insertion order.
func (s *Session) Objects() []domain.EditorObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.EditorObject, len(s.objects))
	for i, o := range s.objects {
		out[i] = o.Clone()
	}
	return out
}

// ObjectsOnPage returns copies of the objects anchored to page.
func (s *Session) ObjectsOnPage(page int) []domain.EditorObject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.EditorObject
	for _, o := range s.objects {
		if o.PageNumber == page {
			out = append(out, o.Clone())
		}
	}
	return out
}

// Undo restores the previous snapshot and clears the selection.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.history.Undo()
	if !ok {
		return false
	}
	s.restoreLocked(snap)
	return true
}

// Redo restores the next snapshot and clears the selection.
func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.history.Redo()
	if !ok {
		return false
	}
	s.restoreLocked(snap)
	return true
}

func (s *Session) restoreLocked(snap domain.Snapshot) {
	s.objects = snap.Objects
	s.textEdits = snap.TextEdits
	s.selected = ""
}

func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

func clampZoom(z float64) float64 {
	switch {
	case z == 0:
		return DefaultZoom
	case z < MinZoom:
		return MinZoom
	case z > MaxZoom:
		return MaxZoom
	}
	return z
}

// SetZoom sets the zoom percentage clamped to [MinZoom, MaxZoom] and returns it.
func (s *Session) SetZoom(z float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z <= 0 {
		z = MinZoom
	}
	s.zoom = clampZoom(z)
	return s.zoom
}

// Zoom returns the zoom percentage.
func (s *Session) Zoom() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.zoom
}

// Viewport returns the screen/PDF transform for the current zoom.
func (s *Session) Viewport() vector.Viewport {
	return vector.Viewport{Zoom: s.Zoom()}
}
