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
	"fmt"
	"maps"
	"slices"

	"editpdfs/internal/domain"
	"editpdfs/internal/vector"
)

// State captures the session in its persisted form.
func (s *Session) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := domain.Snapshot{Objects: s.objects, TextEdits: s.textEdits}.Clone()
	st := domain.SessionState{
		Version:   domain.SessionStateVersion,
		FileName:  s.fileName,
		PageCount: s.pageCount,
		Zoom:      s.zoom,
		Objects:   snap.Objects,
		TextEdits: snap.TextEdits,
		Pages: domain.PageState{
			Order:   slices.Clone(s.order),
			Deleted: s.deletedLocked(),
		},
	}
	if len(st.Pages.Deleted) == 0 {
		st.Pages.Deleted = nil
	}
	if len(s.rotations) > 0 {
		st.Pages.Rotations = maps.Clone(s.rotations)
	}
	return st
}

// FromState rebuilds a session from its persisted form. History starts
// fresh with the restored content as its only entry.
func FromState(st domain.SessionState, cfg Config) (*Session, error) {
	if err := Validate(st); err != nil {
		return nil, err
	}
	if cfg.Zoom == 0 {
		cfg.Zoom = st.Zoom
	}
	s, err := New(st.FileName, st.PageCount, cfg)
	if err != nil {
		return nil, err
	}
	snap := domain.Snapshot{Objects: st.Objects, TextEdits: st.TextEdits}.Clone()
	s.objects = snap.Objects
	s.textEdits = snap.TextEdits
	s.history.Reset(snap)
	if len(st.Pages.Order) > 0 {
		s.order = slices.Clone(st.Pages.Order)
		s.currentPage = s.order[0]
	}
	for _, p := range st.Pages.Deleted {
		s.deleted[p] = true
	}
	if len(st.Pages.Order) == 0 && len(s.deleted) > 0 {
		s.order = slices.DeleteFunc(s.order, func(p int) bool { return s.deleted[p] })
		s.currentPage = s.order[0]
	}
	for p, r := range st.Pages.Rotations {
		if n := vector.NormalizeDegrees(r); n != 0 {
			s.rotations[p] = n
		}
	}
	return s, nil
}

// Validate checks the invariants a persisted state must satisfy.
func Validate(st domain.SessionState) error {
	if st.PageCount < 1 {
		return fmt.Errorf("%w: page count %d", ErrInvalidState, st.PageCount)
	}
	seen := map[int]bool{}
	for _, p := range st.Pages.Order {
		if p < 1 || p > st.PageCount || seen[p] {
			return fmt.Errorf("%w: bad page %d in order", ErrInvalidState, p)
		}
		seen[p] = true
	}
	visible := len(st.Pages.Order)
	for _, p := range st.Pages.Deleted {
		if p < 1 || p > st.PageCount || seen[p] {
			return fmt.Errorf("%w: bad deleted page %d", ErrInvalidState, p)
		}
		seen[p] = true
	}
	if visible == 0 && len(st.Pages.Deleted) >= st.PageCount {
		return fmt.Errorf("%w: every page is deleted", ErrInvalidState)
	}
	for p, r := range st.Pages.Rotations {
		if p < 1 || p > st.PageCount || r%90 != 0 {
			return fmt.Errorf("%w: bad rotation %d for page %d", ErrInvalidState, r, p)
		}
	}
	for _, o := range st.Objects {
		if !o.Type.Valid() {
			return fmt.Errorf("%w: object %s has unknown type %q", ErrInvalidState, o.ID, o.Type)
		}
	}
	return nil
}
