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
	"log/slog"
	"slices"

	"editpdfs/internal/vector"
)

// Page numbers are the 1-based numbers of the original document. The
// display order, deletions and rotations are tracked outside history.

func (s *Session) visibleIndex(page int) int { return slices.Index(s.order, page) }

// DeletePage hides a page. Objects on it are kept so RestorePage can bring
// them back; export skips them.
func (s *Session) DeletePage(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.visibleIndex(page)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownPage, page)
	}
	if len(s.order) == 1 {
		return ErrLastPage
	}
	s.order = slices.Delete(s.order, i, i+1)
	s.deleted[page] = true
	if s.currentPage == page {
		if i >= len(s.order) {
			i = len(s.order) - 1
		}
		s.currentPage = s.order[i]
	}
	s.log.Info("page deleted", slog.Int("page", page), slog.Int("visible", len(s.order)))
	return nil
}

// RestorePage brings back a deleted page before the first visible page
// with a higher original number.
func (s *Session) RestorePage(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.deleted[page] {
		return fmt.Errorf("%w: %d is not deleted", ErrUnknownPage, page)
	}
	at := len(s.order)
	for i, p := range s.order {
		if p > page {
			at = i
			break
		}
	}
	s.order = slices.Insert(s.order, at, page)
	delete(s.deleted, page)
	return nil
}

// MovePage moves a visible page to display index to (0-based, clamped).
func (s *Session) MovePage(page, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.visibleIndex(page)
	if i < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownPage, page)
	}
	s.order = slices.Delete(s.order, i, i+1)
	to = max(0, min(to, len(s.order)))
	s.order = slices.Insert(s.order, to, page)
	return nil
}

// RotatePage adds deg to the page rotation and returns the normalized result.
func (s *Session) RotatePage(page, deg int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if page < 1 || page > s.pageCount {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPage, page)
	}
	r := vector.NormalizeDegrees(s.rotations[page] + deg)
	if r == 0 {
		delete(s.rotations, page)
	} else {
		s.rotations[page] = r
	}
	return r, nil
}

// Rotation returns the rotation of page in degrees.
func (s *Session) Rotation(page int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rotations[page]
}

// GoToPage makes a visible page current.
func (s *Session) GoToPage(page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.visibleIndex(page) < 0 {
		return fmt.Errorf("%w: %d", ErrUnknownPage, page)
	}
	s.currentPage = page
	return nil
}

// CurrentPage returns the page shown in the viewer.
func (s *Session) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage
}

// PageOrder returns the visible pages in display order.
func (s *Session) PageOrder() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// DeletedPages returns the deleted pages in ascending order.
func (s *Session) DeletedPages() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deletedLocked()
}

func (s *Session) deletedLocked() []int {
	out := make([]int, 0, len(s.deleted))
	for p := range s.deleted {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// IsDeleted reports whether page was deleted.
func (s *Session) IsDeleted(page int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deleted[page]
}

// Reordered reports whether any page was deleted or moved.
func (s *Session) Reordered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.deleted) > 0 || len(s.order) != s.pageCount {
		return true
	}
	for i, p := range s.order {
		if p != i+1 {
			return true
		}
	}
	return false
}

// OrphanedObjects returns the ids of objects whose page is deleted or does
// not exist.
func (s *Session) OrphanedObjects() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, o := range s.objects {
		if s.deleted[o.PageNumber] || o.PageNumber < 1 || o.PageNumber > s.pageCount {
			out = append(out, o.ID)
		}
	}
	return out
}
