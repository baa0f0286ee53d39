/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"sync"

	"editpdfs/internal/domain"
)

// DefaultMaxDepth is the number of snapshots retained when Config.MaxDepth is unset.
const DefaultMaxDepth = 50

// Config controls the depth cap.
type Config struct {
	// MaxDepth limits the number of retained snapshots, the initial one included.
	// The oldest entries are dropped first.
	MaxDepth int
}

// Manager keeps a linear timeline of full editor snapshots with a cursor.
// Pushing after an undo discards the redo branch. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	mu      sync.Mutex
	entries []domain.Snapshot
	cursor  int
}

// NewManager returns a manager holding a single empty snapshot.
func NewManager(cfg Config) *Manager {
	if cfg.MaxDepth <= 1 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return &Manager{cfg: cfg, entries: []domain.Snapshot{{Objects: []domain.EditorObject{}, TextEdits: []domain.TextEdit{}}}}
}

// Push records s as the newest entry. The manager keeps its own deep copy.
func (m *Manager) Push(s domain.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries[:m.cursor+1], s.Clone())
	m.cursor = len(m.entries) - 1
	if len(m.entries) > m.cfg.MaxDepth {
		drop := len(m.entries) - m.cfg.MaxDepth
		m.entries = append([]domain.Snapshot(nil), m.entries[drop:]...)
		// clamped, not rebased
		if m.cursor > len(m.entries)-1 {
			m.cursor = len(m.entries) - 1
		}
	}
}

// Undo moves the cursor back one entry and returns a copy of that snapshot.
func (m *Manager) Undo() (domain.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor <= 0 {
		return domain.Snapshot{}, false
	}
	m.cursor--
	return m.entries[m.cursor].Clone(), true
}

// Redo moves the cursor forward one entry and returns a copy of that snapshot.
func (m *Manager) Redo() (domain.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor >= len(m.entries)-1 {
		return domain.Snapshot{}, false
	}
	m.cursor++
	return m.entries[m.cursor].Clone(), true
}

// Current returns a copy of the snapshot under the cursor.
func (m *Manager) Current() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.cursor].Clone()
}

func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor > 0
}

func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor < len(m.entries)-1
}

// Reset drops the whole timeline and starts over from s.
func (m *Manager) Reset(s domain.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = []domain.Snapshot{s.Clone()}
	m.cursor = 0
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (entries int, cursor int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), m.cursor
}
