/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"editpdfs/internal/domain"
)

// language=SQL
// dialect=SQLite
const upsertSessionSQL = `INSERT INTO sessions(id, file_name, page_count, state, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET file_name=excluded.file_name, page_count=excluded.page_count, state=excluded.state, updated_at=excluded.updated_at`

// language=SQL
// dialect=SQLite
const selectSessionSQL = `SELECT state, updated_at FROM sessions WHERE id = ?`

// language=SQL
// dialect=SQLite
const listSessionsSQL = `SELECT id, file_name, page_count, updated_at FROM sessions ORDER BY updated_at DESC, id LIMIT ?`

// SessionInfo summarizes a stored session.
type SessionInfo struct {
	ID        string
	FileName  string
	PageCount int
	UpdatedAt time.Time
}

// SaveSession stores st under id, replacing any earlier state.
func (s *Store) SaveSession(ctx context.Context, id string, st domain.SessionState) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session id is required")
	}
	data, err := MarshalSession(st)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, upsertSessionSQL, id, st.FileName, st.PageCount, string(data), time.Now().UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("save session %s: %w", id, err)
	}
	return nil
}

// LoadSession returns the stored state of id.
func (s *Store) LoadSession(ctx context.Context, id string) (domain.SessionState, time.Time, error) {
	var raw, ts string
	err := s.db.QueryRowContext(ctx, selectSessionSQL, id).Scan(&raw, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SessionState{}, time.Time{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.SessionState{}, time.Time{}, fmt.Errorf("load session %s: %w", id, err)
	}
	st, err := UnmarshalSession([]byte(raw))
	if err != nil {
		return domain.SessionState{}, time.Time{}, fmt.Errorf("session %s: %w", id, err)
	}
	updated, _ := time.Parse(tsLayout, ts)
	return st, updated, nil
}

// ListSessions returns up to limit sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]SessionInfo, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, listSessionsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var ts string
		if err := rows.Scan(&info.ID, &info.FileName, &info.PageCount, &ts); err != nil {
			return nil, err
		}
		info.UpdatedAt, _ = time.Parse(tsLayout, ts)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteSession removes a session and its snapshots.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}
