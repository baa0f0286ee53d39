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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"editpdfs/internal/domain"
)

// language=SQL
// dialect=SQLite
const insertSnapshotSQL = `INSERT INTO snapshots(session_id, ts, blob) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestSnapshotSQL = `SELECT ts, blob FROM snapshots WHERE session_id = ? ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listSnapshotsSQL = `SELECT ts, blob FROM snapshots WHERE session_id = ? ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldSnapshotsSQL = `DELETE FROM snapshots WHERE session_id = ? AND id NOT IN (
	SELECT id FROM snapshots WHERE session_id = ? ORDER BY ts DESC, id DESC LIMIT ?
)`

// SnapshotRecord is a stored history checkpoint.
type SnapshotRecord struct {
	TS       time.Time
	Snapshot domain.Snapshot
}

// SaveSnapshot checkpoints a history snapshot of a stored session.
func (s *Store) SaveSnapshot(ctx context.Context, sessionID string, snap domain.Snapshot, ts time.Time) error {
	blob, err := json.Marshal(snap.Clone())
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, insertSnapshotSQL, sessionID, ts.UTC().Format(tsLayout), blob); err != nil {
		return fmt.Errorf("save snapshot %s: %w", sessionID, err)
	}
	return nil
}

// LatestSnapshot returns the newest snapshot of a session.
func (s *Store) LatestSnapshot(ctx context.Context, sessionID string) (SnapshotRecord, error) {
	var ts string
	var blob []byte
	err := s.db.QueryRowContext(ctx, selectLatestSnapshotSQL, sessionID).Scan(&ts, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotRecord{}, fmt.Errorf("snapshot of %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return SnapshotRecord{}, err
	}
	return decodeSnapshot(ts, blob)
}

// ListSnapshots returns up to limit most recent snapshots of a session.
func (s *Store) ListSnapshots(ctx context.Context, sessionID string, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, listSnapshotsSQL, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []SnapshotRecord
	for rows.Next() {
		var ts string
		var blob []byte
		if err := rows.Scan(&ts, &blob); err != nil {
			return nil, err
		}
		rec, err := decodeSnapshot(ts, blob)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneSnapshots keeps at most keepLast snapshots of a session and deletes older ones.
func (s *Store) PruneSnapshots(ctx context.Context, sessionID string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx, pruneOldSnapshotsSQL, sessionID, sessionID, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func decodeSnapshot(ts string, blob []byte) (SnapshotRecord, error) {
	var rec SnapshotRecord
	if err := json.Unmarshal(blob, &rec.Snapshot); err != nil {
		return rec, fmt.Errorf("decode snapshot: %w", err)
	}
	rec.TS, _ = time.Parse(tsLayout, ts)
	return rec, nil
}
