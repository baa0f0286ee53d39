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
	"time"

	"github.com/google/uuid"
)

// ErrExpired is returned when a pending file outlived its time to live.
var ErrExpired = errors.New("pending file expired")

// DefaultPendingTTL bounds how long an uploaded file waits for the editor.
const DefaultPendingTTL = time.Hour

// PutPending stores an uploaded file for a single later TakePending and
// returns its token.
func (s *Store) PutPending(ctx context.Context, fileName string, data []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	token := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_files(token, file_name, data, created_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		token, fileName, data, now.Format(tsLayout), now.Add(ttl).Format(tsLayout))
	if err != nil {
		return "", fmt.Errorf("put pending: %w", err)
	}
	return token, nil
}

// TakePending returns and removes the file stored under token.
func (s *Store) TakePending(ctx context.Context, token string) (string, []byte, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	var name, expires string
	var data []byte
	err = tx.QueryRowContext(ctx, `SELECT file_name, data, expires_at FROM pending_files WHERE token = ?`, token).Scan(&name, &data, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("pending %s: %w", token, ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("take pending: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_files WHERE token = ?`, token); err != nil {
		return "", nil, fmt.Errorf("take pending: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", nil, fmt.Errorf("commit: %w", err)
	}
	if exp, err := time.Parse(tsLayout, expires); err == nil && time.Now().After(exp) {
		return "", nil, fmt.Errorf("pending %s: %w", token, ErrExpired)
	}
	return name, data, nil
}

// PrunePending deletes pending files that expired before now.
func (s *Store) PrunePending(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_files WHERE expires_at < ?`, now.UTC().Format(tsLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
