/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"editpdfs/internal/storage"

	"github.com/google/uuid"
)

var (
	// ErrPendingNotFound is returned for unknown, consumed or expired tokens.
	ErrPendingNotFound = errors.New("pending file not found")
)

// PendingStore holds uploaded files until the editor picks them up once.
type PendingStore interface {
	Put(ctx context.Context, fileName string, data []byte, ttl time.Duration) (string, error)
	Take(ctx context.Context, token string) (string, []byte, error)
	Ping(ctx context.Context) error
}

// MemoryStore is a process-local PendingStore.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string]memFile
	now   func() time.Time
}

type memFile struct {
	name    string
	data    []byte
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{files: make(map[string]memFile), now: time.Now}
}

func (m *MemoryStore) Put(_ context.Context, fileName string, data []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = storage.DefaultPendingTTL
	}
	tok := uuid.NewString()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[tok] = memFile{name: fileName, data: append([]byte(nil), data...), expires: m.now().Add(ttl)}
	return tok, nil
}

func (m *MemoryStore) Take(_ context.Context, token string) (string, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[token]
	if !ok {
		return "", nil, ErrPendingNotFound
	}
	delete(m.files, token)
	if m.now().After(f.expires) {
		return "", nil, ErrPendingNotFound
	}
	return f.name, f.data, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

// LocalStore serves pending files from the local SQLite session database.
type LocalStore struct{ S *storage.Store }

func (l LocalStore) Put(ctx context.Context, fileName string, data []byte, ttl time.Duration) (string, error) {
	return l.S.PutPending(ctx, fileName, data, ttl)
}

func (l LocalStore) Take(ctx context.Context, token string) (string, []byte, error) {
	name, data, err := l.S.TakePending(ctx, token)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrExpired) {
		return "", nil, ErrPendingNotFound
	}
	return name, data, err
}

func (l LocalStore) Ping(ctx context.Context) error { return l.S.Check(ctx) }

// PGStore keeps pending files in Postgres.
type PGStore struct{ DB *sql.DB }

// language=SQL
// dialect=PostgreSQL
const pgTakePendingSQL = `DELETE FROM pending_files WHERE token = $1 RETURNING file_name, data, expires_at`

func (p PGStore) Put(ctx context.Context, fileName string, data []byte, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = storage.DefaultPendingTTL
	}
	tok := uuid.NewString()
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO pending_files(token, file_name, data, expires_at) VALUES ($1, $2, $3, $4)`,
		tok, fileName, data, time.Now().Add(ttl).UTC())
	if err != nil {
		return "", fmt.Errorf("put pending: %w", err)
	}
	return tok, nil
}

func (p PGStore) Take(ctx context.Context, token string) (string, []byte, error) {
	var (
		name    string
		data    []byte
		expires time.Time
	)
	err := p.DB.QueryRowContext(ctx, pgTakePendingSQL, token).Scan(&name, &data, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, ErrPendingNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("take pending: %w", err)
	}
	if time.Now().After(expires) {
		return "", nil, ErrPendingNotFound
	}
	return name, data, nil
}

func (p PGStore) Ping(ctx context.Context) error { return p.DB.PingContext(ctx) }

// Prune deletes expired pending files.
func (p PGStore) Prune(ctx context.Context) (int64, error) {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM pending_files WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
