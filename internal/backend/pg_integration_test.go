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
	"os"
	"testing"
	"time"
)

func openPGForTest(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("EPDF_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		t.Skip("no postgres DSN configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	db, err := OpenPG(ctx, dsn)
	if err != nil {
		t.Skipf("postgres not available: %v", err)
	}
	return db
}

func TestPGStoreHandoff(t *testing.T) {
	db := openPGForTest(t)
	defer func() { _ = db.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("re-applying migrations should be a no-op: %v", err)
	}
	p := PGStore{DB: db}
	tok, err := p.Put(ctx, "pg.pdf", []byte("%PDF-1.4"), time.Minute)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	name, data, err := p.Take(ctx, tok)
	if err != nil || name != "pg.pdf" || string(data) != "%PDF-1.4" {
		t.Fatalf("Take got %q %q %v", name, data, err)
	}
	if _, _, err := p.Take(ctx, tok); !errors.Is(err, ErrPendingNotFound) {
		t.Fatalf("expected ErrPendingNotFound, got %v", err)
	}
	if _, err := p.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}
}
