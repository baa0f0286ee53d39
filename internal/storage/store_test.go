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
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"editpdfs/internal/domain"

	_ "modernc.org/sqlite"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DBFileName))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleState() domain.SessionState {
	ox := 4.0
	return domain.SessionState{
		Version:   domain.SessionStateVersion,
		FileName:  "report.pdf",
		PageCount: 3,
		Zoom:      150,
		Objects: []domain.EditorObject{
			{ID: "o1", Type: domain.ObjectText, PageNumber: 1, X: 10, Y: 20, Width: 100, Height: 20, Content: "hi", Formatting: &domain.Formatting{Bold: true}},
			{ID: "o2", Type: domain.ObjectDrawing, PageNumber: 2, Points: []domain.Point{{X: 1, Y: 2}, {X: 3, Y: 4}}},
		},
		TextEdits: []domain.TextEdit{{ID: "e1", PageNumber: 1, OriginalText: "a", NewText: "b", Width: 5, Height: 10, FontSize: 10, OriginalX: &ox}},
		Pages:     domain.PageState{Order: []int{2, 1, 3}, Deleted: []int{3}, Rotations: map[int]int{1: 90}},
	}
}

func TestSessionsCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	st := sampleState()
	if err := s.SaveSession(ctx, "s1", st); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	got, updated, err := s.LoadSession(ctx, "s1")
	if err != nil {
		t.Fatalf("LoadSession: %v", err)
	}
	if updated.IsZero() {
		t.Fatalf("expected updated timestamp")
	}
	if got.FileName != "report.pdf" || len(got.Objects) != 2 || got.Pages.Rotations[1] != 90 || *got.TextEdits[0].OriginalX != 4 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	st.FileName = "renamed.pdf"
	if err := s.SaveSession(ctx, "s1", st); err != nil {
		t.Fatalf("SaveSession update: %v", err)
	}
	if err := s.SaveSession(ctx, "s2", domain.SessionState{FileName: "empty.pdf"}); err != nil {
		t.Fatalf("SaveSession empty: %v", err)
	}
	list, err := s.ListSessions(ctx, 10)
	if err != nil || len(list) != 2 {
		t.Fatalf("ListSessions got %d err %v", len(list), err)
	}
	if list[0].ID != "s2" || list[1].FileName != "renamed.pdf" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if err := s.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, _, err := s.LoadSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSaveSessionRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	bad := sampleState()
	bad.Objects[0].Type = "sticker"
	if err := s.SaveSession(context.Background(), "s", bad); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got %v", err)
	}
	if err := s.SaveSession(context.Background(), " ", sampleState()); err == nil {
		t.Fatalf("expected error for blank id")
	}
}

func TestPendingHandoff(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tok, err := s.PutPending(ctx, "a.pdf", []byte("%PDF-1.4"), time.Minute)
	if err != nil {
		t.Fatalf("PutPending: %v", err)
	}
	name, data, err := s.TakePending(ctx, tok)
	if err != nil || name != "a.pdf" || string(data) != "%PDF-1.4" {
		t.Fatalf("TakePending got %q %q %v", name, data, err)
	}
	if _, _, err := s.TakePending(ctx, tok); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second take should fail with ErrNotFound, got %v", err)
	}
	old, err := s.PutPending(ctx, "b.pdf", []byte("x"), time.Nanosecond)
	if err != nil {
		t.Fatalf("PutPending: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	if _, _, err := s.TakePending(ctx, old); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if _, err := s.PutPending(ctx, "c.pdf", []byte("x"), time.Nanosecond); err != nil {
		t.Fatalf("PutPending: %v", err)
	}
	n, err := s.PrunePending(ctx, time.Now().Add(time.Second))
	if err != nil || n != 1 {
		t.Fatalf("PrunePending removed %d err %v", n, err)
	}
}

func TestMigrationsUpgradeV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), DBFileName)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);`,
		`CREATE TABLE version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, 1, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			t.Fatalf("seed v1 schema: %v (q=%s)", err, q)
		}
	}
	_ = db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	v, err := s.SchemaVersion(ctx)
	if err != nil || v != schemaVersion {
		t.Fatalf("schema = %d err %v, want %d", v, err, schemaVersion)
	}
	var cnt int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name IN ('idx_snapshots_session_ts','idx_pending_expires')`).Scan(&cnt); err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected 2 migrated indexes, got %d", cnt)
	}
}

func TestOpenOrRecoverReplacesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DBFileName)
	if err := os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	s, recovered, err := OpenOrRecover(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenOrRecover: %v", err)
	}
	defer s.Close()
	if !recovered {
		t.Fatalf("expected recovery")
	}
	if err := s.Check(context.Background()); err != nil {
		t.Fatalf("Check after recovery: %v", err)
	}
	ents, _ := os.ReadDir(filepath.Join(dir, BackupsDirName))
	if len(ents) != 1 {
		t.Fatalf("expected one backup, got %d", len(ents))
	}

	s2, recovered, err := OpenOrRecover(context.Background(), filepath.Join(dir, "fresh.db"))
	if err != nil || recovered {
		t.Fatalf("fresh db: recovered=%v err=%v", recovered, err)
	}
	_ = s2.Close()
}
