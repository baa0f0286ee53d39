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
	"errors"
	"testing"
	"time"

	"editpdfs/internal/domain"
)

func TestSnapshotsCRUD(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SaveSession(ctx, "s", sampleState()); err != nil {
		t.Fatalf("SaveSession: %v", err)
	}
	if _, err := s.LatestSnapshot(ctx, "s"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	base := time.Now()
	for i := 0; i < 6; i++ {
		snap := domain.Snapshot{Objects: []domain.EditorObject{{ID: string(rune('a' + i)), Type: domain.ObjectWhiteout, PageNumber: 1}}}
		if err := s.SaveSnapshot(ctx, "s", snap, base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("SaveSnapshot %d: %v", i, err)
		}
	}
	latest, err := s.LatestSnapshot(ctx, "s")
	if err != nil || latest.Snapshot.Objects[0].ID != "f" {
		t.Fatalf("LatestSnapshot got %+v err %v", latest, err)
	}
	list, err := s.ListSnapshots(ctx, "s", 10)
	if err != nil || len(list) != 6 {
		t.Fatalf("ListSnapshots got %d err %v", len(list), err)
	}
	n, err := s.PruneSnapshots(ctx, "s", 3)
	if err != nil || n != 3 {
		t.Fatalf("PruneSnapshots deleted %d err %v", n, err)
	}
	list, err = s.ListSnapshots(ctx, "s", 10)
	if err != nil || len(list) != 3 || list[2].Snapshot.Objects[0].ID != "d" {
		t.Fatalf("ListSnapshots after prune got %d err %v", len(list), err)
	}
	if err := s.DeleteSession(ctx, "s"); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if list, _ := s.ListSnapshots(ctx, "s", 10); len(list) != 0 {
		t.Fatalf("snapshots should cascade with their session, %d left", len(list))
	}
}

func TestSnapshotNeedsSession(t *testing.T) {
	s := openTestStore(t)
	if err := s.SaveSnapshot(context.Background(), "ghost", domain.Snapshot{}, time.Now()); err == nil {
		t.Fatalf("expected foreign key error for unknown session")
	}
}
