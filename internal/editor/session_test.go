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
	"errors"
	"reflect"
	"slices"
	"sync"
	"testing"

	"editpdfs/internal/domain"
)

func newSession(t *testing.T, pages int) *Session {
	t.Helper()
	s, err := New("doc.pdf", pages, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestAddObjectSelectsAndRecordsHistory(t *testing.T) {
	s := newSession(t, 2)
	if s.CanUndo() {
		t.Fatalf("fresh session must not undo")
	}
	id := s.AddObject(domain.EditorObject{Type: domain.ObjectText, Content: "hi", X: 10, Y: 10})
	if id == "" {
		t.Fatalf("empty id")
	}
	sel, ok := s.Selected()
	if !ok || sel.ID != id || sel.PageNumber != 1 {
		t.Fatalf("selection = %+v, %v", sel, ok)
	}
	if !s.CanUndo() {
		t.Fatalf("add should be undoable")
	}
	id2 := s.AddObject(domain.EditorObject{Type: domain.ObjectText})
	if id2 == id {
		t.Fatalf("ids must be unique")
	}
}

func TestUpdateAndMoveDoNotSnapshotUntilCommit(t *testing.T) {
	s := newSession(t, 1)
	id := s.AddObject(domain.EditorObject{Type: domain.ObjectShape, ShapeType: domain.ShapeRectangle, X: 10, Y: 10, Width: 20, Height: 20})
	s.SetZoom(200)
	if !s.MoveObject(id, 20, -10) {
		t.Fatalf("move failed")
	}
	if !s.ResizeObject(id, 10, 10) {
		t.Fatalf("resize failed")
	}
	o, _ := s.Object(id)
	if o.X != 20 || o.Y != 5 || o.Width != 25 || o.Height != 25 {
		t.Fatalf("unexpected geometry %+v", o)
	}
	// Without a commit, undo goes back past the drag to the empty document.
	s.Undo()
	if len(s.Objects()) != 0 {
		t.Fatalf("expected empty after undo, got %d", len(s.Objects()))
	}
	s.Redo()
	s.MoveObject(id, 20, 0)
	s.CommitObjectChange()
	s.Undo()
	o, _ = s.Object(id)
	if o.X != 10 {
		t.Fatalf("undo of committed drag should restore x=10, got %v", o.X)
	}
	if s.UpdateObject("missing", func(*domain.EditorObject) {}) {
		t.Fatalf("unknown id should report false")
	}
}

func TestResizeToleratesNegativeSize(t *testing.T) {
	s := newSession(t, 1)
	id := s.AddObject(domain.EditorObject{Type: domain.ObjectWhiteout, Width: 5, Height: 5})
	s.ResizeObject(id, -20, -20)
	if o, _ := s.Object(id); o.Width != -15 || o.Height != -15 {
		t.Fatalf("negative sizes should be kept, got %+v", o)
	}
}

func TestMoveShiftsDrawingPointsAndLineEnd(t *testing.T) {
	s := newSession(t, 1)
	d := s.AddObject(domain.EditorObject{Type: domain.ObjectDrawing, Points: []domain.Point{{X: 1, Y: 1}, {X: 2, Y: 3}}})
	l := s.AddObject(domain.EditorObject{Type: domain.ObjectShape, ShapeType: domain.ShapeArrow, X: 1, Y: 1, EndX: 9, EndY: 9})
	s.MoveObject(d, 10, 10)
	s.MoveObject(l, 10, 10)
	if o, _ := s.Object(d); o.Points[1] != (domain.Point{X: 12, Y: 13}) {
		t.Fatalf("points not shifted: %+v", o.Points)
	}
	if o, _ := s.Object(l); o.EndX != 19 || o.EndY != 19 {
		t.Fatalf("arrow end not shifted: %+v", o)
	}
}

func TestDeleteObject(t *testing.T) {
	s := newSession(t, 1)
	id := s.AddObject(domain.EditorObject{Type: domain.ObjectStamp})
	if s.DeleteObject("nope") {
		t.Fatalf("unknown id should be a no-op")
	}
	if !s.DeleteObject(id) {
		t.Fatalf("delete failed")
	}
	if _, ok := s.Selected(); ok {
		t.Fatalf("selection must clear on delete")
	}
	s.Undo()
	if _, ok := s.Object(id); !ok {
		t.Fatalf("undo should bring the object back")
	}
	if _, ok := s.Selected(); ok {
		t.Fatalf("undo clears selection")
	}
}

func TestUndoRedoRoundTrip(t *testing.T) {
	s := newSession(t, 1)
	for i := 0; i < 5; i++ {
		s.AddObject(domain.EditorObject{Type: domain.ObjectText, X: float64(i)})
	}
	want := s.Objects()
	for s.Undo() {
	}
	if len(s.Objects()) != 0 || s.CanUndo() {
		t.Fatalf("expected empty start state")
	}
	for s.Redo() {
	}
	if !reflect.DeepEqual(want, s.Objects()) {
		t.Fatalf("redo did not restore state")
	}
}

func TestTextEditsCommitImmediately(t *testing.T) {
	s := newSession(t, 1)
	id := s.UpsertTextEdit(domain.TextEdit{PageNumber: 1, OriginalText: "a", NewText: "b", X: 5, Y: 6, Width: 10, Height: 12, FontSize: 12})
	e, ok := s.TextEdit(id)
	if !ok || e.NewText != "b" {
		t.Fatalf("edit missing: %+v", e)
	}
	e.NewText = "c"
	if got := s.UpsertTextEdit(e); got != id {
		t.Fatalf("upsert by id should keep id")
	}
	if len(s.TextEdits()) != 1 {
		t.Fatalf("upsert must replace, not append")
	}
	s.Undo()
	if e, _ := s.TextEdit(id); e.NewText != "b" {
		t.Fatalf("each upsert is its own history entry, got %q", e.NewText)
	}

	if !s.UpdateTextEditPosition(id, 50, 60) {
		t.Fatalf("position update failed")
	}
	e, _ = s.TextEdit(id)
	if ox, oy := e.CoverOrigin(); ox != 5 || oy != 6 || e.X != 50 {
		t.Fatalf("cover must stay at the original position: %v %v %+v", ox, oy, e)
	}
	if s.DeleteTextEdit("missing") {
		t.Fatalf("unknown id should be a no-op")
	}
	if !s.DeleteTextEdit(id) || len(s.TextEdits()) != 0 {
		t.Fatalf("delete failed")
	}
}

func TestUpsertTextEditsSingleSnapshot(t *testing.T) {
	s := newSession(t, 1)
	ids := s.UpsertTextEdits(
		domain.TextEdit{PageNumber: 1, NewText: "x"},
		domain.TextEdit{PageNumber: 1, NewText: "y"},
		domain.TextEdit{PageNumber: 2, NewText: "z"},
	)
	if len(ids) != 3 || len(s.TextEditsOnPage(1)) != 2 {
		t.Fatalf("unexpected edits: %v", ids)
	}
	s.Undo()
	if len(s.TextEdits()) != 0 || s.CanUndo() {
		t.Fatalf("batch must undo in one step")
	}
}

func TestPageDeletionOrphansObjects(t *testing.T) {
	s := newSession(t, 3)
	id := s.AddObject(domain.EditorObject{Type: domain.ObjectText, PageNumber: 2})
	if err := s.GoToPage(2); err != nil {
		t.Fatalf("GoToPage: %v", err)
	}
	if err := s.DeletePage(2); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	if got := s.PageOrder(); !slices.Equal(got, []int{1, 3}) {
		t.Fatalf("order = %v", got)
	}
	if s.CurrentPage() != 3 {
		t.Fatalf("current page should move to neighbour, got %d", s.CurrentPage())
	}
	if o := s.OrphanedObjects(); !slices.Equal(o, []string{id}) {
		t.Fatalf("orphans = %v", o)
	}
	if !s.Reordered() {
		t.Fatalf("deletion counts as reordering")
	}
	if err := s.DeletePage(2); !errors.Is(err, ErrUnknownPage) {
		t.Fatalf("expected ErrUnknownPage, got %v", err)
	}
	if err := s.RestorePage(2); err != nil {
		t.Fatalf("RestorePage: %v", err)
	}
	if got := s.PageOrder(); !slices.Equal(got, []int{1, 2, 3}) {
		t.Fatalf("restored order = %v", got)
	}
	if len(s.OrphanedObjects()) != 0 || s.Reordered() {
		t.Fatalf("restore should clear orphan state")
	}
}

func TestCannotDeleteLastPage(t *testing.T) {
	s := newSession(t, 2)
	if err := s.DeletePage(1); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	if err := s.DeletePage(2); !errors.Is(err, ErrLastPage) {
		t.Fatalf("expected ErrLastPage, got %v", err)
	}
}

func TestMovePage(t *testing.T) {
	s := newSession(t, 4)
	if err := s.MovePage(4, 0); err != nil {
		t.Fatalf("MovePage: %v", err)
	}
	if err := s.MovePage(1, 99); err != nil {
		t.Fatalf("MovePage: %v", err)
	}
	if got := s.PageOrder(); !slices.Equal(got, []int{4, 2, 3, 1}) {
		t.Fatalf("order = %v", got)
	}
	if !s.Reordered() {
		t.Fatalf("expected reordered")
	}
}

func TestRotatePageIsAdditive(t *testing.T) {
	s := newSession(t, 2)
	for i := 0; i < 4; i++ {
		if _, err := s.RotatePage(1, 90); err != nil {
			t.Fatalf("RotatePage: %v", err)
		}
	}
	if s.Rotation(1) != 0 {
		t.Fatalf("four quarter turns should return to 0, got %d", s.Rotation(1))
	}
	if r, _ := s.RotatePage(2, -90); r != 270 {
		t.Fatalf("-90 should normalize to 270, got %d", r)
	}
	if _, err := s.RotatePage(3, 90); !errors.Is(err, ErrUnknownPage) {
		t.Fatalf("expected ErrUnknownPage, got %v", err)
	}
}

func TestZoomClamp(t *testing.T) {
	s := newSession(t, 1)
	if s.Zoom() != DefaultZoom {
		t.Fatalf("default zoom = %v", s.Zoom())
	}
	if s.SetZoom(5) != MinZoom || s.SetZoom(900) != MaxZoom || s.SetZoom(-1) != MinZoom {
		t.Fatalf("zoom not clamped")
	}
	if s.Viewport().Scale() != MinZoom/100 {
		t.Fatalf("viewport out of sync")
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := newSession(t, 3)
	s.AddObject(domain.EditorObject{Type: domain.ObjectHighlight, PageNumber: 3, Width: 10, Height: 4})
	s.UpsertTextEdit(domain.TextEdit{PageNumber: 1, OriginalText: "a", NewText: "b"})
	_ = s.DeletePage(2)
	_, _ = s.RotatePage(3, 180)
	s.SetZoom(150)
	st := s.State()

	back, err := FromState(st, Config{})
	if err != nil {
		t.Fatalf("FromState: %v", err)
	}
	if !reflect.DeepEqual(st, back.State()) {
		t.Fatalf("state mismatch:\n%+v\n%+v", st, back.State())
	}
	if back.CanUndo() {
		t.Fatalf("restored history should start fresh")
	}
	if back.ID() == s.ID() {
		t.Fatalf("restored session without a stored id should get a fresh one")
	}
	kept, err := FromState(st, Config{ID: s.ID()})
	if err != nil || kept.ID() != s.ID() {
		t.Fatalf("stored id not reused: %v", err)
	}
}

func TestValidateRejectsBadState(t *testing.T) {
	cases := map[string]domain.SessionState{
		"no pages":    {PageCount: 0},
		"dup order":   {PageCount: 2, Pages: domain.PageState{Order: []int{1, 1}}},
		"all deleted": {PageCount: 1, Pages: domain.PageState{Deleted: []int{1}}},
		"bad rot":     {PageCount: 1, Pages: domain.PageState{Rotations: map[int]int{1: 45}}},
		"bad type":    {PageCount: 1, Objects: []domain.EditorObject{{ID: "x", Type: "sticker"}}},
	}
	for name, st := range cases {
		if err := Validate(st); !errors.Is(err, ErrInvalidState) {
			t.Errorf("%s: expected ErrInvalidState, got %v", name, err)
		}
	}
}

func TestConcurrentAdds(t *testing.T) {
	s := newSession(t, 1)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := s.AddObject(domain.EditorObject{Type: domain.ObjectText})
			s.MoveObject(id, 1, 1)
			_ = s.Objects()
		}()
	}
	wg.Wait()
	if len(s.Objects()) != 20 {
		t.Fatalf("expected 20 objects, got %d", len(s.Objects()))
	}
}
