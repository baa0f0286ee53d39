//go:build fyne

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// These tests validate the Fyne-based page canvas. They are gated behind the
// "fyne" build tag so CI (which is headless) does not need Fyne or a display.
// To run locally:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/test"

	"editpdfs/internal/config"
	"editpdfs/internal/editor"
	"editpdfs/internal/pdfdoc"
)

func almostEqual(a, b, eps float32) bool {
	if a > b {
		return a-b <= eps
	}
	return b-a <= eps
}

// setup returns a canvas sized 800x600 over a 300x400 pt single page at 100 %.
func setup(t *testing.T) (*PageCanvas, *editor.Session) {
	t.Helper()
	test.NewTempApp(t)
	doc := pdfdoc.New()
	doc.AddPage(300, 400)
	sess, err := editor.New("doc.pdf", 1, editor.Config{})
	if err != nil {
		t.Fatalf("editor.New: %v", err)
	}
	pc := NewPageCanvas(config.Defaults().Editor)
	pc.Resize(fyne.NewSize(800, 600))
	pc.SetDocument(doc, sess)
	return pc, sess
}

func pointAt(x, y float32) *fyne.PointEvent {
	return &fyne.PointEvent{Position: fyne.NewPos(x, y)}
}

func TestPageCanvas_PageGeometry(t *testing.T) {
	pc, sess := setup(t)
	r, ok := pc.CreateRenderer().(*pageCanvasRenderer)
	if !ok {
		t.Fatalf("expected pageCanvasRenderer")
	}
	r.Layout(fyne.NewSize(800, 600))
	if !almostEqual(r.page.Size().Width, 300, 0.1) || !almostEqual(r.page.Size().Height, 400, 0.1) {
		t.Fatalf("unexpected page size %v", r.page.Size())
	}
	if !almostEqual(r.page.Position().X, 250, 0.1) || !almostEqual(r.page.Position().Y, 100, 0.1) {
		t.Fatalf("page should be centred, got %v", r.page.Position())
	}
	sess.SetZoom(50)
	r.Layout(fyne.NewSize(800, 600))
	if !almostEqual(r.page.Size().Width, 150, 0.1) {
		t.Fatalf("zoom not applied: %v", r.page.Size())
	}
}

func TestPageCanvas_TapInsertsWithTool(t *testing.T) {
	pc, sess := setup(t)
	pc.SetTool(toolRect)
	pc.Tapped(pointAt(300, 150))
	objs := sess.Objects()
	if len(objs) != 1 {
		t.Fatalf("expected one object, got %d", len(objs))
	}
	if objs[0].X != 50 || objs[0].Y != 50 {
		t.Fatalf("object placed at %v,%v, want 50,50", objs[0].X, objs[0].Y)
	}
	if sel, ok := sess.Selected(); !ok || sel.ID != objs[0].ID {
		t.Fatalf("new object should be selected")
	}

	pc.SetTool(toolSelect)
	pc.Tapped(pointAt(10, 10))
	if _, ok := sess.Selected(); ok {
		t.Fatalf("tapping empty space should clear the selection")
	}
}

func TestPageCanvas_DragCommitsOnce(t *testing.T) {
	pc, sess := setup(t)
	pc.SetTool(toolWhiteout)
	pc.Tapped(pointAt(300, 150))
	pc.SetTool(toolSelect)
	id := sess.Objects()[0].ID

	for i := 0; i < 3; i++ {
		x := float32(310 + 10*i)
		pc.Dragged(&fyne.DragEvent{PointEvent: *pointAt(x+10, 165), Dragged: fyne.NewDelta(10, 0)})
	}
	o, _ := sess.Object(id)
	if o.X != 80 {
		t.Fatalf("live drag should move the object, X=%v", o.X)
	}
	pc.DragEnd()
	if !sess.Undo() {
		t.Fatalf("expected an undoable commit")
	}
	o, _ = sess.Object(id)
	if o.X != 50 {
		t.Fatalf("one undo should revert the whole drag, X=%v", o.X)
	}
}

func TestPageCanvas_DragBackgroundPans(t *testing.T) {
	pc, sess := setup(t)
	pc.Dragged(&fyne.DragEvent{PointEvent: *pointAt(40, 40), Dragged: fyne.NewDelta(20, 10)})
	pc.DragEnd()
	if pc.offX != 20 || pc.offY != 10 {
		t.Fatalf("expected pan offset 20,10 got %v,%v", pc.offX, pc.offY)
	}
	if sess.CanUndo() {
		t.Fatalf("panning must not touch history")
	}
}

func TestPageCanvas_ScrollZooms(t *testing.T) {
	pc, sess := setup(t)
	pc.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, 20)})
	if sess.Zoom() != 110 {
		t.Fatalf("zoom = %v, want 110", sess.Zoom())
	}
}
