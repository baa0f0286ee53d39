/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"

	"editpdfs/internal/config"
	"editpdfs/internal/domain"
	applog "editpdfs/internal/log"
	"editpdfs/internal/pdfdoc"
	"editpdfs/internal/storage"
)

func newCLI(t *testing.T) (*cli, *bytes.Buffer) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), storage.DBFileName)
	var out bytes.Buffer
	return &cli{cfg: cfg, out: &out, log: applog.WithComponent("cli")}, &out
}

// writePDF creates a PDF with n letter-sized pages in dir.
func writePDF(t *testing.T, dir, name string, n int) string {
	t.Helper()
	f := gofpdf.New("P", "pt", "Letter", "")
	f.SetFont("Helvetica", "", 12)
	for i := 0; i < n; i++ {
		f.AddPage()
		f.Text(40, 60, "page "+string(rune('1'+i)))
	}
	path := filepath.Join(dir, name)
	if err := f.OutputFileAndClose(path); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return path
}

func pagesIn(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	doc, err := pdfdoc.Load(data)
	if err != nil {
		t.Fatalf("load %s: %v", path, err)
	}
	return doc.PageCount()
}

func TestVersionAndUsage(t *testing.T) {
	c, out := newCLI(t)
	if err := c.run(context.Background(), []string{"version"}); err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out.String(), "editpdfs ") {
		t.Fatalf("unexpected version output %q", out.String())
	}
	for _, args := range [][]string{nil, {"bogus"}, {"split", "only-one"}, {"rotate", "a.pdf", "ninety"}} {
		if err := c.run(context.Background(), args); !errors.Is(err, errUsage) {
			t.Errorf("%v: expected usage error, got %v", args, err)
		}
	}
}

func TestSplitRotateCompress(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, dir, "in.pdf", 4)
	c, _ := newCLI(t)
	ctx := context.Background()

	if err := c.run(ctx, []string{"split", in, "2-3"}); err != nil {
		t.Fatalf("split: %v", err)
	}
	if n := pagesIn(t, filepath.Join(dir, "split_in.pdf")); n != 2 {
		t.Fatalf("split kept %d pages", n)
	}
	if err := c.run(ctx, []string{"rotate", in, "90", "1"}); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if n := pagesIn(t, filepath.Join(dir, "rotated_in.pdf")); n != 4 {
		t.Fatalf("rotate changed page count to %d", n)
	}
	if err := c.run(ctx, []string{"compress", in}); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "compressed_in.pdf")); err != nil {
		t.Fatalf("compressed output missing: %v", err)
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	a := writePDF(t, dir, "a.pdf", 1)
	b := writePDF(t, dir, "b.pdf", 2)
	out := filepath.Join(dir, "out.pdf")
	c, _ := newCLI(t)
	if err := c.run(context.Background(), []string{"merge", out, a, b}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if n := pagesIn(t, out); n != 3 {
		t.Fatalf("merged %d pages, want 3", n)
	}
}

func TestApplySession(t *testing.T) {
	dir := t.TempDir()
	in := writePDF(t, dir, "form.pdf", 3)
	st := domain.SessionState{
		FileName:  "form.pdf",
		PageCount: 3,
		Objects: []domain.EditorObject{
			{ID: "w", Type: domain.ObjectWhiteout, PageNumber: 1, X: 30, Y: 40, Width: 100, Height: 20},
		},
		Pages: domain.PageState{Order: []int{3, 1}, Deleted: []int{2}},
	}
	sessPath := filepath.Join(dir, "form"+storage.SessionFileExt)
	if err := storage.WriteSessionFile(sessPath, st); err != nil {
		t.Fatalf("write session: %v", err)
	}
	c, _ := newCLI(t)
	if err := c.run(context.Background(), []string{"apply", in, sessPath}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if n := pagesIn(t, filepath.Join(dir, "form_edited.pdf")); n != 2 {
		t.Fatalf("expected deleted page to be dropped, got %d pages", n)
	}
}

const layerHTML = `<div class="textLayer" data-page-number="2">
  <span id="r1" style="left: 20px; top: 40px; font-size: 20px;">the cat sat on the cat</span>
  <span id="r2" style="left: 20px; top: 80px; font-size: 20px;">no pets here</span>
</div>`

func TestFindAndReplace(t *testing.T) {
	dir := t.TempDir()
	layer := filepath.Join(dir, "page2.html")
	if err := os.WriteFile(layer, []byte(layerHTML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, out := newCLI(t)
	if err := c.run(context.Background(), []string{"find", layer, "CAT"}); err != nil {
		t.Fatalf("find: %v", err)
	}
	if !strings.Contains(out.String(), "2 match(es)") {
		t.Fatalf("unexpected find output:\n%s", out.String())
	}

	sessPath := filepath.Join(dir, "out"+storage.SessionFileExt)
	if err := c.run(context.Background(), []string{"find", layer, "cat", "--replace", "dog", "--out", sessPath}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	st, err := storage.ReadSessionFile(sessPath)
	if err != nil {
		t.Fatalf("read session: %v", err)
	}
	if len(st.TextEdits) == 0 {
		t.Fatalf("expected text edits after replace")
	}
	for _, e := range st.TextEdits {
		if e.PageNumber != 2 || !strings.Contains(e.NewText, "dog") {
			t.Fatalf("unexpected edit %+v", e)
		}
	}
}

func TestSessionCommands(t *testing.T) {
	dir := t.TempDir()
	c, out := newCLI(t)
	ctx := context.Background()
	src := filepath.Join(dir, "in"+storage.SessionFileExt)
	st := domain.SessionState{FileName: "contract.pdf", PageCount: 1, Pages: domain.PageState{Order: []int{1}}}
	if err := storage.WriteSessionFile(src, st); err != nil {
		t.Fatal(err)
	}
	if err := c.run(ctx, []string{"session", "import", src}); err != nil {
		t.Fatalf("import: %v", err)
	}
	id := strings.TrimSpace(out.String())
	out.Reset()

	if err := c.run(ctx, []string{"session", "list"}); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out.String(), id) || !strings.Contains(out.String(), "contract.pdf") {
		t.Fatalf("list output missing session:\n%s", out.String())
	}
	out.Reset()
	if err := c.run(ctx, []string{"session", "show", id}); err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out.String(), `"fileName": "contract.pdf"`) {
		t.Fatalf("show output:\n%s", out.String())
	}
	if err := c.run(ctx, []string{"session", "rm", id}); err != nil {
		t.Fatalf("rm: %v", err)
	}
	if err := c.run(ctx, []string{"session", "rm", id}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second rm should report ErrNotFound, got %v", err)
	}
}
