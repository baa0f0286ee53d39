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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
)

func pdfBytes(t *testing.T, pages int) []byte {
	t.Helper()
	f := gofpdf.New("P", "pt", "A4", "")
	f.SetFont("Helvetica", "", 12)
	for i := 0; i < pages; i++ {
		f.AddPageFormat("P", gofpdf.SizeType{Wd: 200, Ht: 300})
		f.Text(20, 40, "page")
	}
	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	t.Helper()
	s := NewServer(Options{Secret: "test-secret"})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, s
}

type part struct {
	field, name string
	data        []byte
}

func postForm(t *testing.T, url string, fields map[string]string, parts ...part) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("field: %v", err)
		}
	}
	for _, p := range parts {
		fw, err := mw.CreateFormFile(p.field, p.name)
		if err != nil {
			t.Fatalf("part: %v", err)
		}
		_, _ = fw.Write(p.data)
	}
	_ = mw.Close()
	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func attachmentName(t *testing.T, resp *http.Response) string {
	t.Helper()
	_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
	if err != nil {
		t.Fatalf("content-disposition: %v", err)
	}
	return params["filename"]
}

func TestProbes(t *testing.T) {
	ts, _ := newTestServer(t)
	for path, want := range map[string]string{"/healthz": "ok", "/readyz": "ready"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		b, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK || string(b) != want {
			t.Fatalf("%s: %d %q", path, resp.StatusCode, b)
		}
	}
	v, err := NewClient(ts.URL+"/", "").Version(context.Background())
	if err != nil || !strings.HasPrefix(v, "editpdfs ") {
		t.Fatalf("Version got %q err %v", v, err)
	}
}

type downStore struct{ *MemoryStore }

func (downStore) Ping(context.Context) error { return errors.New("down") }

func TestReadyzReportsStore(t *testing.T) {
	ts := httptest.NewServer(NewServer(Options{Secret: "x", Pending: downStore{NewMemoryStore()}}).Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestTokens(t *testing.T) {
	now := time.Now()
	tok, err := signToken("k", "alice", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if sub, err := verifyToken("k", tok, now); err != nil || sub != "alice" {
		t.Fatalf("verify got %q %v", sub, err)
	}
	if _, err := verifyToken("other", tok, now); !errors.Is(err, ErrTokenSignature) {
		t.Fatalf("expected ErrTokenSignature, got %v", err)
	}
	if _, err := verifyToken("k", tok, now.Add(2*time.Minute)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	for _, bad := range []string{"", "abc", "a.b.c", "!!.!!"} {
		if _, err := verifyToken("k", bad, now); !errors.Is(err, ErrTokenFormat) {
			t.Errorf("%q: expected ErrTokenFormat, got %v", bad, err)
		}
	}
}

func TestPendingRequiresAuth(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/api/pending/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestPendingHandoffThroughClient(t *testing.T) {
	ts, _ := newTestServer(t)
	ctx := context.Background()
	c := NewClient(ts.URL, "")
	if _, err := c.RequestToken(ctx, "tester"); err != nil {
		t.Fatalf("RequestToken: %v", err)
	}
	data := pdfBytes(t, 1)
	tok, err := c.PushPending(ctx, "hand off.pdf", data)
	if err != nil || tok == "" {
		t.Fatalf("PushPending got %q err %v", tok, err)
	}
	name, got, err := c.PullPending(ctx, tok)
	if err != nil {
		t.Fatalf("PullPending: %v", err)
	}
	if name != "hand off.pdf" || !bytes.Equal(got, data) {
		t.Fatalf("pulled %q (%d bytes)", name, len(got))
	}
	if _, _, err := c.PullPending(ctx, tok); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("second pull should be 404, got %v", err)
	}
	if _, err := c.PushPending(ctx, "bad.pdf", []byte("nope")); err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("non-pdf push should be 422, got %v", err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	m := NewMemoryStore()
	now := time.Now()
	m.now = func() time.Time { return now }
	tok, _ := m.Put(context.Background(), "a.pdf", []byte("x"), time.Second)
	now = now.Add(2 * time.Second)
	if _, _, err := m.Take(context.Background(), tok); !errors.Is(err, ErrPendingNotFound) {
		t.Fatalf("expected ErrPendingNotFound, got %v", err)
	}
}

func TestMergeEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp := postForm(t, ts.URL+"/api/tools/merge", nil,
		part{"file", "a.pdf", pdfBytes(t, 1)}, part{"file", "b.pdf", pdfBytes(t, 2)})
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, b)
	}
	if resp.Header.Get("Content-Type") != "application/pdf" || attachmentName(t, resp) != "merged.pdf" {
		t.Fatalf("headers = %v", resp.Header)
	}
	one := postForm(t, ts.URL+"/api/tools/merge", nil, part{"file", "a.pdf", pdfBytes(t, 1)})
	if one.StatusCode != http.StatusBadRequest {
		t.Fatalf("single file merge status = %d", one.StatusCode)
	}
}

func TestSplitRotateCompressEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)
	src := pdfBytes(t, 3)
	cases := []struct {
		path   string
		fields map[string]string
		want   string
		status int
	}{
		{"/api/tools/split", map[string]string{"pages": "2-3"}, "split_doc.pdf", http.StatusOK},
		{"/api/tools/split", map[string]string{"pages": "9"}, "", http.StatusBadRequest},
		{"/api/tools/rotate", map[string]string{"degrees": "90", "pages": "1"}, "rotated_doc.pdf", http.StatusOK},
		{"/api/tools/rotate", map[string]string{"degrees": "x"}, "", http.StatusBadRequest},
		{"/api/tools/compress", nil, "compressed_doc.pdf", http.StatusOK},
	}
	for _, c := range cases {
		resp := postForm(t, ts.URL+c.path, c.fields, part{"file", "doc.pdf", src})
		if resp.StatusCode != c.status {
			b, _ := io.ReadAll(resp.Body)
			t.Fatalf("%s %v: status %d: %s", c.path, c.fields, resp.StatusCode, b)
		}
		if c.want != "" && attachmentName(t, resp) != c.want {
			t.Fatalf("%s: filename %q", c.path, attachmentName(t, resp))
		}
	}
}

func TestEditEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	st := map[string]any{
		"version": 1, "fileName": "doc.pdf", "pageCount": 2,
		"objects": []map[string]any{{
			"id": "t1", "type": "text", "pageNumber": 1, "x": 10, "y": 10, "width": 0, "height": 0, "content": "hello",
		}},
		"textEdits": []any{},
		"pages":     map[string]any{"pageOrder": []int{2, 1}},
	}
	raw, _ := json.Marshal(st)
	resp := postForm(t, ts.URL+"/api/edit", map[string]string{"session": string(raw)}, part{"file", "doc.pdf", pdfBytes(t, 2)})
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d: %s", resp.StatusCode, b)
	}
	if attachmentName(t, resp) != "doc_edited.pdf" {
		t.Fatalf("filename %q", attachmentName(t, resp))
	}

	bad := postForm(t, ts.URL+"/api/edit", map[string]string{"session": `{"version":1}`}, part{"file", "doc.pdf", pdfBytes(t, 1)})
	if bad.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid session status = %d", bad.StatusCode)
	}
	garbage := postForm(t, ts.URL+"/api/edit", map[string]string{"session": string(raw)}, part{"file", "doc.pdf", []byte("junk")})
	if garbage.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("garbage pdf status = %d", garbage.StatusCode)
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := parseVersion("migrations/001_init.sql"); err != nil || v != 1 {
		t.Fatalf("got %d %v", v, err)
	}
	if _, err := parseVersion("init.sql"); err == nil {
		t.Fatalf("expected error")
	}
	files, err := migrationFiles()
	if err != nil || len(files) == 0 || files[0] != "001_init.sql" {
		t.Fatalf("migration files %v err %v", files, err)
	}
}
