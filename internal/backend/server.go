/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package backend is the HTTP surface of the document tools: health and
// version probes, bearer tokens, the merge/split/rotate/compress/sign tools,
// session export and a one-shot pending-file handoff from an upload page to
// the editor.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"editpdfs/internal/config"
	"editpdfs/internal/export"
	applog "editpdfs/internal/log"
	"editpdfs/internal/pdfdoc"
	"editpdfs/internal/storage"
	"editpdfs/internal/tools"
	"editpdfs/internal/version"
)

const (
	defaultMaxUpload = 64 << 20
	maxTokenTTL      = 24 * time.Hour
	devSecret        = "dev-secret-change-me"
)

// Options configures a Server.
type Options struct {
	Pending   PendingStore
	Secret    string
	TokenTTL  time.Duration
	MaxUpload int64
	Now       func() time.Time
}

// Server serves the HTTP API.
type Server struct {
	pending   PendingStore
	secret    string
	ttl       time.Duration
	maxUpload int64
	now       func() time.Time
	log       *slog.Logger
}

// NewServer fills defaults for zero Options fields.
func NewServer(o Options) *Server {
	s := &Server{
		pending:   o.Pending,
		secret:    o.Secret,
		ttl:       o.TokenTTL,
		maxUpload: o.MaxUpload,
		now:       o.Now,
		log:       applog.WithComponent("backend"),
	}
	if s.pending == nil {
		s.pending = NewMemoryStore()
	}
	if s.secret == "" {
		s.secret = devSecret
		s.log.Warn("auth secret not set; using insecure dev secret")
	}
	if s.ttl <= 0 {
		s.ttl = time.Hour
	}
	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pending.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("editpdfs " + version.String()))
	})
	mux.HandleFunc("POST /api/auth/token", s.handleToken)

	mux.HandleFunc("POST /api/tools/merge", s.handleMerge)
	mux.HandleFunc("POST /api/tools/split", s.handleSplit)
	mux.HandleFunc("POST /api/tools/rotate", s.handleRotate)
	mux.HandleFunc("POST /api/tools/compress", s.handleCompress)
	mux.HandleFunc("POST /api/tools/sign", s.handleSign)
	mux.HandleFunc("POST /api/edit", s.handleEdit)

	mux.HandleFunc("POST /api/pending", s.withAuth(s.handlePendingPut))
	mux.HandleFunc("GET /api/pending/{token}", s.withAuth(s.handlePendingTake))
	return s.logRequests(mux)
}

// Start serves the API until ctx is cancelled. Pending files go to Postgres
// when a DSN is configured, to local when it is non-nil, and to memory
// otherwise.
func Start(ctx context.Context, cfg config.ServerConfig, secret string, local *storage.Store) error {
	l := applog.WithComponent("backend")
	var pending PendingStore
	switch {
	case cfg.DSN != "":
		octx, cancel := context.WithTimeout(ctx, 10*time.Second)
		db, err := OpenPG(octx, cfg.DSN)
		cancel()
		if err != nil {
			return err
		}
		defer func() {
			if err := db.Close(); err != nil {
				l.Warn("db close", "err", err)
			}
		}()
		pending = PGStore{DB: db}
	case local != nil:
		pending = LocalStore{S: local}
	default:
		pending = NewMemoryStore()
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewServer(Options{Pending: pending, Secret: secret, TokenTTL: cfg.TokenTTL()}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		l.Info("listening", "addr", cfg.Addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur_ms", time.Since(start).Milliseconds())
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Subject    string `json:"subject"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = r.Body.Close()
	_ = json.Unmarshal(b, &req)
	if req.Subject == "" {
		req.Subject = "anonymous"
	}
	ttl := s.ttl
	if req.TTLSeconds > 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if ttl > maxTokenTTL {
		ttl = maxTokenTTL
	}
	exp := s.now().Add(ttl)
	tok, err := signToken(s.secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":      tok,
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("parse upload: %w", err))
		return false
	}
	return true
}

func formFiles(r *http.Request, field string) ([]tools.File, error) {
	if r.MultipartForm == nil {
		return nil, fmt.Errorf("missing %q upload", field)
	}
	var out []tools.File
	for _, fh := range r.MultipartForm.File[field] {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			return nil, err
		}
		out = append(out, tools.File{Name: fh.Filename, Data: data})
	}
	return out, nil
}

func formFile(r *http.Request, field string) (tools.File, error) {
	files, err := formFiles(r, field)
	if err != nil {
		return tools.File{}, err
	}
	if len(files) == 0 {
		return tools.File{}, fmt.Errorf("missing %q upload", field)
	}
	return files[0], nil
}

func formFloat(r *http.Request, field string) (float64, error) {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", field, v)
	}
	return f, nil
}

// pageCount loads f just far enough to learn its page count.
func pageCount(f tools.File) (int, error) {
	doc, err := pdfdoc.Load(f.Data)
	if err != nil {
		return 0, err
	}
	return doc.PageCount(), nil
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	files, err := formFiles(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := tools.Merge(r.Context(), files)
	s.respond(w, out, err)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	f, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := pageCount(f)
	if err != nil {
		s.respond(w, tools.File{}, err)
		return
	}
	pages, err := tools.ParsePages(r.FormValue("pages"), n)
	if err != nil {
		s.respond(w, tools.File{}, err)
		return
	}
	out, err := tools.Split(r.Context(), f, pages)
	s.respond(w, out, err)
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	f, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	deg, err := strconv.Atoi(strings.TrimSpace(r.FormValue("degrees")))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid degrees: %q", r.FormValue("degrees")))
		return
	}
	var pages []int
	if sel := strings.TrimSpace(r.FormValue("pages")); sel != "" {
		n, err := pageCount(f)
		if err != nil {
			s.respond(w, tools.File{}, err)
			return
		}
		if pages, err = tools.ParsePages(sel, n); err != nil {
			s.respond(w, tools.File{}, err)
			return
		}
	}
	out, err := tools.Rotate(r.Context(), f, deg, pages)
	s.respond(w, out, err)
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	f, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	out, err := tools.Compress(r.Context(), f)
	s.respond(w, out, err)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	f, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	sig, err := formFile(r, "signature")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var o tools.SignOptions
	page, err := strconv.Atoi(strings.TrimSpace(r.FormValue("page")))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid page: %q", r.FormValue("page")))
		return
	}
	o.Page = page
	for field, dst := range map[string]*float64{"x": &o.X, "y": &o.Y, "width": &o.Width, "height": &o.Height} {
		if *dst, err = formFloat(r, field); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	out, err := tools.Sign(r.Context(), f, sig.Data, o)
	s.respond(w, out, err)
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	f, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	raw := []byte(r.FormValue("session"))
	if len(raw) == 0 {
		sf, err := formFile(r, "session")
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		raw = sf.Data
	}
	st, err := storage.UnmarshalSession(raw)
	if err != nil {
		s.respond(w, tools.File{}, err)
		return
	}
	var buf bytes.Buffer
	ctx := applog.ContextWithSession(r.Context(), st.FileName)
	if err := export.Export(ctx, f.Data, st, &buf, export.Options{Compress: true}); err != nil {
		s.respond(w, tools.File{}, err)
		return
	}
	s.respond(w, tools.File{Name: export.EditedFileName(f.Name), Data: buf.Bytes()}, nil)
}

func (s *Server) handlePendingPut(w http.ResponseWriter, r *http.Request, sub string) {
	if !s.parseForm(w, r) {
		return
	}
	f, err := formFile(r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if _, err := pdfdoc.Load(f.Data); err != nil {
		s.respond(w, tools.File{}, err)
		return
	}
	tok, err := s.pending.Put(r.Context(), f.Name, f.Data, storage.DefaultPendingTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.log.Info("pending stored", "subject", sub, "file", f.Name, "bytes", len(f.Data))
	writeJSON(w, http.StatusCreated, map[string]any{"token": tok})
}

func (s *Server) handlePendingTake(w http.ResponseWriter, r *http.Request, _ string) {
	name, data, err := s.pending.Take(r.Context(), r.PathValue("token"))
	if errors.Is(err, ErrPendingNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.respond(w, tools.File{Name: name, Data: data}, nil)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, tools.ErrTooFewFiles), errors.Is(err, tools.ErrNoPages),
		errors.Is(err, tools.ErrPageRange), errors.Is(err, tools.ErrSignature),
		errors.Is(err, storage.ErrInvalidSession):
		return http.StatusBadRequest
	case errors.Is(err, pdfdoc.ErrLoad):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respond(w http.ResponseWriter, f tools.File, err error) {
	if err != nil {
		code := statusFor(err)
		if code >= 500 {
			s.log.Error("request failed", "err", err)
		}
		writeError(w, code, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(f.Data)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
