/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package tools implements the single-purpose document operations: merge,
// split, compress, rotate and sign. Each takes whole files in memory and
// returns a new file named by the tool's convention.
package tools

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"editpdfs/internal/domain"
	"editpdfs/internal/export"
	applog "editpdfs/internal/log"
	"editpdfs/internal/pdfdoc"
)

var (
	ErrTooFewFiles = errors.New("merge needs at least two files")
	ErrNoPages     = errors.New("no pages selected")
	ErrPageRange   = errors.New("page out of range")
	ErrSignature   = errors.New("invalid signature image")
)

// MergedFileName is the fixed name of a merge result.
const MergedFileName = "merged.pdf"

// File is a named document held in memory.
type File struct {
	Name string
	Data []byte
}

func prefixed(prefix, name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document.pdf"
	}
	return prefix + base
}

func load(f File) (*pdfdoc.Document, error) {
	doc, err := pdfdoc.Load(f.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return doc, nil
}

func save(doc *pdfdoc.Document, name string, compress bool) (File, error) {
	data, err := doc.Bytes(pdfdoc.SaveOptions{Compress: compress, Title: name})
	if err != nil {
		return File{}, err
	}
	return File{Name: name, Data: data}, nil
}

// MergeDocuments appends every page of docs, in order, to a new document.
func MergeDocuments(docs ...*pdfdoc.Document) (*pdfdoc.Document, error) {
	out := pdfdoc.New()
	for _, d := range docs {
		idx := make([]int, d.PageCount())
		for i := range idx {
			idx[i] = i
		}
		pages, err := out.CopyPages(d, idx)
		if err != nil {
			return nil, err
		}
		for _, p := range pages {
			out.AppendPage(p)
		}
	}
	return out, nil
}

// Merge concatenates files in the given order.
func Merge(ctx context.Context, files []File) (File, error) {
	if len(files) < 2 {
		return File{}, ErrTooFewFiles
	}
	docs := make([]*pdfdoc.Document, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return File{}, err
		}
		d, err := load(f)
		if err != nil {
			return File{}, err
		}
		docs = append(docs, d)
	}
	out, err := MergeDocuments(docs...)
	if err != nil {
		return File{}, err
	}
	applog.WithComponent("tools").Info("merge", "files", len(files), "pages", out.PageCount())
	return save(out, MergedFileName, true)
}

// Split extracts the given 1-based pages, in the given order, into a new file.
func Split(ctx context.Context, f File, pages []int) (File, error) {
	if len(pages) == 0 {
		return File{}, ErrNoPages
	}
	doc, err := load(f)
	if err != nil {
		return File{}, err
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	idx := make([]int, 0, len(pages))
	for _, p := range pages {
		if p < 1 || p > doc.PageCount() {
			return File{}, fmt.Errorf("%w: %d of %d", ErrPageRange, p, doc.PageCount())
		}
		idx = append(idx, p-1)
	}
	out := pdfdoc.New()
	copied, err := out.CopyPages(doc, idx)
	if err != nil {
		return File{}, err
	}
	for _, p := range copied {
		out.AppendPage(p)
	}
	return save(out, prefixed("split_", f.Name), true)
}

// Compress re-saves f with compressed content streams.
func Compress(ctx context.Context, f File) (File, error) {
	doc, err := load(f)
	if err != nil {
		return File{}, err
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	out, err := save(doc, prefixed("compressed_", f.Name), true)
	if err != nil {
		return File{}, err
	}
	applog.WithComponent("tools").Info("compress", "file", f.Name, "before", len(f.Data), "after", len(out.Data))
	return out, nil
}

// Rotate adds deg degrees of clockwise rotation to the given 1-based pages,
// or to every page when pages is empty.
func Rotate(ctx context.Context, f File, deg int, pages []int) (File, error) {
	doc, err := load(f)
	if err != nil {
		return File{}, err
	}
	if err := ctx.Err(); err != nil {
		return File{}, err
	}
	if len(pages) == 0 {
		for i := 1; i <= doc.PageCount(); i++ {
			pages = append(pages, i)
		}
	}
	for _, n := range pages {
		p, err := doc.Page(n - 1)
		if err != nil {
			return File{}, fmt.Errorf("%w: %d of %d", ErrPageRange, n, doc.PageCount())
		}
		p.SetRotation(p.Rotation() + deg)
	}
	return save(doc, prefixed("rotated_", f.Name), true)
}

// SignOptions places a signature image. X, Y is the top-left corner in
// points from the top-left of the page. A zero Height keeps the image's
// aspect ratio.
type SignOptions struct {
	Page   int
	X, Y   float64
	Width  float64
	Height float64
}

// Sign stamps a PNG or JPEG signature image onto one page.
func Sign(ctx context.Context, f File, sig []byte, o SignOptions) (File, error) {
	mime := http.DetectContentType(sig)
	if mime != "image/png" && mime != "image/jpeg" {
		return File{}, fmt.Errorf("%w: %s", ErrSignature, mime)
	}
	doc, err := load(f)
	if err != nil {
		return File{}, err
	}
	if o.Page < 1 || o.Page > doc.PageCount() {
		return File{}, fmt.Errorf("%w: %d of %d", ErrPageRange, o.Page, doc.PageCount())
	}
	src := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(sig)
	if o.Height <= 0 {
		var img *pdfdoc.Image
		if mime == "image/png" {
			img, err = doc.EmbedPNG(sig)
		} else {
			img, err = doc.EmbedJPG(sig)
		}
		if err != nil {
			return File{}, fmt.Errorf("%w: %w", ErrSignature, err)
		}
		if o.Width <= 0 {
			o.Width = float64(img.Width)
		}
		o.Height = o.Width * float64(img.Height) / float64(img.Width)
	}
	st := domain.SessionState{
		FileName:  f.Name,
		PageCount: doc.PageCount(),
		Objects: []domain.EditorObject{{
			ID: "signature", Type: domain.ObjectSignature, PageNumber: o.Page,
			X: o.X, Y: o.Y, Width: o.Width, Height: o.Height, Src: src,
		}},
	}
	out, err := export.Apply(ctx, doc, st)
	if err != nil {
		return File{}, err
	}
	return save(out, prefixed("signed_", f.Name), true)
}

// ParsePages parses a page selection like "1-3,5,8-" against a document of
// total pages. The result is sorted and free of duplicates.
func ParsePages(sel string, total int) ([]int, error) {
	seen := map[int]bool{}
	for _, part := range strings.Split(sel, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := pageNum(lo, 1)
		if err != nil {
			return nil, err
		}
		to := from
		if isRange {
			if to, err = pageNum(hi, total); err != nil {
				return nil, err
			}
		}
		if from < 1 || to > total || from > to {
			return nil, fmt.Errorf("%w: %q of %d", ErrPageRange, part, total)
		}
		for p := from; p <= to; p++ {
			seen[p] = true
		}
	}
	if len(seen) == 0 {
		return nil, ErrNoPages
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

func pageNum(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid page %q", s)
	}
	return n, nil
}
