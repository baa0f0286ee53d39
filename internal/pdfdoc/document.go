/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package pdfdoc is the document handle the editor draws into. Existing
// pages are imported as templates from the source bytes; everything the
// editor adds is recorded per page as drawing operations in PDF space
// (points, bottom-left origin) and replayed through gofpdf on Save.
package pdfdoc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
)

var (
	// ErrLoad reports bytes that could not be parsed as a PDF.
	ErrLoad = errors.New("pdf load failed")
	// ErrSave reports a failure while writing the output document.
	ErrSave = errors.New("pdf save failed")
	// ErrPageIndex reports an index outside the document.
	ErrPageIndex = errors.New("page index out of range")
)

const (
	headerWindow = 1024
	// tailWindow matches how far from the end the importer looks for startxref.
	tailWindow = 1500
	// maxEOFReads bounds consecutive reads at the end of the input.
	maxEOFReads = 64
)

var errReadLoop = errors.New("reader kept reading past end of input")

// guardedReader panics once the importer keeps reading at EOF without
// seeking, which it does forever on some truncated files.
type guardedReader struct {
	*bytes.Reader
	eofs int
}

func (g *guardedReader) Read(p []byte) (int, error) {
	n, err := g.Reader.Read(p)
	switch {
	case n > 0:
		g.eofs = 0
	case err == io.EOF:
		g.eofs++
		if g.eofs > maxEOFReads {
			panic(errReadLoop)
		}
	}
	return n, err
}

func (g *guardedReader) Seek(offset int64, whence int) (int64, error) {
	g.eofs = 0
	return g.Reader.Seek(offset, whence)
}

func newGuardedStream(data []byte) *io.ReadSeeker {
	rs := io.ReadSeeker(&guardedReader{Reader: bytes.NewReader(data)})
	return &rs
}

// source is an immutable input file shared by every page cut from it.
type source struct {
	data []byte
}

// Document is an editable PDF. Page indices are 0-based.
type Document struct {
	pages []*Page
}

// New returns an empty document.
func New() *Document { return &Document{} }

// Load parses data and returns a document with one page per source page.
func Load(data []byte) (*Document, error) {
	sizes, err := probe(data)
	if err != nil {
		return nil, err
	}
	src := &source{data: append([]byte(nil), data...)}
	d := &Document{pages: make([]*Page, 0, len(sizes))}
	for i, sz := range sizes {
		d.pages = append(d.pages, &Page{src: src, srcPage: i + 1, width: sz[0], height: sz[1]})
	}
	return d, nil
}

// probe validates the header and trailer and reads the media box of every
// page. The importer panics on malformed input, so panics are turned into
// ErrLoad.
func probe(data []byte) (sizes [][2]float64, err error) {
	win := data
	if len(win) > headerWindow {
		win = win[:headerWindow]
	}
	if !bytes.Contains(win, []byte("%PDF-")) {
		return nil, fmt.Errorf("%w: missing %%PDF header", ErrLoad)
	}
	tail := data
	if len(tail) > tailWindow {
		tail = tail[len(tail)-tailWindow:]
	}
	if !bytes.Contains(tail, []byte("startxref")) || !bytes.Contains(tail, []byte("%%EOF")) {
		return nil, fmt.Errorf("%w: missing startxref trailer", ErrLoad)
	}
	defer func() {
		if r := recover(); r != nil {
			sizes = nil
			err = fmt.Errorf("%w: %v", ErrLoad, r)
		}
	}()
	scratch := newFpdf()
	imp := gofpdi.NewImporter()
	imp.ImportPageFromStream(scratch, newGuardedStream(data), 1, "/MediaBox")
	if scratch.Err() {
		return nil, fmt.Errorf("%w: %v", ErrLoad, scratch.Error())
	}
	ps := imp.GetPageSizes()
	if len(ps) == 0 {
		return nil, fmt.Errorf("%w: no pages", ErrLoad)
	}
	sizes = make([][2]float64, len(ps))
	for i := 1; i <= len(ps); i++ {
		box, ok := ps[i]["/MediaBox"]
		if !ok || box["w"] <= 0 || box["h"] <= 0 {
			return nil, fmt.Errorf("%w: page %d has no media box", ErrLoad, i)
		}
		sizes[i-1] = [2]float64{box["w"], box["h"]}
	}
	return sizes, nil
}

// newFpdf returns a writer in points. The tiny default size forces every
// real page to carry its own /MediaBox instead of inheriting one.
func newFpdf() *gofpdf.Fpdf {
	f := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: gofpdf.SizeType{Wd: 1, Ht: 1}})
	f.SetAutoPageBreak(false, 0)
	f.SetMargins(0, 0, 0)
	return f
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int { return len(d.pages) }

// Pages returns the pages in document order.
func (d *Document) Pages() []*Page { return append([]*Page(nil), d.pages...) }

// Page returns the page at index i.
func (d *Document) Page(i int) (*Page, error) {
	if i < 0 || i >= len(d.pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageIndex, i, len(d.pages))
	}
	return d.pages[i], nil
}

// AddPage appends a blank page of the given size in points.
func (d *Document) AddPage(width, height float64) *Page {
	p := &Page{width: width, height: height}
	d.pages = append(d.pages, p)
	return p
}

// AppendPage appends a page obtained from CopyPages.
func (d *Document) AppendPage(p *Page) {
	d.pages = append(d.pages, p)
}

// CopyPages returns deep copies of the pages of src at the given indices,
// ready to be appended to d. Source bytes are shared, drawn operations are not.
func (d *Document) CopyPages(src *Document, indices []int) ([]*Page, error) {
	out := make([]*Page, 0, len(indices))
	for _, i := range indices {
		p, err := src.Page(i)
		if err != nil {
			return nil, err
		}
		out = append(out, p.clone())
	}
	return out, nil
}
