/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package pdfdoc

import (
	"bytes"
	"fmt"
	"io"

	"editpdfs/internal/domain"
	"editpdfs/internal/vector"
	"editpdfs/internal/version"

	"github.com/jung-kurt/gofpdf"
	"github.com/jung-kurt/gofpdf/contrib/gofpdi"
)

// SaveOptions controls how the document is written.
type SaveOptions struct {
	// Compress enables stream compression.
	Compress bool
	Title    string
}

type tplKey struct {
	src  *source
	page int
}

// Save writes the document as a new PDF.
func (d *Document) Save(w io.Writer, opts SaveOptions) (err error) {
	if len(d.pages) == 0 {
		return fmt.Errorf("%w: document has no pages", ErrSave)
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSave, r)
		}
	}()

	pdf := newFpdf()
	pdf.SetCompression(opts.Compress)
	pdf.SetProducer("editpdfs "+version.String(), true)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}

	// Templates must be imported before any page references them. One
	// importer serves all sources so template names stay unique.
	imp := gofpdi.NewImporter()
	streams := map[*source]*io.ReadSeeker{}
	tpls := map[tplKey]int{}
	for _, p := range d.pages {
		if p.src == nil {
			continue
		}
		k := tplKey{src: p.src, page: p.srcPage}
		if _, ok := tpls[k]; ok {
			continue
		}
		rs, ok := streams[p.src]
		if !ok {
			rs = newGuardedStream(p.src.data)
			streams[p.src] = rs
		}
		tpls[k] = imp.ImportPageFromStream(pdf, rs, p.srcPage, "/MediaBox")
	}

	r := &replayer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor(""), images: map[string]bool{}}
	for _, p := range d.pages {
		r.page(p, imp, tpls)
		if pdf.Err() {
			return fmt.Errorf("%w: %v", ErrSave, pdf.Error())
		}
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	return nil
}

// Bytes saves the document into memory.
func (d *Document) Bytes(opts SaveOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Save(&buf, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// replayer draws recorded ops through gofpdf. gofpdf works top-down from
// the current page height hn, so a PDF-space y becomes hn - y.
type replayer struct {
	pdf    *gofpdf.Fpdf
	tr     func(string) string
	images map[string]bool
	hn     float64
}

func (r *replayer) uy(y float64) float64 { return r.hn - y }

func (r *replayer) page(p *Page, imp *gofpdi.Importer, tpls map[tplKey]int) {
	wn, hn := vector.RotatedSize(p.width, p.height, p.rotation)
	r.hn = hn
	r.pdf.AddPageFormat("P", gofpdf.SizeType{Wd: wn, Ht: hn})
	ctm := vector.RotationCTM(p.width, p.height, p.rotation)
	rotated := p.rotation != 0
	if rotated {
		r.pdf.TransformBegin()
		r.pdf.Transform(gofpdf.TransformMatrix{A: ctm.A, B: ctm.B, C: ctm.C, D: ctm.D, E: ctm.E, F: ctm.F})
	}
	if p.src != nil {
		tpl := tpls[tplKey{src: p.src, page: p.srcPage}]
		imp.UseImportedTemplate(r.pdf, tpl, 0, r.uy(p.height), p.width, p.height)
	}
	for _, op := range p.ops {
		r.op(op, ctm)
	}
	if rotated {
		r.pdf.TransformEnd()
	}
}

func (r *replayer) setStroke(c *domain.Color, width float64) {
	col := domain.Black
	if c != nil {
		col = *c
	}
	r.pdf.SetDrawColor(int(col.R), int(col.G), int(col.B))
	if width <= 0 {
		width = 1
	}
	r.pdf.SetLineWidth(width)
}

func (r *replayer) setFill(c *domain.Color) {
	if c != nil {
		r.pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
	}
}

func style(fill, stroke *domain.Color) string {
	switch {
	case fill != nil && stroke != nil:
		return "FD"
	case fill != nil:
		return "F"
	default:
		return "D"
	}
}

func (r *replayer) op(op Op, ctm vector.Affine2D) {
	pdf := r.pdf
	a := op.alpha()
	if a < 1 {
		pdf.SetAlpha(a, "Normal")
		defer pdf.SetAlpha(1, "Normal")
	}
	switch op.Kind {
	case OpText:
		col := domain.Black
		if op.Stroke != nil {
			col = *op.Stroke
		}
		pdf.SetFont(op.Font.family(), op.Font.Style, op.Size)
		pdf.SetTextColor(int(col.R), int(col.G), int(col.B))
		pdf.Text(op.X, r.uy(op.Y), r.tr(op.Text))
	case OpRect:
		r.setStroke(op.Stroke, op.StrokeWidth)
		r.setFill(op.Fill)
		pdf.Rect(op.X, r.uy(op.Y+op.H), op.W, op.H, style(op.Fill, op.Stroke))
	case OpEllipse:
		r.setStroke(op.Stroke, op.StrokeWidth)
		r.setFill(op.Fill)
		pdf.Ellipse(op.X, r.uy(op.Y), op.W, op.H, 0, style(op.Fill, op.Stroke))
	case OpLine:
		r.setStroke(op.Stroke, op.StrokeWidth)
		pdf.Line(op.X, r.uy(op.Y), op.X2, r.uy(op.Y2))
	case OpPolyline:
		r.setStroke(op.Stroke, op.StrokeWidth)
		pdf.MoveTo(op.Points[0].X, r.uy(op.Points[0].Y))
		for _, pt := range op.Points[1:] {
			pdf.LineTo(pt.X, r.uy(pt.Y))
		}
		pdf.DrawPath("D")
	case OpImage:
		img := op.Image
		opt := gofpdf.ImageOptions{ImageType: img.kind, AllowNegativePosition: true}
		if !r.images[img.name] {
			pdf.RegisterImageOptionsReader(img.name, opt, bytes.NewReader(img.data))
			r.images[img.name] = true
		}
		pdf.ImageOptions(img.name, op.X, r.uy(op.Y+op.H), op.W, op.H, false, opt, 0, "")
	case OpLink:
		// Annotations live outside the content stream and ignore the CTM.
		b := ctm.Bounds(vector.R(op.X, op.Y, op.W, op.H))
		pdf.LinkString(b.X, r.uy(b.Y+b.H), b.W, b.H, op.URL)
	}
}
