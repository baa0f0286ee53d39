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

package ui

import (
	"image/color"
	"log/slog"
	"math"
	"strconv"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"

	"editpdfs/internal/config"
	"editpdfs/internal/domain"
	"editpdfs/internal/editor"
	applog "editpdfs/internal/log"
	"editpdfs/internal/pdfdoc"
	"editpdfs/internal/vector"
)

// A4 portrait in points, used until a document is open.
const (
	defaultPageW = 595
	defaultPageH = 842
)

var (
	selectionBlue = color.NRGBA{R: 0, G: 170, B: 255, A: 255}
	guideColor    = color.NRGBA{R: 255, G: 0, B: 170, A: 200}
	linkBlue      = domain.Color{B: 238}
	stampRed      = domain.Color{R: 220, G: 38, B: 38}
	highlightYel  = domain.Color{R: 255, G: 255}
)

// PageCanvas shows the current page of an editing session with its objects
// and text edits at the session zoom. Dragging an object moves it and
// commits one history entry on release; dragging the background pans.
type PageCanvas struct {
	widget.BaseWidget

	sess *editor.Session
	doc  *pdfdoc.Document
	cfg  config.EditorConfig
	tool tool

	offX, offY float64

	drag    dragMode
	dragID  string
	dragRaw vector.Rect
	guides  []vector.Guide

	// OnChanged runs after every change to the session made by the canvas.
	OnChanged func()
	// OnEdit runs on double tap over a text-bearing object.
	OnEdit func()

	log *slog.Logger
}

type dragMode int

const (
	dragNone dragMode = iota
	dragPan
	dragMove
	dragResize
)

// handleSize is the side of the resize handle in screen units.
const handleSize = 8

func NewPageCanvas(cfg config.EditorConfig) *PageCanvas {
	pc := &PageCanvas{cfg: cfg, log: applog.WithComponent("ui.canvas")}
	pc.ExtendBaseWidget(pc)
	return pc
}

// SetDocument swaps the document and session shown.
func (p *PageCanvas) SetDocument(doc *pdfdoc.Document, sess *editor.Session) {
	p.doc, p.sess = doc, sess
	p.offX, p.offY = 0, 0
	p.drag = dragNone
	p.Refresh()
}

// SetTool selects what a tap inserts.
func (p *PageCanvas) SetTool(t tool) { p.tool = t }

// Tool returns the active tool.
func (p *PageCanvas) Tool() tool { return p.tool }

func (p *PageCanvas) changed() {
	p.Refresh()
	if p.OnChanged != nil {
		p.OnChanged()
	}
}

func (p *PageCanvas) pageSize() (w, h float64) {
	if p.doc == nil || p.sess == nil {
		return defaultPageW, defaultPageH
	}
	pg, err := p.doc.Page(p.sess.CurrentPage() - 1)
	if err != nil {
		return defaultPageW, defaultPageH
	}
	return pg.Size()
}

func (p *PageCanvas) view(size fyne.Size) view {
	pw, ph := p.pageSize()
	zoom := editor.DefaultZoom
	if p.sess != nil {
		zoom = p.sess.Zoom()
	}
	return view{width: float64(size.Width), height: float64(size.Height), pageW: pw, pageH: ph, zoom: zoom, offX: p.offX, offY: p.offY}
}

func toPt(pos fyne.Position) vector.Pt { return vector.Pt{X: float64(pos.X), Y: float64(pos.Y)} }

// resizeHandle is the screen rectangle of the selection's resize handle.
func (p *PageCanvas) resizeHandle(v view) (vector.Rect, bool) {
	if p.sess == nil {
		return vector.Rect{}, false
	}
	o, ok := p.sess.Selected()
	if !ok || o.PageNumber != p.sess.CurrentPage() {
		return vector.Rect{}, false
	}
	b := v.rectToScreen(objectBounds(o))
	return vector.R(b.X+b.W-handleSize/2, b.Y+b.H-handleSize/2, handleSize, handleSize), true
}

// Tapped inserts with the active tool, or selects the object under the pointer.
func (p *PageCanvas) Tapped(e *fyne.PointEvent) {
	if p.sess == nil {
		return
	}
	v := p.view(p.Size())
	pt := v.toPage(toPt(e.Position))
	page := p.sess.CurrentPage()
	if o, ok := newObject(p.tool, page, pt, p.cfg); ok {
		id := p.sess.AddObject(o)
		p.log.Info("object added", slog.String("id", id), slog.String("type", string(o.Type)), slog.Int("page", page))
		p.changed()
		return
	}
	p.sess.Select(hitTest(p.sess.ObjectsOnPage(page), pt))
	p.changed()
}

// DoubleTapped opens the text editor for text, stamp and link objects.
func (p *PageCanvas) DoubleTapped(e *fyne.PointEvent) {
	if p.sess == nil {
		return
	}
	pt := p.view(p.Size()).toPage(toPt(e.Position))
	if id := hitTest(p.sess.ObjectsOnPage(p.sess.CurrentPage()), pt); id != "" {
		p.sess.Select(id)
		p.Refresh()
		if p.OnEdit != nil {
			p.OnEdit()
		}
	}
}

// Dragged moves or resizes the selection live, or pans the view.
func (p *PageCanvas) Dragged(e *fyne.DragEvent) {
	if p.sess == nil {
		return
	}
	v := p.view(p.Size())
	if p.drag == dragNone {
		start := toPt(e.Position.Subtract(e.Dragged))
		if h, ok := p.resizeHandle(v); ok && h.Contains(start) {
			o, _ := p.sess.Selected()
			p.drag, p.dragID = dragResize, o.ID
		} else if id := hitTest(p.sess.ObjectsOnPage(p.sess.CurrentPage()), v.toPage(start)); id != "" {
			p.sess.Select(id)
			o, _ := p.sess.Object(id)
			p.drag, p.dragID, p.dragRaw = dragMove, id, objectBounds(o)
		} else {
			p.drag = dragPan
		}
	}
	dx, dy := float64(e.Dragged.DX), float64(e.Dragged.DY)
	switch p.drag {
	case dragPan:
		p.offX += dx
		p.offY += dy
	case dragMove:
		vp := v.viewport()
		p.dragRaw.X += vp.Len(dx)
		p.dragRaw.Y += vp.Len(dy)
		o, ok := p.sess.Object(p.dragID)
		if !ok {
			break
		}
		cur := objectBounds(o)
		var snapped vector.Rect
		snapped, p.guides = snapMove(p.sess.ObjectsOnPage(o.PageNumber), p.dragID, p.dragRaw, v)
		p.sess.MoveObject(p.dragID, vp.ScreenLen(snapped.X-cur.X), vp.ScreenLen(snapped.Y-cur.Y))
	case dragResize:
		p.sess.ResizeObject(p.dragID, dx, dy)
	}
	p.Refresh()
}

// DragEnd commits a move or resize as a single history entry.
func (p *PageCanvas) DragEnd() {
	mode := p.drag
	p.drag, p.dragID, p.guides = dragNone, "", nil
	if p.sess != nil && (mode == dragMove || mode == dragResize) {
		p.sess.CommitObjectChange()
		p.changed()
	}
}

// Scrolled zooms with the wheel.
func (p *PageCanvas) Scrolled(e *fyne.ScrollEvent) {
	if p.sess == nil {
		return
	}
	p.sess.SetZoom(p.sess.Zoom() + float64(e.Scrolled.DY)*0.5)
	p.changed()
}

// MinSize keeps the canvas usable inside split containers.
func (p *PageCanvas) MinSize() fyne.Size { return fyne.NewSize(400, 300) }

// CreateRenderer builds the page base; objects are rebuilt on every layout.
func (p *PageCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.NRGBA{R: 30, G: 30, B: 34, A: 255})
	page := canvas.NewRectangle(color.White)
	page.StrokeColor = color.NRGBA{R: 20, G: 20, B: 20, A: 255}
	page.StrokeWidth = 1
	label := canvas.NewText("", color.NRGBA{R: 200, G: 200, B: 200, A: 255})
	label.TextSize = 11
	bbox := canvas.NewRectangle(color.Transparent)
	bbox.StrokeColor = selectionBlue
	bbox.StrokeWidth = 1
	handle := canvas.NewRectangle(selectionBlue)
	r := &pageCanvasRenderer{pc: p, bg: bg, page: page, label: label, bbox: bbox, handle: handle}
	r.Layout(p.Size())
	return r
}

// pageCanvasRenderer positions the page, its content and the selection overlay.
type pageCanvasRenderer struct {
	pc      *PageCanvas
	bg      *canvas.Rectangle
	page    *canvas.Rectangle
	label   *canvas.Text
	bbox    *canvas.Rectangle
	handle  *canvas.Rectangle
	content []fyne.CanvasObject
	objects []fyne.CanvasObject
}

func (r *pageCanvasRenderer) Destroy()                     {}
func (r *pageCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *pageCanvasRenderer) MinSize() fyne.Size           { return r.pc.MinSize() }
func (r *pageCanvasRenderer) Refresh()                     { r.Layout(r.pc.Size()); canvas.Refresh(r.pc) }

func (r *pageCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	v := r.pc.view(size)
	pr := v.rectToScreen(vector.R(0, 0, v.pageW, v.pageH))
	place(r.page, pr)

	sess := r.pc.sess
	r.content = r.content[:0]
	r.label.Text = "Open a PDF to start"
	if sess != nil {
		page := sess.CurrentPage()
		r.label.Text = "Page " + strconv.Itoa(page) + " of " + strconv.Itoa(sess.PageCount())
		if rot := sess.Rotation(page); rot != 0 {
			r.label.Text += " (rotated " + strconv.Itoa(rot) + "° on export)"
		}
		for _, o := range sess.ObjectsOnPage(page) {
			r.content = append(r.content, objectVisuals(o, v)...)
		}
		for _, e := range sess.TextEditsOnPage(page) {
			r.content = append(r.content, editVisuals(e, v)...)
		}
	}
	r.label.Move(fyne.NewPos(float32(pr.X), float32(pr.Y)-16))
	r.label.Refresh()

	r.bbox.Hide()
	r.handle.Hide()
	if sess != nil {
		if o, ok := sess.Selected(); ok && o.PageNumber == sess.CurrentPage() {
			place(r.bbox, v.rectToScreen(objectBounds(o)))
			r.bbox.Show()
			if h, ok := r.pc.resizeHandle(v); ok {
				place(r.handle, h)
				r.handle.Show()
			}
		}
	}

	for _, g := range r.pc.guides {
		r.content = append(r.content, line(guideColor, 1, v.toScreen(g.From), v.toScreen(g.To)))
	}

	objs := make([]fyne.CanvasObject, 0, len(r.content)+5)
	objs = append(objs, r.bg, r.page, r.label)
	objs = append(objs, r.content...)
	r.objects = append(objs, r.bbox, r.handle)
}

func nrgba(c domain.Color, alpha float64) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(alpha*255 + 0.5)}
}

func place(o fyne.CanvasObject, r vector.Rect) {
	o.Move(fyne.NewPos(float32(r.X), float32(r.Y)))
	o.Resize(fyne.NewSize(float32(r.W), float32(r.H)))
}

func line(c color.Color, width float32, a, b vector.Pt) *canvas.Line {
	ln := canvas.NewLine(c)
	ln.StrokeWidth = width
	ln.Position1 = fyne.NewPos(float32(a.X), float32(a.Y))
	ln.Position2 = fyne.NewPos(float32(b.X), float32(b.Y))
	return ln
}

func textStyle(f *domain.Formatting) fyne.TextStyle {
	if f == nil {
		return fyne.TextStyle{}
	}
	return fyne.TextStyle{Bold: f.Bold, Italic: f.Italic}
}

// objectVisuals approximates how export will draw o.
func objectVisuals(o domain.EditorObject, v view) []fyne.CanvasObject {
	vp := v.viewport()
	b := v.rectToScreen(objectBounds(o))
	alpha := o.EffectiveOpacity()
	sw := float32(vp.ScreenLen(math.Max(o.StrokeWidth, 1)))
	switch o.Type {
	case domain.ObjectText, domain.ObjectStamp, domain.ObjectLink:
		def := domain.Black
		switch o.Type {
		case domain.ObjectStamp:
			def = stampRed
		case domain.ObjectLink:
			def = linkBlue
		}
		col := nrgba(domain.ColorOr(o.Color, def), alpha)
		size := o.FontSize
		if size <= 0 {
			size = 16
		}
		t := canvas.NewText(o.Content, col)
		t.TextSize = float32(vp.ScreenLen(size))
		t.TextStyle = textStyle(o.Formatting)
		t.Move(fyne.NewPos(float32(b.X), float32(b.Y)))
		out := []fyne.CanvasObject{t}
		if o.Type == domain.ObjectStamp {
			border := canvas.NewRectangle(color.Transparent)
			border.StrokeColor = col
			border.StrokeWidth = float32(vp.ScreenLen(3))
			place(border, b)
			out = append(out, border)
		}
		if o.Type == domain.ObjectLink {
			y := b.Y + b.H
			out = append(out, line(col, 1, vector.Pt{X: b.X, Y: y}, vector.Pt{X: b.X + b.W, Y: y}))
		}
		return out
	case domain.ObjectWhiteout:
		rc := canvas.NewRectangle(color.White)
		place(rc, b)
		return []fyne.CanvasObject{rc}
	case domain.ObjectHighlight:
		rc := canvas.NewRectangle(nrgba(domain.ColorOr(o.Color, highlightYel), 0.35))
		place(rc, b)
		return []fyne.CanvasObject{rc}
	case domain.ObjectShape:
		col := nrgba(domain.ColorOr(o.Color, domain.Black), alpha)
		switch o.ShapeType {
		case domain.ShapeLine, domain.ShapeArrow:
			x1, y1, x2, y2 := o.Segment()
			return []fyne.CanvasObject{line(col, sw, v.toScreen(vector.Pt{X: x1, Y: y1}), v.toScreen(vector.Pt{X: x2, Y: y2}))}
		case domain.ShapeCircle:
			c := canvas.NewCircle(color.Transparent)
			if o.Fill {
				c.FillColor = nrgba(domain.ColorOr(o.FillColor, domain.ColorOr(o.Color, domain.Black)), alpha)
			}
			c.StrokeColor = col
			c.StrokeWidth = sw
			place(c, b)
			return []fyne.CanvasObject{c}
		default:
			rc := canvas.NewRectangle(color.Transparent)
			if o.Fill {
				rc.FillColor = nrgba(domain.ColorOr(o.FillColor, domain.ColorOr(o.Color, domain.Black)), alpha)
			}
			rc.StrokeColor = col
			rc.StrokeWidth = sw
			place(rc, b)
			return []fyne.CanvasObject{rc}
		}
	case domain.ObjectDrawing:
		col := nrgba(domain.ColorOr(o.Color, domain.Black), alpha)
		var out []fyne.CanvasObject
		for i := 1; i < len(o.Points); i++ {
			a := v.toScreen(vector.Pt{X: o.Points[i-1].X, Y: o.Points[i-1].Y})
			c := v.toScreen(vector.Pt{X: o.Points[i].X, Y: o.Points[i].Y})
			out = append(out, line(col, sw, a, c))
		}
		return out
	case domain.ObjectStrikeout, domain.ObjectUnderline:
		col := nrgba(domain.ColorOr(o.Color, domain.Black), alpha)
		y := b.Y + b.H
		if o.Type == domain.ObjectStrikeout {
			y = b.Y + b.H/2
		}
		return []fyne.CanvasObject{line(col, sw, vector.Pt{X: b.X, Y: y}, vector.Pt{X: b.X + b.W, Y: y})}
	}
	// images and signatures: a framed placeholder with the kind
	rc := canvas.NewRectangle(color.NRGBA{R: 230, G: 230, B: 230, A: 200})
	rc.StrokeColor = color.NRGBA{R: 120, G: 120, B: 120, A: 255}
	rc.StrokeWidth = 1
	place(rc, b)
	t := canvas.NewText(string(o.Type), color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	t.TextSize = 10
	t.Move(fyne.NewPos(float32(b.X)+2, float32(b.Y)+2))
	return []fyne.CanvasObject{rc, t}
}

// editVisuals shows a text edit the way export paints it: an opaque cover
// over the original position, then the replacement text.
func editVisuals(e domain.TextEdit, v view) []fyne.CanvasObject {
	cx, cy := e.CoverOrigin()
	cover := canvas.NewRectangle(color.White)
	place(cover, v.rectToScreen(normRect(cx, cy, e.Width, e.Height)))
	t := canvas.NewText(e.NewText, nrgba(domain.ColorOr(e.Color, domain.Black), 1))
	t.TextSize = float32(v.viewport().ScreenLen(e.FontSize))
	t.TextStyle = textStyle(e.Formatting)
	b := v.rectToScreen(editBounds(e))
	t.Move(fyne.NewPos(float32(b.X), float32(b.Y)))
	return []fyne.CanvasObject{cover, t}
}
