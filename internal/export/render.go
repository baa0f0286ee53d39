/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"math"

	"editpdfs/internal/domain"
	"editpdfs/internal/pdfdoc"
	"editpdfs/internal/textlayout"
	"editpdfs/internal/vector"
)

// errEmbed marks image failures that skip a single object.
var errEmbed = errors.New("embed image")

const (
	defaultTextSize    = 16.0
	defaultLinkSize    = 12.0
	defaultStrokeWidth = 2.0
	highlightOpacity   = 0.35
	formatHighlightA   = 0.4
	arrowHeadAngle     = math.Pi / 6
)

var (
	yellow   = domain.Color{R: 255, G: 255}
	red      = domain.Color{R: 255}
	linkBlue = domain.Color{B: 255}
)

func colorPtr(c domain.Color) *domain.Color { return &c }

type renderer struct {
	doc  *pdfdoc.Document
	prov textlayout.Provider
	wrap *textlayout.WordWrapLayouter
}

func pageHeight(p *pdfdoc.Page) float64 {
	_, h := p.Size()
	return h
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func (r *renderer) object(p *pdfdoc.Page, o domain.EditorObject) error {
	ph := pageHeight(p)
	op := o.EffectiveOpacity()
	switch o.Type {
	case domain.ObjectText:
		r.text(p, textRun{
			content: o.Content, x: o.X, y: o.Y, wrap: o.Width,
			size: orDefault(o.FontSize, defaultTextSize), family: o.FontFamily,
			color: domain.ColorOr(o.Color, domain.Black), format: o.Formatting, opacity: op,
		})
	case domain.ObjectImage, domain.ObjectSignature:
		if o.Src == "" {
			return fmt.Errorf("%w: empty source", errEmbed)
		}
		img, err := embedImage(r.doc, o.Src)
		if err != nil {
			return fmt.Errorf("%w: %w", errEmbed, err)
		}
		w, h := o.Width, o.Height
		if w == 0 && h == 0 {
			w, h = float64(img.Width), float64(img.Height)
		}
		p.DrawImage(img, pdfdoc.ImageOptions{X: o.X, Y: vector.DrawY(ph, o.Y, h), W: w, H: h, Opacity: op})
	case domain.ObjectShape:
		r.shape(p, o)
	case domain.ObjectWhiteout:
		p.DrawRectangle(pdfdoc.RectOptions{X: o.X, Y: vector.DrawY(ph, o.Y, o.Height), W: o.Width, H: o.Height, Fill: colorPtr(domain.White)})
	case domain.ObjectHighlight:
		c := domain.ColorOr(o.Color, yellow)
		alpha := highlightOpacity
		if o.Opacity > 0 && o.Opacity < 1 {
			alpha = o.Opacity
		}
		p.DrawRectangle(pdfdoc.RectOptions{X: o.X, Y: vector.DrawY(ph, o.Y, o.Height), W: o.Width, H: o.Height, Fill: &c, Opacity: alpha})
	case domain.ObjectDrawing:
		pts := make([]vector.Pt, 0, len(o.Points))
		for _, pt := range o.Points {
			pts = append(pts, vector.Pt{X: pt.X, Y: ph - pt.Y})
		}
		p.DrawPolyline(pts, pdfdoc.LineOptions{
			Color: domain.ColorOr(o.Color, domain.Black), Width: orDefault(o.StrokeWidth, defaultStrokeWidth), Opacity: op,
		})
	case domain.ObjectLink:
		c := domain.ColorOr(o.Color, linkBlue)
		bottom := vector.DrawY(ph, o.Y, o.Height)
		p.AddLink(o.X, bottom, o.Width, o.Height, o.URL)
		if o.Content != "" {
			r.text(p, textRun{content: o.Content, x: o.X, y: o.Y, size: orDefault(o.FontSize, defaultLinkSize), family: o.FontFamily, color: c, opacity: op})
		}
		p.DrawLine(pdfdoc.LineOptions{X1: o.X, Y1: bottom, X2: o.X + o.Width, Y2: bottom, Color: c, Width: 1, Opacity: op})
	case domain.ObjectStamp:
		r.stamp(p, o)
	case domain.ObjectStrikeout:
		mid := ph - o.Y - o.Height/2
		p.DrawLine(pdfdoc.LineOptions{
			X1: o.X, Y1: mid, X2: o.X + o.Width, Y2: mid,
			Color: domain.ColorOr(o.Color, red), Width: orDefault(o.StrokeWidth, defaultStrokeWidth), Opacity: op,
		})
	case domain.ObjectUnderline:
		bottom := vector.DrawY(ph, o.Y, o.Height)
		p.DrawLine(pdfdoc.LineOptions{
			X1: o.X, Y1: bottom, X2: o.X + o.Width, Y2: bottom,
			Color: domain.ColorOr(o.Color, domain.Black), Width: orDefault(o.StrokeWidth, defaultStrokeWidth), Opacity: op,
		})
	default:
		return fmt.Errorf("unsupported object type %q", o.Type)
	}
	return nil
}

func (r *renderer) shape(p *pdfdoc.Page, o domain.EditorObject) {
	ph := pageHeight(p)
	stroke := domain.ColorOr(o.Color, domain.Black)
	sw := orDefault(o.StrokeWidth, defaultStrokeWidth)
	op := o.EffectiveOpacity()
	var fill *domain.Color
	if o.Fill {
		c := domain.ColorOr(o.FillColor, stroke)
		fill = &c
	}
	switch o.ShapeType {
	case domain.ShapeCircle:
		p.DrawEllipse(pdfdoc.EllipseOptions{
			X: o.X + o.Width/2, Y: ph - o.Y - o.Height/2, RX: math.Abs(o.Width) / 2, RY: math.Abs(o.Height) / 2,
			Fill: fill, Stroke: &stroke, StrokeWidth: sw, Opacity: op,
		})
	case domain.ShapeLine, domain.ShapeArrow:
		x1, y1, x2, y2 := o.Segment()
		y1, y2 = ph-y1, ph-y2
		line := pdfdoc.LineOptions{X1: x1, Y1: y1, X2: x2, Y2: y2, Color: stroke, Width: sw, Opacity: op}
		p.DrawLine(line)
		if o.ShapeType != domain.ShapeArrow || (x1 == x2 && y1 == y2) {
			return
		}
		head := math.Max(10, sw*4)
		a := math.Atan2(y2-y1, x2-x1)
		for _, s := range []float64{-1, 1} {
			line.X1, line.Y1 = x2, y2
			line.X2 = x2 - head*math.Cos(a+s*arrowHeadAngle)
			line.Y2 = y2 - head*math.Sin(a+s*arrowHeadAngle)
			p.DrawLine(line)
		}
	default:
		p.DrawRectangle(pdfdoc.RectOptions{
			X: o.X, Y: vector.DrawY(ph, o.Y, o.Height), W: o.Width, H: o.Height,
			Fill: fill, Stroke: &stroke, StrokeWidth: sw, Opacity: op,
		})
	}
}

func (r *renderer) stamp(p *pdfdoc.Page, o domain.EditorObject) {
	ph := pageHeight(p)
	c := domain.ColorOr(o.Color, red)
	op := o.EffectiveOpacity()
	p.DrawRectangle(pdfdoc.RectOptions{
		X: o.X, Y: vector.DrawY(ph, o.Y, o.Height), W: o.Width, H: o.Height,
		Stroke: &c, StrokeWidth: orDefault(o.StrokeWidth, 3), Opacity: op,
	})
	if o.Content == "" {
		return
	}
	size := orDefault(o.FontSize, math.Max(8, o.Height*0.5))
	font := r.doc.EmbedFont(o.FontFamily, true, false)
	spec := textlayout.FontSpec{Family: font.Family, SizePt: size, Bold: true}
	tw, _ := textlayout.Measure(r.prov, spec, o.Content)
	p.DrawText(o.Content, pdfdoc.TextOptions{
		X: o.X + (o.Width-tw)/2, Y: ph - o.Y - o.Height/2 - size*0.35,
		Size: size, Font: font, Color: c, Opacity: op,
	})
}

// textEdit covers the original glyphs and draws the replacement text.
func (r *renderer) textEdit(p *pdfdoc.Page, e domain.TextEdit) {
	ph := pageHeight(p)
	cx, cy := e.CoverOrigin()
	p.DrawRectangle(pdfdoc.RectOptions{X: cx, Y: vector.DrawY(ph, cy, e.Height), W: e.Width, H: e.Height, Fill: colorPtr(domain.White)})
	r.text(p, textRun{
		content: e.NewText, x: e.X, y: e.Y,
		size: orDefault(e.FontSize, orDefault(e.Height, defaultLinkSize)), family: e.FontFamily,
		color: domain.ColorOr(e.Color, domain.Black), format: e.Formatting,
	})
}

type textRun struct {
	content string
	x, y    float64
	wrap    float64
	size    float64
	family  string
	color   domain.Color
	format  *domain.Formatting
	opacity float64
}

// text draws possibly multi-line text whose first baseline sits one font
// size below the top edge y.
func (r *renderer) text(p *pdfdoc.Page, t textRun) {
	if t.content == "" {
		return
	}
	ph := pageHeight(p)
	var f domain.Formatting
	if t.format != nil {
		f = *t.format
	}
	font := r.doc.EmbedFont(t.family, f.Bold, f.Italic)
	spec := textlayout.FontSpec{Family: font.Family, SizePt: t.size, Bold: f.Bold, Italic: f.Italic}
	box := r.wrap.Layout(t.content, spec, t.wrap)
	rule := math.Max(0.5, t.size/16)
	for i, line := range box.Lines {
		base := ph - t.y - t.size - float64(i)*t.size*textlayout.LineHeightFactor
		if f.HighlightColor != "" && line.Width > 0 {
			hc := domain.ColorOr(f.HighlightColor, yellow)
			p.DrawRectangle(pdfdoc.RectOptions{
				X: t.x, Y: base - t.size*0.25, W: line.Width, H: t.size * textlayout.LineHeightFactor,
				Fill: &hc, Opacity: formatHighlightA,
			})
		}
		p.DrawText(line.Text, pdfdoc.TextOptions{X: t.x, Y: base, Size: t.size, Font: font, Color: t.color, Opacity: t.opacity})
		if line.Width <= 0 {
			continue
		}
		if f.Underline {
			y := base - t.size*0.12
			p.DrawLine(pdfdoc.LineOptions{X1: t.x, Y1: y, X2: t.x + line.Width, Y2: y, Color: t.color, Width: rule, Opacity: t.opacity})
		}
		if f.Strikethrough {
			y := base + t.size*0.3
			p.DrawLine(pdfdoc.LineOptions{X1: t.x, Y1: y, X2: t.x + line.Width, Y2: y, Color: t.color, Width: rule, Opacity: t.opacity})
		}
	}
}
