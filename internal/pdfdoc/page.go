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
	"editpdfs/internal/domain"
	"editpdfs/internal/vector"
)

// OpKind identifies a recorded drawing operation.
type OpKind int

const (
	OpText OpKind = iota + 1
	OpRect
	OpImage
	OpLine
	OpEllipse
	OpPolyline
	OpLink
)

func (k OpKind) String() string {
	switch k {
	case OpText:
		return "text"
	case OpRect:
		return "rect"
	case OpImage:
		return "image"
	case OpLine:
		return "line"
	case OpEllipse:
		return "ellipse"
	case OpPolyline:
		return "polyline"
	case OpLink:
		return "link"
	}
	return "unknown"
}

// Op is one drawing operation in PDF space. Which fields are meaningful
// depends on Kind:
//   - text: X,Y baseline origin, Text, Font, Size, Stroke as text colour
//   - rect, image, link: X,Y lower-left corner, W,H size
//   - line: X,Y to X2,Y2
//   - ellipse: X,Y centre, W,H radii
//   - polyline: Points
type Op struct {
	Kind        OpKind
	Text        string
	Font        Font
	Size        float64
	X, Y        float64
	W, H        float64
	X2, Y2      float64
	Points      []vector.Pt
	Fill        *domain.Color
	Stroke      *domain.Color
	StrokeWidth float64
	Opacity     float64 // 0 is treated as opaque
	Image       *Image
	URL         string
}

func (o Op) alpha() float64 {
	if o.Opacity <= 0 || o.Opacity > 1 {
		return 1
	}
	return o.Opacity
}

func (o Op) clone() Op {
	c := o
	if o.Points != nil {
		c.Points = append([]vector.Pt(nil), o.Points...)
	}
	if o.Fill != nil {
		v := *o.Fill
		c.Fill = &v
	}
	if o.Stroke != nil {
		v := *o.Stroke
		c.Stroke = &v
	}
	return c
}

// Page is one page of a Document.
type Page struct {
	src      *source
	srcPage  int
	width    float64
	height   float64
	rotation int
	ops      []Op
}

// Size returns the unrotated media box size in points.
func (p *Page) Size() (width, height float64) { return p.width, p.height }

// Rotation returns the clockwise rotation in degrees.
func (p *Page) Rotation() int { return p.rotation }

// SetRotation sets the clockwise rotation; deg is normalized to [0,360) and
// snapped down to a multiple of 90.
func (p *Page) SetRotation(deg int) {
	d := vector.NormalizeDegrees(deg)
	p.rotation = d - d%90
}

// Ops returns the operations recorded so far.
func (p *Page) Ops() []Op { return append([]Op(nil), p.ops...) }

// Imported reports whether the page carries content from a loaded file.
func (p *Page) Imported() bool { return p.src != nil }

func (p *Page) clone() *Page {
	c := *p
	c.ops = make([]Op, len(p.ops))
	for i, o := range p.ops {
		c.ops[i] = o.clone()
	}
	return &c
}

func colorPtr(c domain.Color) *domain.Color { return &c }

// TextOptions places a single line of text. X,Y is the baseline origin.
type TextOptions struct {
	X, Y    float64
	Size    float64
	Font    Font
	Color   domain.Color
	Opacity float64
}

// DrawText records a single line of text. Empty strings are ignored.
func (p *Page) DrawText(text string, o TextOptions) {
	if text == "" {
		return
	}
	size := o.Size
	if size <= 0 {
		size = 12
	}
	p.ops = append(p.ops, Op{Kind: OpText, Text: text, Font: o.Font, Size: size, X: o.X, Y: o.Y, Stroke: colorPtr(o.Color), Opacity: o.Opacity})
}

// RectOptions describes a rectangle with its lower-left corner at X,Y.
// A nil Fill and nil Stroke yields an outline in black.
type RectOptions struct {
	X, Y, W, H  float64
	Fill        *domain.Color
	Stroke      *domain.Color
	StrokeWidth float64
	Opacity     float64
}

// DrawRectangle records a rectangle.
func (p *Page) DrawRectangle(o RectOptions) {
	if o.Fill == nil && o.Stroke == nil {
		o.Stroke = colorPtr(domain.Black)
	}
	p.ops = append(p.ops, Op{Kind: OpRect, X: o.X, Y: o.Y, W: o.W, H: o.H, Fill: o.Fill, Stroke: o.Stroke, StrokeWidth: o.StrokeWidth, Opacity: o.Opacity})
}

// ImageOptions places an embedded image with its lower-left corner at X,Y.
type ImageOptions struct {
	X, Y, W, H float64
	Opacity    float64
}

// DrawImage records an image placement.
func (p *Page) DrawImage(img *Image, o ImageOptions) {
	if img == nil {
		return
	}
	p.ops = append(p.ops, Op{Kind: OpImage, Image: img, X: o.X, Y: o.Y, W: o.W, H: o.H, Opacity: o.Opacity})
}

// LineOptions describes a straight segment or the style of a polyline.
type LineOptions struct {
	X1, Y1, X2, Y2 float64
	Color          domain.Color
	Width          float64
	Opacity        float64
}

// DrawLine records a straight line.
func (p *Page) DrawLine(o LineOptions) {
	p.ops = append(p.ops, Op{Kind: OpLine, X: o.X1, Y: o.Y1, X2: o.X2, Y2: o.Y2, Stroke: colorPtr(o.Color), StrokeWidth: o.Width, Opacity: o.Opacity})
}

// EllipseOptions describes an ellipse centred at X,Y.
type EllipseOptions struct {
	X, Y, RX, RY float64
	Fill         *domain.Color
	Stroke       *domain.Color
	StrokeWidth  float64
	Opacity      float64
}

// DrawEllipse records an ellipse.
func (p *Page) DrawEllipse(o EllipseOptions) {
	if o.Fill == nil && o.Stroke == nil {
		o.Stroke = colorPtr(domain.Black)
	}
	p.ops = append(p.ops, Op{Kind: OpEllipse, X: o.X, Y: o.Y, W: o.RX, H: o.RY, Fill: o.Fill, Stroke: o.Stroke, StrokeWidth: o.StrokeWidth, Opacity: o.Opacity})
}

// DrawPolyline records an open path through pts. Fewer than two points are ignored.
func (p *Page) DrawPolyline(pts []vector.Pt, o LineOptions) {
	if len(pts) < 2 {
		return
	}
	p.ops = append(p.ops, Op{Kind: OpPolyline, Points: append([]vector.Pt(nil), pts...), Stroke: colorPtr(o.Color), StrokeWidth: o.Width, Opacity: o.Opacity})
}

// AddLink records a URI link annotation over the rectangle with lower-left corner x,y.
func (p *Page) AddLink(x, y, w, h float64, url string) {
	if url == "" {
		return
	}
	p.ops = append(p.ops, Op{Kind: OpLink, X: x, Y: y, W: w, H: h, URL: url})
}
