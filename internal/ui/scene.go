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
	"strconv"

	"editpdfs/internal/config"
	"editpdfs/internal/domain"
	"editpdfs/internal/vector"
)

// view maps page space (points, top-left origin) to widget space: the page
// is centred in the widget at the session zoom and then panned.
type view struct {
	width, height float64
	pageW, pageH  float64
	zoom          float64
	offX, offY    float64
}

func (v view) viewport() vector.Viewport { return vector.Viewport{Zoom: v.zoom} }

func (v view) origin() (x, y float64) {
	vp := v.viewport()
	return v.width/2 - vp.ScreenLen(v.pageW)/2 + v.offX, v.height/2 - vp.ScreenLen(v.pageH)/2 + v.offY
}

func (v view) toScreen(p vector.Pt) vector.Pt {
	ox, oy := v.origin()
	s := v.viewport().ToScreen(p)
	return vector.Pt{X: ox + s.X, Y: oy + s.Y}
}

func (v view) toPage(p vector.Pt) vector.Pt {
	ox, oy := v.origin()
	return v.viewport().ToPDF(vector.Pt{X: p.X - ox, Y: p.Y - oy})
}

func (v view) rectToScreen(r vector.Rect) vector.Rect {
	p := v.toScreen(vector.Pt{X: r.X, Y: r.Y})
	vp := v.viewport()
	return vector.R(p.X, p.Y, vp.ScreenLen(r.W), vp.ScreenLen(r.H))
}

// objectBounds returns the normalized envelope of o. Negative sizes flip
// the box around its anchor.
func objectBounds(o domain.EditorObject) vector.Rect {
	if o.Type == domain.ObjectDrawing && len(o.Points) > 0 {
		r := vector.R(o.Points[0].X, o.Points[0].Y, 0, 0)
		for _, p := range o.Points[1:] {
			r = r.Union(vector.R(p.X, p.Y, 0, 0))
		}
		return r
	}
	if o.HasEndpoint() {
		x1, y1, x2, y2 := o.Segment()
		return normRect(x1, y1, x2-x1, y2-y1)
	}
	return normRect(o.X, o.Y, o.Width, o.Height)
}

func editBounds(e domain.TextEdit) vector.Rect { return normRect(e.X, e.Y, e.Width, e.Height) }

func normRect(x, y, w, h float64) vector.Rect {
	if w < 0 {
		x, w = x+w, -w
	}
	if h < 0 {
		y, h = y+h, -h
	}
	return vector.R(x, y, w, h)
}

// hitSlop widens thin envelopes (lines, rules) so they stay clickable.
const hitSlop = 3.0

// hitTest returns the id of the top-most object containing p, or "".
func hitTest(objs []domain.EditorObject, p vector.Pt) string {
	for i := len(objs) - 1; i >= 0; i-- {
		b := objectBounds(objs[i])
		b = vector.R(b.X-hitSlop, b.Y-hitSlop, b.W+2*hitSlop, b.H+2*hitSlop)
		if b.Contains(p) {
			return objs[i].ID
		}
	}
	return ""
}

// snapThreshold is the snapping distance in screen units.
const snapThreshold = 6.0

// snapMove aligns raw, the unsnapped bounds of the dragged object id, to the
// page and to the other objects on it. The page wins ties.
func snapMove(objs []domain.EditorObject, id string, raw vector.Rect, v view) (vector.Rect, []vector.Guide) {
	anchors := []vector.Anchor{{Rect: vector.R(0, 0, v.pageW, v.pageH), Weight: 2}}
	for _, o := range objs {
		if o.ID != id {
			anchors = append(anchors, vector.Anchor{Rect: objectBounds(o), Weight: 1})
		}
	}
	opts := vector.SnapOptions{Threshold: v.viewport().Len(snapThreshold), Edges: true, Centers: true}
	return vector.Snap(raw, anchors, opts)
}

// tool is the active insertion mode of the page canvas.
type tool int

const (
	toolSelect tool = iota
	toolText
	toolRect
	toolWhiteout
	toolHighlight
)

func (t tool) String() string {
	switch t {
	case toolText:
		return "text"
	case toolRect:
		return "rectangle"
	case toolWhiteout:
		return "whiteout"
	case toolHighlight:
		return "highlight"
	}
	return "select"
}

// newObject builds the object a tool inserts at p on page. The caller
// assigns the id through the session.
func newObject(t tool, page int, p vector.Pt, cfg config.EditorConfig) (domain.EditorObject, bool) {
	o := domain.EditorObject{PageNumber: page, X: p.X, Y: p.Y}
	switch t {
	case toolText:
		size := cfg.FontSize
		if size <= 0 {
			size = 16
		}
		o.Type = domain.ObjectText
		o.Content = "Text"
		o.FontSize = size
		o.FontFamily = cfg.FontFamily
		o.Color = cfg.Color
		o.Width, o.Height = 200, size*1.2
	case toolRect:
		o.Type = domain.ObjectShape
		o.ShapeType = domain.ShapeRectangle
		o.Color = cfg.Color
		o.StrokeWidth = 2
		o.Width, o.Height = 120, 80
	case toolWhiteout:
		o.Type = domain.ObjectWhiteout
		o.Width, o.Height = 120, 24
	case toolHighlight:
		o.Type = domain.ObjectHighlight
		o.Color = "#ffff00"
		o.Width, o.Height = 120, 16
	default:
		return domain.EditorObject{}, false
	}
	return o, true
}

// describe is the inspector line for an object.
func describe(o domain.EditorObject) string {
	s := string(o.Type)
	if o.Type == domain.ObjectShape {
		s += "/" + string(o.ShapeType)
	}
	if o.Content != "" {
		c := o.Content
		if len([]rune(c)) > 24 {
			c = string([]rune(c)[:24]) + "…"
		}
		s += " " + strconv.Quote(c)
	}
	return s + " @" + strconv.FormatFloat(o.X, 'f', 0, 64) + "," + strconv.FormatFloat(o.Y, 'f', 0, 64)
}
