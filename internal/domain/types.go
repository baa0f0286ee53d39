/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the editor data model: annotation objects placed on pages,
// replacements of existing page text, history snapshots and page ordering.
// All geometry is stored in unscaled PDF-space units with a top-left origin;
// the on-screen zoom is applied only when displaying.

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectType is the closed set of annotation kinds.
type ObjectType string

const (
	ObjectText      ObjectType = "text"
	ObjectImage     ObjectType = "image"
	ObjectShape     ObjectType = "shape"
	ObjectSignature ObjectType = "signature"
	ObjectWhiteout  ObjectType = "whiteout"
	ObjectHighlight ObjectType = "highlight"
	ObjectDrawing   ObjectType = "drawing"
	ObjectLink      ObjectType = "link"
	ObjectStamp     ObjectType = "stamp"
	ObjectStrikeout ObjectType = "strikeout"
	ObjectUnderline ObjectType = "underline"
)

// ObjectTypes lists every valid ObjectType.
var ObjectTypes = []ObjectType{
	ObjectText, ObjectImage, ObjectShape, ObjectSignature, ObjectWhiteout, ObjectHighlight,
	ObjectDrawing, ObjectLink, ObjectStamp, ObjectStrikeout, ObjectUnderline,
}

// Valid reports whether t is one of the known object types.
func (t ObjectType) Valid() bool {
	for _, k := range ObjectTypes {
		if k == t {
			return true
		}
	}
	return false
}

// ShapeType selects the geometry of a shape object.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
	ShapeLine      ShapeType = "line"
	ShapeArrow     ShapeType = "arrow"
)

// Formatting holds character styling for text objects and text edits.
type Formatting struct {
	Bold           bool   `json:"bold,omitempty"`
	Italic         bool   `json:"italic,omitempty"`
	Underline      bool   `json:"underline,omitempty"`
	Strikethrough  bool   `json:"strikethrough,omitempty"`
	HighlightColor string `json:"highlightColor,omitempty"`
}

// Point is a vertex of a freehand drawing, in PDF-space units.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EditorObject is a single visual annotation anchored to one page.
// The geometry envelope (X, Y, Width, Height) is shared by all types; each
// type reads the variant payload fields it needs and ignores the rest.
type EditorObject struct {
	ID         string     `json:"id"`
	Type       ObjectType `json:"type"`
	PageNumber int        `json:"pageNumber"`
	X          float64    `json:"x"`
	Y          float64    `json:"y"`
	Width      float64    `json:"width"`
	Height     float64    `json:"height"`

	Content     string      `json:"content,omitempty"`
	Src         string      `json:"src,omitempty"` // data URL
	ShapeType   ShapeType   `json:"shapeType,omitempty"`
	EndX        float64     `json:"endX,omitempty"`
	EndY        float64     `json:"endY,omitempty"`
	Points      []Point     `json:"points,omitempty"`
	Color       string      `json:"color,omitempty"`
	FontSize    float64     `json:"fontSize,omitempty"`
	FontFamily  string      `json:"fontFamily,omitempty"`
	StrokeWidth float64     `json:"strokeWidth,omitempty"`
	Opacity     float64     `json:"opacity,omitempty"` // 0 means fully opaque
	URL         string      `json:"url,omitempty"`
	Fill        bool        `json:"fill,omitempty"`
	FillColor   string      `json:"fillColor,omitempty"`
	Formatting  *Formatting `json:"formatting,omitempty"`
}

// EffectiveOpacity maps the zero value to fully opaque.
func (o EditorObject) EffectiveOpacity() float64 {
	if o.Opacity <= 0 || o.Opacity > 1 {
		return 1
	}
	return o.Opacity
}

// HasEndpoint reports whether a line or arrow carries an explicit end point.
// Without one the segment runs across the envelope diagonal.
func (o EditorObject) HasEndpoint() bool {
	return o.Type == ObjectShape && (o.ShapeType == ShapeLine || o.ShapeType == ShapeArrow) && (o.EndX != 0 || o.EndY != 0)
}

// Segment returns the end points of a line or arrow shape.
func (o EditorObject) Segment() (x1, y1, x2, y2 float64) {
	if o.HasEndpoint() {
		return o.X, o.Y, o.EndX, o.EndY
	}
	return o.X, o.Y, o.X + o.Width, o.Y + o.Height
}

// Clone returns a deep copy of o.
func (o EditorObject) Clone() EditorObject {
	c := o
	if o.Points != nil {
		c.Points = append([]Point(nil), o.Points...)
	}
	if o.Formatting != nil {
		f := *o.Formatting
		c.Formatting = &f
	}
	return c
}

// TextEdit replaces a piece of text that already exists on the page. When
// rendered, an opaque cover is painted over the original glyphs first.
type TextEdit struct {
	ID           string      `json:"id"`
	PageNumber   int         `json:"pageNumber"`
	OriginalText string      `json:"originalText"`
	NewText      string      `json:"newText"`
	X            float64     `json:"x"`
	Y            float64     `json:"y"`
	Width        float64     `json:"width"`
	Height       float64     `json:"height"`
	OriginalX    *float64    `json:"originalX,omitempty"`
	OriginalY    *float64    `json:"originalY,omitempty"`
	FontSize     float64     `json:"fontSize"`
	FontFamily   string      `json:"fontFamily,omitempty"`
	Color        string      `json:"color,omitempty"`
	Formatting   *Formatting `json:"formatting,omitempty"`
}

// CoverOrigin returns where the covering rectangle is anchored: the
// pre-edit position when known, the current position otherwise.
func (e TextEdit) CoverOrigin() (x, y float64) {
	x, y = e.X, e.Y
	if e.OriginalX != nil {
		x = *e.OriginalX
	}
	if e.OriginalY != nil {
		y = *e.OriginalY
	}
	return x, y
}

// Clone returns a deep copy of e.
func (e TextEdit) Clone() TextEdit {
	c := e
	if e.OriginalX != nil {
		v := *e.OriginalX
		c.OriginalX = &v
	}
	if e.OriginalY != nil {
		v := *e.OriginalY
		c.OriginalY = &v
	}
	if e.Formatting != nil {
		f := *e.Formatting
		c.Formatting = &f
	}
	return c
}

// Snapshot is one full history entry.
type Snapshot struct {
	Objects   []EditorObject `json:"objects"`
	TextEdits []TextEdit     `json:"textEdits"`
}

// Clone deep-copies the snapshot. Nil slices become empty ones so that
// restored state always compares equal to what was captured.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Objects:   make([]EditorObject, len(s.Objects)),
		TextEdits: make([]TextEdit, len(s.TextEdits)),
	}
	for i, o := range s.Objects {
		out.Objects[i] = o.Clone()
	}
	for i, e := range s.TextEdits {
		out.TextEdits[i] = e.Clone()
	}
	return out
}

// PageState is the display order, deletion and rotation state of the pages.
// Page numbers are 1-based numbers of the original document.
type PageState struct {
	Order     []int       `json:"pageOrder"`
	Deleted   []int       `json:"deletedPages,omitempty"`
	Rotations map[int]int `json:"pageRotations,omitempty"`
}

// SessionState is the persisted form of an editing session.
type SessionState struct {
	Version   int            `json:"version"`
	FileName  string         `json:"fileName"`
	PageCount int            `json:"pageCount"`
	Zoom      float64        `json:"zoom,omitempty"`
	Objects   []EditorObject `json:"objects"`
	TextEdits []TextEdit     `json:"textEdits"`
	Pages     PageState      `json:"pages"`
}

// SessionStateVersion is bumped on incompatible changes of SessionState.
const SessionStateVersion = 1

// Color is an 8-bit RGB colour.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

var (
	Black = Color{}
	White = Color{R: 255, G: 255, B: 255}
)

// ParseColor parses "#rgb", "#rrggbb" (with or without '#') and a few CSS names.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "black":
		return Black, nil
	case "white":
		return White, nil
	case "red":
		return Color{R: 255}, nil
	case "green":
		return Color{G: 128}, nil
	case "blue":
		return Color{B: 255}, nil
	case "yellow":
		return Color{R: 255, G: 255}, nil
	}
	h := strings.TrimPrefix(s, "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Black, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Black, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}

// ColorOr parses s and falls back to def when s is empty or invalid.
func ColorOr(s string, def Color) Color {
	if strings.TrimSpace(s) == "" {
		return def
	}
	c, err := ParseColor(s)
	if err != nil {
		return def
	}
	return c
}

// Hex formats c as "#rrggbb".
func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }
