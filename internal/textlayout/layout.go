/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

// Text measurement and line breaking for placing overlay text on PDF pages.
// All values are in PDF points.

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // standard family, see NormalizeFamily
	SizePt float64
	Bold   bool
	Italic bool
}

// Metrics provides font metrics in points for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float64
}

// Line is a single laid out line.
type Line struct {
	Text  string
	Width float64
}

// TextBox is the result of laying out text into a box width.
type TextBox struct {
	Lines   []Line
	Width   float64
	Height  float64
	Metrics Metrics
}

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses x/image/basicfont Face7x13 for deterministic tests.
// Every glyph advances 7 units regardless of the requested size.
type BasicProvider struct{}

func (BasicProvider) Resolve(FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	return f, Metrics{
		Ascent:  fixedToFloat(m.Ascent),
		Descent: fixedToFloat(m.Descent),
		LineGap: fixedToFloat(m.Height - m.Ascent - m.Descent),
	}
}

// LineHeightFactor is the leading applied between lines of multi-line text.
const LineHeightFactor = 1.2

// WordWrapLayouter breaks on spaces and explicit newlines. It does not
// perform shaping or hyphenation.
type WordWrapLayouter struct{ Provider Provider }

func NewWordWrap(provider Provider) *WordWrapLayouter { return &WordWrapLayouter{Provider: provider} }

// Layout splits text into lines no wider than maxWidth. A maxWidth <= 0 only
// honors explicit newlines. A single word wider than maxWidth gets its own line.
func (l *WordWrapLayouter) Layout(text string, spec FontSpec, maxWidth float64) TextBox {
	p := l.Provider
	if p == nil {
		p = BasicProvider{}
	}
	face, met := p.Resolve(spec)
	d := &font.Drawer{Face: face}
	box := TextBox{Metrics: met}
	lineH := spec.SizePt * LineHeightFactor
	if spec.SizePt <= 0 {
		lineH = met.Ascent + met.Descent + met.LineGap
	}
	push := func(s string) {
		w := advance(d, s)
		box.Lines = append(box.Lines, Line{Text: s, Width: w})
		if w > box.Width {
			box.Width = w
		}
		box.Height += lineH
	}
	for _, para := range strings.Split(text, "\n") {
		if maxWidth <= 0 {
			push(para)
			continue
		}
		words := strings.Split(para, " ")
		cur := ""
		for i, w := range words {
			cand := w
			if i > 0 {
				cand = cur + " " + w
			}
			if i > 0 && advance(d, cand) > maxWidth && cur != "" {
				push(cur)
				cur = w
				continue
			}
			cur = cand
		}
		push(cur)
	}
	return box
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

func advance(d *font.Drawer, s string) float64 {
	return fixedToFloat(d.MeasureString(s))
}

// Measure returns the advance width of s in points and the line height
// (ascent + descent) of the resolved face.
func Measure(provider Provider, spec FontSpec, s string) (w, h float64) {
	if provider == nil {
		provider = BasicProvider{}
	}
	face, met := provider.Resolve(spec)
	return advance(&font.Drawer{Face: face}, s), met.Ascent + met.Descent
}

// SubRange returns the horizontal offset and width of the rune range
// [start,end) of s relative to a box of the given width that holds s. The
// result is proportional to measured advances so it stays correct when the
// box width comes from a different renderer than the provider.
func SubRange(provider Provider, spec FontSpec, s string, start, end int, boxWidth float64) (x, w float64) {
	runes := []rune(s)
	if start < 0 {
		start = 0
	}
	if end > len(runes) {
		end = len(runes)
	}
	if start >= end || len(runes) == 0 {
		return 0, 0
	}
	full, _ := Measure(provider, spec, s)
	if full <= 0 {
		n := float64(len(runes))
		return boxWidth * float64(start) / n, boxWidth * float64(end-start) / n
	}
	pre, _ := Measure(provider, spec, string(runes[:start]))
	upto, _ := Measure(provider, spec, string(runes[:end]))
	return boxWidth * pre / full, boxWidth * (upto - pre) / full
}
