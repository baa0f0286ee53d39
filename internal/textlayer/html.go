/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"editpdfs/internal/textlayout"
	"editpdfs/internal/vector"

	"golang.org/x/net/html"
)

// ParseOptions describes the page a text-layer document was rendered for.
type ParseOptions struct {
	// Page is used when the markup carries no data-page-number.
	Page int
	// Zoom the markup was rendered at, in percent.
	Zoom float64
	// PageWidth and PageHeight in points resolve percentage positions.
	PageWidth, PageHeight float64
	Provider              textlayout.Provider
}

// ParseHTML reads a viewer text layer: absolutely positioned spans whose
// inline style carries left, top and font-size. Pixel lengths are divided by
// the zoom; lengths written as calc(var(--scale-factor)*Npx) are already
// unscaled.
func ParseHTML(r io.Reader, opts ParseOptions) (*StaticLayer, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse text layer: %w", err)
	}
	if opts.Zoom <= 0 {
		opts.Zoom = 100
	}
	if opts.Provider == nil {
		opts.Provider = textlayout.DefaultProvider()
	}
	p := &htmlParser{opts: opts, scale: vector.Viewport{Zoom: opts.Zoom}.Scale(), page: opts.Page}
	p.walk(doc, false)
	if p.page == 0 {
		p.page = 1
	}
	return NewStatic(p.page, opts.Zoom, p.runs, opts.Provider), nil
}

type htmlParser struct {
	opts  ParseOptions
	scale float64
	page  int
	runs  []Run
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func (p *htmlParser) walk(n *html.Node, hidden bool) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "script", "style", "head":
			return
		}
		if v, ok := attr(n, "data-page-number"); ok && p.page == 0 {
			if pg, err := strconv.Atoi(v); err == nil {
				p.page = pg
			}
		}
		st := parseStyle(n)
		if isHidden(n, st) {
			hidden = true
		}
		if _, hasLeft := st["left"]; hasLeft && (n.Data == "span" || n.Data == "div") && leaf(n) {
			if run, ok := p.run(n, st, hidden); ok {
				p.runs = append(p.runs, run)
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, hidden)
	}
}

// leaf reports whether n holds only text and inline markup.
func leaf(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "div" || c.Data == "p") {
			return false
		}
		if c.Type == html.ElementNode {
			if _, ok := parseStyle(c)["left"]; ok {
				return false
			}
		}
	}
	return true
}

func textContent(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
	}
	if n.Type == html.ElementNode && n.Data == "br" {
		b.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		textContent(c, b)
	}
}

func (p *htmlParser) run(n *html.Node, st map[string]string, hidden bool) (Run, bool) {
	var b strings.Builder
	textContent(n, &b)
	text := b.String()
	if strings.TrimSpace(text) == "" {
		return Run{}, false
	}
	x, _ := p.length(st["left"], p.opts.PageWidth)
	y, _ := p.length(st["top"], p.opts.PageHeight)
	size, ok := p.length(st["font-size"], 0)
	if !ok || size <= 0 {
		size = 12
	}
	family := strings.TrimSpace(strings.SplitN(st["font-family"], ",", 2)[0])
	w, ok := p.width(n, st)
	if !ok {
		w, _ = textlayout.Measure(p.opts.Provider, textlayout.FontSpec{Family: textlayout.NormalizeFamily(family), SizePt: size}, text)
	}
	h, ok := p.length(st["height"], p.opts.PageHeight)
	if !ok || h <= 0 {
		h = size
	}
	id, _ := attr(n, "id")
	if id == "" {
		id = "r" + strconv.Itoa(len(p.runs))
	}
	return Run{
		ID:         id,
		Text:       text,
		Box:        vector.R(x, y, w, h),
		FontSize:   size,
		FontFamily: strings.Trim(family, `"'`),
		Hidden:     hidden,
	}, true
}

// width prefers an explicit data-width (screen px) and then style width.
func (p *htmlParser) width(n *html.Node, st map[string]string) (float64, bool) {
	if v, ok := attr(n, "data-width"); ok {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64); err == nil && f > 0 {
			return f / p.scale, true
		}
	}
	if w, ok := p.length(st["width"], p.opts.PageWidth); ok && w > 0 {
		return w, true
	}
	return 0, false
}

// length converts a CSS length into PDF points.
func (p *htmlParser) length(v string, axis float64) (float64, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if strings.HasPrefix(v, "calc(") {
		i := strings.LastIndex(v, "*")
		if i < 0 {
			return 0, false
		}
		num := strings.TrimSuffix(strings.TrimSuffix(strings.TrimSpace(v[i+1:]), ")"), "px")
		f, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
		return f, err == nil
	}
	switch {
	case strings.HasSuffix(v, "%"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64)
		if err != nil || axis <= 0 {
			return 0, false
		}
		return f / 100 * axis, true
	case strings.HasSuffix(v, "pt"):
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "pt"), 64)
		return f, err == nil
	default:
		f, err := strconv.ParseFloat(strings.TrimSuffix(v, "px"), 64)
		if err != nil {
			return 0, false
		}
		return f / p.scale, true
	}
}

func parseStyle(n *html.Node) map[string]string {
	out := map[string]string{}
	s, ok := attr(n, "style")
	if !ok {
		return out
	}
	for _, decl := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func isHidden(n *html.Node, st map[string]string) bool {
	if _, ok := attr(n, "hidden"); ok {
		return true
	}
	if _, ok := attr(n, "data-replaced"); ok {
		return true
	}
	return strings.EqualFold(st["display"], "none") || strings.EqualFold(st["visibility"], "hidden")
}
