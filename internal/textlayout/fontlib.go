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

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Standard families understood by the PDF writer.
const (
	Helvetica = "Helvetica"
	Times     = "Times"
	Courier   = "Courier"
)

// NormalizeFamily maps CSS and system family names onto one of the three
// standard PDF families. Unknown names fall back to Helvetica.
func NormalizeFamily(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Trim(n, `"'`)
	switch {
	case strings.Contains(n, "courier"), strings.Contains(n, "mono"):
		return Courier
	case strings.Contains(n, "times"), n == "serif", strings.Contains(n, "georgia"), strings.HasSuffix(n, " serif") && !strings.Contains(n, "sans"):
		return Times
	default:
		return Helvetica
	}
}

// FontLibrary stores parsed OpenType fonts mapped by family/bold/italic.
type FontLibrary struct {
	mu    sync.RWMutex
	fonts map[fontKey]*opentype.Font
}

type fontKey struct {
	family string
	bold   bool
	italic bool
}

func NewFontLibrary() *FontLibrary { return &FontLibrary{fonts: make(map[fontKey]*opentype.Font)} }

// LoadTTF loads a font file into the library under the given family/bold/italic.
func (fl *FontLibrary) LoadTTF(family string, bold, italic bool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font %s: %w", path, err)
	}
	return fl.LoadBytes(family, bold, italic, data)
}

// LoadBytes parses raw TTF/OTF data into the library.
func (fl *FontLibrary) LoadBytes(family string, bold, italic bool, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %s: %w", family, err)
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.fonts == nil {
		fl.fonts = make(map[fontKey]*opentype.Font)
	}
	fl.fonts[fontKey{family: family, bold: bold, italic: italic}] = f
	return nil
}

func (fl *FontLibrary) find(spec FontSpec) *opentype.Font {
	if fl == nil {
		return nil
	}
	fl.mu.RLock()
	defer fl.mu.RUnlock()
	if f, ok := fl.fonts[fontKey{family: spec.Family, bold: spec.Bold, italic: spec.Italic}]; ok {
		return f
	}
	if f, ok := fl.fonts[fontKey{family: spec.Family}]; ok {
		return f
	}
	return nil
}

var (
	defaultLibOnce sync.Once
	defaultLib     *FontLibrary
)

// DefaultLibrary returns a library preloaded with the Go fonts standing in for
// the standard PDF families: proportional Go for Helvetica and Times, Go Mono for Courier.
func DefaultLibrary() *FontLibrary {
	defaultLibOnce.Do(func() {
		lib := NewFontLibrary()
		type entry struct {
			bold, italic bool
			prop, mono   []byte
		}
		for _, e := range []entry{
			{false, false, goregular.TTF, gomono.TTF},
			{true, false, gobold.TTF, gomonobold.TTF},
			{false, true, goitalic.TTF, gomonoitalic.TTF},
			{true, true, gobolditalic.TTF, gomonobolditalic.TTF},
		} {
			// embedded fonts always parse
			_ = lib.LoadBytes(Helvetica, e.bold, e.italic, e.prop)
			_ = lib.LoadBytes(Times, e.bold, e.italic, e.prop)
			_ = lib.LoadBytes(Courier, e.bold, e.italic, e.mono)
		}
		defaultLib = lib
	})
	return defaultLib
}

// OTProvider resolves FontSpec using a FontLibrary and falls back to another Provider.
type OTProvider struct {
	Lib      *FontLibrary
	DPI      float64 // default 72 if zero, so one pixel is one PDF point
	Fallback Provider
}

// DefaultProvider measures with the Go fonts at 72 DPI.
func DefaultProvider() Provider { return OTProvider{Lib: DefaultLibrary()} }

func (p OTProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	if spec.SizePt <= 0 {
		spec.SizePt = 12
	}
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 72
	}
	if f := p.Lib.find(spec); f != nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: spec.SizePt, DPI: dpi, Hinting: font.HintingNone})
		if err == nil {
			m := face.Metrics()
			return face, Metrics{
				Ascent:  fixedToFloat(m.Ascent),
				Descent: fixedToFloat(m.Descent),
				LineGap: fixedToFloat(m.Height - m.Ascent - m.Descent),
			}
		}
	}
	fb := p.Fallback
	if fb == nil {
		fb = BasicProvider{}
	}
	return fb.Resolve(spec)
}
