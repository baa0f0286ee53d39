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
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"

	"editpdfs/internal/textlayout"
)

// Font names one of the standard PDF fonts.
type Font struct {
	Family string // Helvetica, Times or Courier
	Style  string // "", "B", "I" or "BI"
}

// EmbedFont resolves a family name and style flags to a standard font.
// Any family name is accepted; unknown ones map to Helvetica.
func (d *Document) EmbedFont(family string, bold, italic bool) Font {
	f := Font{Family: textlayout.NormalizeFamily(family)}
	if bold {
		f.Style += "B"
	}
	if italic {
		f.Style += "I"
	}
	return f
}

func (f Font) family() string {
	if f.Family == "" {
		return textlayout.Helvetica
	}
	return f.Family
}

// Image is raster data ready to be placed on pages.
type Image struct {
	name   string
	kind   string // "PNG" or "JPG"
	data   []byte
	Width  int
	Height int
}

// Kind returns "PNG" or "JPG".
func (i *Image) Kind() string { return i.kind }

func imageName(kind string, data []byte) string {
	sum := sha1.Sum(data)
	return kind + "-" + hex.EncodeToString(sum[:])
}

// EmbedPNG validates PNG data. Images the writer cannot take directly
// (16-bit channels, interlacing) are re-encoded as 8-bit NRGBA.
func (d *Document) EmbedPNG(data []byte) (*Image, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("embed png: %w", err)
	}
	if needsReencode(cfg.ColorModel, data) {
		src, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("embed png: %w", err)
		}
		dst := image.NewNRGBA(src.Bounds())
		draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
		var buf bytes.Buffer
		if err := png.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("embed png: %w", err)
		}
		data = buf.Bytes()
	}
	return &Image{name: imageName("PNG", data), kind: "PNG", data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// EmbedJPG validates JPEG data.
func (d *Document) EmbedJPG(data []byte) (*Image, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("embed jpg: %w", err)
	}
	return &Image{name: imageName("JPG", data), kind: "JPG", data: data, Width: cfg.Width, Height: cfg.Height}, nil
}

// pngInterlaceOffset is the interlace byte of the IHDR chunk.
const pngInterlaceOffset = 28

func needsReencode(m color.Model, data []byte) bool {
	switch m {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model:
		return true
	}
	return len(data) > pngInterlaceOffset && data[pngInterlaceOffset] != 0
}
