/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package vector

// Viewport maps between on-screen pixels and PDF-space points. Interactive
// input is normalized to PDF space right away so stored geometry never
// depends on the zoom level; only rendering multiplies by the scale.
type Viewport struct {
	Zoom float64 // percent, 100 = 1:1
}

// Scale returns Zoom/100, treating a non-positive zoom as 100 %.
func (v Viewport) Scale() float64 {
	if v.Zoom <= 0 {
		return 1
	}
	return v.Zoom / 100
}

// Len converts a screen length to PDF units.
func (v Viewport) Len(screen float64) float64 { return screen / v.Scale() }

// ScreenLen converts a PDF length to screen pixels.
func (v Viewport) ScreenLen(pdf float64) float64 { return pdf * v.Scale() }

func (v Viewport) ToPDF(p Pt) Pt {
	s := v.Scale()
	return Pt{X: p.X / s, Y: p.Y / s}
}

func (v Viewport) ToScreen(p Pt) Pt {
	s := v.Scale()
	return Pt{X: p.X * s, Y: p.Y * s}
}

func (v Viewport) RectToPDF(r Rect) Rect {
	s := v.Scale()
	return Rect{X: r.X / s, Y: r.Y / s, W: r.W / s, H: r.H / s}
}

func (v Viewport) RectToScreen(r Rect) Rect {
	s := v.Scale()
	return Rect{X: r.X * s, Y: r.Y * s, W: r.W * s, H: r.H * s}
}

// DrawY converts a top-left stored Y of a box with height h into the
// bottom-left Y expected by PDF drawing calls.
func DrawY(pageHeight, y, h float64) float64 {
	return pageHeight - y - h
}
