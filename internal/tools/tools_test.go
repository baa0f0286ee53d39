/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package tools

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"reflect"
	"testing"

	"editpdfs/internal/pdfdoc"

	"github.com/jung-kurt/gofpdf"
)

func pdfFile(t *testing.T, name string, sizes ...[2]float64) File {
	t.Helper()
	f := gofpdf.New("P", "pt", "A4", "")
	f.SetFont("Helvetica", "", 12)
	for _, sz := range sizes {
		f.AddPageFormat("P", gofpdf.SizeType{Wd: sz[0], Ht: sz[1]})
		f.Text(10, 20, name)
	}
	var buf bytes.Buffer
	if err := f.Output(&buf); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return File{Name: name, Data: buf.Bytes()}
}

func pageSizes(t *testing.T, f File) [][2]float64 {
	t.Helper()
	doc, err := pdfdoc.Load(f.Data)
	if err != nil {
		t.Fatalf("reload %s: %v", f.Name, err)
	}
	var out [][2]float64
	for _, p := range doc.Pages() {
		w, h := p.Size()
		out = append(out, [2]float64{math.Round(w), math.Round(h)})
	}
	return out
}

func TestMergeKeepsOrder(t *testing.T) {
	a := pdfFile(t, "a.pdf", [2]float64{100, 200})
	b := pdfFile(t, "b.pdf", [2]float64{300, 400})
	out, err := Merge(context.Background(), []File{a, b})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if out.Name != "merged.pdf" {
		t.Fatalf("name = %q", out.Name)
	}
	want := [][2]float64{{100, 200}, {300, 400}}
	if got := pageSizes(t, out); !reflect.DeepEqual(got, want) {
		t.Fatalf("sizes = %v, want %v", got, want)
	}
}

func TestMergeValidation(t *testing.T) {
	a := pdfFile(t, "a.pdf", [2]float64{100, 100})
	if _, err := Merge(context.Background(), []File{a}); !errors.Is(err, ErrTooFewFiles) {
		t.Fatalf("expected ErrTooFewFiles, got %v", err)
	}
	bad := File{Name: "bad.pdf", Data: []byte("nope")}
	if _, err := Merge(context.Background(), []File{a, bad}); !errors.Is(err, pdfdoc.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}

func TestSplit(t *testing.T) {
	in := pdfFile(t, "doc.pdf", [2]float64{100, 100}, [2]float64{200, 200}, [2]float64{300, 300})
	out, err := Split(context.Background(), in, []int{3, 1})
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if out.Name != "split_doc.pdf" {
		t.Fatalf("name = %q", out.Name)
	}
	if got := pageSizes(t, out); !reflect.DeepEqual(got, [][2]float64{{300, 300}, {100, 100}}) {
		t.Fatalf("sizes = %v", got)
	}
	if _, err := Split(context.Background(), in, nil); !errors.Is(err, ErrNoPages) {
		t.Fatalf("expected ErrNoPages, got %v", err)
	}
	if _, err := Split(context.Background(), in, []int{4}); !errors.Is(err, ErrPageRange) {
		t.Fatalf("expected ErrPageRange, got %v", err)
	}
}

func TestCompressName(t *testing.T) {
	out, err := Compress(context.Background(), pdfFile(t, "/tmp/x/big.pdf", [2]float64{100, 100}))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if out.Name != "compressed_big.pdf" || len(out.Data) == 0 {
		t.Fatalf("unexpected result %q (%d bytes)", out.Name, len(out.Data))
	}
}

func TestRotate(t *testing.T) {
	in := pdfFile(t, "r.pdf", [2]float64{100, 200}, [2]float64{100, 200})
	out, err := Rotate(context.Background(), in, 90, []int{2})
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if out.Name != "rotated_r.pdf" {
		t.Fatalf("name = %q", out.Name)
	}
	if got := pageSizes(t, out); !reflect.DeepEqual(got, [][2]float64{{100, 200}, {200, 100}}) {
		t.Fatalf("sizes = %v", got)
	}
	all, err := Rotate(context.Background(), in, 360, nil)
	if err != nil {
		t.Fatalf("Rotate all: %v", err)
	}
	if got := pageSizes(t, all); !reflect.DeepEqual(got, [][2]float64{{100, 200}, {100, 200}}) {
		t.Fatalf("full turn changed sizes: %v", got)
	}
	if _, err := Rotate(context.Background(), in, 90, []int{0}); !errors.Is(err, ErrPageRange) {
		t.Fatalf("expected ErrPageRange, got %v", err)
	}
}

func signaturePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 20, 10))
	for x := 0; x < 20; x++ {
		img.Set(x, 5, color.NRGBA{A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png: %v", err)
	}
	return buf.Bytes()
}

func TestSign(t *testing.T) {
	in := pdfFile(t, "contract.pdf", [2]float64{300, 300})
	out, err := Sign(context.Background(), in, signaturePNG(t), SignOptions{Page: 1, X: 10, Y: 10, Width: 100})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if out.Name != "signed_contract.pdf" || len(out.Data) == 0 {
		t.Fatalf("unexpected result %q", out.Name)
	}
	if _, err := Sign(context.Background(), in, []byte("text"), SignOptions{Page: 1}); !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
	if _, err := Sign(context.Background(), in, signaturePNG(t), SignOptions{Page: 2}); !errors.Is(err, ErrPageRange) {
		t.Fatalf("expected ErrPageRange, got %v", err)
	}
}

func TestParsePages(t *testing.T) {
	cases := []struct {
		in   string
		want []int
		err  error
	}{
		{"1-3,5", []int{1, 2, 3, 5}, nil},
		{"4-, 1", []int{1, 4, 5}, nil},
		{"-2", []int{1, 2}, nil},
		{"2,2,1", []int{1, 2}, nil},
		{"", nil, ErrNoPages},
		{"6", nil, ErrPageRange},
		{"3-2", nil, ErrPageRange},
	}
	for _, c := range cases {
		got, err := ParsePages(c.in, 5)
		if c.err != nil {
			if !errors.Is(err, c.err) {
				t.Errorf("%q: expected %v, got %v", c.in, c.err, err)
			}
			continue
		}
		if err != nil || !reflect.DeepEqual(got, c.want) {
			t.Errorf("%q: got %v %v, want %v", c.in, got, err, c.want)
		}
	}
	if _, err := ParsePages("x", 5); err == nil {
		t.Fatalf("expected error for non-numeric page")
	}
}
