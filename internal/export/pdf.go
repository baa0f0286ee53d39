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
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"editpdfs/internal/domain"
	applog "editpdfs/internal/log"
	"editpdfs/internal/pdfdoc"
	"editpdfs/internal/textlayout"
)

var (
	// ErrExport wraps every failure that aborts an export.
	ErrExport = errors.New("export failed")
	// ErrLoad is returned when the source document cannot be read.
	ErrLoad = pdfdoc.ErrLoad
)

// Options controls Export.
type Options struct {
	Compress bool
	Title    string
	// Provider measures text for wrapping and rule lengths. Nil uses the
	// bundled Go fonts.
	Provider textlayout.Provider
}

var (
	defaultProviderOnce sync.Once
	defaultProvider     textlayout.Provider
)

func providerOr(p textlayout.Provider) textlayout.Provider {
	if p != nil {
		return p
	}
	defaultProviderOnce.Do(func() { defaultProvider = textlayout.DefaultProvider() })
	return defaultProvider
}

// EditedFileName derives the download name of an exported document.
func EditedFileName(name string) string { return SuffixedFileName(name, "_edited") }

// SuffixedFileName appends suffix to the base name of name and forces a
// .pdf extension. An empty suffix falls back to "_edited".
func SuffixedFileName(name, suffix string) string {
	if strings.TrimSpace(suffix) == "" {
		suffix = "_edited"
	}
	base := filepath.Base(strings.TrimSpace(name))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		base = "document"
	}
	return base + suffix + ".pdf"
}

// Export loads src, applies the session state and writes the result to w.
func Export(ctx context.Context, src []byte, st domain.SessionState, w io.Writer, opts Options) error {
	logger := applog.WithOperation(applog.WithComponent("export"), "export")
	doc, err := pdfdoc.Load(src)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	out, err := apply(ctx, doc, st, providerOr(opts.Provider))
	if err != nil {
		return err
	}
	title := opts.Title
	if title == "" {
		title = st.FileName
	}
	if err := out.Save(w, pdfdoc.SaveOptions{Compress: opts.Compress, Title: title}); err != nil {
		return fmt.Errorf("%w: %w", ErrExport, err)
	}
	logger.Info("exported", "file", st.FileName, "pages", out.PageCount(), "objects", len(st.Objects), "text_edits", len(st.TextEdits))
	return nil
}

// Apply draws the session's objects and text edits onto doc, applies page
// rotations and returns the document to save. When pages were deleted or
// reordered the result is a new document holding only the surviving pages
// in display order; otherwise doc itself is returned.
func Apply(ctx context.Context, doc *pdfdoc.Document, st domain.SessionState) (*pdfdoc.Document, error) {
	return apply(ctx, doc, st, providerOr(nil))
}

func apply(ctx context.Context, doc *pdfdoc.Document, st domain.SessionState, prov textlayout.Provider) (*pdfdoc.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrExport)
	}
	logger := applog.WithComponent("export")
	deleted := make(map[int]bool, len(st.Pages.Deleted))
	for _, n := range st.Pages.Deleted {
		deleted[n] = true
	}
	target := func(n int) *pdfdoc.Page {
		if n < 1 || n > doc.PageCount() || deleted[n] {
			return nil
		}
		p, err := doc.Page(n - 1)
		if err != nil {
			return nil
		}
		return p
	}
	r := &renderer{doc: doc, prov: prov, wrap: textlayout.NewWordWrap(prov)}

	for _, o := range st.Objects {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExport, err)
		}
		p := target(o.PageNumber)
		if p == nil {
			logger.Debug("skip object", "id", o.ID, "page", o.PageNumber)
			continue
		}
		if err := r.object(p, o); err != nil {
			if errors.Is(err, errEmbed) {
				logger.Warn("skip image", "id", o.ID, "type", string(o.Type), "error", err)
				continue
			}
			return nil, fmt.Errorf("%w: object %s: %w", ErrExport, o.ID, err)
		}
	}
	for _, e := range st.TextEdits {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrExport, err)
		}
		if p := target(e.PageNumber); p != nil {
			r.textEdit(p, e)
		}
	}
	for n, deg := range st.Pages.Rotations {
		if p := target(n); p != nil {
			p.SetRotation(p.Rotation() + deg)
		}
	}

	if !needsRebuild(st, doc.PageCount()) {
		return doc, nil
	}
	var keep []int
	for _, n := range st.Pages.Order {
		if n >= 1 && n <= doc.PageCount() && !deleted[n] {
			keep = append(keep, n-1)
		}
	}
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: no pages left", ErrExport)
	}
	out := pdfdoc.New()
	pages, err := out.CopyPages(doc, keep)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExport, err)
	}
	for _, p := range pages {
		out.AppendPage(p)
	}
	return out, nil
}

// needsRebuild reports whether the display order differs from the identity
// order of an n-page document.
func needsRebuild(st domain.SessionState, n int) bool {
	if len(st.Pages.Deleted) > 0 {
		return true
	}
	if len(st.Pages.Order) == 0 {
		return false
	}
	if len(st.Pages.Order) != n {
		return true
	}
	for i, p := range st.Pages.Order {
		if p != i+1 {
			return true
		}
	}
	return false
}
