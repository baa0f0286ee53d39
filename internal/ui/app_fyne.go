//go:build fyne && cgo

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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"editpdfs/internal/config"
	"editpdfs/internal/crash"
	"editpdfs/internal/domain"
	"editpdfs/internal/editor"
	"editpdfs/internal/export"
	applog "editpdfs/internal/log"
	"editpdfs/internal/pdfdoc"
	"editpdfs/internal/storage"
	"editpdfs/internal/version"
)

// openDoc is the document currently shown in the window.
type openDoc struct {
	name string
	path string
	src  []byte
	pdf  *pdfdoc.Document
	sess *editor.Session
}

// snapshotKeep bounds the checkpoints stored per session.
const snapshotKeep = 20

// Run starts the Fyne-based desktop editor. Pass an optional PDF path to open immediately.
func Run(path string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	cfg, _, err := config.Load()
	if err != nil {
		l.Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}

	var cur *openDoc
	crashDir, _ := config.ConfigDir()
	defer crash.Recover(&crash.Target{Dir: crashDir, State: func() (domain.SessionState, bool) {
		if cur == nil {
			return domain.SessionState{}, false
		}
		return cur.sess.State(), true
	}})

	ctx := context.Background()
	var store *storage.Store
	if dbPath, err := cfg.Storage.ResolveDBPath(); err == nil {
		s, recovered, err := storage.OpenOrRecover(ctx, dbPath)
		switch {
		case err != nil:
			l.Warn("session store unavailable", slog.Any("err", err))
		case recovered:
			l.Warn("session store was corrupt and has been recreated", slog.String("path", dbPath))
			store = s
		default:
			store = s
		}
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	fyneApp := app.NewWithID("editpdfs")
	w := fyneApp.NewWindow("editpdfs")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1200)
	winH := prefs.IntWithFallback("window.height", 800)
	if winW < 800 {
		winW = 800
	}
	if winH < 600 {
		winH = 600
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	status := widget.NewLabel("Open a PDF to start")
	pc := NewPageCanvas(cfg.Editor)

	// Pages (left)
	pagesDisplay := []string{}
	pagesList := widget.NewList(
		func() int { return len(pagesDisplay) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(pagesDisplay[i]) },
	)
	// Objects on the current page (right)
	objDisplay := []string{}
	objIDs := []string{}
	objList := widget.NewList(
		func() int { return len(objDisplay) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) { o.(*widget.Label).SetText(objDisplay[i]) },
	)

	refreshLists := func() {
		pagesDisplay = pagesDisplay[:0]
		objDisplay = objDisplay[:0]
		objIDs = objIDs[:0]
		if cur != nil {
			for _, n := range cur.sess.PageOrder() {
				label := "Page " + strconv.Itoa(n)
				if r := cur.sess.Rotation(n); r != 0 {
					label += fmt.Sprintf(" (%d°)", r)
				}
				pagesDisplay = append(pagesDisplay, label)
			}
			for _, o := range cur.sess.ObjectsOnPage(cur.sess.CurrentPage()) {
				objDisplay = append(objDisplay, describe(o))
				objIDs = append(objIDs, o.ID)
			}
		}
		pagesList.Refresh()
		objList.Refresh()
	}
	updateStatus := func() {
		if cur == nil {
			status.SetText("Open a PDF to start")
			return
		}
		s := cur.sess
		status.SetText(fmt.Sprintf("%s  page %d (%d visible)  zoom %.0f%%  tool %s  undo:%v redo:%v",
			cur.name, s.CurrentPage(), len(s.PageOrder()), s.Zoom(), pc.Tool(), s.CanUndo(), s.CanRedo()))
	}
	pc.OnChanged = func() {
		refreshLists()
		updateStatus()
	}
	pagesList.OnSelected = func(id widget.ListItemID) {
		if cur == nil {
			return
		}
		order := cur.sess.PageOrder()
		if int(id) < len(order) {
			_ = cur.sess.GoToPage(order[id])
			pc.Refresh()
			pc.OnChanged()
		}
	}
	objList.OnSelected = func(id widget.ListItemID) {
		if cur != nil && int(id) < len(objIDs) {
			cur.sess.Select(objIDs[id])
			pc.Refresh()
		}
	}

	saveSession := func() {
		if cur == nil || store == nil {
			return
		}
		ctx := applog.ContextWithSession(ctx, cur.sess.ID())
		st := cur.sess.State()
		if err := store.SaveSession(ctx, cur.sess.ID(), st); err != nil {
			dialog.ShowError(err, w)
			return
		}
		snap := domain.Snapshot{Objects: st.Objects, TextEdits: st.TextEdits}
		if err := store.SaveSnapshot(ctx, cur.sess.ID(), snap, time.Now()); err != nil {
			l.Warn("snapshot failed", slog.Any("err", err))
		} else if _, err := store.PruneSnapshots(ctx, cur.sess.ID(), snapshotKeep); err != nil {
			l.Warn("snapshot prune failed", slog.Any("err", err))
		}
		l.InfoContext(ctx, "session saved", slog.String("file", cur.name))
		status.SetText("Session saved")
	}

	show := func(d *openDoc) {
		cur = d
		pc.SetDocument(d.pdf, d.sess)
		w.SetTitle("editpdfs - " + d.name)
		pc.OnChanged()
	}

	offerResume := func(d *openDoc) {
		if store == nil {
			return
		}
		infos, err := store.ListSessions(ctx, 50)
		if err != nil {
			l.Warn("list sessions failed", slog.Any("err", err))
			return
		}
		for _, info := range infos {
			if info.FileName != d.name || info.PageCount != d.pdf.PageCount() {
				continue
			}
			msg := fmt.Sprintf("Edits for %s were saved %s. Resume them?", info.FileName, info.UpdatedAt.Local().Format("2006-01-02 15:04"))
			dialog.ShowConfirm("Resume session", msg, func(ok bool) {
				if !ok {
					return
				}
				st, _, err := store.LoadSession(ctx, info.ID)
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				sess, err := editor.FromState(st, editor.Config{ID: info.ID, HistoryDepth: cfg.Editor.HistoryDepth})
				if err != nil {
					dialog.ShowError(err, w)
					return
				}
				show(&openDoc{name: d.name, path: d.path, src: d.src, pdf: d.pdf, sess: sess})
				l.Info("session resumed", slog.String("id", info.ID))
			}, w)
			return
		}
	}

	openBytes := func(name, path string, data []byte) {
		doc, err := pdfdoc.Load(data)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		sess, err := editor.New(name, doc.PageCount(), editor.Config{HistoryDepth: cfg.Editor.HistoryDepth, Zoom: cfg.Editor.Zoom})
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		d := &openDoc{name: name, path: path, src: data, pdf: doc, sess: sess}
		show(d)
		if path != "" {
			addRecentFile(prefs, path)
		}
		l.Info("document opened", slog.String("file", name), slog.Int("pages", doc.PageCount()))
		offerResume(d)
	}
	openPath := func(p string) {
		data, err := os.ReadFile(p)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		openBytes(filepath.Base(p), p, data)
	}
	openDialog := func() {
		d := dialog.NewFileOpen(func(r fyne.URIReadCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if r == nil {
				return
			}
			defer func() { _ = r.Close() }()
			data, err := io.ReadAll(r)
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			openBytes(r.URI().Name(), r.URI().Path(), data)
		}, w)
		d.SetFilter(fstorage.NewExtensionFileFilter([]string{".pdf"}))
		d.Show()
	}

	exportDialog := func() {
		if cur == nil {
			return
		}
		d := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if wc == nil {
				return
			}
			defer func() { _ = wc.Close() }()
			ctx := applog.ContextWithSession(ctx, cur.sess.ID())
			opts := export.Options{Compress: cfg.Export.Compress, Title: cur.name}
			if err := export.Export(ctx, cur.src, cur.sess.State(), wc, opts); err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Exported to " + wc.URI().Name())
		}, w)
		d.SetFileName(export.SuffixedFileName(cur.name, cfg.Export.Suffix))
		d.Show()
	}

	saveSessionFileDialog := func() {
		if cur == nil {
			return
		}
		d := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
			if err != nil || wc == nil {
				if err != nil {
					dialog.ShowError(err, w)
				}
				return
			}
			p := wc.URI().Path()
			_ = wc.Close()
			if err := storage.WriteSessionFile(p, cur.sess.State()); err != nil {
				dialog.ShowError(err, w)
				return
			}
			status.SetText("Session written to " + filepath.Base(p))
		}, w)
		d.SetFileName(strings.TrimSuffix(cur.name, filepath.Ext(cur.name)) + storage.SessionFileExt)
		d.Show()
	}

	editSelectedText := func() {
		if cur == nil {
			return
		}
		o, ok := cur.sess.Selected()
		if !ok || (o.Type != domain.ObjectText && o.Type != domain.ObjectStamp && o.Type != domain.ObjectLink) {
			return
		}
		entry := widget.NewMultiLineEntry()
		entry.SetText(o.Content)
		items := []*widget.FormItem{widget.NewFormItem("Text", entry)}
		var urlEntry *widget.Entry
		if o.Type == domain.ObjectLink {
			urlEntry = widget.NewEntry()
			urlEntry.SetText(o.URL)
			items = append(items, widget.NewFormItem("URL", urlEntry))
		}
		dialog.ShowForm("Edit "+string(o.Type), "Apply", "Cancel", items, func(ok bool) {
			if !ok {
				return
			}
			cur.sess.UpdateObject(o.ID, func(obj *domain.EditorObject) {
				obj.Content = entry.Text
				if urlEntry != nil {
					obj.URL = strings.TrimSpace(urlEntry.Text)
				}
			})
			cur.sess.CommitObjectChange()
			pc.Refresh()
			pc.OnChanged()
		}, w)
	}
	pc.OnEdit = editSelectedText

	undo := func() {
		if cur != nil && cur.sess.Undo() {
			pc.Refresh()
			pc.OnChanged()
		}
	}
	redo := func() {
		if cur != nil && cur.sess.Redo() {
			pc.Refresh()
			pc.OnChanged()
		}
	}
	deleteSelected := func() {
		if cur == nil {
			return
		}
		if o, ok := cur.sess.Selected(); ok {
			cur.sess.DeleteObject(o.ID)
			pc.Refresh()
			pc.OnChanged()
		}
	}
	deletePage := func() {
		if cur == nil {
			return
		}
		if err := cur.sess.DeletePage(cur.sess.CurrentPage()); err != nil {
			dialog.ShowError(err, w)
			return
		}
		pc.Refresh()
		pc.OnChanged()
	}
	restorePages := func() {
		if cur == nil {
			return
		}
		for _, p := range cur.sess.DeletedPages() {
			_ = cur.sess.RestorePage(p)
		}
		pc.Refresh()
		pc.OnChanged()
	}
	rotatePage := func() {
		if cur == nil {
			return
		}
		if _, err := cur.sess.RotatePage(cur.sess.CurrentPage(), 90); err != nil {
			dialog.ShowError(err, w)
			return
		}
		pc.OnChanged()
	}
	movePage := func(delta int) {
		if cur == nil {
			return
		}
		page := cur.sess.CurrentPage()
		order := cur.sess.PageOrder()
		for i, p := range order {
			if p == page {
				if err := cur.sess.MovePage(page, i+delta); err == nil {
					pc.OnChanged()
				}
				return
			}
		}
	}
	stepPage := func(delta int) {
		if cur == nil {
			return
		}
		order := cur.sess.PageOrder()
		for i, p := range order {
			if p == cur.sess.CurrentPage() {
				if j := i + delta; j >= 0 && j < len(order) {
					_ = cur.sess.GoToPage(order[j])
					pc.Refresh()
					pc.OnChanged()
				}
				return
			}
		}
	}
	zoomBy := func(f float64) {
		if cur == nil {
			return
		}
		cur.sess.SetZoom(cur.sess.Zoom() * f)
		pc.Refresh()
		updateStatus()
	}

	toolNames := []string{toolSelect.String(), toolText.String(), toolRect.String(), toolWhiteout.String(), toolHighlight.String()}
	toolSelectW := widget.NewSelect(toolNames, func(s string) {
		for t := toolSelect; t <= toolHighlight; t++ {
			if t.String() == s {
				pc.SetTool(t)
			}
		}
		updateStatus()
	})
	toolSelectW.SetSelected(toolSelect.String())

	toolbar := widget.NewToolbar(
		widget.NewToolbarAction(theme.FolderOpenIcon(), openDialog),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), saveSession),
		widget.NewToolbarAction(theme.DownloadIcon(), exportDialog),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), undo),
		widget.NewToolbarAction(theme.ContentRedoIcon(), redo),
		widget.NewToolbarAction(theme.DeleteIcon(), deleteSelected),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.NavigateBackIcon(), func() { stepPage(-1) }),
		widget.NewToolbarAction(theme.NavigateNextIcon(), func() { stepPage(1) }),
		widget.NewToolbarAction(theme.ViewRefreshIcon(), rotatePage),
		widget.NewToolbarAction(theme.ContentRemoveIcon(), deletePage),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { zoomBy(1 / 1.25) }),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { zoomBy(1.25) }),
	)

	recentMenu := fyne.NewMenuItem("Open Recent", nil)
	rebuildRecent := func() {
		var items []*fyne.MenuItem
		for _, p := range loadRecentFiles(prefs) {
			items = append(items, fyne.NewMenuItem(p, func() { openPath(p) }))
		}
		if len(items) == 0 {
			items = append(items, fyne.NewMenuItem("(none)", nil))
		}
		recentMenu.ChildMenu = fyne.NewMenu("", items...)
	}
	rebuildRecent()
	w.SetMainMenu(fyne.NewMainMenu(
		fyne.NewMenu("File",
			fyne.NewMenuItem("Open…", openDialog),
			recentMenu,
			fyne.NewMenuItemSeparator(),
			fyne.NewMenuItem("Save Session", saveSession),
			fyne.NewMenuItem("Save Session File…", saveSessionFileDialog),
			fyne.NewMenuItem("Export PDF…", exportDialog),
		),
		fyne.NewMenu("Edit",
			fyne.NewMenuItem("Undo", undo),
			fyne.NewMenuItem("Redo", redo),
			fyne.NewMenuItem("Edit Text…", editSelectedText),
			fyne.NewMenuItem("Delete Object", deleteSelected),
		),
		fyne.NewMenu("Page",
			fyne.NewMenuItem("Rotate 90°", rotatePage),
			fyne.NewMenuItem("Move Earlier", func() { movePage(-1) }),
			fyne.NewMenuItem("Move Later", func() { movePage(1) }),
			fyne.NewMenuItem("Delete Page", deletePage),
			fyne.NewMenuItem("Restore Deleted Pages", restorePages),
		),
		fyne.NewMenu("Help",
			fyne.NewMenuItem("About", func() {
				dialog.ShowInformation("About", "editpdfs "+version.String(), w)
			}),
		),
	))

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { undo() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { redo() })
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) { saveSession() })
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		switch ev.Name {
		case fyne.KeyDelete, fyne.KeyBackspace:
			deleteSelected()
		case fyne.KeyPageDown:
			stepPage(1)
		case fyne.KeyPageUp:
			stepPage(-1)
		case fyne.KeyEscape:
			pc.SetTool(toolSelect)
			toolSelectW.SetSelected(toolSelect.String())
		}
	})

	left := container.NewBorder(widget.NewLabel("Pages"), nil, nil, nil, pagesList)
	right := container.NewBorder(widget.NewLabel("Objects"), nil, nil, nil, objList)
	top := container.NewBorder(nil, nil, nil, toolSelectW, toolbar)
	split := container.NewHSplit(left, container.NewHSplit(pc, right))
	split.Offset = 0.15
	w.SetContent(container.NewBorder(top, status, nil, nil, split))

	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if cur != nil && cur.sess.CanUndo() && store != nil {
			saveSession()
		}
		w.Close()
	})

	if strings.TrimSpace(path) != "" {
		openPath(path)
		rebuildRecent()
	}
	w.ShowAndRun()
	l.Info("UI closed")
	return nil
}
