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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	annot "markcanvas/internal/canvas"
	"markcanvas/internal/config"
	"markcanvas/internal/crash"
	"markcanvas/internal/detect"
	"markcanvas/internal/export"
	applog "markcanvas/internal/log"
	"markcanvas/internal/storage"
	"markcanvas/internal/version"
)

// minOCRConfidence drops low-confidence words from text detection.
const minOCRConfidence = 60

// Run starts the desktop editor. root may name a document directory to open.
func Run(root string, cfg config.AppConfig) error {
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	var h *storage.Handle
	defer crash.Recover(func() *storage.Handle { return h })

	ctrl := annot.New(cfg.Canvas.Settings())
	if st, err := cfg.Canvas.Style(); err != nil {
		l.Warn("invalid style in config; using default", slog.Any("err", err))
	} else {
		ctrl.SetStyle(st)
	}

	fyneApp := app.NewWithID(applog.AppName)
	w := fyneApp.NewWindow("markcanvas")
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 1200)
	winH := prefs.IntWithFallback("window.height", 800)
	w.Resize(fyne.NewSize(float32(max(winW, 800)), float32(max(winH, 600))))

	status := widget.NewLabel("Ready")
	ac := NewAnnotCanvas(ctrl)

	imagePath := func() string {
		if h == nil || h.Doc.Image.Path == "" {
			return ""
		}
		if filepath.IsAbs(h.Doc.Image.Path) {
			return h.Doc.Image.Path
		}
		return filepath.Join(h.Root, h.Doc.Image.Path)
	}

	// Sidebar: shape list, name and visibility of the selection.
	syncing := false
	shapeList := widget.NewList(
		func() int { return ctrl.Len() },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(i widget.ListItemID, o fyne.CanvasObject) {
			if s, ok := ctrl.Shape(int(i)); ok {
				o.(*widget.Label).SetText(fmt.Sprintf("%s (%s)", s.Name, s.Kind()))
			}
		},
	)
	nameEntry := widget.NewEntry()
	nameEntry.SetPlaceHolder("Shape name")
	visibleCheck := widget.NewCheck("Visible", nil)

	var toolSelect *widget.Select
	updateStatus := func() {
		doc := "no document"
		if h != nil {
			doc = h.Root
		}
		status.SetText(fmt.Sprintf("%s | %s | %v | zoom %.2f | %d shapes", doc, ctrl.Tool(), ctrl.Interaction(), ctrl.Zoom(), ctrl.Len()))
	}
	sync := func() {
		syncing = true
		defer func() { syncing = false }()
		shapeList.Refresh()
		if toolSelect != nil {
			toolSelect.SetSelected(ctrl.Tool().String())
		}
		if i, ok := ctrl.Selection(); ok {
			s, _ := ctrl.Shape(i)
			shapeList.Select(i)
			nameEntry.SetText(s.Name)
			visibleCheck.SetChecked(s.Visible)
			if ctrl.ConsumeFocusRequest() {
				w.Canvas().Focus(nameEntry)
			}
		} else {
			shapeList.UnselectAll()
			nameEntry.SetText("")
		}
		updateStatus()
	}
	ac.OnChanged = sync

	shapeList.OnSelected = func(id widget.ListItemID) {
		if syncing {
			return
		}
		ctrl.Select(int(id))
		ctrl.ConsumeFocusRequest()
		ac.Refresh()
		sync()
	}
	nameEntry.OnSubmitted = func(name string) {
		if i, ok := ctrl.Selection(); ok && ctrl.Rename(i, strings.TrimSpace(name)) {
			w.Canvas().Unfocus()
			ac.Refresh()
			sync()
		}
	}
	visibleCheck.OnChanged = func(v bool) {
		if syncing {
			return
		}
		if i, ok := ctrl.Selection(); ok && ctrl.SetVisible(i, v) {
			ac.Refresh()
		}
	}

	load := func(root string) error {
		nh, err := storage.Open(root)
		if err != nil {
			return err
		}
		h = nh
		ctrl.SetImageSize(h.Doc.Image.Size())
		ctrl.Restore(h.Doc.State)
		ac.SetImage(imagePath())
		addRecentDocument(prefs, h.Root)
		l.Info("document opened", slog.String("root", h.Root), slog.Int("shapes", ctrl.Len()))
		sync()
		return nil
	}

	save := func() {
		if h == nil {
			dialog.ShowInformation("Save", "No document open", w)
			return
		}
		h.Doc.State = ctrl.Snapshot()
		if err := storage.Save(h); err != nil {
			l.Error("save failed", slog.Any("err", err))
			dialog.ShowError(err, w)
			return
		}
		ctx, cancel := context.WithTimeout(applog.WithDocument(context.Background(), h.DocumentPath), 10*time.Second)
		defer cancel()
		if !cfg.Storage.DisableIndex {
			if err := storage.ReindexDocument(ctx, h.Root, h.Doc); err != nil {
				l.Warn("reindex failed", slog.Any("err", err))
			}
		}
		if n, err := storage.PruneBackups(h.Root, cfg.Storage.BackupsKept); err != nil {
			l.Warn("prune backups failed", slog.Any("err", err))
		} else if n > 0 {
			l.Debug("pruned backups", slog.Int("removed", n))
		}
		status.SetText("Saved " + h.DocumentPath)
	}

	handle := func(a Action) {
		if a == ActionSave {
			save()
			return
		}
		if Apply(ctrl, a) {
			ac.Refresh()
			sync()
		}
	}

	tools := []string{"select", "rectangle", "circle", "freehand", "edit", "rotate"}
	toolSelect = widget.NewSelect(tools, func(s string) {
		if t, err := annot.ParseTool(s); err == nil && t != ctrl.Tool() {
			ctrl.SetTool(t)
			ac.Refresh()
			updateStatus()
		}
	})
	toolSelect.SetSelected(ctrl.Tool().String())

	gridCheck := widget.NewCheck("Grid", func(v bool) {
		ctrl.SetGridVisible(v)
		ac.Refresh()
	})
	fieldCheck := widget.NewCheck("Edit fields", func(v bool) {
		ctrl.SetFieldEditing(v)
		ac.Refresh()
	})

	openBtn := widget.NewButton("Open…", func() {
		dialog.ShowFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil || uri == nil {
				return
			}
			if err := load(uri.Path()); err != nil {
				dialog.ShowError(err, w)
			}
		}, w)
	})
	recent := widget.NewSelect(loadRecentDocuments(prefs), func(s string) {
		if s == "" || (h != nil && h.Root == s) {
			return
		}
		if err := load(s); err != nil {
			dialog.ShowError(err, w)
		}
	})
	recent.PlaceHolder = "Recent documents"

	formats := widget.NewSelect([]string{"png", "pdf", "svg"}, nil)
	formats.SetSelected("png")
	exportBtn := widget.NewButton("Export", func() {
		if h == nil {
			return
		}
		h.Doc.State = ctrl.Snapshot()
		out, err := export.WriteFile(h.Doc, h.Root, "annotations."+formats.Selected, export.Options{ImagePath: imagePath()})
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		dialog.ShowInformation("Export", "Wrote "+out, w)
	})

	detectBtn := widget.NewButton("Detect text", func() {
		if imagePath() == "" {
			dialog.ShowInformation("Detect text", "Open a document with an image first", w)
			return
		}
		d, err := detect.NewTesseract("eng", "")
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		defer d.Close()
		shapes, err := detect.Run(context.Background(), d, imagePath(), minOCRConfidence)
		if err != nil {
			dialog.ShowError(err, w)
			return
		}
		ctrl.SetDetections(shapes)
		l.Info("text detected", slog.Int("boxes", len(shapes)))
		ac.Refresh()
		updateStatus()
	})

	fieldBtn := widget.NewButton("Make field", func() {
		i, ok := ctrl.Selection()
		if !ok {
			return
		}
		s, _ := ctrl.Shape(i)
		ctrl.SetFields(append(ctrl.Fields(), annot.Field{Name: s.Name, Bounds: s.Bounds()}))
		ac.Refresh()
	})

	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) { handle(ActionFor(string(ev.Name))) })
	for _, chord := range Chords() {
		w.Canvas().AddShortcut(shortcutFor(chord), func(fyne.Shortcut) { handle(ActionFor(chord)) })
	}

	toolbar := container.NewHBox(openBtn, recent, widget.NewSeparator(), toolSelect, gridCheck, fieldCheck,
		widget.NewSeparator(), detectBtn, fieldBtn, widget.NewSeparator(), formats, exportBtn)
	sidebar := container.NewBorder(container.NewVBox(widget.NewLabel("Shapes"), nameEntry, visibleCheck), nil, nil, nil, shapeList)
	split := container.NewHSplit(ac, sidebar)
	split.Offset = 0.78
	w.SetContent(container.NewBorder(toolbar, status, nil, nil, split))

	w.SetOnClosed(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		l.Info("UI closed")
	})

	if root != "" {
		if err := load(root); err != nil {
			return fmt.Errorf("open %s: %w", root, err)
		}
	}
	updateStatus()
	w.ShowAndRun()
	return nil
}

// shortcutFor parses a chord such as "Ctrl+Shift+Z".
func shortcutFor(chord string) *desktop.CustomShortcut {
	parts := strings.Split(chord, "+")
	var mod fyne.KeyModifier
	for _, p := range parts[:len(parts)-1] {
		switch p {
		case "Ctrl":
			mod |= fyne.KeyModifierShortcutDefault
		case "Shift":
			mod |= fyne.KeyModifierShift
		}
	}
	return &desktop.CustomShortcut{KeyName: fyne.KeyName(parts[len(parts)-1]), Modifier: mod}
}

// Recent documents are kept in the app preferences as a JSON list.
const (
	recentPrefsKey = "recent.documents"
	recentMax      = 10
)

func loadRecentDocuments(p fyne.Preferences) []string {
	var items []string
	if raw := p.StringWithFallback(recentPrefsKey, ""); strings.TrimSpace(raw) != "" {
		_ = json.Unmarshal([]byte(raw), &items)
	}
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(s, storage.DocumentFileName)); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func addRecentDocument(p fyne.Preferences, root string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return
	}
	out := []string{abs}
	for _, s := range loadRecentDocuments(p) {
		if !strings.EqualFold(s, abs) {
			out = append(out, s)
		}
	}
	if len(out) > recentMax {
		out = out[:recentMax]
	}
	b, _ := json.Marshal(out)
	p.SetString(recentPrefsKey, string(b))
}
