/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"markcanvas/internal/canvas"
	applog "markcanvas/internal/log"
	"markcanvas/internal/storage"
	"markcanvas/internal/vector"
)

// WritePDF writes a single-page PDF whose page is the image size in points,
// one point per image pixel.
func WritePDF(w io.Writer, doc storage.Document, opt Options) error {
	f := FrameFor(doc, opt)
	pw, ph := f.Viewport.W, f.Viewport.H

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: pw, Ht: ph},
	})
	pdf.SetTitle(doc.Image.Path, true)
	pdf.SetCreator(applog.AppName, false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	bg := opt.background()
	pdf.SetFillColor(int(bg.R), int(bg.G), int(bg.B))
	pdf.Rect(0, 0, pw, ph, "F")
	if imageDrawable(doc, opt) {
		pdf.ImageOptions(opt.ImagePath, 0, 0, pw, ph, false, gofpdf.ImageOptions{}, 0, "")
	}
	for _, it := range f.Items {
		pdfItem(pdf, it)
	}
	pdf.SetAlpha(1, "Normal")
	if opt.Labels {
		pdfLabels(pdf, f.Items, opt)
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func pdfItem(pdf *gofpdf.Fpdf, it canvas.Item) {
	if len(it.Points) < 2 {
		return
	}
	pts := make([]gofpdf.PointType, len(it.Points))
	for i, p := range it.Points {
		pts[i] = gofpdf.PointType{X: p.X, Y: p.Y}
	}
	st := it.Style
	if it.Closed && st.Fill.Enabled && st.Fill.Color.A > 0 {
		setAlpha(pdf, st.Fill.Color)
		pdf.SetFillColor(int(st.Fill.Color.R), int(st.Fill.Color.G), int(st.Fill.Color.B))
		pdf.Polygon(pts, "F")
	}
	if !st.Stroke.Enabled || st.Stroke.Width <= 0 || st.Stroke.Color.A == 0 {
		return
	}
	setAlpha(pdf, st.Stroke.Color)
	pdf.SetDrawColor(int(st.Stroke.Color.R), int(st.Stroke.Color.G), int(st.Stroke.Color.B))
	pdf.SetLineWidth(st.Stroke.Width)
	if it.Closed {
		pdf.Polygon(pts, "D")
		return
	}
	pdf.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		pdf.LineTo(p.X, p.Y)
	}
	pdf.DrawPath("D")
}

func setAlpha(pdf *gofpdf.Fpdf, c vector.Color) {
	pdf.SetAlpha(float64(c.A)/255, "Normal")
}

// pdfLabels uses the core Helvetica font; names are converted to cp1252.
func pdfLabels(pdf *gofpdf.Fpdf, items []canvas.Item, opt Options) {
	size := opt.LabelSize
	if size <= 0 {
		size = defaultLabelSize
	}
	pdf.SetFont("Helvetica", "", size)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	m := func(s string) float64 { return pdf.GetStringWidth(tr(s)) }
	for _, lb := range placeLabels(items, m, size*0.75) {
		pdf.SetTextColor(int(lb.Color.R), int(lb.Color.G), int(lb.Color.B))
		pdf.Text(lb.At.X, lb.At.Y, tr(lb.Text))
	}
}
