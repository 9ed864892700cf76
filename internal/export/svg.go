/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"markcanvas/internal/canvas"
	"markcanvas/internal/storage"
	"markcanvas/internal/vector"
)

// WriteSVG writes the frame as SVG in image-pixel units.
func WriteSVG(w io.Writer, doc storage.Document, opt Options) error {
	f := FrameFor(doc, opt)
	bw := bufio.NewWriter(w)
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(bw, format, args...)
	}
	vw, vh := f.Viewport.W, f.Viewport.H
	bg := opt.background()

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%g\" height=\"%g\" viewBox=\"0 0 %g %g\">\n", vw, vh, vw, vh)
	wf("  <rect x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" fill=\"%s\"%s/>\n", vw, vh, svgColor(bg), opacity("fill-opacity", bg))
	if imageDrawable(doc, opt) {
		wf("  <image x=\"0\" y=\"0\" width=\"%g\" height=\"%g\" xlink:href=\"%s\"/>\n", vw, vh, escape(opt.ImagePath))
	}
	for _, it := range f.Items {
		wf("%s", svgItem(it))
	}
	if opt.Labels {
		face, err := labelFace(opt)
		if err != nil {
			return err
		}
		size := float64(face.Metrics().Height.Round())
		ascent := float64(face.Metrics().Ascent.Round())
		for _, lb := range placeLabels(f.Items, faceMeasure(face), ascent) {
			wf("  <text x=\"%s\" y=\"%s\" fill=\"%s\" font-family=\"monospace\" font-size=\"%s\" class=\"label\">%s</text>\n",
				num(lb.At.X), num(lb.At.Y), svgColor(lb.Color), num(size), escape(lb.Text))
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("write svg: %w", werr)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func svgItem(it canvas.Item) string {
	if len(it.Points) < 2 {
		return ""
	}
	tag := "polyline"
	if it.Closed {
		tag = "polygon"
	}
	pts := make([]string, len(it.Points))
	for i, p := range it.Points {
		pts[i] = num(p.X) + "," + num(p.Y)
	}
	st := it.Style
	fill := "none"
	var extra strings.Builder
	if it.Closed && st.Fill.Enabled {
		fill = svgColor(st.Fill.Color)
		extra.WriteString(opacity("fill-opacity", st.Fill.Color))
	}
	if st.Stroke.Enabled && st.Stroke.Width > 0 {
		fmt.Fprintf(&extra, " stroke=\"%s\" stroke-width=\"%s\"%s", svgColor(st.Stroke.Color), num(st.Stroke.Width), opacity("stroke-opacity", st.Stroke.Color))
	}
	fmt.Fprintf(&extra, " class=\"%s\"", it.Category)
	if it.Name == "" {
		return fmt.Sprintf("  <%s points=\"%s\" fill=\"%s\"%s/>\n", tag, strings.Join(pts, " "), fill, extra.String())
	}
	return fmt.Sprintf("  <%s points=\"%s\" fill=\"%s\"%s><title>%s</title></%s>\n", tag, strings.Join(pts, " "), fill, extra.String(), escape(it.Name), tag)
}

func num(v float64) string { return strconv.FormatFloat(vector.FloatRound(v, 3), 'f', -1, 64) }

func svgColor(c vector.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func opacity(attr string, c vector.Color) string {
	if c.A == 255 {
		return ""
	}
	return fmt.Sprintf(" %s=\"%s\"", attr, num(float64(c.A)/255))
}

func escape(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
