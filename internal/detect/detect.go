/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package detect turns external recognisers into detection shapes for the
// canvas. The OCR backend needs the tesseract build tag; without it
// NewTesseract returns ErrUnavailable.
package detect

import (
	"context"
	"errors"
	"strings"

	"markcanvas/internal/vector"
)

// ErrUnavailable is returned when a detector was not compiled in.
var ErrUnavailable = errors.New("detector not available in this build")

// Box is one recognised region in image-pixel space. Confidence is 0..100.
type Box struct {
	Text       string
	Bounds     vector.Rect
	Confidence float64
}

// TextDetector finds words in an image file.
type TextDetector interface {
	Detect(ctx context.Context, imagePath string) ([]Box, error)
	Close() error
}

// Style is the default paint for OCR detections.
func Style() vector.Style {
	return vector.Style{Stroke: vector.Stroke{Color: vector.Color{R: 20, G: 170, B: 60, A: 255}, Width: 1, Enabled: true}}
}

// FromBoxes converts boxes into rectangle shapes named by their text. Boxes
// with blank text, confidence below minConfidence or no area are dropped.
func FromBoxes(boxes []Box, minConfidence float64, style vector.Style) []vector.Shape {
	out := make([]vector.Shape, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Text)
		if text == "" || b.Confidence < minConfidence {
			continue
		}
		g, err := vector.NewRectangle(b.Bounds.Min(), b.Bounds.Max())
		if err != nil {
			continue
		}
		out = append(out, vector.NewShape(text, style, g))
	}
	return out
}

// Run detects words in imagePath and converts them with FromBoxes.
func Run(ctx context.Context, d TextDetector, imagePath string, minConfidence float64) ([]vector.Shape, error) {
	boxes, err := d.Detect(ctx, imagePath)
	if err != nil {
		return nil, err
	}
	return FromBoxes(boxes, minConfidence, Style()), nil
}
