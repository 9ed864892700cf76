//go:build tesseract

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package detect

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"markcanvas/internal/vector"
)

// Tesseract detects words with the tesseract OCR engine.
type Tesseract struct {
	client *gosseract.Client
}

// NewTesseract creates an engine for lang (e.g. "eng"). A non-empty
// whitelist restricts the recognised characters.
func NewTesseract(lang, whitelist string) (TextDetector, error) {
	client := gosseract.NewClient()
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	if whitelist != "" {
		if err := client.SetWhitelist(whitelist); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	return &Tesseract{client: client}, nil
}

func (t *Tesseract) Close() error { return t.client.Close() }

// Detect runs word-level sparse text recognition on the image file.
func (t *Tesseract) Detect(ctx context.Context, imagePath string) ([]Box, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("set PSM: %w", err)
	}
	if err := t.client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("get boxes: %w", err)
	}
	out := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		out = append(out, Box{
			Text:       text,
			Bounds:     vector.R(float64(b.Box.Min.X), float64(b.Box.Min.Y), float64(b.Box.Dx()), float64(b.Box.Dy())),
			Confidence: b.Confidence,
		})
	}
	return out, nil
}
