/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"markcanvas/internal/vector"
)

// Query filters the index. Layers restricts to the given layer names; Limit
// and Offset paginate with a default limit of 100.
type Query struct {
	Layers []string
	Limit  int
	Offset int
}

func (q Query) page() (int, int) {
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	return limit, max(q.Offset, 0)
}

// SearchByName runs a prefix match on annotation names. Every whitespace
// separated term must match; "inv tot" finds "Invoice total".
func SearchByName(ctx context.Context, root, text string, q Query) ([]Entry, error) {
	match := ftsPrefixQuery(text)
	if match == "" {
		return nil, errors.New("search text is empty")
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var sb strings.Builder
	args := []any{match}
	sb.WriteString(selectEntry + "\nFROM fts_annotations JOIN annotations a ON fts_annotations.rowid = a.row_id\n")
	sb.WriteString("WHERE fts_annotations MATCH ?\n")
	args = appendLayers(&sb, args, q.Layers)
	return queryEntries(ctx, db, &sb, args, q)
}

// QueryOverlapping returns annotations whose bounding box shares positive area with r.
func QueryOverlapping(ctx context.Context, root string, r vector.Rect, q Query) ([]Entry, error) {
	if r.Area() == 0 {
		return nil, nil
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var sb strings.Builder
	args := []any{r.X + r.W, r.X, r.Y + r.H, r.Y}
	sb.WriteString(selectEntry + "\nFROM annotations a\n")
	sb.WriteString("WHERE a.min_x < ? AND a.max_x > ? AND a.min_y < ? AND a.max_y > ?\n")
	args = appendLayers(&sb, args, q.Layers)
	return queryEntries(ctx, db, &sb, args, q)
}

// language=SQL
const selectEntry = `SELECT COALESCE(a.shape_id, ''), a.layer, a.ord, a.name, a.kind, a.min_x, a.min_y, a.max_x, a.max_y`

func appendLayers(sb *strings.Builder, args []any, layers []string) []any {
	if len(layers) == 0 {
		return args
	}
	sb.WriteString(" AND a.layer IN (" + placeholders(len(layers)) + ")\n")
	for _, l := range layers {
		args = append(args, l)
	}
	return args
}

func queryEntries(ctx context.Context, db *sql.DB, sb *strings.Builder, args []any, q Query) ([]Entry, error) {
	limit, offset := q.page()
	sb.WriteString("ORDER BY a.layer, a.ord\nLIMIT ? OFFSET ?")
	args = append(args, limit, offset)
	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("index query: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		var x0, y0, x1, y1 float64
		if err := rows.Scan(&e.ShapeID, &e.Layer, &e.Index, &e.Name, &e.Kind, &x0, &y0, &x1, &y1); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Bounds = vector.Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ftsPrefixQuery turns free text into an FTS5 query of quoted prefix terms.
func ftsPrefixQuery(text string) string {
	var terms []string
	for _, w := range strings.Fields(text) {
		terms = append(terms, `"`+strings.ReplaceAll(w, `"`, `""`)+`"*`)
	}
	return strings.Join(terms, " AND ")
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
