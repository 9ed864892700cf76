/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestUndoRedoSwapsCurrentState(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerKey: 10, MinInterval: 10 * time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Key: "a", Blob: []byte("v1"), TS: t0})
	m.Push(Snapshot{Key: "a", Blob: []byte("v2"), TS: t0.Add(20 * time.Millisecond)})
	if _, keys, total := m.Stats(); keys != 1 || total != 2 {
		t.Fatalf("expected 1 key and 2 snapshots, got keys=%d total=%d", keys, total)
	}
	s, ok := m.Undo(Snapshot{Key: "a", Blob: []byte("v3")})
	if !ok || string(s.Blob) != "v2" {
		t.Fatalf("undo expected 'v2', got ok=%v blob=%q", ok, string(s.Blob))
	}
	s, ok = m.Redo(Snapshot{Key: "a", Blob: []byte("v2")})
	if !ok || string(s.Blob) != "v3" {
		t.Fatalf("redo expected 'v3', got ok=%v blob=%q", ok, string(s.Blob))
	}
	if u, r := m.Depth("a"); u != 2 || r != 0 {
		t.Fatalf("depth undo=%d redo=%d", u, r)
	}
}

func TestPushDropsRedo(t *testing.T) {
	m := NewManager(Config{})
	t0 := time.Now()
	m.Push(Snapshot{Key: "a", Blob: []byte("v1"), TS: t0})
	m.Undo(Snapshot{Key: "a", Blob: []byte("v2")})
	m.Push(Snapshot{Key: "a", Blob: []byte("v1b"), TS: t0.Add(time.Second)})
	if _, ok := m.Redo(Snapshot{Key: "a"}); ok {
		t.Fatalf("redo must be empty after a new edit")
	}
}

func TestCoalesceKeepsOlderState(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024 * 1024, MaxPerKey: 10, MinInterval: 50 * time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Key: "b", Blob: []byte("1"), TS: t0})
	m.Push(Snapshot{Key: "b", Blob: []byte("2"), TS: t0.Add(10 * time.Millisecond)})
	if _, _, total := m.Stats(); total != 1 {
		t.Fatalf("expected coalesced to 1 snapshot, got %d", total)
	}
	s, ok := m.Undo(Snapshot{Key: "b", Blob: []byte("3")})
	if !ok || string(s.Blob) != "1" {
		t.Fatalf("expected older snapshot '1', got ok=%v blob=%q", ok, string(s.Blob))
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MaxBytes: 20, MaxPerKey: 2, MinInterval: time.Millisecond})
	t0 := time.Now()
	for i := 0; i < 10; i++ {
		m.Push(Snapshot{Key: "c", Blob: []byte("xxxxx"), TS: t0.Add(time.Duration(i) * time.Second)})
	}
	if _, _, total := m.Stats(); total > 2 {
		t.Fatalf("expected MaxPerKey cap to limit to 2, got %d", total)
	}
}

func TestClearAndStats(t *testing.T) {
	m := NewManager(Config{MaxBytes: 1024, MinInterval: time.Millisecond})
	m.Push(Snapshot{Key: "k", Blob: []byte("abcdef"), TS: time.Now()})
	tb, keys, total := m.Stats()
	if tb == 0 || keys != 1 || total != 1 {
		t.Fatalf("unexpected stats before clear: tb=%d keys=%d total=%d", tb, keys, total)
	}
	m.Clear("k")
	tb2, keys2, total2 := m.Stats()
	if tb2 != 0 || keys2 != 0 || total2 != 0 {
		t.Fatalf("expected cleared stats to be zero, got tb=%d keys=%d total=%d", tb2, keys2, total2)
	}
}

func TestGlobalPruneAcrossKeys(t *testing.T) {
	m := NewManager(Config{MaxBytes: 8, MinInterval: time.Millisecond})
	t0 := time.Now()
	m.Push(Snapshot{Key: "old", Blob: []byte("xxxx"), TS: t0})
	m.Push(Snapshot{Key: "new", Blob: []byte("yyyy"), TS: t0.Add(time.Second)})
	m.Push(Snapshot{Key: "new", Blob: []byte("zzzz"), TS: t0.Add(2 * time.Second)})
	if _, ok := m.Undo(Snapshot{Key: "old"}); ok {
		t.Fatalf("expected oldest key to have been pruned")
	}
	if _, ok := m.Undo(Snapshot{Key: "new"}); !ok {
		t.Fatalf("expected newer key to keep snapshots")
	}
}
