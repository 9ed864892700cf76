/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

type memTokens map[string]string

func (m memTokens) Get(service, key string) (string, error) {
	v, ok := m[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (m memTokens) Set(service, key, value string) error { m[service+"/"+key] = value; return nil }
func (m memTokens) Delete(service, key string) error {
	if _, ok := m[service+"/"+key]; !ok {
		return keyring.ErrNotFound
	}
	delete(m, service+"/"+key)
	return nil
}

// isolate points the config path at a temp file and swaps in an in-memory keyring.
func isolate(t *testing.T) (string, memTokens) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv(EnvConfigPath, path)
	for _, k := range []string{EnvBackendDSN, EnvBackendTimeoutMs, EnvMaxZoom, EnvBackupsKept, EnvLogLevel, EnvLogFormat, EnvLogSource, EnvLogFile} {
		t.Setenv(k, "")
	}
	mem := memTokens{}
	old := tokenStore
	tokenStore = mem
	t.Cleanup(func() { tokenStore = old })
	return path, mem
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "" {
		t.Fatalf("token = %q, want empty", tok)
	}
	d := Defaults()
	if cfg.Canvas != d.Canvas || cfg.Storage != d.Storage || cfg.Backend != d.Backend {
		t.Fatalf("cfg = %#v, want defaults", cfg)
	}
	if cfg.Canvas.MinZoom != 1 || cfg.Canvas.MaxZoom != 10 {
		t.Fatalf("zoom bounds = %v..%v", cfg.Canvas.MinZoom, cfg.Canvas.MaxZoom)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path, mem := isolate(t)
	cfg := Defaults()
	cfg.Canvas.MaxZoom = 20
	cfg.Canvas.FillColor = "#00ff0040"
	cfg.Backend.DSN = "postgres://u@db/annotations"
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("perm = %v, want 0600", st.Mode().Perm())
	}
	if mem[keyringService+"/"+keyringToken] != "s3cret" {
		t.Fatalf("token not stored: %v", mem)
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if tok != "s3cret" {
		t.Fatalf("token = %q", tok)
	}
	if got.Canvas.MaxZoom != 20 || got.Canvas.FillColor != "#00ff0040" || got.Backend.DSN != cfg.Backend.DSN {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path, _ := isolate(t)
	if err := os.WriteFile(path, []byte("canvas: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path, _ := isolate(t)
	if err := os.WriteFile(path, []byte("canvas:\n  zoom_step: 1.25\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Canvas.ZoomStep != 1.25 {
		t.Fatalf("ZoomStep = %v", cfg.Canvas.ZoomStep)
	}
	if cfg.Canvas.MaxZoom != 10 || cfg.Storage.BackupsKept != 10 || cfg.Storage.DisableIndex {
		t.Fatalf("defaults lost: %#v", cfg)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/mkc.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/mkc.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendDSN, "postgres://env@db/x")
	t.Setenv(EnvBackendTimeoutMs, "2500")
	t.Setenv(EnvMaxZoom, "16")
	t.Setenv(EnvBackupsKept, "3")
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/log/mkc.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Backend.DSN != "postgres://env@db/x" || cfg.Backend.TimeoutMs != 2500 {
		t.Fatalf("backend overrides not applied: %#v", cfg.Backend)
	}
	if cfg.Canvas.MaxZoom != 16 || cfg.Storage.BackupsKept != 3 {
		t.Fatalf("canvas/storage overrides not applied: %#v", cfg)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/log/mkc.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
	if env, ok := EnvOverrideFor("canvas.max_zoom"); !ok || env != EnvMaxZoom {
		t.Fatalf("EnvOverrideFor = %q,%v", env, ok)
	}
	if _, ok := EnvOverrideFor("canvas.zoom_step"); ok {
		t.Fatalf("zoom_step has no env override")
	}
}

func TestClearToken(t *testing.T) {
	_, mem := isolate(t)
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken on empty keyring: %v", err)
	}
	mem[keyringService+"/"+keyringToken] = "x"
	if err := ClearToken(); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if _, err := mem.Get(keyringService, keyringToken); !errors.Is(err, keyring.ErrNotFound) {
		t.Fatalf("token still present")
	}
}

func TestCanvasConversions(t *testing.T) {
	c := Defaults().Canvas
	s := c.Settings()
	if s.MaxZoom != 10 || s.ZoomStep != 1.1 || s.VertexRadius != 8 {
		t.Fatalf("Settings() = %#v", s)
	}
	st, err := c.Style()
	if err != nil {
		t.Fatalf("Style(): %v", err)
	}
	if st.Stroke.Width != 2 || st.Fill.Enabled {
		t.Fatalf("Style() = %#v", st)
	}
	c.FillColor = "#0f0"
	st, err = c.Style()
	if err != nil || !st.Fill.Enabled || st.Fill.Color.G != 255 {
		t.Fatalf("fill = %#v err=%v", st.Fill, err)
	}
	c.StrokeColor = "nope"
	if _, err := c.Style(); err == nil {
		t.Fatalf("expected colour error")
	}
}

func TestBackendTimeout(t *testing.T) {
	if got := (BackendConfig{}).Timeout().Milliseconds(); got != 15000 {
		t.Fatalf("default timeout = %d", got)
	}
	if got := (BackendConfig{TimeoutMs: 40}).Timeout().Milliseconds(); got != 40 {
		t.Fatalf("timeout = %d", got)
	}
}
