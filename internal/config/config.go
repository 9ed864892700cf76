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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"

	"markcanvas/internal/canvas"
	"markcanvas/internal/vector"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are read-only overrides applied at load time.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type CanvasConfig struct {
	MinZoom        float64 `yaml:"min_zoom"`
	MaxZoom        float64 `yaml:"max_zoom"`
	ZoomStep       float64 `yaml:"zoom_step"`
	VertexRadius   float64 `yaml:"vertex_radius"`
	GuideThreshold float64 `yaml:"guide_threshold"`
	GridSpacing    float64 `yaml:"grid_spacing"`
	// Style used for newly drawn shapes. An empty fill colour disables fill.
	StrokeColor string  `yaml:"stroke_color"`
	StrokeWidth float64 `yaml:"stroke_width"`
	FillColor   string  `yaml:"fill_color"`
}

type StorageConfig struct {
	BackupsKept  int  `yaml:"backups_kept"`
	DisableIndex bool `yaml:"disable_index"`
}

type BackendConfig struct {
	DSN       string `yaml:"dsn"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Canvas        CanvasConfig  `yaml:"canvas"`
	Storage       StorageConfig `yaml:"storage"`
	Backend       BackendConfig `yaml:"backend"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	s := canvas.DefaultSettings()
	return AppConfig{
		ConfigVersion: 1,
		Canvas: CanvasConfig{
			MinZoom:        s.MinZoom,
			MaxZoom:        s.MaxZoom,
			ZoomStep:       s.ZoomStep,
			VertexRadius:   s.VertexRadius,
			GuideThreshold: s.GuideThreshold,
			GridSpacing:    s.GridSpacing,
			StrokeColor:    vector.Red.Hex(),
			StrokeWidth:    2,
		},
		Storage: StorageConfig{BackupsKept: 10},
		Backend: BackendConfig{TimeoutMs: 15000},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigPath       = "MKC_CONFIG"
	EnvBackendDSN       = "MKC_PG_DSN"
	EnvBackendTimeoutMs = "MKC_BACKEND_TIMEOUT_MS"
	EnvMaxZoom          = "MKC_MAX_ZOOM"
	EnvBackupsKept      = "MKC_BACKUPS_KEPT"
	// Logging envs, shared with internal/log.FromEnv
	EnvLogLevel  = "MKC_LOG_LEVEL"
	EnvLogFormat = "MKC_LOG_FORMAT"
	EnvLogSource = "MKC_LOG_SOURCE"
	EnvLogFile   = "MKC_LOG_FILE"
)

// Service/keys for OS keyring.
const (
	keyringService = "markcanvas"
	keyringToken   = "backend_token"
)

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring implements TokenStore with github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

var tokenStore TokenStore = osKeyring{}

// ConfigPath returns the per-user config file path. MKC_CONFIG overrides it.
func ConfigPath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p, nil
	}
	base, err := os.UserConfigDir()
	if err != nil || base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "markcanvas", "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults and merges
// environment overrides. The backend token comes from the keyring and is
// returned separately. A missing keyring entry is not an error.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	tok, _ := tokenStore.Get(keyringService, keyringToken)
	return cfg, tok, nil
}

// Save writes the user config YAML and persists the token into the OS keyring (if non-empty).
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		if err := tokenStore.Set(keyringService, keyringToken, token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
	}
	return nil
}

// ClearToken removes the backend token from the keyring.
func ClearToken() error {
	err := tokenStore.Delete(keyringService, keyringToken)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	c, s := &dst.Canvas, src.Canvas
	setPos(&c.MinZoom, s.MinZoom)
	setPos(&c.MaxZoom, s.MaxZoom)
	setPos(&c.ZoomStep, s.ZoomStep)
	setPos(&c.VertexRadius, s.VertexRadius)
	setPos(&c.GuideThreshold, s.GuideThreshold)
	setPos(&c.GridSpacing, s.GridSpacing)
	setPos(&c.StrokeWidth, s.StrokeWidth)
	if v := strings.TrimSpace(s.StrokeColor); v != "" {
		c.StrokeColor = v
	}
	// an empty fill in the file means "no fill", so it is copied as is
	c.FillColor = strings.TrimSpace(s.FillColor)

	if src.Storage.BackupsKept > 0 {
		dst.Storage.BackupsKept = src.Storage.BackupsKept
	}
	dst.Storage.DisableIndex = src.Storage.DisableIndex

	if v := strings.TrimSpace(src.Backend.DSN); v != "" {
		dst.Backend.DSN = v
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}

	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func setPos(dst *float64, v float64) {
	if v > 0 {
		*dst = v
	}
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvBackendDSN)); v != "" {
		cfg.Backend.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackendTimeoutMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxZoom)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Canvas.MaxZoom = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvBackupsKept)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Storage.BackupsKept = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		cfg.Logging.Source = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

var envKeys = map[string]string{
	"backend.dsn":          EnvBackendDSN,
	"backend.timeout_ms":   EnvBackendTimeoutMs,
	"canvas.max_zoom":      EnvMaxZoom,
	"storage.backups_kept": EnvBackupsKept,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	if env, ok := envKeys[key]; ok && os.Getenv(env) != "" {
		return env, true
	}
	return "", false
}

// Timeout returns the backend timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	if b.TimeoutMs <= 0 {
		return time.Duration(Defaults().Backend.TimeoutMs) * time.Millisecond
	}
	return time.Duration(b.TimeoutMs) * time.Millisecond
}

// Settings converts the canvas section for canvas.New.
func (c CanvasConfig) Settings() canvas.Settings {
	return canvas.Settings{
		MinZoom:        c.MinZoom,
		MaxZoom:        c.MaxZoom,
		ZoomStep:       c.ZoomStep,
		VertexRadius:   c.VertexRadius,
		GuideThreshold: c.GuideThreshold,
		GridSpacing:    c.GridSpacing,
	}
}

// Style builds the default shape style.
func (c CanvasConfig) Style() (vector.Style, error) {
	st := vector.DefaultStyle()
	if c.StrokeColor != "" {
		col, err := vector.ParseColor(c.StrokeColor)
		if err != nil {
			return st, fmt.Errorf("canvas.stroke_color: %w", err)
		}
		st.Stroke.Color = col
	}
	if c.StrokeWidth > 0 {
		st.Stroke.Width = c.StrokeWidth
	}
	if c.FillColor != "" {
		col, err := vector.ParseColor(c.FillColor)
		if err != nil {
			return st, fmt.Errorf("canvas.fill_color: %w", err)
		}
		st.Fill = vector.Fill{Color: col, Enabled: true}
	}
	return st, nil
}
