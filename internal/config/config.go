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
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in the user scope.
// Environment variables are treated as read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type EditorConfig struct {
	Zoom         float64 `yaml:"zoom"`
	HistoryDepth int     `yaml:"history_depth"`
	FontFamily   string  `yaml:"font_family"`
	FontSize     float64 `yaml:"font_size"`
	Color        string  `yaml:"color"`
}

type ExportConfig struct {
	Suffix   string `yaml:"suffix"`
	Compress bool   `yaml:"compress"`
}

type StorageConfig struct {
	// DBPath is the sqlite file holding sessions and pending uploads. Empty means next to config.yaml.
	DBPath string `yaml:"db_path"`
}

type ServerConfig struct {
	Addr       string `yaml:"addr"`
	DSN        string `yaml:"dsn"`
	TokenTTLMs int    `yaml:"token_ttl_ms"`
	BaseURL    string `yaml:"base_url"`
	// Secret is not stored on disk; it lives in the OS keychain.
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	Editor        EditorConfig  `yaml:"editor"`
	Export        ExportConfig  `yaml:"export"`
	Storage       StorageConfig `yaml:"storage"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		Editor:        EditorConfig{Zoom: 100, HistoryDepth: 50, FontFamily: "Helvetica", FontSize: 16, Color: "#000000"},
		Export:        ExportConfig{Suffix: "_edited", Compress: true},
		Storage:       StorageConfig{},
		Server:        ServerConfig{Addr: ":8080", TokenTTLMs: 3600000, BaseURL: "http://localhost:8080"},
		Logging:       LoggingConfig{Level: "info", Format: "console", Source: false, File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvZoom         = "EPDF_ZOOM"
	EnvHistoryDepth = "EPDF_HISTORY_DEPTH"
	EnvCompress     = "EPDF_COMPRESS"
	EnvDBPath       = "EPDF_DB_PATH"
	EnvServerAddr   = "EPDF_SERVER_ADDR"
	EnvServerDSN    = "EPDF_DB_DSN"
	EnvServerURL    = "EPDF_SERVER_URL"
	EnvTokenTTLMs   = "EPDF_TOKEN_TTL_MS"
	// EnvLogLevel Logging envs
	EnvLogLevel  = "EPDF_LOG_LEVEL"
	EnvLogFormat = "EPDF_LOG_FORMAT"
	EnvLogSource = "EPDF_LOG_SOURCE"
	EnvLogFile   = "EPDF_LOG_FILE"
	// EnvAuthSecret bypasses the keychain, mainly for containers.
	EnvAuthSecret = "EPDF_AUTH_SECRET"
)

// Service/keys for OS keyring.
const (
	keyringService = "editpdfs"
	keyringSecret  = "auth_secret"
)

// SecretStore abstracts the keyring, so tests can swap it.
type SecretStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var secretStore SecretStore = osKeyring{}

// osKeyring implements SecretStore using the OS keyring via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) { return keyring.Get(service, key) }
func (osKeyring) Set(service, key, value string) error    { return keyring.Set(service, key, value) }
func (osKeyring) Delete(service, key string) error        { return keyring.Delete(service, key) }

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "EditPDFs")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "EditPDFs")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "editpdfs")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "editpdfs")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges environment overrides.
// The server secret is read from the keyring and returned separately.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	if data, err := os.ReadFile(path); err == nil {
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	if v := strings.TrimSpace(os.Getenv(EnvAuthSecret)); v != "" {
		return cfg, v, nil
	}
	secret, _ := secretStore.Get(keyringService, keyringSecret)
	return cfg, secret, nil
}

// Save writes the user config YAML and persists the secret into the OS keyring (if non-empty).
func Save(cfg AppConfig, secret string) error {
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
	if secret != "" {
		if err := secretStore.Set(keyringService, keyringSecret, secret); err != nil {
			return fmt.Errorf("store secret: %w", err)
		}
	}
	return nil
}

// ClearSecret removes the server secret from the keyring. A missing entry is not an error.
func ClearSecret() error {
	if err := secretStore.Delete(keyringService, keyringSecret); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	// editor
	if src.Editor.Zoom > 0 {
		dst.Editor.Zoom = src.Editor.Zoom
	}
	if src.Editor.HistoryDepth > 0 {
		dst.Editor.HistoryDepth = src.Editor.HistoryDepth
	}
	if strings.TrimSpace(src.Editor.FontFamily) != "" {
		dst.Editor.FontFamily = strings.TrimSpace(src.Editor.FontFamily)
	}
	if src.Editor.FontSize > 0 {
		dst.Editor.FontSize = src.Editor.FontSize
	}
	if strings.TrimSpace(src.Editor.Color) != "" {
		dst.Editor.Color = strings.TrimSpace(src.Editor.Color)
	}
	// export
	if strings.TrimSpace(src.Export.Suffix) != "" {
		dst.Export.Suffix = strings.TrimSpace(src.Export.Suffix)
	}
	dst.Export.Compress = src.Export.Compress
	// storage
	if strings.TrimSpace(src.Storage.DBPath) != "" {
		dst.Storage.DBPath = strings.TrimSpace(src.Storage.DBPath)
	}
	// server
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.DSN != "" {
		dst.Server.DSN = src.Server.DSN
	}
	if src.Server.TokenTTLMs != 0 {
		dst.Server.TokenTTLMs = src.Server.TokenTTLMs
	}
	if src.Server.BaseURL != "" {
		dst.Server.BaseURL = src.Server.BaseURL
	}
	// logging
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	dst.Logging.Source = src.Logging.Source
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func parseBool(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvZoom)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.Editor.Zoom = f
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvHistoryDepth)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Editor.HistoryDepth = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCompress)); v != "" {
		cfg.Export.Compress = parseBool(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvDBPath)); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerAddr)); v != "" {
		cfg.Server.Addr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerDSN)); v != "" {
		cfg.Server.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvServerURL)); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTokenTTLMs)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.TokenTTLMs = n
		}
	}
	// logging overrides
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
	"editor.zoom":          EnvZoom,
	"editor.history_depth": EnvHistoryDepth,
	"export.compress":      EnvCompress,
	"storage.db_path":      EnvDBPath,
	"server.addr":          EnvServerAddr,
	"server.dsn":           EnvServerDSN,
	"server.base_url":      EnvServerURL,
	"server.token_ttl_ms":  EnvTokenTTLMs,
	"logging.level":        EnvLogLevel,
	"logging.format":       EnvLogFormat,
	"logging.source":       EnvLogSource,
	"logging.file":         EnvLogFile,
}

// EnvOverrideFor returns the env var name if the field is overridden by environment variables.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// TokenTTL returns the signed token lifetime, falling back to the default.
func (s ServerConfig) TokenTTL() time.Duration {
	if s.TokenTTLMs <= 0 {
		return time.Duration(Defaults().Server.TokenTTLMs) * time.Millisecond
	}
	return time.Duration(s.TokenTTLMs) * time.Millisecond
}

// ResolveDBPath returns the sqlite path, defaulting to sessions.db in the config directory.
func (s StorageConfig) ResolveDBPath() (string, error) {
	if s.DBPath != "" {
		return s.DBPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions.db"), nil
}
