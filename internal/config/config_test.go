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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func isolateHome(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("AppData", dir)
	keyring.MockInit()
}

func TestEnvOverridesServerURL(t *testing.T) {
	isolateHome(t)
	t.Setenv(EnvServerURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Server.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Server.BaseURL = %q, want %q", got, want)
	}
	if name, ok := EnvOverrideFor("server.base_url"); !ok || name != EnvServerURL {
		t.Fatalf("EnvOverrideFor = %q,%v", name, ok)
	}
	if _, ok := EnvOverrideFor("server.addr"); ok {
		t.Fatalf("server.addr should not be overridden")
	}
}

func TestEnvOverridesEditor(t *testing.T) {
	isolateHome(t)
	t.Setenv(EnvZoom, "150")
	t.Setenv(EnvHistoryDepth, "20")
	t.Setenv(EnvCompress, "off")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Editor.Zoom != 150 || cfg.Editor.HistoryDepth != 20 || cfg.Export.Compress {
		t.Fatalf("editor overrides not applied: %#v %#v", cfg.Editor, cfg.Export)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "DEBUG "
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/epdf.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/epdf.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeKeepsDefaultsForZeroValues(t *testing.T) {
	dst := Defaults()
	var src AppConfig
	src.Export.Compress = true
	mergeInto(&dst, &src)
	if dst.Editor.Zoom != 100 || dst.Editor.FontFamily != "Helvetica" || dst.Server.Addr != ":8080" {
		t.Fatalf("zero values should not clobber defaults: %#v", dst)
	}
}

func TestEnvOverridesLogging(t *testing.T) {
	isolateHome(t)
	t.Setenv(EnvLogLevel, "error")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogSource, "1")
	t.Setenv(EnvLogFile, "/var/log/epdf.log")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || !cfg.Logging.Source || cfg.Logging.File != "/var/log/epdf.log" {
		t.Fatalf("env overrides not applied to logging: %#v", cfg.Logging)
	}
}

func TestSaveLoadRoundTripWithSecret(t *testing.T) {
	isolateHome(t)
	cfg := Defaults()
	cfg.Editor.FontSize = 12
	cfg.Server.DSN = "postgres://u@h/db"
	if err := Save(cfg, "s3cret"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, _ := ConfigPath()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	got, secret, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Editor.FontSize != 12 || got.Server.DSN != "postgres://u@h/db" {
		t.Fatalf("round trip mismatch: %#v", got)
	}
	if secret != "s3cret" {
		t.Fatalf("secret = %q", secret)
	}
	if err := ClearSecret(); err != nil {
		t.Fatalf("ClearSecret: %v", err)
	}
	if err := ClearSecret(); err != nil {
		t.Fatalf("second ClearSecret: %v", err)
	}
	if _, secret, _ = Load(); secret != "" {
		t.Fatalf("secret should be gone, got %q", secret)
	}
}

func TestSecretEnvWinsOverKeyring(t *testing.T) {
	isolateHome(t)
	if err := Save(Defaults(), "from-keyring"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	t.Setenv(EnvAuthSecret, "from-env")
	if _, secret, _ := Load(); secret != "from-env" {
		t.Fatalf("secret = %q", secret)
	}
}

func TestTokenTTLAndDBPath(t *testing.T) {
	isolateHome(t)
	if got := (ServerConfig{}).TokenTTL(); got != time.Hour {
		t.Fatalf("default ttl = %v", got)
	}
	if got := (ServerConfig{TokenTTLMs: 1500}).TokenTTL(); got != 1500*time.Millisecond {
		t.Fatalf("ttl = %v", got)
	}
	p, err := (StorageConfig{}).ResolveDBPath()
	if err != nil || filepath.Base(p) != "sessions.db" {
		t.Fatalf("ResolveDBPath = %q, %v", p, err)
	}
	if p, _ := (StorageConfig{DBPath: "/x/y.db"}).ResolveDBPath(); p != "/x/y.db" {
		t.Fatalf("explicit path ignored: %q", p)
	}
}
