// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roadlog.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
environment: production
paths:
  root: /var/lib/roadlog
  blobs: /var/lib/roadlog/blobs
  spool: /var/lib/roadlog/spool
database:
  driver: postgres
  dsn: postgres://roadlog@db/roadlog
ingest:
  workers: 16
  poll_interval: 250ms
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Environment != Production {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN == "" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Ingest.Workers != 16 {
		t.Errorf("Workers = %d, want 16", cfg.Ingest.Workers)
	}
	if cfg.PollInterval() != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.PollInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "environment: development\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite default", cfg.Database.Driver)
	}
	if cfg.Ingest.Workers != 8 || cfg.PollInterval() != time.Second {
		t.Errorf("Ingest defaults = %+v", cfg.Ingest)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
paths:
  root: /var/lib/roadlog
database:
  driver: sqlite
  path: /var/lib/roadlog/roadlog.db
production:
  database:
    driver: postgres
    dsn: postgres://roadlog@db/roadlog
  ingest:
    workers: 32
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Driver = %q, want production override", cfg.Database.Driver)
	}
	if cfg.Ingest.Workers != 32 {
		t.Errorf("Workers = %d, want 32", cfg.Ingest.Workers)
	}
}

func TestVariableExpansion(t *testing.T) {
	path := writeConfig(t, `
paths:
  root: ${HOME}/roadlog
  blobs: ${ROADLOG_ROOT}/blobs
  spool: ${ROADLOG_ROOT}/spool
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	home := os.Getenv("HOME")
	if cfg.Paths.Root != home+"/roadlog" {
		t.Errorf("Root = %q", cfg.Paths.Root)
	}
	if cfg.Paths.Blobs != home+"/roadlog/blobs" {
		t.Errorf("Blobs = %q, want expansion against the expanded root", cfg.Paths.Blobs)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg := Default()
	cfg.Environment = "qa"
	cfg.Database.Driver = "mysql"
	cfg.Ingest.Workers = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate = nil, want error")
	}
	for _, want := range []string{"invalid environment", "database.driver", "ingest.workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestLoadRequiresEnvVar(t *testing.T) {
	t.Setenv("ROADLOG_CONFIG", "")
	if _, err := Load(); err == nil {
		t.Fatal("Load = nil with ROADLOG_CONFIG unset, want error")
	}
}
