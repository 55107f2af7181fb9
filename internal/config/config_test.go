package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = "\xEF\xBB\xBF" + `SourceDirs:
  seeds: /data/seeds
FilePattern: "*.sql"
BatchSize: 50
BatchInterval: 3
Extractor:
	Backend: sqlparser
Export:
  OutputDir: /tmp/out
  Formats: [csv, jsonl]
ClickHouse:
  Enabled: true
  Address: localhost:9000
  Database: seeds
  TableMap:
    users: seed_users
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.SourceDirs["seeds"] != "/data/seeds" {
		t.Fatalf("unexpected SourceDirs: %v", cfg.SourceDirs)
	}
	if cfg.BatchSize != 50 || cfg.BatchIntervalDuration() != 3*time.Second {
		t.Fatalf("unexpected batch settings: %d %v", cfg.BatchSize, cfg.BatchIntervalDuration())
	}
	if cfg.Extractor.Backend != "sqlparser" {
		t.Fatalf("tab-indented key must be read, got backend %q", cfg.Extractor.Backend)
	}
	if strings.Join(cfg.Export.Formats, ",") != "csv,jsonl" {
		t.Fatalf("unexpected formats: %v", cfg.Export.Formats)
	}
	if cfg.ClickHouse.TableMap["users"] != "seed_users" {
		t.Fatalf("unexpected TableMap: %v", cfg.ClickHouse.TableMap)
	}
	// значения по умолчанию
	if cfg.ProcessedStorage != "file" || cfg.Encoding != "utf-8" || cfg.RescanSchedule != "@every 5m" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := cfg.ValidateService(); err != nil {
		t.Fatalf("ValidateService failed: %v", err)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("BIGSCOPE_BATCHSIZE", "7")
	t.Setenv("BIGSCOPE_EXTRACTOR_BACKEND", "lines")

	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.BatchSize != 7 {
		t.Fatalf("expected BatchSize from env, got %d", cfg.BatchSize)
	}
	if cfg.Extractor.Backend != "lines" {
		t.Fatalf("expected backend from env, got %q", cfg.Extractor.Backend)
	}
}

func TestLoadConfig_DefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Extractor.Backend != "native" || cfg.BatchSize != 1000 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.ValidateService(); err == nil {
		t.Fatalf("service mode without SourceDirs must fail validation")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"negative batch":      "BatchSize: -1\n",
		"clickhouse no addr":  "ClickHouse:\n  Enabled: true\n  Database: x\n",
		"bad processed store": "ProcessedStorage: s3\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestValidateService_BadSchedule(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg.RescanSchedule = "every now and then"
	if err := cfg.ValidateService(); err == nil {
		t.Fatalf("expected cron parse error")
	}
}
