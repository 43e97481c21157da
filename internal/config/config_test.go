package config

import (
	"strings"
	"testing"
	"time"
)

func env(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(env(nil))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Driver != DriverSQLite {
		t.Fatalf("expected sqlite default, got %s", cfg.Driver)
	}
	if strings.Join(cfg.Schema.Columns, ",") != strings.Join(DefaultColumns, ",") {
		t.Fatalf("unexpected columns %v", cfg.Schema.Columns)
	}
	if cfg.Schema.KeyColumn != "id" || cfg.Schema.AppliedOnColumn != "applied_on" || cfg.TimeColumn != "time" {
		t.Fatalf("unexpected designated columns %+v %q", cfg.Schema, cfg.TimeColumn)
	}
	if cfg.DriftDelay != time.Second || cfg.PollInterval != 30*time.Second {
		t.Fatalf("unexpected durations %s %s", cfg.DriftDelay, cfg.PollInterval)
	}
	if len(cfg.RequiredFields) != 1 || cfg.RequiredFields[0] != "name" {
		t.Fatalf("unexpected required fields %v", cfg.RequiredFields)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("unexpected listen addr %q", cfg.ListenAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(env(map[string]string{
		"APPLICANTSYNC_GATEWAY_DRIVER":    "S3",
		"APPLICANTSYNC_S3_BUCKET":         "registry",
		"APPLICANTSYNC_S3_PATH_STYLE":     "true",
		"APPLICANTSYNC_S3_ENDPOINT":       "http://minio:9000",
		"APPLICANTSYNC_COLUMNS":           "seq, full_name ,slot",
		"APPLICANTSYNC_KEY_COLUMN":        "seq",
		"APPLICANTSYNC_APPLIED_ON_COLUMN": "-",
		"APPLICANTSYNC_TIME_COLUMN":       "slot",
		"APPLICANTSYNC_REQUIRED_FIELDS":   "full_name,slot",
		"APPLICANTSYNC_DRIFT_DELAY":       "250ms",
		"APPLICANTSYNC_POLL_INTERVAL":     "0",
	}))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Driver != DriverS3 || !cfg.S3.PathStyle || cfg.S3.Bucket != "registry" || cfg.S3.Endpoint != "http://minio:9000" {
		t.Fatalf("unexpected s3 config %+v", cfg)
	}
	if strings.Join(cfg.Schema.Columns, "|") != "seq|full_name|slot" || cfg.Schema.AppliedOnColumn != "" {
		t.Fatalf("unexpected schema %+v", cfg.Schema)
	}
	if cfg.TimeColumn != "slot" || len(cfg.RequiredFields) != 2 {
		t.Fatalf("unexpected columns %q %v", cfg.TimeColumn, cfg.RequiredFields)
	}
	if cfg.DriftDelay != 250*time.Millisecond || cfg.PollInterval != 0 {
		t.Fatalf("unexpected durations %s %s", cfg.DriftDelay, cfg.PollInterval)
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown driver":   {"APPLICANTSYNC_GATEWAY_DRIVER": "sheets"},
		"s3 needs bucket":  {"APPLICANTSYNC_GATEWAY_DRIVER": "s3"},
		"http needs url":   {"APPLICANTSYNC_GATEWAY_DRIVER": "http"},
		"bad key column":   {"APPLICANTSYNC_KEY_COLUMN": "nope"},
		"bad time column":  {"APPLICANTSYNC_TIME_COLUMN": "nope"},
		"bad duration":     {"APPLICANTSYNC_DRIFT_DELAY": "soon"},
		"negative poll":    {"APPLICANTSYNC_POLL_INTERVAL": "-1s"},
		"bad path style":   {"APPLICANTSYNC_S3_PATH_STYLE": "maybe"},
		"duplicate column": {"APPLICANTSYNC_COLUMNS": "id,id"},
	}
	for name, values := range cases {
		if _, err := Load(env(values)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
