// Package config loads process configuration from the environment.
//
//	APPLICANTSYNC_GATEWAY_DRIVER: memory|sqlite|postgres|s3|http (default sqlite)
//	APPLICANTSYNC_SQLITE_PATH: path to sqlite file (default ./applicantsync.db)
//	APPLICANTSYNC_POSTGRES_DSN: postgres DSN when driver=postgres
//	APPLICANTSYNC_S3_BUCKET: bucket holding the registry object (required for s3)
//	APPLICANTSYNC_S3_KEY: object key (default registry.csv)
//	APPLICANTSYNC_S3_REGION: region (default us-east-1)
//	APPLICANTSYNC_S3_ENDPOINT: custom endpoint, e.g. MinIO (optional)
//	APPLICANTSYNC_S3_PATH_STYLE: true|false (default false)
//	APPLICANTSYNC_HTTP_URL: registry endpoint base URL (required for http)
//	APPLICANTSYNC_COLUMNS: comma separated schema columns
//	APPLICANTSYNC_KEY_COLUMN: sequence key column (default id)
//	APPLICANTSYNC_APPLIED_ON_COLUMN: date column defaulted on create, "-" to disable
//	APPLICANTSYNC_TIME_COLUMN: column sent as forced text to tabular backends, "-" to disable
//	APPLICANTSYNC_REQUIRED_FIELDS: comma separated required columns (default name)
//	APPLICANTSYNC_DRIFT_DELAY: delay before the post-write hash check (default 1s)
//	APPLICANTSYNC_POLL_INTERVAL: staleness poll interval, 0 disables (default 30s)
//	APPLICANTSYNC_LISTEN_ADDR: registry server listen address (default :8080)
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"applicantsync/pkg/domain"
)

// Driver identifies a concrete authoritative backend.
type Driver string

const (
	DriverMemory   Driver = "memory"   // in-process only (tests / ephemeral)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite file
	DriverPostgres Driver = "postgres" // PostgreSQL server
	DriverS3       Driver = "s3"       // CSV object in an S3-compatible bucket
	DriverHTTP     Driver = "http"     // remote registry endpoint
)

// disabled turns off an optional column setting.
const disabled = "-"

// DefaultColumns is the applicant registry header used when none is configured.
var DefaultColumns = []string{"id", "name", "email", "phone", "position", "status", "applied_on", "time"}

// S3 groups the object store settings.
type S3 struct {
	Bucket    string
	Key       string
	Region    string
	Endpoint  string
	PathStyle bool
}

// Config is the resolved process configuration.
type Config struct {
	Driver         Driver
	SQLitePath     string
	PostgresDSN    string
	S3             S3
	HTTPURL        string
	Schema         domain.Schema
	TimeColumn     string
	RequiredFields []string
	DriftDelay     time.Duration
	PollInterval   time.Duration
	ListenAddr     string
}

// Load reads configuration through getenv, typically os.Getenv.
func Load(getenv func(string) string) (Config, error) {
	get := func(name, def string) string {
		if v := strings.TrimSpace(getenv("APPLICANTSYNC_" + name)); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		Driver:      Driver(strings.ToLower(get("GATEWAY_DRIVER", string(DriverSQLite)))),
		SQLitePath:  get("SQLITE_PATH", ""),
		PostgresDSN: get("POSTGRES_DSN", ""),
		HTTPURL:     get("HTTP_URL", ""),
		ListenAddr:  get("LISTEN_ADDR", ":8080"),
		S3: S3{
			Bucket:   get("S3_BUCKET", ""),
			Key:      get("S3_KEY", ""),
			Region:   get("S3_REGION", ""),
			Endpoint: get("S3_ENDPOINT", ""),
		},
	}
	pathStyle, err := strconv.ParseBool(get("S3_PATH_STYLE", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("APPLICANTSYNC_S3_PATH_STYLE: %w", err)
	}
	cfg.S3.PathStyle = pathStyle

	columns := DefaultColumns
	if v := get("COLUMNS", ""); v != "" {
		columns = splitList(v)
	}
	cfg.Schema = domain.Schema{
		Columns:         append([]string(nil), columns...),
		KeyColumn:       get("KEY_COLUMN", "id"),
		AppliedOnColumn: optional(get("APPLIED_ON_COLUMN", "applied_on")),
	}
	if err := cfg.Schema.Validate(); err != nil {
		return Config{}, fmt.Errorf("schema: %w", err)
	}
	cfg.TimeColumn = optional(get("TIME_COLUMN", "time"))
	if cfg.TimeColumn != "" && cfg.Schema.Index(cfg.TimeColumn) < 0 {
		return Config{}, fmt.Errorf("time column %q not in schema", cfg.TimeColumn)
	}
	cfg.RequiredFields = splitList(get("REQUIRED_FIELDS", "name"))

	if cfg.DriftDelay, err = duration(get("DRIFT_DELAY", "1s")); err != nil {
		return Config{}, fmt.Errorf("APPLICANTSYNC_DRIFT_DELAY: %w", err)
	}
	if cfg.PollInterval, err = duration(get("POLL_INTERVAL", "30s")); err != nil {
		return Config{}, fmt.Errorf("APPLICANTSYNC_POLL_INTERVAL: %w", err)
	}

	switch cfg.Driver {
	case DriverMemory, DriverSQLite, DriverPostgres:
	case DriverS3:
		if cfg.S3.Bucket == "" {
			return Config{}, fmt.Errorf("APPLICANTSYNC_S3_BUCKET required for s3 driver")
		}
	case DriverHTTP:
		if cfg.HTTPURL == "" {
			return Config{}, fmt.Errorf("APPLICANTSYNC_HTTP_URL required for http driver")
		}
	default:
		return Config{}, fmt.Errorf("unknown gateway driver %s", cfg.Driver)
	}
	return cfg, nil
}

func optional(v string) string {
	if v == disabled {
		return ""
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func duration(v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", v)
	}
	return d, nil
}
