// Package gateway selects and opens the authoritative backend named by configuration.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"applicantsync/internal/adapters/textcoerce"
	"applicantsync/internal/config"
	"applicantsync/internal/infra/gateway/httpgw"
	"applicantsync/internal/infra/gateway/memory"
	"applicantsync/internal/infra/gateway/postgres"
	"applicantsync/internal/infra/gateway/s3"
	"applicantsync/internal/infra/gateway/sqlite"
	"applicantsync/pkg/domain"
)

// CloseFunc releases backend resources. It is never nil.
type CloseFunc func() error

func nopClose() error { return nil }

// Open builds the gateway selected by cfg.Driver. The s3 backend stores tabular text and is
// wrapped so the configured time column is sent as forced text. The http driver is left
// bare because the registry server it talks to applies the marker for its own backend.
func Open(ctx context.Context, cfg config.Config) (domain.Gateway, CloseFunc, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.New(cfg.Schema), nopClose, nil
	case config.DriverSQLite, "":
		g, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.Schema)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case config.DriverPostgres:
		g, err := postgres.Open(ctx, cfg.PostgresDSN, cfg.Schema)
		if err != nil {
			return nil, nil, err
		}
		return g, g.Close, nil
	case config.DriverS3:
		g, err := s3.New(ctx, s3.Config{
			Bucket:          cfg.S3.Bucket,
			Key:             cfg.S3.Key,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		}, cfg.Schema)
		if err != nil {
			return nil, nil, err
		}
		return coerce(g, cfg), nopClose, nil
	case config.DriverHTTP:
		g, err := httpgw.New(cfg.HTTPURL, &http.Client{})
		if err != nil {
			return nil, nil, err
		}
		// The registry server marks cells for its own backend.
		return g, nopClose, nil
	default:
		return nil, nil, fmt.Errorf("unknown gateway driver %s", cfg.Driver)
	}
}

// OpenFromEnv loads configuration from the process environment and opens its gateway.
func OpenFromEnv(ctx context.Context) (domain.Gateway, CloseFunc, config.Config, error) {
	cfg, err := config.Load(os.Getenv)
	if err != nil {
		return nil, nil, config.Config{}, err
	}
	g, closeFn, err := Open(ctx, cfg)
	if err != nil {
		return nil, nil, config.Config{}, err
	}
	return g, closeFn, cfg, nil
}

func coerce(g domain.Gateway, cfg config.Config) domain.Gateway {
	if cfg.TimeColumn == "" {
		return g
	}
	return textcoerce.Wrap(g, cfg.TimeColumn)
}
