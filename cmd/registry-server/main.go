// Command registry-server serves the configured authoritative registry over HTTP so remote
// sync clients can use it through the http gateway driver. It also exposes /health and
// Prometheus metrics at /metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"applicantsync/internal/adapters/httpapi"
	"applicantsync/internal/config"
	"applicantsync/internal/core"
	"applicantsync/internal/infra/gateway"
	"applicantsync/pkg/domain"
)

const shutdownTimeout = 10 * time.Second

var (
	exitFunc = os.Exit
	getenv   = os.Getenv
)

func main() {
	code := cli(os.Args[1:], os.Stderr)
	exitFunc(code)
}

func cli(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("registry-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "", "listen address, overrides APPLICANTSYNC_LISTEN_ADDR")
	verbose := fs.Bool("v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, *addr, logger, nil); err != nil {
		logger.Error("registry server stopped", "error", err)
		return 1
	}
	return 0
}

// run serves until ctx ends. ready, when set, receives the bound address.
func run(ctx context.Context, addr string, logger *slog.Logger, ready chan<- string) (err error) {
	cfg, err := config.Load(getenv)
	if err != nil {
		return err
	}
	if cfg.Driver == config.DriverHTTP {
		return errors.New("registry-server cannot front the http driver")
	}
	if addr == "" {
		addr = cfg.ListenAddr
	}
	gw, closeGateway, err := gateway.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeGateway()) }()

	handler, err := newHandler(gw, logger)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("registry server listening", "addr", ln.Addr().String(), "driver", string(cfg.Driver))
	if ready != nil {
		ready <- ln.Addr().String()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()
	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func newHandler(gw domain.Gateway, logger core.Logger) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, err
	}
	return httpapi.NewServer(gw,
		httpapi.WithLogger(logger),
		httpapi.WithMetricsRecorder(metrics),
		httpapi.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	), nil
}
