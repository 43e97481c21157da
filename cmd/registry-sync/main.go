// Command registry-sync edits the applicant registry through the optimistic sync engine.
//
//	registry-sync [-driver d] [-v] list
//	registry-sync [-driver d] [-v] create col=value ...
//	registry-sync [-driver d] [-v] update <key> col=value ...
//	registry-sync [-driver d] [-v] delete <key>
//	registry-sync [-driver d] [-v] watch
//
// Backend selection and schema come from APPLICANTSYNC_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"applicantsync/internal/config"
	"applicantsync/internal/core"
	"applicantsync/internal/infra/gateway"
	"applicantsync/pkg/domain"
)

const usage = "usage: registry-sync [-driver d] [-v] list | create col=value... | update <key> col=value... | delete <key> | watch"

var (
	exitFunc = os.Exit
	getenv   = os.Getenv
)

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("registry-sync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	driver := fs.String("driver", "", "gateway driver, overrides APPLICANTSYNC_GATEWAY_DRIVER")
	verbose := fs.Bool("v", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		_, _ = fmt.Fprintln(stderr, usage)
		return 2
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, *driver, fs.Args(), stdout, logger); err != nil {
		if errors.Is(err, errUsage) {
			_, _ = fmt.Fprintln(stderr, usage)
			return 2
		}
		_, _ = fmt.Fprintf(stderr, "registry-sync: %v\n", err)
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func run(ctx context.Context, driver string, args []string, stdout io.Writer, logger *slog.Logger) (err error) {
	cfg, err := config.Load(func(name string) string {
		if name == "APPLICANTSYNC_GATEWAY_DRIVER" && driver != "" {
			return driver
		}
		return getenv(name)
	})
	if err != nil {
		return err
	}
	gw, closeGateway, err := gateway.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeGateway()) }()

	store, err := core.NewRowStore(cfg.Schema)
	if err != nil {
		return err
	}
	tracker := core.NewHashTracker()
	coord, err := core.NewCoordinator(store, gw,
		core.WithLogger(logger),
		core.WithAuditRecorder(core.LogAuditRecorder{Logger: logger}),
		core.WithRequiredFields(cfg.RequiredFields...),
		core.WithDriftDelay(cfg.DriftDelay),
		core.WithStalenessTracker(tracker),
	)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, coord.Close(context.WithoutCancel(ctx))) }()
	if err := coord.Refresh(ctx); err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return enc.Encode(store.Table())
	case "create":
		fields, err := parseAssignments(cfg.Schema, rest)
		if err != nil {
			return err
		}
		return settle(ctx, enc, func() (*core.Operation, error) { return coord.Create(ctx, fields) })
	case "update":
		if len(rest) == 0 {
			return errUsage
		}
		key := domain.Key(rest[0])
		current, ok := store.Find(key)
		if !ok {
			return domain.KeyError{Key: key, Err: domain.ErrNotFound}
		}
		changes, err := parseAssignments(cfg.Schema, rest[1:])
		if err != nil {
			return err
		}
		fields := cfg.Schema.FieldsFromRow(current)
		for k, v := range changes {
			fields[k] = v
		}
		return settle(ctx, enc, func() (*core.Operation, error) {
			return coord.Update(ctx, core.Edit{Key: key, Fields: fields})
		})
	case "delete":
		if len(rest) != 1 {
			return errUsage
		}
		return settle(ctx, enc, func() (*core.Operation, error) { return coord.Delete(ctx, domain.Key(rest[0])) })
	case "watch":
		if cfg.PollInterval <= 0 {
			return errors.New("watch requires APPLICANTSYNC_POLL_INTERVAL > 0")
		}
		poller := core.NewStalenessPoller(gw, tracker, cfg.PollInterval, func(ctx context.Context, _ domain.StateHash) error {
			if err := coord.Refresh(ctx); err != nil {
				return err
			}
			return enc.Encode(store.Table())
		}, logger)
		logger.Info("watching registry", "driver", string(cfg.Driver), "interval", cfg.PollInterval)
		if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	default:
		return errUsage
	}
}

type result struct {
	OperationID string            `json:"operation_id"`
	Kind        string            `json:"kind"`
	Key         domain.Key        `json:"key"`
	Payload     map[string]string `json:"payload,omitempty"`
}

func settle(ctx context.Context, enc *json.Encoder, mutate func() (*core.Operation, error)) error {
	op, err := mutate()
	if err != nil {
		return err
	}
	if err := op.Wait(ctx); err != nil {
		return err
	}
	return enc.Encode(result{OperationID: op.ID, Kind: string(op.Kind), Key: op.Key, Payload: op.Payload})
}

func parseAssignments(schema domain.Schema, args []string) (domain.Fields, error) {
	fields := domain.Fields{}
	for _, arg := range args {
		col, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected col=value, got %q", arg)
		}
		if schema.Index(col) < 0 {
			return nil, fmt.Errorf("unknown column %q", col)
		}
		fields[col] = value
	}
	return fields, nil
}
