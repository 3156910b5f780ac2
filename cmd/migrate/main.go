package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/storage/postgres"
)

const (
	defaultTimeout = 30 * time.Second
	envPostgresDSN = "STOREFRONT_POSTGRES_DSN"
	envConfigFile  = "STOREFRONT_CONFIG_FILE"
)

var errDSNRequired = errors.New(envPostgresDSN + " (or -dsn, or postgres_dsn in -config) is required")

type options struct {
	direction string
	steps     int
	dsn       string
	config    string
	timeout   time.Duration
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	opts, err := parseOptions(os.Args[1:], os.Getenv)
	if err != nil {
		fail("%v", err)
	}
	if err := run(opts, os.Stdout); err != nil {
		fail("%v", err)
	}
}

// parseOptions разбирает флаги. DSN берётся из -dsn, затем из окружения, затем из YAML-конфига.
func parseOptions(args []string, getenv func(string) string) (options, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts options
	fs.StringVar(&opts.direction, "direction", "up", "migration direction: up|down|status")
	fs.IntVar(&opts.steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	fs.StringVar(&opts.dsn, "dsn", "", "PostgreSQL DSN (fallback: "+envPostgresDSN+")")
	fs.StringVar(&opts.config, "config", "", "storefront YAML config to read postgres_dsn from (fallback: "+envConfigFile+")")
	fs.DurationVar(&opts.timeout, "timeout", defaultTimeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	opts.direction = strings.ToLower(strings.TrimSpace(opts.direction))
	switch opts.direction {
	case "up", "down", "status":
	default:
		return options{}, fmt.Errorf("unsupported direction: %s (use up|down|status)", opts.direction)
	}
	if opts.steps < 0 {
		return options{}, fmt.Errorf("steps must be >= 0")
	}
	if opts.timeout <= 0 {
		return options{}, fmt.Errorf("timeout must be > 0")
	}

	opts.dsn = strings.TrimSpace(opts.dsn)
	if opts.dsn == "" {
		opts.dsn = strings.TrimSpace(getenv(envPostgresDSN))
	}
	if opts.config == "" {
		opts.config = strings.TrimSpace(getenv(envConfigFile))
	}
	if opts.dsn == "" && opts.config != "" {
		cfg, err := app.LoadConfigFile(opts.config, app.DefaultConfig())
		if err != nil {
			return options{}, err
		}
		opts.dsn = strings.TrimSpace(cfg.PostgresDSN)
	}
	if opts.dsn == "" {
		return options{}, errDSNRequired
	}
	return opts, nil
}

func run(opts options, out io.Writer) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	store, err := postgres.Open(ctx, opts.dsn)
	if err != nil {
		return fmt.Errorf("open postgres store: %w", err)
	}
	defer store.Close()

	logger := log.WithFields(log.Fields{"direction": opts.direction, "steps": opts.steps})

	switch opts.direction {
	case "up":
		if err := store.MigrateUp(ctx, opts.steps); err != nil {
			return fmt.Errorf("migrate up failed: %w", err)
		}
		logger.Info("migrations applied")
		return printState(ctx, store, out, "migrate up ok")
	case "down":
		steps := opts.steps
		if steps == 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			return fmt.Errorf("migrate down failed: %w", err)
		}
		logger.Info("migrations rolled back")
		return printState(ctx, store, out, "migrate down ok")
	default:
		return printState(ctx, store, out, "migration status")
	}
}

func printState(ctx context.Context, store *postgres.Store, out io.Writer, prefix string) error {
	state, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("migration status failed: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s: version=%d applied=%d pending=%d\n", prefix, state.Version, state.Applied, state.Pending())
	return err
}

func fail(format string, args ...any) {
	log.Errorf(format, args...)
	os.Exit(1)
}
