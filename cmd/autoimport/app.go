package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/autoimport/internal/config"
	"github.com/JonMunkholm/autoimport/internal/core"
	"github.com/JonMunkholm/autoimport/internal/logging"
	"github.com/JonMunkholm/autoimport/internal/storage/postgres"
	"github.com/JonMunkholm/autoimport/internal/storage/sqlite"
)

// errReported marks a failure whose message was already written for the
// user; main only sets the exit code.
var errReported = errors.New("failure reported")

func reportf(w io.Writer, format string, args ...any) error {
	fmt.Fprintf(w, format+"\n", args...)
	return errReported
}

// store is what the commands need from either backend.
type store interface {
	core.Store
	core.Repository
	Migrate(ctx context.Context) error
	Reset(ctx context.Context) error
	Close() error
}

var (
	_ store = (*postgres.Store)(nil)
	_ store = (*sqlite.Store)(nil)
)

type app struct {
	lookup config.LookupFunc
	cfg    *config.Config
}

// load reads configuration and installs the default logger. It runs before
// every command.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFrom(a.lookup)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "command", cmd.CommandPath(), "config", cfg.String())
	return nil
}

func (a *app) openStore(ctx context.Context) (store, error) {
	log := logging.WithFields(ctx, "driver", a.cfg.Store.Driver)

	switch a.cfg.Store.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, a.cfg.Store.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := postgres.Open(ctx, a.cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
