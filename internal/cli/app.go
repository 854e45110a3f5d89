package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/config"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/engine"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/ident"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/invite"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/notify"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/provision"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/reconcile"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/telemetry"
)

// app is the wired engine a command operates on.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *store.Store
	invites  *invite.Manager
	engine   *engine.Engine
	sweep    *reconcile.Sweep
	clock    model.Clock
	out      *OutputFormatter
	shutdown func(context.Context) error
}

// openApp loads configuration, opens the database and wires the components.
// Callers must Close the returned app.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app, error) {
	out := newFormatter(opts, cmd)

	cfg, err := config.Load(config.LoadOptions{
		ConfigPath: opts.ConfigPath,
		EnvFile:    opts.EnvFile,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.Database != "" {
		cfg.Database.DSN = opts.Database
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger, err := newLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log configuration", err)
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to set up telemetry", err)
	}

	driver, err := store.ParseDriver(cfg.Database.Driver)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid database driver", err)
	}
	logger.Debug("opening database", "driver", driver)
	st, err := store.OpenDriver(driver, cfg.Database.DSN)
	if err != nil {
		_ = shutdown(ctx)
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = model.SystemClock{}
	}
	ids := opts.IDs
	if ids == nil {
		ids = ident.UUIDv7Generator{}
	}
	numbers := opts.Numbers
	if numbers == nil {
		sn, err := provision.NewSnowflakeNumberer(cfg.Card.NodeID)
		if err != nil {
			_ = st.Close()
			_ = shutdown(ctx)
			return nil, WrapExitError(ExitCommandError, "failed to create card numberer", err)
		}
		numbers = sn
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.LogNotifier{Logger: logger}
	}

	p := provision.New(ids, numbers,
		provision.WithTier(cfg.Card.Tier),
		provision.WithLogger(logger),
	)

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		invites: invite.New(st,
			invite.WithTTL(cfg.Invitation.TTL),
			invite.WithClock(clock),
			invite.WithIDs(ids),
			invite.WithNotifier(notifier),
			invite.WithLogger(logger),
		),
		engine: engine.New(st, p,
			engine.WithClock(clock),
			engine.WithNotifier(notifier),
			engine.WithLogger(logger),
		),
		sweep: reconcile.New(st, p,
			reconcile.WithClock(clock),
			reconcile.WithLogger(logger),
		),
		clock:    clock,
		out:      out,
		shutdown: shutdown,
	}, nil
}

// Close releases the database and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	return errors.Join(a.store.Close(), a.shutdown(ctx))
}

// withApp opens the app, runs fn and closes the app.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := openApp(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(ctx); closeErr != nil {
			a.logger.Error("error closing app", "error", closeErr)
		}
	}()
	return fn(ctx, a)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// newLogger builds the slog logger described by cfg, writing to w.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts)), nil
}
