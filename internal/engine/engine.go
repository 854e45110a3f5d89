package engine

import (
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/model"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/notify"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/provision"
	"github.com/redakrarssi/Gudcity-REDA-sub003/internal/store"
)

// TracerName identifies spans emitted by the engine.
const TracerName = "github.com/redakrarssi/Gudcity-REDA-sub003/internal/engine"

// Engine resolves invitations and serves enrollment and card reads.
//
// Thread-safety model:
//   - Respond(): safe from any goroutine; concurrency control lives in the store
//   - reads: safe from any goroutine
type Engine struct {
	store       *store.Store
	provisioner *provision.Provisioner
	clock       model.Clock
	notifier    notify.Notifier
	logger      *slog.Logger
	tracer      trace.Tracer
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithClock sets the clock used for timestamps and expiry checks.
func WithClock(clock model.Clock) EngineOption {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithNotifier sets the delivery hand-off for committed notifications.
func WithNotifier(n notify.Notifier) EngineOption {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracerProvider sets where engine spans are recorded.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) {
		e.tracer = tp.Tracer(TracerName)
	}
}

// New creates an Engine over a store, provisioning with p.
//
// Defaults: system clock, log-only notifier, slog.Default(), and the global
// OpenTelemetry tracer provider.
func New(s *store.Store, p *provision.Provisioner, opts ...EngineOption) *Engine {
	e := &Engine{
		store:       s,
		provisioner: p,
		clock:       model.SystemClock{},
		logger:      slog.Default(),
		tracer:      otel.Tracer(TracerName),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.notifier == nil {
		e.notifier = notify.LogNotifier{Logger: e.logger}
	}
	return e
}
