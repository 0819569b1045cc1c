// Package service implements the borrowing lifecycle, the payment
// orchestrator and the overdue sweep on top of the repository store.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rpk6432/library-service/internal/notify"
)

var tracer = otel.Tracer("github.com/rpk6432/library-service/internal/service")

// notifyTimeout bounds a single post-commit notification.
const notifyTimeout = 10 * time.Second

// Clock returns the current time.  Only the calendar date in UTC is used.
type Clock func() time.Time

// Dispatcher runs post-commit work outside the request that triggered it.
type Dispatcher func(fn func())

// Async runs fn on a new goroutine.
func Async(fn func()) { go fn() }

type options struct {
	now      Clock
	dispatch Dispatcher
	log      *slog.Logger
}

// Option configures a service.
type Option func(*options)

// WithClock overrides time.Now.
func WithClock(c Clock) Option { return func(o *options) { o.now = c } }

// WithDispatcher overrides how post-commit notifications are scheduled.
func WithDispatcher(d Dispatcher) Option { return func(o *options) { o.dispatch = d } }

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.log = l } }

func buildOptions(opts []Option) options {
	o := options{now: time.Now, dispatch: Async, log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// notifyAfterCommit hands text to the notifier on the dispatcher.  It must
// only be called once the transaction that produced text has committed;
// delivery errors are logged and never reach the caller.
func (o options) notifyAfterCommit(n notify.Notifier, text string) {
	o.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := n.Send(ctx, text); err != nil {
			o.log.Warn("notification delivery failed", "err", err)
		}
	})
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
