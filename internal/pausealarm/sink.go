package pausealarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// ErrObserverPanic wraps a panic raised by a Sink.
var ErrObserverPanic = errors.New("pause observer panicked")

// Sink receives detected pauses.
type Sink interface {
	Notify(ctx context.Context, pause time.Duration) error
}

// SinkFunc adapts an ordinary function to Sink.
type SinkFunc func(ctx context.Context, pause time.Duration) error

// Notify calls f.
func (f SinkFunc) Notify(ctx context.Context, pause time.Duration) error {
	return f(ctx, pause)
}

type discard struct{}

func (discard) Notify(context.Context, time.Duration) error { return nil }

// Discard is a Sink that drops every pause.
//
//nolint:gochecknoglobals // Stateless sink.
var Discard Sink = discard{}

// fanout notifies every sink it holds.
type fanout []Sink

// Fanout combines sinks into one. Nil sinks are skipped and nested fan-outs
// are flattened. Every sink is notified even when earlier ones fail; the
// returned error combines all failures.
//
//nolint:ireturn // The composite is only useful through the interface.
func Fanout(sinks ...Sink) Sink {
	flat := make(fanout, 0, len(sinks))

	for _, s := range sinks {
		switch v := s.(type) {
		case nil:
		case fanout:
			flat = append(flat, v...)
		default:
			flat = append(flat, v)
		}
	}

	return flat
}

// Notify calls every sink with pause, isolating each one.
func (f fanout) Notify(ctx context.Context, pause time.Duration) error {
	var err error

	for _, s := range f {
		err = multierr.Append(err, invoke(ctx, s, pause))
	}

	return err
}

// invoke calls s and converts a panic into an error.
func invoke(ctx context.Context, s Sink, pause time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %T: %v", ErrObserverPanic, s, r)
		}
	}()

	return s.Notify(ctx, pause)
}
