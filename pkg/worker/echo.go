package worker

import (
	"context"
	"time"

	"github.com/theapemachine/a2a-relay/pkg/a2a"
)

/*
Echo answers every message with its own parts, in order. It backs the demo
server and the round trip tests.
*/
type Echo struct {
	delay time.Duration
}

type EchoOption func(*Echo)

// WithDelay makes every call wait before answering, honoring cancellation.
func WithDelay(delay time.Duration) EchoOption {
	return func(echo *Echo) {
		echo.delay = delay
	}
}

func NewEcho(opts ...EchoOption) *Echo {
	echo := &Echo{}

	for _, opt := range opts {
		opt(echo)
	}

	return echo
}

func (echo *Echo) Invoke(ctx context.Context, message *a2a.Message, contextID string) (Result, error) {
	if echo.delay > 0 {
		timer := time.NewTimer(echo.delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	return Result{
		IsComplete: true,
		Parts:      message.Clone().Parts,
	}, nil
}
