package negotiation

import (
	"log/slog"
	"time"
)

// notifier invokes the progress callback with a per-call deadline so a slow
// or deadlocked callback cannot stall the negotiation.
type notifier struct {
	fn       ProgressFunc
	deadline time.Duration
	logger   *slog.Logger
}

func newNotifier(fn ProgressFunc, deadline time.Duration, logger *slog.Logger) *notifier {
	return &notifier{fn: fn, deadline: deadline, logger: logger}
}

// notify fires the callback and waits at most the configured deadline. A
// panic inside the callback is swallowed; an overrun is logged and abandoned.
func (n *notifier) notify(turn int, status Status, message string) {
	if n == nil || n.fn == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				n.logger.Debug("progress callback panicked", "status", status, "panic", r)
			}
		}()
		n.fn(turn, status, message)
	}()

	select {
	case <-done:
	case <-time.After(n.deadline):
		n.logger.Debug("progress callback overran its deadline", "status", status, "deadline", n.deadline)
	}
}
