package negotiation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/convene-dev/convene/pkg/agent"
)

// continueAutonomously drives the remainder of a negotiation after a
// handover. It reuses the transport and classifier but asks the agent with
// the full serialized history each turn, and runs under its own capped
// deadline with a drift monitor.
func (o *Orchestrator) continueAutonomously(ctx context.Context, endpoint string, intent agent.Intent,
	firstMessage string, st *state, remaining int, notify *notifier) Result {

	st.handover = true
	if remaining <= 0 {
		return o.failure(st, "handover requested with no turns remaining")
	}

	deadline := time.Duration(remaining) * o.config.AutonomousTurnBudget
	if deadline > o.config.AutonomousDeadlineCap {
		deadline = o.config.AutonomousDeadlineCap
	}
	autoCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Cancellation of blocked I/O is best-effort; the monitor logs if the
	// loop is still running well past its deadline.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
		case <-time.After(deadline + 500*time.Millisecond):
			o.logger.Warn("autonomous continuation still running past its deadline",
				"partner", intent.PartnerID, "deadline", deadline)
		}
	}()

	o.logger.Info("autonomous continuation started",
		"partner", intent.PartnerID, "remaining_turns", remaining, "deadline", deadline)

	pending := firstMessage
	for turn := 1; turn <= remaining; turn++ {
		if pending == "" {
			emission, err := o.continueUtterance(autoCtx, intent, st)
			if err != nil {
				notify.notify(st.currentTurn+1, StatusTimeout, err.Error())
				return o.failure(st, err.Error())
			}
			pending = emission.MessageText()
		}

		notify.notify(st.currentTurn+1, StatusSending, pending)
		received, timedOut, err := o.send(autoCtx, endpoint, pending, st, o.config.AutonomousSendDeadline)
		if timedOut {
			st.record(pending, "", true)
			msg := fmt.Sprintf("peer response timed out after %s in autonomous mode", o.config.AutonomousSendDeadline)
			notify.notify(st.currentTurn, StatusTimeout, msg)
			return o.failure(st, msg)
		}
		if err != nil {
			notify.notify(st.currentTurn+1, StatusError, err.Error())
			return o.failure(st, err.Error())
		}

		st.record(pending, received, true)
		pending = ""
		notify.notify(st.currentTurn, StatusReceived, received)

		classification := Classify(received, true)
		switch classification.Outcome {
		case OutcomeComplete:
			st.bookingComplete = true
			notify.notify(st.currentTurn, StatusComplete, received)
			return o.success(st, intent, received)
		case OutcomeError:
			notify.notify(st.currentTurn, StatusError, received)
			return o.failure(st, fmt.Sprintf("peer declined in autonomous mode: %s", received))
		}
	}

	return o.failure(st, fmt.Sprintf("booking incomplete after %d autonomous turns", remaining))
}

func (o *Orchestrator) continueUtterance(ctx context.Context, intent agent.Intent, st *state) (*agent.Emission, error) {
	uttCtx, cancel := context.WithTimeout(ctx, o.config.AutonomousUtteranceDeadline)
	defer cancel()
	emission, err := o.agent.ContinueUtterance(uttCtx, intent, st.exchanges())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || uttCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("booking agent timed out after %s in autonomous mode", o.config.AutonomousUtteranceDeadline)
		}
		return nil, err
	}
	return emission, nil
}
