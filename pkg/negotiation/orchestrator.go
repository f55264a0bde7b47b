package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/convene-dev/convene/pkg/a2a"
	"github.com/convene-dev/convene/pkg/agent"
	"github.com/convene-dev/convene/pkg/observability"
)

// Transport sends one message to a peer endpoint. *a2a.Client satisfies it.
type Transport interface {
	Send(ctx context.Context, endpoint, text, contextID string) (*a2a.SendResult, error)
}

// Agent formulates utterances. *agent.BookingAgent satisfies it.
type Agent interface {
	Initialize(ctx context.Context) error
	NextUtterance(ctx context.Context, intent agent.Intent, history []agent.Exchange) (*agent.Emission, error)
	ContinueUtterance(ctx context.Context, intent agent.Intent, history []agent.Exchange) (*agent.Emission, error)
}

// Config sets the turn budget and the deadline hierarchy. Every inner
// deadline is bounded by the overall one through context derivation.
type Config struct {
	MaxTurns          int
	OverallDeadline   time.Duration
	InitDeadline      time.Duration
	UtteranceDeadline time.Duration
	SendDeadline      time.Duration

	AutonomousUtteranceDeadline time.Duration
	AutonomousSendDeadline      time.Duration
	AutonomousTurnBudget        time.Duration
	AutonomousDeadlineCap       time.Duration

	ProgressDeadline time.Duration

	// Metrics records per-negotiation counters; nil disables recording.
	Metrics *observability.Metrics
}

func DefaultConfig() Config {
	return Config{
		MaxTurns:                    5,
		OverallDeadline:             120 * time.Second,
		InitDeadline:                30 * time.Second,
		UtteranceDeadline:           10 * time.Second,
		SendDeadline:                10 * time.Second,
		AutonomousUtteranceDeadline: 15 * time.Second,
		AutonomousSendDeadline:      15 * time.Second,
		AutonomousTurnBudget:        45 * time.Second,
		AutonomousDeadlineCap:       20 * time.Second,
		ProgressDeadline:            500 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.MaxTurns == 0 {
		c.MaxTurns = defaults.MaxTurns
	}
	if c.OverallDeadline == 0 {
		c.OverallDeadline = defaults.OverallDeadline
	}
	if c.InitDeadline == 0 {
		c.InitDeadline = defaults.InitDeadline
	}
	if c.UtteranceDeadline == 0 {
		c.UtteranceDeadline = defaults.UtteranceDeadline
	}
	if c.SendDeadline == 0 {
		c.SendDeadline = defaults.SendDeadline
	}
	if c.AutonomousUtteranceDeadline == 0 {
		c.AutonomousUtteranceDeadline = defaults.AutonomousUtteranceDeadline
	}
	if c.AutonomousSendDeadline == 0 {
		c.AutonomousSendDeadline = defaults.AutonomousSendDeadline
	}
	if c.AutonomousTurnBudget == 0 {
		c.AutonomousTurnBudget = defaults.AutonomousTurnBudget
	}
	if c.AutonomousDeadlineCap == 0 {
		c.AutonomousDeadlineCap = defaults.AutonomousDeadlineCap
	}
	if c.ProgressDeadline == 0 {
		c.ProgressDeadline = defaults.ProgressDeadline
	}
}

// Orchestrator runs supervised negotiations and hands over to the autonomous
// loop on request. One Orchestrator may run many negotiations; each call owns
// its own state.
type Orchestrator struct {
	transport Transport
	agent     Agent
	config    Config
	logger    *slog.Logger
}

func NewOrchestrator(transport Transport, bookingAgent Agent, config Config, logger *slog.Logger) *Orchestrator {
	config.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{transport: transport, agent: bookingAgent, config: config, logger: logger}
}

// Negotiate runs the supervised turn loop against endpoint until the booking
// completes, fails, or the turn budget runs out. All failures come back as a
// Result, never as an error.
func (o *Orchestrator) Negotiate(ctx context.Context, endpoint string, intent agent.Intent, progress ProgressFunc) Result {
	started := time.Now()
	result := o.negotiate(ctx, endpoint, intent, progress)
	o.config.Metrics.RecordNegotiation(ctx, intent.PartnerID,
		result.Success, result.HandoverOccurred, len(result.ConversationHistory), time.Since(started))
	return result
}

func (o *Orchestrator) negotiate(ctx context.Context, endpoint string, intent agent.Intent, progress ProgressFunc) Result {
	ctx, cancel := context.WithTimeout(ctx, o.config.OverallDeadline)
	defer cancel()

	st := &state{maxTurns: o.config.MaxTurns}
	notify := newNotifier(progress, o.config.ProgressDeadline, o.logger)
	notify.notify(0, StatusStarting, fmt.Sprintf("negotiating with %s", intent.PartnerID))

	for turn := 1; turn <= o.config.MaxTurns; turn++ {
		notify.notify(turn, StatusInitializing, "preparing booking agent")
		if err := o.initAgent(ctx); err != nil {
			notify.notify(turn, StatusTimeout, err.Error())
			return o.failure(st, err.Error())
		}

		notify.notify(turn, StatusThinking, "formulating next message")
		emission, err := o.nextUtterance(ctx, intent, st)
		if err != nil {
			notify.notify(turn, StatusTimeout, err.Error())
			return o.failure(st, err.Error())
		}

		if handover, reason := emission.HandoverRequested(); handover {
			// The progress callback is deliberately skipped on the handover
			// hot path; a blocked caller must not stall the takeover.
			o.logger.Info("handover requested", "turn", turn, "reason", reason)
			st.record(emission.Utterance, "", false)
			st.history[len(st.history)-1].Metadata["handover"] = true
			remaining := o.config.MaxTurns - st.currentTurn
			return o.continueAutonomously(ctx, endpoint, intent, emission.MessageText(), st, remaining, notify)
		}

		message := emission.MessageText()
		notify.notify(turn, StatusSending, message)

		received, timedOut, err := o.send(ctx, endpoint, message, st, o.config.SendDeadline)
		if timedOut {
			// The attempted turn is kept, with an empty response, so the
			// history shows what was in flight when the deadline hit.
			st.record(message, "", false)
			msg := fmt.Sprintf("peer response timed out after %s", o.config.SendDeadline)
			notify.notify(turn, StatusTimeout, msg)
			return o.failure(st, msg)
		}
		if err != nil {
			notify.notify(turn, StatusError, err.Error())
			return o.failure(st, err.Error())
		}

		st.record(message, received, false)
		notify.notify(turn, StatusReceived, received)

		classification := Classify(received, false)
		switch classification.Outcome {
		case OutcomeComplete:
			st.bookingComplete = true
			notify.notify(turn, StatusComplete, received)
			return o.success(st, intent, received)
		case OutcomeError:
			notify.notify(turn, StatusError, received)
			return o.failure(st, fmt.Sprintf("peer declined: %s", received))
		case OutcomeNeedsInfo:
			notify.notify(turn, StatusInfoNeeded,
				fmt.Sprintf("peer needs more information: %v", classification.MissingFields))
		default:
			notify.notify(turn, StatusProcessing, "peer still processing")
		}
	}

	return o.failure(st, fmt.Sprintf("booking incomplete after %d turns", o.config.MaxTurns))
}

func (o *Orchestrator) initAgent(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, o.config.InitDeadline)
	defer cancel()
	if err := o.agent.Initialize(initCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("booking agent initialization timed out after %s", o.config.InitDeadline)
		}
		return fmt.Errorf("booking agent initialization failed: %v", err)
	}
	return nil
}

func (o *Orchestrator) nextUtterance(ctx context.Context, intent agent.Intent, st *state) (*agent.Emission, error) {
	uttCtx, cancel := context.WithTimeout(ctx, o.config.UtteranceDeadline)
	defer cancel()
	emission, err := o.agent.NextUtterance(uttCtx, intent, st.exchanges())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || uttCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("booking agent timed out after %s formulating a message", o.config.UtteranceDeadline)
		}
		return nil, err
	}
	return emission, nil
}

// send performs one transport round-trip and updates the stored context id.
// timedOut distinguishes a deadline expiry from other transport failures.
func (o *Orchestrator) send(ctx context.Context, endpoint, message string, st *state, deadline time.Duration) (string, bool, error) {
	sendCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	result, err := o.transport.Send(sendCtx, endpoint, message, st.targetContextID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || sendCtx.Err() == context.DeadlineExceeded {
			return "", true, err
		}
		return "", false, fmt.Errorf("sending to peer failed: %v", err)
	}
	st.targetContextID = result.ContextID
	return result.Text, false, nil
}

func (st *state) exchanges() []agent.Exchange {
	out := make([]agent.Exchange, 0, len(st.history))
	for _, turn := range st.history {
		out = append(out, agent.Exchange{Outbound: turn.Sent, Inbound: turn.Received})
	}
	return out
}

func (o *Orchestrator) success(st *state, intent agent.Intent, confirmation string) Result {
	return Result{
		Success:             true,
		Message:             "booking confirmed",
		ConversationHistory: st.history,
		HandoverOccurred:    st.handover,
		BookingDetails: map[string]interface{}{
			"partner":      intent.PartnerID,
			"confirmation": confirmation,
			"context_id":   st.targetContextID,
			"turns":        st.currentTurn,
		},
	}
}

func (o *Orchestrator) failure(st *state, message string) Result {
	return Result{
		Success:             false,
		Message:             message,
		ConversationHistory: st.history,
		HandoverOccurred:    st.handover,
	}
}
