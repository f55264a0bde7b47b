// Package agent implements the local booking agent: the language-model-backed
// component that formulates outbound negotiation utterances and may request a
// handover to autonomous mode.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/convene-dev/convene/pkg/llms"
	"github.com/convene-dev/convene/pkg/preferences"
)

// Intent is what the principal wants booked.
type Intent struct {
	PartnerID   string
	DateWindow  string
	TimeWindow  string
	Duration    string
	Title       string
	Description string
}

func (i Intent) describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Meeting request: %s", i.Duration)
	if i.DateWindow != "" {
		fmt.Fprintf(&b, " within %s", i.DateWindow)
	}
	if i.TimeWindow != "" {
		fmt.Fprintf(&b, " between %s", i.TimeWindow)
	}
	if i.Title != "" {
		fmt.Fprintf(&b, ", titled %q", i.Title)
	}
	if i.Description != "" {
		fmt.Fprintf(&b, " (%s)", i.Description)
	}
	return b.String()
}

// Exchange is one prior send/receive pair shown to the agent.
type Exchange struct {
	Outbound string
	Inbound  string
}

// BookingAgent produces negotiation utterances.
type BookingAgent struct {
	provider llms.Provider
	prefs    func() *preferences.Preferences
	logger   *slog.Logger

	initOnce sync.Once
	initErr  error
}

func New(provider llms.Provider, prefs func() *preferences.Preferences, logger *slog.Logger) *BookingAgent {
	if prefs == nil {
		prefs = preferences.Default
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookingAgent{provider: provider, prefs: prefs, logger: logger}
}

// Initialize prepares the agent for use. It runs once; later calls return
// the first outcome.
func (a *BookingAgent) Initialize(ctx context.Context) error {
	a.initOnce.Do(func() {
		if a.provider == nil {
			a.initErr = fmt.Errorf("booking agent has no language model provider")
			return
		}
		if err := ctx.Err(); err != nil {
			a.initErr = err
			return
		}
		a.logger.Debug("booking agent initialized", "model", a.provider.ModelName())
	})
	return a.initErr
}

// NextUtterance produces the supervised-mode utterance for the next turn.
func (a *BookingAgent) NextUtterance(ctx context.Context, intent Intent, history []Exchange) (*Emission, error) {
	prompt := a.supervisedPrompt(intent)
	return a.generate(ctx, prompt, history)
}

// ContinueUtterance produces an autonomous-mode utterance. The full prior
// conversation and the booking preferences are serialized into the prompt so
// the agent can drive toward confirmation without supervision.
func (a *BookingAgent) ContinueUtterance(ctx context.Context, intent Intent, history []Exchange) (*Emission, error) {
	prompt := a.autonomousPrompt(intent, history)
	return a.generate(ctx, prompt, nil)
}

func (a *BookingAgent) generate(ctx context.Context, system string, history []Exchange) (*Emission, error) {
	messages := []llms.Message{}
	for _, exchange := range history {
		messages = append(messages,
			llms.Message{Role: llms.RoleAssistant, Content: exchange.Outbound},
			llms.Message{Role: llms.RoleUser, Content: exchange.Inbound},
		)
	}
	if len(messages) == 0 {
		messages = append(messages, llms.Message{Role: llms.RoleUser, Content: "Begin the negotiation."})
	}

	resp, err := a.provider.Generate(ctx, &llms.Request{System: system, Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("booking agent utterance failed: %w", err)
	}
	return ParseEmission(resp.Text), nil
}

func (a *BookingAgent) supervisedPrompt(intent Intent) string {
	prefs := a.prefs()
	var b strings.Builder
	b.WriteString("You negotiate meeting bookings with a remote scheduling agent on behalf of your principal. ")
	b.WriteString("Write the next message to send to the peer. Be concrete about date, time, and duration.\n\n")
	fmt.Fprintf(&b, "Peer agent: %s\n", intent.PartnerID)
	fmt.Fprintf(&b, "%s\n", intent.describe())
	fmt.Fprintf(&b, "Working hours: %02d:00-%02d:00 on %s\n",
		prefs.PreferredStartHour, prefs.PreferredEndHour, strings.Join(prefs.PreferredDays, ", "))
	if prefs.Instructions != "" {
		fmt.Fprintf(&b, "Standing instructions: %s\n", prefs.Instructions)
	}
	b.WriteString("\nOPTIONAL HANDOVER: if you judge that the rest of this negotiation is routine ")
	b.WriteString("and you can finish it without supervision, include a control clause in your reply ")
	b.WriteString(`shaped {"handover": true, "reason": "<why>"} alongside the message to send.`)
	return b.String()
}

func (a *BookingAgent) autonomousPrompt(intent Intent, history []Exchange) string {
	prefs := a.prefs()
	var b strings.Builder
	b.WriteString("You are finishing a meeting negotiation autonomously. ")
	b.WriteString("Drive the conversation to a confirmed booking; do not hand control back.\n\n")
	fmt.Fprintf(&b, "Peer agent: %s\n", intent.PartnerID)
	fmt.Fprintf(&b, "%s\n", intent.describe())
	fmt.Fprintf(&b, "Working hours: %02d:00-%02d:00 on %s\n",
		prefs.PreferredStartHour, prefs.PreferredEndHour, strings.Join(prefs.PreferredDays, ", "))
	if prefs.Instructions != "" {
		fmt.Fprintf(&b, "Standing instructions: %s\n", prefs.Instructions)
	}
	b.WriteString("\nConversation so far:\n")
	for i, exchange := range history {
		fmt.Fprintf(&b, "%d. you: %s\n", i+1, exchange.Outbound)
		if exchange.Inbound != "" {
			fmt.Fprintf(&b, "   peer: %s\n", exchange.Inbound)
		}
	}
	b.WriteString("\nWrite the next message to send to the peer.")
	return b.String()
}
