// Package negotiation implements the outbound booking flow: a bounded,
// deadline-layered turn loop against a remote peer agent, with a
// supervised-to-autonomous handover protocol and substring-based response
// classification.
package negotiation

import (
	"time"
)

// Turn is one completed exchange with the peer.
type Turn struct {
	Number    int                    `json:"number"`
	Sent      string                 `json:"sent"`
	Received  string                 `json:"received"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Result is the outcome of a whole negotiation.
type Result struct {
	Success             bool                   `json:"success"`
	Message             string                 `json:"message"`
	ConversationHistory []Turn                 `json:"conversation_history"`
	BookingDetails      map[string]interface{} `json:"booking_details,omitempty"`
	HandoverOccurred    bool                   `json:"handover_occurred"`
}

// state is the volatile per-negotiation record. It is owned by the single
// goroutine running the negotiation and never shared.
type state struct {
	currentTurn     int
	maxTurns        int
	bookingComplete bool
	targetContextID string
	history         []Turn
	handover        bool
}

func (s *state) record(sent, received string, autonomous bool) {
	s.currentTurn++
	metadata := map[string]interface{}{}
	if autonomous {
		metadata["autonomous"] = true
	}
	s.history = append(s.history, Turn{
		Number:    s.currentTurn,
		Sent:      sent,
		Received:  received,
		Timestamp: time.Now(),
		Metadata:  metadata,
	})
}

// Status tags passed to the progress callback.
type Status string

const (
	StatusStarting     Status = "starting"
	StatusInitializing Status = "initializing"
	StatusThinking     Status = "thinking"
	StatusSending      Status = "sending"
	StatusReceived     Status = "received"
	StatusInfoNeeded   Status = "info_needed"
	StatusProcessing   Status = "processing"
	StatusComplete     Status = "complete"
	StatusTimeout      Status = "timeout"
	StatusError        Status = "error"
	StatusHandover     Status = "handover"
)

// ProgressFunc receives advisory progress updates. It must never be
// load-bearing: invocations are bounded by a short deadline and failures are
// swallowed.
type ProgressFunc func(turn int, status Status, message string)
