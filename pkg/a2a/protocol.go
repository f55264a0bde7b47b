// Package a2a implements the agent-to-agent HTTP+JSON transport used to
// negotiate with remote peer agents: agent-card discovery, message/send
// envelopes and the streaming multi-frame response format.
package a2a

import (
	"encoding/json"
)

// WellKnownCardPath is where peers publish their agent card.
const WellKnownCardPath = "/.well-known/agent-card.json"

// ============================================================================
// AGENT CARD - Agent Discovery & Capability Advertisement
// ============================================================================

// AgentCard is the descriptor a peer publishes at the well-known path.
// Absent fields default conservatively: no streaming, url = discovery base.
type AgentCard struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Version      string            `json:"version,omitempty"`
	URL          string            `json:"url,omitempty"`
	Capabilities AgentCapabilities `json:"capabilities"`
	Skills       []AgentSkill      `json:"skills,omitempty"`
}

// AgentCapabilities describes what a peer supports.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications,omitempty"`
}

// AgentSkill describes a capability a peer advertises on its card.
type AgentSkill struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ============================================================================
// MESSAGES - Outbound Request Envelope
// ============================================================================

// PartKind discriminates message and artifact content parts.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindData PartKind = "data"
)

// Part is one content part of a message or artifact.
type Part struct {
	Kind PartKind               `json:"kind"`
	Text string                 `json:"text,omitempty"`
	Data map[string]interface{} `json:"data,omitempty"`
}

// Message is a single conversational message.
type Message struct {
	Role      string `json:"role"`
	MessageID string `json:"messageId"`
	Parts     []Part `json:"parts"`
	ContextID string `json:"contextId,omitempty"`
}

// TextMessage builds a user message carrying one text part.
func TextMessage(messageID, text, contextID string) Message {
	return Message{
		Role:      "user",
		MessageID: messageID,
		Parts:     []Part{{Kind: PartKindText, Text: text}},
		ContextID: contextID,
	}
}

// SendParams are the params of a message/send request.
type SendParams struct {
	ID      string  `json:"id"`
	Message Message `json:"message"`
}

// Request is the outer request envelope.
type Request struct {
	ID     string     `json:"id"`
	Params SendParams `json:"params"`
}

// ============================================================================
// RESPONSE FRAMES - Tagged Union Over Heterogeneous Wire Shapes
// ============================================================================

// FrameKind discriminates response frames.
type FrameKind string

const (
	FrameKindTask           FrameKind = "task"
	FrameKindStatusUpdate   FrameKind = "status-update"
	FrameKindArtifactUpdate FrameKind = "artifact-update"
	FrameKindMessage        FrameKind = "message"
)

// Frame is one normalized response frame. Exactly one of the payload fields
// is set, matching Kind; all are nil for unknown kinds, which callers skip.
type Frame struct {
	Kind      FrameKind
	ContextID string
	Final     bool

	Task     *TaskFrame
	Status   *StatusUpdateFrame
	Artifact *ArtifactUpdateFrame
	Message  *MessageFrame
}

// TaskFrame is a task-kind frame (informational for text assembly).
type TaskFrame struct {
	ID    string
	State string
}

// StatusUpdateFrame carries a task state change, optionally with a nested
// status message.
type StatusUpdateFrame struct {
	State string
	Text  string
}

// ArtifactUpdateFrame is the primary carrier of user-visible content.
type ArtifactUpdateFrame struct {
	Parts []Part
}

// MessageFrame is a message-kind frame.
type MessageFrame struct {
	Role string
	Text string
}

// ParseFrame normalizes one wire frame. The input may be the streaming shape
// ({"result": {...}}) or a bare result object; key casing and nesting are
// probed defensively, and an unrecognized shape yields an unknown-kind frame
// rather than an error.
func ParseFrame(data []byte) (*Frame, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return NormalizeFrame(raw), nil
}

// NormalizeFrame builds a Frame from a decoded wire object.
func NormalizeFrame(raw map[string]interface{}) *Frame {
	frame := &Frame{ContextID: findContextID(raw)}

	result := asMap(raw["result"])
	if result == nil {
		result = raw
	}

	frame.Kind = FrameKind(stringAt(result, "kind"))
	frame.Final = boolAt(result, "final")

	switch frame.Kind {
	case FrameKindTask:
		frame.Task = &TaskFrame{
			ID:    stringAt(result, "id", "taskId", "task_id"),
			State: stringAt(asMap(result["status"]), "state"),
		}

	case FrameKindStatusUpdate:
		status := asMap(result["status"])
		frame.Status = &StatusUpdateFrame{
			State: stringAt(status, "state"),
			Text:  extractMessageText(asMap(status["message"])),
		}

	case FrameKindArtifactUpdate:
		frame.Artifact = &ArtifactUpdateFrame{
			Parts: normalizeParts(asMap(result["artifact"])["parts"]),
		}

	case FrameKindMessage:
		frame.Message = &MessageFrame{
			Role: stringAt(result, "role"),
			Text: extractMessageText(result),
		}
	}

	return frame
}

// normalizeParts converts a raw parts array to typed Parts, tolerating both
// "kind" and "type" discriminators.
func normalizeParts(v interface{}) []Part {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	var parts []Part
	for _, item := range items {
		m := asMap(item)
		if m == nil {
			continue
		}
		switch PartKind(stringAt(m, "kind", "type")) {
		case PartKindText:
			parts = append(parts, Part{Kind: PartKindText, Text: stringAt(m, "text")})
		case PartKindData:
			parts = append(parts, Part{Kind: PartKindData, Data: asMap(m["data"])})
		}
	}
	return parts
}

// extractMessageText pulls concatenated text parts out of a message-shaped
// object.
func extractMessageText(m map[string]interface{}) string {
	if m == nil {
		return ""
	}
	var out string
	for _, p := range normalizeParts(m["parts"]) {
		if p.Kind == PartKindText && p.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// findContextID walks the object tree for a conversation continuity token,
// accepting camelCase and snake_case at any nesting level.
func findContextID(v interface{}) string {
	m := asMap(v)
	if m == nil {
		return ""
	}
	if id := stringAt(m, "contextId", "context_id"); id != "" {
		return id
	}
	for _, child := range m {
		switch c := child.(type) {
		case map[string]interface{}:
			if id := findContextID(c); id != "" {
				return id
			}
		case []interface{}:
			for _, item := range c {
				if id := findContextID(item); id != "" {
					return id
				}
			}
		}
	}
	return ""
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func stringAt(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s, ok := m[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func boolAt(m map[string]interface{}, keys ...string) bool {
	for _, key := range keys {
		if b, ok := m[key].(bool); ok {
			return b
		}
	}
	return false
}
