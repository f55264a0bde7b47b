package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/convene-dev/convene/pkg/tools"
)

// Emission is the agent's typed output: the utterance to send plus an
// optional control clause.
type Emission struct {
	Utterance string   `json:"utterance"`
	Control   *Control `json:"control,omitempty"`
}

type Control struct {
	Handover *Handover `json:"handover,omitempty"`
}

type Handover struct {
	Reason string `json:"reason"`
}

// HandoverRequested reports whether the emission asks for autonomous mode,
// and the stated reason.
func (e *Emission) HandoverRequested() (bool, string) {
	if e.Control != nil && e.Control.Handover != nil {
		return true, e.Control.Handover.Reason
	}
	return false, ""
}

// Older agent outputs inline the clause into free text.
var (
	handoverPattern = regexp.MustCompile(`\{\s*"handover"\s*:\s*true`)
	reasonPattern   = regexp.MustCompile(`"reason"\s*:\s*"([^"]*)"`)
	clausePattern   = regexp.MustCompile(`\{\s*"handover"\s*:\s*true[^}]*\}`)
)

// ParseEmission turns raw model output into an Emission. It accepts the
// typed JSON shape, a bare handover clause embedded in free text, or plain
// prose, and never fails.
func ParseEmission(raw string) *Emission {
	cleaned := tools.StripCodeFences(raw)

	if strings.HasPrefix(cleaned, "{") {
		var typed Emission
		if err := json.Unmarshal([]byte(cleaned), &typed); err == nil && typed.Utterance != "" {
			return &typed
		}
	}

	emission := &Emission{Utterance: cleaned}
	if handoverPattern.MatchString(cleaned) {
		reason := "agent requested autonomous continuation"
		if m := reasonPattern.FindStringSubmatch(cleaned); m != nil {
			reason = m[1]
		}
		emission.Control = &Control{Handover: &Handover{Reason: reason}}
		// The clause is control data, not message text.
		emission.Utterance = strings.TrimSpace(clausePattern.ReplaceAllString(cleaned, ""))
	}
	return emission
}

// MessageText extracts the literal text to send from the utterance. A
// dict-shaped utterance prefers its question field, then message, then the
// canonical JSON form.
func (e *Emission) MessageText() string {
	utterance := strings.TrimSpace(e.Utterance)
	if !strings.HasPrefix(utterance, "{") {
		return utterance
	}
	parsed := map[string]interface{}{}
	if err := json.Unmarshal([]byte(utterance), &parsed); err != nil {
		return utterance
	}
	for _, key := range []string{"question", "message"} {
		if text, ok := parsed[key].(string); ok && text != "" {
			return text
		}
	}
	canonical, err := json.Marshal(parsed)
	if err != nil {
		return utterance
	}
	return string(canonical)
}
