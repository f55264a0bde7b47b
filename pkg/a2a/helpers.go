package a2a

import (
	"encoding/json"
	"strings"
)

// NoTextPlaceholder is returned when a response carried no extractable text.
// Surfacing a placeholder instead of an error keeps the turn loop moving.
const NoTextPlaceholder = "[peer response contained no text]"

// ExtractPartText returns the user-visible text of one part. Data parts are
// probed in priority order: question, message, text, then a canonical JSON
// serialization of the whole object.
func ExtractPartText(p Part) string {
	switch p.Kind {
	case PartKindText:
		return p.Text
	case PartKindData:
		return ExtractDataText(p.Data)
	}
	return ""
}

// ExtractDataText extracts text from a data object per the priority order
// above.
func ExtractDataText(data map[string]interface{}) string {
	if data == nil {
		return ""
	}
	for _, key := range []string{"question", "message", "text"} {
		if s, ok := data[key].(string); ok && s != "" {
			return s
		}
	}
	if encoded, err := json.Marshal(data); err == nil {
		return string(encoded)
	}
	return ""
}

// AssembleText collects the user-visible text from a sequence of frames.
// Artifact-update frames are the primary carrier; status-update, task and
// message frames contribute nothing. Unknown frames are skipped.
func AssembleText(frames []*Frame) string {
	var b strings.Builder
	for _, frame := range frames {
		if frame == nil || frame.Kind != FrameKindArtifactUpdate || frame.Artifact == nil {
			continue
		}
		for _, part := range frame.Artifact.Parts {
			if text := ExtractPartText(part); text != "" {
				b.WriteString(text)
			}
		}
	}
	return b.String()
}

// LastContextID returns the most recent continuity token seen across frames,
// falling back to the supplied previous id.
func LastContextID(frames []*Frame, previous string) string {
	id := previous
	for _, frame := range frames {
		if frame != nil && frame.ContextID != "" {
			id = frame.ContextID
		}
	}
	return id
}
