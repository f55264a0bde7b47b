package negotiation

import "strings"

// Outcome is the classifier's verdict on a peer response.
type Outcome int

const (
	OutcomeProcessing Outcome = iota
	OutcomeComplete
	OutcomeError
	OutcomeNeedsInfo
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeError:
		return "error"
	case OutcomeNeedsInfo:
		return "needs_info"
	default:
		return "processing"
	}
}

// Classification carries the verdict plus, for needs-info, the topics the
// peer is asking about.
type Classification struct {
	Outcome       Outcome
	MissingFields []string
}

var completionMarkers = []string{
	"booking confirmed",
	"meeting scheduled",
	"event created",
	"successfully booked",
	"confirmed for",
	"meeting is set",
	"scheduled for",
}

var errorMarkers = []string{
	"cannot book",
	"unable to",
	"failed to",
	"error",
	"not available",
	"conflict",
	"no available slots",
	"declined",
	"rejected",
}

var infoTopics = []string{"time", "date", "duration"}

// Classify inspects a peer response for completion, error, and
// information-request markers. The supervised pass resolves marker ties as
// completion; the autonomous pass resolves them as error and additionally
// treats a bare "confirmed" as completion.
func Classify(text string, autonomous bool) Classification {
	lower := strings.ToLower(text)

	complete := containsAny(lower, completionMarkers)
	if autonomous && strings.Contains(lower, "confirmed") {
		complete = true
	}
	failed := containsAny(lower, errorMarkers)

	switch {
	case complete && failed:
		if autonomous {
			return Classification{Outcome: OutcomeError}
		}
		return Classification{Outcome: OutcomeComplete}
	case complete:
		return Classification{Outcome: OutcomeComplete}
	case failed:
		return Classification{Outcome: OutcomeError}
	}

	if strings.Contains(lower, "?") {
		missing := []string{}
		for _, topic := range infoTopics {
			if strings.Contains(lower, topic) {
				missing = append(missing, topic)
			}
		}
		if strings.Contains(lower, "partner") || strings.Contains(lower, "agent id") {
			missing = append(missing, "partner")
		}
		if len(missing) > 0 {
			return Classification{Outcome: OutcomeNeedsInfo, MissingFields: missing}
		}
	}

	return Classification{Outcome: OutcomeProcessing}
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
