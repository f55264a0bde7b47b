package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/convene-dev/convene/pkg/calendar"
	"github.com/convene-dev/convene/pkg/preferences"
)

// funcTool adapts a typed handler into the Tool interface. Arguments are
// decoded into T via mapstructure so JSON numbers land in int fields.
type funcTool[T any] struct {
	info ToolInfo
	run  func(ctx context.Context, args T) (ToolResult, error)
}

func (t *funcTool[T]) GetInfo() ToolInfo { return t.info }

func (t *funcTool[T]) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	var decoded T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &decoded,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return failure(t.info.Name, err.Error()), nil
	}
	if err := decoder.Decode(args); err != nil {
		return failure(t.info.Name, fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	start := time.Now()
	result, err := t.run(ctx, decoded)
	result.ToolName = t.info.Name
	result.ExecutionTime = time.Since(start)
	return result, err
}

func failure(name, msg string) ToolResult {
	return ToolResult{Success: false, Error: msg, ToolName: name}
}

// CalendarToolset wires the booking operations onto an engine and the
// current admission policy.
type CalendarToolset struct {
	engine *calendar.Engine
	prefs  func() *preferences.Preferences
}

func NewCalendarToolset(engine *calendar.Engine, prefs func() *preferences.Preferences) *CalendarToolset {
	if prefs == nil {
		prefs = preferences.Default
	}
	return &CalendarToolset{engine: engine, prefs: prefs}
}

// RegisterAll adds every calendar tool to the registry. requestBooking and
// proposeMeeting are aliases for the same operation.
func (s *CalendarToolset) RegisterAll(reg *Registry) error {
	for _, tool := range s.Tools() {
		if err := reg.Register(tool.GetInfo().Name, tool); err != nil {
			return err
		}
	}
	return nil
}

func (s *CalendarToolset) Tools() []Tool {
	booking := func(ctx context.Context, args bookingArgs) (ToolResult, error) {
		return s.requestBooking(args)
	}
	return []Tool{
		&funcTool[slotsArgs]{
			info: ToolInfo{
				Name:        "requestAvailableSlots",
				Description: "List free calendar slots inside a date window for a given meeting duration.",
				Parameters:  argSchema[slotsArgs](),
			},
			run: func(ctx context.Context, args slotsArgs) (ToolResult, error) {
				return s.requestAvailableSlots(args)
			},
		},
		&funcTool[bookingArgs]{
			info: ToolInfo{
				Name:        "requestBooking",
				Description: "Create a meeting on the calendar, rejecting conflicts and policy violations.",
				Parameters:  argSchema[bookingArgs](),
			},
			run: booking,
		},
		&funcTool[bookingArgs]{
			info: ToolInfo{
				Name:        "proposeMeeting",
				Description: "Propose a meeting on the calendar (alias of requestBooking).",
				Parameters:  argSchema[bookingArgs](),
			},
			run: booking,
		},
		s.transitionTool("acceptMeeting", "Accept a proposed meeting.", s.engine.Accept),
		s.transitionTool("rejectMeeting", "Reject a proposed meeting.", s.engine.Reject),
		s.transitionTool("confirmMeeting", "Confirm a proposed or accepted meeting.", s.engine.Confirm),
		&funcTool[eventIDArgs]{
			info: ToolInfo{
				Name:        "cancelEvent",
				Description: "Remove an event from the calendar.",
				Parameters:  argSchema[eventIDArgs](),
			},
			run: func(ctx context.Context, args eventIDArgs) (ToolResult, error) {
				if !s.engine.Remove(args.EventID) {
					return ToolResult{Success: false, Error: fmt.Sprintf("no event with id %s", args.EventID)}, nil
				}
				return jsonResult(map[string]interface{}{"success": true, "event_id": args.EventID})
			},
		},
		&funcTool[listArgs]{
			info: ToolInfo{
				Name:        "getCalendarEvents",
				Description: "List calendar events, optionally filtered by status.",
				Parameters:  argSchema[listArgs](),
			},
			run: func(ctx context.Context, args listArgs) (ToolResult, error) {
				if args.Status != "" {
					status := calendar.Status(args.Status)
					if !status.Valid() {
						return ToolResult{Success: false, Error: fmt.Sprintf("unknown status %q", args.Status)}, nil
					}
					return eventList(s.engine.ByStatus(status))
				}
				return eventList(s.engine.All())
			},
		},
		&funcTool[listArgs]{
			info: ToolInfo{
				Name:        "getPendingRequests",
				Description: "List proposed and accepted meetings awaiting action.",
				Parameters:  argSchema[listArgs](),
			},
			run: func(ctx context.Context, args listArgs) (ToolResult, error) {
				events := s.engine.Pending()
				if args.Limit > 0 && len(events) > args.Limit {
					events = events[:args.Limit]
				}
				return eventList(events)
			},
		},
		&funcTool[listArgs]{
			info: ToolInfo{
				Name:        "getUpcomingEvents",
				Description: "List future confirmed, accepted, and booked meetings in start order.",
				Parameters:  argSchema[listArgs](),
			},
			run: func(ctx context.Context, args listArgs) (ToolResult, error) {
				return eventList(s.engine.Upcoming(args.Limit))
			},
		},
	}
}

type slotsArgs struct {
	StartDate              string `json:"start_date" mapstructure:"start_date" jsonschema:"required,description=Window start as an ISO instant"`
	EndDate                string `json:"end_date" mapstructure:"end_date" jsonschema:"required,description=Window end as an ISO instant"`
	Duration               string `json:"duration" mapstructure:"duration" jsonschema:"required,description=Meeting duration such as 30m or 1h"`
	PartnerAgentID         string `json:"partner_agent_id,omitempty" mapstructure:"partner_agent_id" jsonschema:"description=Partner the slots are for"`
	Timezone               string `json:"timezone,omitempty" mapstructure:"timezone" jsonschema:"description=IANA timezone for zone-less instants"`
	SlotGranularityMinutes int    `json:"slot_granularity_minutes,omitempty" mapstructure:"slot_granularity_minutes" jsonschema:"description=Candidate slot spacing in minutes,default=30"`
}

type bookingArgs struct {
	StartTime      string `json:"start_time" mapstructure:"start_time" jsonschema:"required,description=Meeting start as an ISO instant"`
	Duration       string `json:"duration" mapstructure:"duration" jsonschema:"required,description=Meeting duration such as 30m or 1h"`
	PartnerAgentID string `json:"partner_agent_id" mapstructure:"partner_agent_id" jsonschema:"required,description=Identifier of the partner agent"`
	Title          string `json:"title,omitempty" mapstructure:"title" jsonschema:"description=Optional human-readable title"`
	InitialStatus  string `json:"initial_status,omitempty" mapstructure:"initial_status" jsonschema:"description=Status to create the event in,enum=proposed|accepted|confirmed"`
}

type eventIDArgs struct {
	EventID string `json:"event_id" mapstructure:"event_id" jsonschema:"required,description=Identifier of the event"`
}

type listArgs struct {
	Status string `json:"status,omitempty" mapstructure:"status" jsonschema:"description=Optional status filter"`
	Limit  int    `json:"limit,omitempty" mapstructure:"limit" jsonschema:"description=Maximum number of events to return"`
}

func (s *CalendarToolset) requestAvailableSlots(args slotsArgs) (ToolResult, error) {
	loc, err := resolveLocation(args.Timezone)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	start, err := ParseInstant(args.StartDate, loc)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	end, err := ParseInstant(args.EndDate, loc)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	if _, err := calendar.ParseDuration(args.Duration); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	slots, err := s.engine.AvailableSlots(start, end, args.Duration, s.prefs().BufferBetweenMeetings)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	out := make([]map[string]interface{}, 0, len(slots))
	for _, slot := range slots {
		out = append(out, map[string]interface{}{
			"start":            slot.Start.Format(time.RFC3339),
			"end":              slot.End.Format(time.RFC3339),
			"duration_minutes": slot.DurationMinutes,
		})
	}
	return jsonResult(map[string]interface{}{"success": true, "slots": out})
}

func (s *CalendarToolset) requestBooking(args bookingArgs) (ToolResult, error) {
	start, err := ParseInstant(args.StartTime, time.UTC)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	if _, err := calendar.ParseDuration(args.Duration); err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	prefs := s.prefs()
	if prefs.IsBlocked(args.PartnerAgentID) {
		return ToolResult{Success: false,
			Error: fmt.Sprintf("partner %s is blocked by booking policy", args.PartnerAgentID)}, nil
	}
	if !prefs.AllowNewPartners && !prefs.IsKnownPartner(args.PartnerAgentID) {
		return ToolResult{Success: false,
			Error: fmt.Sprintf("partner %s is unknown and new partners are not accepted", args.PartnerAgentID)}, nil
	}

	event, err := s.engine.Propose(start, args.Duration, args.PartnerAgentID, args.Title)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}

	switch args.InitialStatus {
	case "", string(calendar.StatusProposed):
	case string(calendar.StatusAccepted):
		event = s.engine.Accept(event.ID)
	case string(calendar.StatusConfirmed):
		event = s.engine.Confirm(event.ID)
	default:
		return ToolResult{Success: false,
			Error: fmt.Sprintf("initial_status must be proposed, accepted, or confirmed; got %q", args.InitialStatus)}, nil
	}

	return jsonResult(map[string]interface{}{
		"success":  true,
		"event_id": event.ID,
		"status":   event.Status,
		"start":    event.Start.Format(time.RFC3339),
		"duration": event.Duration,
		"partner":  event.PartnerAgent,
	})
}

func (s *CalendarToolset) transitionTool(name, description string, apply func(string) *calendar.Event) Tool {
	return &funcTool[eventIDArgs]{
		info: ToolInfo{Name: name, Description: description, Parameters: argSchema[eventIDArgs]()},
		run: func(ctx context.Context, args eventIDArgs) (ToolResult, error) {
			event := apply(args.EventID)
			if event == nil {
				return ToolResult{Success: false,
					Error: fmt.Sprintf("no change: event %s is unknown or the transition is not allowed", args.EventID)}, nil
			}
			return jsonResult(map[string]interface{}{"success": true, "event": event})
		},
	}
}

func eventList(events []*calendar.Event) (ToolResult, error) {
	return jsonResult(map[string]interface{}{"success": true, "count": len(events), "events": events})
}

func jsonResult(payload map[string]interface{}) (ToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return ToolResult{Success: false, Error: err.Error()}, nil
	}
	return ToolResult{Success: true, Content: string(raw)}, nil
}

func resolveLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q", name)
	}
	return loc, nil
}

// ParseInstant parses an ISO date-time. A trailing Z or numeric offset wins;
// zone-less instants are interpreted in loc.
func ParseInstant(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z07:00"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO instant %q", value)
}
