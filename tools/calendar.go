package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/hrygo/ajanda/dialog"
	"github.com/hrygo/ajanda/store"
)

// NewCalendarTools builds the full calendar tool set over the schedule store.
func NewCalendarTools(st store.ScheduleStore) []dialog.Tool {
	return []dialog.Tool{
		&ListEventsTool{store: st},
		&CreateEventTool{store: st},
		&UpdateEventTool{store: st},
		&DeleteEventTool{store: st},
		&FreeSlotsTool{store: st},
		&PlanApplyTool{store: st},
	}
}

type eventJSON struct {
	ID    int64     `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func toEventJSON(ev *store.Event) eventJSON {
	return eventJSON{ID: ev.ID, Title: ev.Title, Start: ev.Start, End: ev.End}
}

func parseISO8601(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC3339 timestamp, got %q", s)
	}
	return t, nil
}

func marshal(v any) (string, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode tool output: %w", err)
	}
	return string(out), nil
}

// ListEventsTool lists events overlapping a time window.
type ListEventsTool struct {
	store store.ScheduleStore
}

func (t *ListEventsTool) Name() string { return "calendar.list_events" }

func (t *ListEventsTool) Description() string {
	return `List calendar events overlapping a time window.

Input: {"start": "ISO8601", "end": "ISO8601"}
Output: {"events": [{"id", "title", "start", "end"}]}`
}

func (t *ListEventsTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"start": map[string]any{"type": "string", "description": "ISO8601"},
			"end":   map[string]any{"type": "string", "description": "ISO8601"},
		},
		"required": []string{"start", "end"},
	}
}

func (t *ListEventsTool) RiskLevel() string          { return "low" }
func (t *ListEventsTool) RequiresConfirmation() bool { return false }

func (t *ListEventsTool) Run(ctx context.Context, inputJSON string) (string, error) {
	var input struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	start, err := parseISO8601(input.Start)
	if err != nil {
		return "", fmt.Errorf("invalid start: %w", err)
	}
	end, err := parseISO8601(input.End)
	if err != nil {
		return "", fmt.Errorf("invalid end: %w", err)
	}
	if !end.After(start) {
		return "", fmt.Errorf("end must be after start")
	}

	events, err := t.store.ListEvents(ctx, store.FindEvents{Start: &start, End: &end})
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}

	out := struct {
		Events []eventJSON `json:"events"`
	}{Events: make([]eventJSON, 0, len(events))}
	for _, ev := range events {
		out.Events = append(out.Events, toEventJSON(ev))
	}
	return marshal(out)
}

// CreateEventTool creates a single calendar event.
type CreateEventTool struct {
	store store.ScheduleStore
}

func (t *CreateEventTool) Name() string { return "calendar.create_event" }

func (t *CreateEventTool) Description() string {
	return `Create a calendar event. The event is only created after the user
explicitly confirms.

Input: {"title": "...", "start": "ISO8601", "end": "ISO8601", "note": "optional"}
Output: {"ok": true, "event": {"id", "title", "start", "end"}}`
}

func (t *CreateEventTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title": map[string]any{"type": "string", "description": "Event title"},
			"start": map[string]any{"type": "string", "description": "ISO8601"},
			"end":   map[string]any{"type": "string", "description": "ISO8601"},
			"note":  map[string]any{"type": "string", "description": "Optional note"},
		},
		"required": []string{"title", "start", "end"},
	}
}

func (t *CreateEventTool) RiskLevel() string          { return "medium" }
func (t *CreateEventTool) RequiresConfirmation() bool { return true }

func (t *CreateEventTool) Run(ctx context.Context, inputJSON string) (string, error) {
	var input struct {
		Title string `json:"title"`
		Start string `json:"start"`
		End   string `json:"end"`
		Note  string `json:"note"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if input.Title == "" {
		return "", fmt.Errorf("title is required")
	}
	start, err := parseISO8601(input.Start)
	if err != nil {
		return "", fmt.Errorf("invalid start: %w", err)
	}
	end, err := parseISO8601(input.End)
	if err != nil {
		return "", fmt.Errorf("invalid end: %w", err)
	}
	if !end.After(start) {
		return "", fmt.Errorf("end must be after start")
	}

	created, err := t.store.CreateEvent(ctx, &store.Event{
		Title: input.Title,
		Note:  input.Note,
		Start: start,
		End:   end,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create: %w", err)
	}

	return marshal(struct {
		OK    bool      `json:"ok"`
		Event eventJSON `json:"event"`
	}{OK: true, Event: toEventJSON(created)})
}

// UpdateEventTool moves an existing event to a new time.
type UpdateEventTool struct {
	store store.ScheduleStore
}

func (t *UpdateEventTool) Name() string { return "calendar.update_event" }

func (t *UpdateEventTool) Description() string {
	return `Move an existing calendar event to a new time. The move is only
applied after the user explicitly confirms.

Input: {"id": 123, "start": "ISO8601", "end": "ISO8601"}
Output: {"ok": true, "event": {"id", "title", "start", "end"}}`
}

func (t *UpdateEventTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id":    map[string]any{"type": "integer", "description": "Event ID"},
			"start": map[string]any{"type": "string", "description": "ISO8601"},
			"end":   map[string]any{"type": "string", "description": "ISO8601"},
		},
		"required": []string{"id", "start", "end"},
	}
}

func (t *UpdateEventTool) RiskLevel() string          { return "medium" }
func (t *UpdateEventTool) RequiresConfirmation() bool { return true }

func (t *UpdateEventTool) Run(ctx context.Context, inputJSON string) (string, error) {
	var input struct {
		ID    int64  `json:"id"`
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if input.ID == 0 {
		return "", fmt.Errorf("id is required")
	}
	start, err := parseISO8601(input.Start)
	if err != nil {
		return "", fmt.Errorf("invalid start: %w", err)
	}
	end, err := parseISO8601(input.End)
	if err != nil {
		return "", fmt.Errorf("invalid end: %w", err)
	}
	if !end.After(start) {
		return "", fmt.Errorf("end must be after start")
	}

	updated, err := t.store.UpdateEventTime(ctx, input.ID, start, end)
	if err != nil {
		return "", fmt.Errorf("failed to update: %w", err)
	}

	return marshal(struct {
		OK    bool      `json:"ok"`
		Event eventJSON `json:"event"`
	}{OK: true, Event: toEventJSON(updated)})
}

// DeleteEventTool removes an event. Destructive; always behind confirmation.
type DeleteEventTool struct {
	store store.ScheduleStore
}

func (t *DeleteEventTool) Name() string { return "calendar.delete_event" }

func (t *DeleteEventTool) Description() string {
	return `Delete a calendar event. Destructive: only runs after a strict
explicit confirmation from the user.

Input: {"id": 123}
Output: {"ok": true}`
}

func (t *DeleteEventTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{"type": "integer", "description": "Event ID"},
		},
		"required": []string{"id"},
	}
}

func (t *DeleteEventTool) RiskLevel() string          { return "high" }
func (t *DeleteEventTool) RequiresConfirmation() bool { return true }

func (t *DeleteEventTool) Run(ctx context.Context, inputJSON string) (string, error) {
	var input struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if input.ID == 0 {
		return "", fmt.Errorf("id is required")
	}
	if err := t.store.DeleteEvent(ctx, input.ID); err != nil {
		return "", fmt.Errorf("failed to delete: %w", err)
	}
	return marshal(struct {
		OK bool `json:"ok"`
	}{OK: true})
}

// FreeSlotsTool finds free gaps of at least the requested duration inside a
// window.
type FreeSlotsTool struct {
	store store.ScheduleStore
}

func (t *FreeSlotsTool) Name() string { return "calendar.free_slots" }

func (t *FreeSlotsTool) Description() string {
	return `Find free time slots of at least the given duration inside a window.

Input: {"start": "ISO8601", "end": "ISO8601", "duration_minutes": 60}
Output: {"slots": [{"start", "end"}]}`
}

func (t *FreeSlotsTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"start":            map[string]any{"type": "string", "description": "ISO8601"},
			"end":              map[string]any{"type": "string", "description": "ISO8601"},
			"duration_minutes": map[string]any{"type": "integer", "description": "Minimum slot length"},
		},
		"required": []string{"start", "end", "duration_minutes"},
	}
}

func (t *FreeSlotsTool) RiskLevel() string          { return "low" }
func (t *FreeSlotsTool) RequiresConfirmation() bool { return false }

const maxReportedSlots = 5

func (t *FreeSlotsTool) Run(ctx context.Context, inputJSON string) (string, error) {
	var input struct {
		Start           string `json:"start"`
		End             string `json:"end"`
		DurationMinutes int    `json:"duration_minutes"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	start, err := parseISO8601(input.Start)
	if err != nil {
		return "", fmt.Errorf("invalid start: %w", err)
	}
	end, err := parseISO8601(input.End)
	if err != nil {
		return "", fmt.Errorf("invalid end: %w", err)
	}
	if !end.After(start) {
		return "", fmt.Errorf("end must be after start")
	}
	duration := time.Duration(input.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = time.Hour
	}

	events, err := t.store.ListEvents(ctx, store.FindEvents{Start: &start, End: &end})
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}

	slots := freeSlots(start, end, duration, events)
	if len(slots) > maxReportedSlots {
		slots = slots[:maxReportedSlots]
	}
	return marshal(struct {
		Slots []dialog.TimeWindow `json:"slots"`
	}{Slots: slots})
}

// freeSlots walks the busy intervals in start order and collects the gaps of
// at least the minimum duration.
func freeSlots(start, end time.Time, min time.Duration, events []*store.Event) []dialog.TimeWindow {
	busy := make([]*store.Event, len(events))
	copy(busy, events)
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	slots := []dialog.TimeWindow{}
	cursor := start
	for _, ev := range busy {
		if ev.Start.After(cursor) && ev.Start.Sub(cursor) >= min {
			slots = append(slots, dialog.TimeWindow{Start: cursor, End: ev.Start})
		}
		if ev.End.After(cursor) {
			cursor = ev.End
		}
	}
	if end.After(cursor) && end.Sub(cursor) >= min {
		slots = append(slots, dialog.TimeWindow{Start: cursor, End: end})
	}
	return slots
}

// PlanApplyTool commits a multi-event plan. With dry_run it only echoes what
// would be created.
type PlanApplyTool struct {
	store store.ScheduleStore
}

func (t *PlanApplyTool) Name() string { return "calendar.plan_apply" }

func (t *PlanApplyTool) Description() string {
	return `Apply a multi-event plan to the calendar. With "dry_run": true the
plan is only validated and echoed back; nothing is written. The real apply
only runs after a strict explicit confirmation from the user.

Input: {"events": [{"title", "start", "end", "note"}], "dry_run": false}
Output: {"ok": true, "created": 3, "events": [...]}`
}

func (t *PlanApplyTool) InputType() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"events":  map[string]any{"type": "array", "description": "Events to create"},
			"dry_run": map[string]any{"type": "boolean", "description": "Validate only"},
		},
		"required": []string{"events"},
	}
}

func (t *PlanApplyTool) RiskLevel() string          { return "high" }
func (t *PlanApplyTool) RequiresConfirmation() bool { return true }

func (t *PlanApplyTool) Run(ctx context.Context, inputJSON string) (string, error) {
	var input struct {
		Events []struct {
			Title string `json:"title"`
			Start string `json:"start"`
			End   string `json:"end"`
			Note  string `json:"note"`
		} `json:"events"`
		DryRun bool `json:"dry_run"`
	}
	if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if len(input.Events) == 0 {
		return "", fmt.Errorf("events is required")
	}

	drafts := make([]*store.Event, 0, len(input.Events))
	for i, ev := range input.Events {
		if ev.Title == "" {
			return "", fmt.Errorf("event %d: title is required", i+1)
		}
		start, err := parseISO8601(ev.Start)
		if err != nil {
			return "", fmt.Errorf("event %d: invalid start: %w", i+1, err)
		}
		end, err := parseISO8601(ev.End)
		if err != nil {
			return "", fmt.Errorf("event %d: invalid end: %w", i+1, err)
		}
		if !end.After(start) {
			return "", fmt.Errorf("event %d: end must be after start", i+1)
		}
		drafts = append(drafts, &store.Event{Title: ev.Title, Note: ev.Note, Start: start, End: end})
	}

	out := struct {
		OK      bool        `json:"ok"`
		Created int         `json:"created"`
		Events  []eventJSON `json:"events"`
	}{OK: true}

	if input.DryRun {
		for _, d := range drafts {
			out.Events = append(out.Events, toEventJSON(d))
		}
		return marshal(out)
	}

	for _, d := range drafts {
		created, err := t.store.CreateEvent(ctx, d)
		if err != nil {
			return "", fmt.Errorf("failed to create %q: %w", d.Title, err)
		}
		out.Events = append(out.Events, toEventJSON(created))
		out.Created++
	}
	return marshal(out)
}
