// Package dialog implements the turn-processing engine of the assistant:
// deterministic intent routing, multi-turn slot filling for calendar actions,
// a confirmation handshake gating every state-changing tool call, finite-menu
// disambiguation, a multi-event plan-draft workflow, and a bounded LLM
// fallback loop. One call to Orchestrator.Turn processes exactly one user
// utterance against a caller-owned Session.
package dialog

import "time"

// DialogState is the coarse gate the next turn has to resolve first.
type DialogState string

const (
	StateIdle                DialogState = "IDLE"
	StatePendingChoice       DialogState = "PENDING_CHOICE"
	StatePendingConfirmation DialogState = "PENDING_CONFIRMATION"
	StatePendingPlanDraft    DialogState = "PENDING_PLAN_DRAFT"
	StateAfterCalendarStatus DialogState = "AFTER_CALENDAR_STATUS"
)

// IntentType classifies an in-progress calendar intent.
type IntentType string

const (
	IntentCreateEvent IntentType = "create_event"
	IntentCancelEvent IntentType = "cancel_event"
	IntentMoveEvent   IntentType = "move_event"
	IntentListEvents  IntentType = "list_events"
	IntentNone        IntentType = "none"
)

// Slot names a single piece of information required to complete an intent.
type Slot string

const (
	SlotDay      Slot = "day"
	SlotStart    Slot = "start"
	SlotDuration Slot = "duration"
	SlotTitle    Slot = "title"
	SlotEventRef Slot = "event_ref"
)

// Intent is a partially or fully specified calendar intent. It is rebuilt
// from the utterance every turn and merged with the frozen intent persisted
// in the session, then destroyed once an action is queued or on cancel.
type Intent struct {
	Type    IntentType    `json:"type"`
	Slots   map[Slot]string `json:"slots"`
	Missing []Slot        `json:"missing"`
}

// Filled reports whether the slot holds a value.
func (in *Intent) Filled(s Slot) bool {
	if in == nil || in.Slots == nil {
		return false
	}
	return in.Slots[s] != ""
}

// ToolCall is a fully specified tool invocation.
type ToolCall struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// PendingAction is a queued tool call awaiting explicit user confirmation.
// It is destroyed on confirm (after exactly one execution) or on deny.
type PendingAction struct {
	Action        ToolCall `json:"action"`
	Decision      Decision `json:"decision"`
	OriginalInput string   `json:"original_input"`
}

// Event is a cached calendar event from the most recent read, used for
// reference resolution ("#2", "the second one").
type Event struct {
	ID    int64     `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TimeWindow is a caller-supplied absolute window for a day hint.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// MenuID identifies a finite choice set the engine is waiting on.
type MenuID string

const (
	MenuSmalltalkStage1 MenuID = "smalltalk_stage1"
	MenuSmalltalkStage2 MenuID = "smalltalk_stage2"
	MenuFreeSlots       MenuID = "free_slots"
	MenuEventPick       MenuID = "event_pick"
	MenuCalendarNext    MenuID = "calendar_next"
	MenuUnknown         MenuID = "unknown"
)

// Choice is one selectable entry of a menu.
type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Menu is a closed, enumerable set of reply choices plus the menu-specific
// payload needed to apply the selection.
type Menu struct {
	ID      MenuID   `json:"id"`
	Default string   `json:"default"`
	Choices []Choice `json:"choices"`

	// Payload, by menu type.
	Events []Event      `json:"events,omitempty"` // event_pick
	Slots  []TimeWindow `json:"slots,omitempty"`  // free_slots
	Window *TimeWindow  `json:"window,omitempty"` // cached time window
}

// HasChoice reports whether id is a valid choice of the menu.
func (m *Menu) HasChoice(id string) bool {
	for _, c := range m.Choices {
		if c.ID == id {
			return true
		}
	}
	return false
}

// Options returns the choice-id to label mapping for result metadata.
func (m *Menu) Options() map[string]string {
	out := make(map[string]string, len(m.Choices))
	for _, c := range m.Choices {
		out[c.ID] = c.Label
	}
	return out
}

// DraftEvent is one proposed event of a plan draft.
type DraftEvent struct {
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// PlanDraft is a proposed, not-yet-committed set of calendar events.
type PlanDraft struct {
	Events  []DraftEvent `json:"events"`
	Note    string       `json:"note,omitempty"`
	Preview string       `json:"preview,omitempty"`
}

// maxSummaryLines bounds the rolling dialog digest.
const maxSummaryLines = 8

// Session is the mutable per-session state blob. The caller owns allocation
// and persistence; the orchestrator mutates it in place during a turn. Access
// is single-writer by contract: concurrent turns against the same session
// must be serialized by the caller.
type Session struct {
	ID    string      `json:"id,omitempty"`
	State DialogState `json:"state"`

	PendingChoice *Menu          `json:"pending_choice,omitempty"`
	PendingAction *PendingAction `json:"pending_action,omitempty"`
	PendingIntent *Intent        `json:"pending_calendar_intent,omitempty"`
	PendingPlan   *PlanDraft     `json:"pending_plan_draft,omitempty"`

	LastEvents []Event  `json:"last_known_events,omitempty"`
	Summary    []string `json:"dialog_summary,omitempty"`

	RepromptCount int `json:"reprompt_count,omitempty"`
	LockStrikes   int `json:"lock_strikes,omitempty"`

	LastRoute Route  `json:"last_route,omitempty"`
	LastTool  string `json:"last_tool,omitempty"`

	Trace *Trace `json:"trace,omitempty"`
}

// NewSession returns an idle session.
func NewSession(id string) *Session {
	return &Session{ID: id, State: StateIdle}
}

// ClearCalendar resets all calendar-scoped dialog state so the next turn
// starts fresh. The dialog summary survives.
func (s *Session) ClearCalendar() {
	s.State = StateIdle
	s.PendingChoice = nil
	s.PendingAction = nil
	s.PendingIntent = nil
	s.PendingPlan = nil
	s.LastEvents = nil
	s.RepromptCount = 0
	s.LockStrikes = 0
	s.LastTool = ""
}

// ClearGates drops every pending gate without touching cached events.
func (s *Session) ClearGates() {
	s.State = StateIdle
	s.PendingChoice = nil
	s.PendingAction = nil
	s.PendingIntent = nil
	s.PendingPlan = nil
	s.RepromptCount = 0
	s.LockStrikes = 0
}

// PushSummary appends one digest line, keeping the last maxSummaryLines.
func (s *Session) PushSummary(line string) {
	if line == "" {
		return
	}
	s.Summary = append(s.Summary, line)
	if n := len(s.Summary); n > maxSummaryLines {
		s.Summary = s.Summary[n-maxSummaryLines:]
	}
}
