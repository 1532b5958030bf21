package dialog

import (
	"context"
	"encoding/json"
)

// Message is one chat message handed to the completion collaborator.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message { return Message{Role: "system", Content: content} }

// UserMessage creates a user message.
func UserMessage(content string) Message { return Message{Role: "user", Content: content} }

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message { return Message{Role: "assistant", Content: content} }

// CompletionClient is the language-model completion collaborator. The raw
// object it returns is never trusted: the fallback loop coerces it into the
// four-variant action protocol before acting on it.
type CompletionClient interface {
	CompleteJSON(ctx context.Context, messages []Message, schemaHint string) (json.RawMessage, error)
}

// RouteClassifier is the optional LLM route classifier consulted when the
// deterministic rules yield RouteUnknown. Its answer is accepted only above
// the router's confidence threshold.
type RouteClassifier interface {
	Classify(ctx context.Context, utterance string) (Route, float64, error)
}

// Tool is a single callable tool from the external registry.
type Tool interface {
	Name() string
	Description() string
	// InputType returns the JSON schema of the tool parameters.
	InputType() map[string]any
	// Run executes the tool exactly once with a JSON-encoded parameter object.
	Run(ctx context.Context, inputJSON string) (string, error)
	RiskLevel() string
	RequiresConfirmation() bool
}

// ToolDescriptor is the catalog entry handed to the language model.
type ToolDescriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolRegistry is the tool catalog/executor collaborator.
type ToolRegistry interface {
	Get(name string) (Tool, bool)
	// ValidateCall checks a call against the tool schema before execution.
	ValidateCall(name string, params map[string]any) (bool, string)
	AsLLMCatalog() []ToolDescriptor
}

// Decision is the risk-policy verdict for a tool call.
type Decision struct {
	Allowed              bool   `json:"allowed"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Prompt               string `json:"prompt,omitempty"`
	RiskLevel            string `json:"risk_level,omitempty"`
}

// RiskPolicy is the authorization collaborator. Check is consulted before any
// tool execution; Confirm records an explicit user approval.
type RiskPolicy interface {
	Check(sessionID, toolName string, params map[string]any, riskLevel string, requiresConfirmation bool, prompt string) Decision
	Confirm(sessionID, toolName, riskLevel string)
}

// Bus is the fire-and-forget notification collaborator. Publish failures are
// swallowed by implementations and never affect a turn's outcome.
type Bus interface {
	Publish(eventType string, payload any, source string)
}

// CalendarNLU bundles the calendar-specific natural-language helpers. All
// inputs are normalized text (see Normalize); Title receives the raw
// utterance so user casing survives into event titles.
type CalendarNLU interface {
	// DayHint maps day words to a canonical window key (today, tomorrow,
	// morning, evening).
	DayHint(norm string) (string, bool)
	// ClockTime extracts an HH:MM time of day.
	ClockTime(norm string) (hour, minute int, ok bool)
	// DurationMinutes extracts a duration expression in minutes.
	DurationMinutes(norm string) (int, bool)
	// OrdinalIndex maps ordinal words to a 1-based index; -1 means "last".
	OrdinalIndex(norm string) (int, bool)
	// Title extracts the event subject left over after removing date, time,
	// duration and command tokens. Empty when nothing meaningful remains.
	Title(raw string) string
}

// PlanBuilder builds and edits multi-event plan drafts and renders their
// human-facing preview.
type PlanBuilder interface {
	Build(ctx context.Context, instruction string, windows map[string]TimeWindow) (*PlanDraft, error)
	Edit(ctx context.Context, draft *PlanDraft, instruction string) (*PlanDraft, error)
	Render(draft *PlanDraft) string
}
