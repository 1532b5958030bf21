package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Shared test doubles for the dialog package. The orchestrator only sees the
// collaborator interfaces, so the fakes here stand in for the real tool
// registry, LLM client, planner and bus.

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// stubNLU is a deliberately small CalendarNLU: enough Turkish surface forms
// for the conversations exercised in tests.
type stubNLU struct{}

var (
	stubClockPattern    = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	stubMinutesPattern  = regexp.MustCompile(`\b(\d+) (?:dakika|dk)\b`)
	stubHoursPattern    = regexp.MustCompile(`\b(\d+) saat\b`)
	stubTitleWords      = []string{"toplanti", "spor", "yemek", "sunum"}
	stubTitleCanonicals = map[string]string{
		"toplanti": "toplantı",
		"spor":     "spor",
		"yemek":    "yemek",
		"sunum":    "sunum",
	}
)

func (stubNLU) DayHint(norm string) (string, bool) {
	switch {
	case containsWord(norm, "yarin"):
		return "tomorrow", true
	case containsWord(norm, "bugun"):
		return "today", true
	case containsWord(norm, "sabah"):
		return "morning", true
	case containsWord(norm, "aksam"):
		return "evening", true
	}
	return "", false
}

func (stubNLU) ClockTime(norm string) (int, int, bool) {
	m := stubClockPattern.FindStringSubmatch(norm)
	if m == nil {
		return 0, 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	return h, mi, true
}

func (stubNLU) DurationMinutes(norm string) (int, bool) {
	if m := stubMinutesPattern.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	if m := stubHoursPattern.FindStringSubmatch(norm); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n * 60, true
	}
	return 0, false
}

func (stubNLU) OrdinalIndex(norm string) (int, bool) {
	switch {
	case containsAny(norm, "ilk", "birinci"):
		return 1, true
	case containsWord(norm, "ikinci"):
		return 2, true
	case containsWord(norm, "ucuncu"):
		return 3, true
	case containsAny(norm, "son", "sonuncu"):
		return -1, true
	}
	return 0, false
}

func (stubNLU) Title(raw string) string {
	norm := Normalize(raw)
	for _, w := range stubTitleWords {
		if containsWord(norm, w) {
			return stubTitleCanonicals[w]
		}
	}
	return ""
}

// fakeTool records every Run input it receives.
type fakeTool struct {
	name    string
	risk    string
	confirm bool
	schema  map[string]any
	run     func(ctx context.Context, input string) (string, error)

	calls []string
}

func (t *fakeTool) Name() string               { return t.name }
func (t *fakeTool) Description() string        { return t.name + " (test)" }
func (t *fakeTool) InputType() map[string]any  { return t.schema }
func (t *fakeTool) RiskLevel() string          { return t.risk }
func (t *fakeTool) RequiresConfirmation() bool { return t.confirm }

func (t *fakeTool) Run(ctx context.Context, input string) (string, error) {
	t.calls = append(t.calls, input)
	if t.run == nil {
		return `{"ok":true}`, nil
	}
	return t.run(ctx, input)
}

// fakeRegistry implements ToolRegistry over fakeTools.
type fakeRegistry struct {
	order []string
	tools map[string]*fakeTool
}

func newFakeRegistry(tools ...*fakeTool) *fakeRegistry {
	r := &fakeRegistry{tools: map[string]*fakeTool{}}
	for _, t := range tools {
		r.order = append(r.order, t.name)
		r.tools[t.name] = t
	}
	return r
}

func (r *fakeRegistry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return t, true
}

func (r *fakeRegistry) ValidateCall(name string, params map[string]any) (bool, string) {
	t, ok := r.tools[name]
	if !ok {
		return false, "unknown tool " + name
	}
	required, _ := t.schema["required"].([]string)
	for _, field := range required {
		if _, present := params[field]; !present {
			return false, fmt.Sprintf("missing parameter %q", field)
		}
	}
	return true, ""
}

func (r *fakeRegistry) AsLLMCatalog() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		out = append(out, ToolDescriptor{Name: t.name, Description: t.Description(), Parameters: t.schema})
	}
	return out
}

func (r *fakeRegistry) tool(name string) *fakeTool { return r.tools[name] }

// calendarRegistry wires the standard six calendar tools with canned
// behavior; listed decides what calendar.list_events returns.
func calendarRegistry(listed []Event) *fakeRegistry {
	listTool := &fakeTool{
		name: "calendar.list_events", risk: "low",
		schema: map[string]any{"required": []string{"start", "end"}},
		run: func(context.Context, string) (string, error) {
			out, _ := json.Marshal(map[string]any{"events": listed})
			return string(out), nil
		},
	}
	createTool := &fakeTool{
		name: "calendar.create_event", risk: "medium", confirm: true,
		schema: map[string]any{"required": []string{"title", "start", "end"}},
		run: func(_ context.Context, input string) (string, error) {
			var p map[string]any
			_ = json.Unmarshal([]byte(input), &p)
			out, _ := json.Marshal(map[string]any{"ok": true, "event": p})
			return string(out), nil
		},
	}
	updateTool := &fakeTool{
		name: "calendar.update_event", risk: "medium", confirm: true,
		schema: map[string]any{"required": []string{"id", "start", "end"}},
		run: func(_ context.Context, input string) (string, error) {
			var p map[string]any
			_ = json.Unmarshal([]byte(input), &p)
			p["title"] = "taşınan"
			out, _ := json.Marshal(map[string]any{"ok": true, "event": p})
			return string(out), nil
		},
	}
	deleteTool := &fakeTool{
		name: "calendar.delete_event", risk: "high", confirm: true,
		schema: map[string]any{"required": []string{"id"}},
	}
	freeTool := &fakeTool{
		name: "calendar.free_slots", risk: "low",
		schema: map[string]any{"required": []string{"start", "end"}},
		run: func(context.Context, string) (string, error) {
			return `{"slots":[]}`, nil
		},
	}
	applyTool := &fakeTool{
		name: "calendar.plan_apply", risk: "high", confirm: true,
		schema: map[string]any{"required": []string{"events"}},
		run: func(_ context.Context, input string) (string, error) {
			var p struct {
				Events []map[string]any `json:"events"`
				DryRun bool             `json:"dry_run"`
			}
			_ = json.Unmarshal([]byte(input), &p)
			created := 0
			if !p.DryRun {
				created = len(p.Events)
			}
			out, _ := json.Marshal(map[string]any{"ok": true, "created": created, "events": p.Events})
			return string(out), nil
		},
	}
	return newFakeRegistry(listTool, createTool, updateTool, deleteTool, freeTool, applyTool)
}

// fakeClient replays scripted JSON payloads; the last one repeats.
type fakeClient struct {
	responses []string
	err       error
	calls     int
}

func (c *fakeClient) CompleteJSON(_ context.Context, _ []Message, _ string) (json.RawMessage, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	i := c.calls - 1
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	return json.RawMessage(c.responses[i]), nil
}

type fakeClassifier struct {
	route      Route
	confidence float64
	err        error
	calls      int
}

func (c *fakeClassifier) Classify(context.Context, string) (Route, float64, error) {
	c.calls++
	return c.route, c.confidence, c.err
}

// fakeBus records published notifications.
type busEvent struct {
	Type    string
	Payload any
}

type fakeBus struct {
	events []busEvent
}

func (b *fakeBus) Publish(eventType string, payload any, _ string) {
	b.events = append(b.events, busEvent{Type: eventType, Payload: payload})
}

func (b *fakeBus) types() []string {
	out := make([]string, 0, len(b.events))
	for _, e := range b.events {
		out = append(out, e.Type)
	}
	return out
}

// fakePlanner returns a fixed draft; edits retitle the first event.
type fakePlanner struct {
	draft    *PlanDraft
	buildErr error
}

func (p *fakePlanner) Build(context.Context, string, map[string]TimeWindow) (*PlanDraft, error) {
	if p.buildErr != nil {
		return nil, p.buildErr
	}
	return p.draft, nil
}

func (p *fakePlanner) Edit(_ context.Context, draft *PlanDraft, instruction string) (*PlanDraft, error) {
	edited := &PlanDraft{Events: append([]DraftEvent(nil), draft.Events...)}
	if len(edited.Events) > 0 {
		edited.Events[0].Title = strings.TrimSpace(instruction)
	}
	return edited, nil
}

func (p *fakePlanner) Render(draft *PlanDraft) string {
	var b strings.Builder
	b.WriteString("Plan taslağı:")
	for i, ev := range draft.Events {
		fmt.Fprintf(&b, "\n%d) %s %s–%s", i+1, ev.Title,
			ev.Start.Format("15:04"), ev.End.Format("15:04"))
	}
	return b.String()
}

// testBase is midnight of the fixed "today" used throughout the tests.
var testBase = time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

func testWindows() map[string]TimeWindow {
	day := 24 * time.Hour
	return map[string]TimeWindow{
		"today":    {Start: testBase, End: testBase.Add(day)},
		"tomorrow": {Start: testBase.Add(day), End: testBase.Add(2 * day)},
		"morning":  {Start: testBase.Add(6 * time.Hour), End: testBase.Add(12 * time.Hour)},
		"evening":  {Start: testBase.Add(18 * time.Hour), End: testBase.Add(23 * time.Hour)},
	}
}

func testTurnContext() TurnContext {
	return TurnContext{
		DeterministicRender: true,
		Windows:             testWindows(),
		TZName:              "UTC",
	}
}

func newTestOrchestrator(reg ToolRegistry, opts ...Option) *Orchestrator {
	opts = append([]Option{WithLogger(testLogger)}, opts...)
	return New(reg, stubNLU{}, opts...)
}

// at builds an event timestamp on the test "today".
func at(dayOffset, hour, minute int) time.Time {
	return testBase.AddDate(0, 0, dayOffset).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}
