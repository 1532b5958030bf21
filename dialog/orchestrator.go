package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// TurnContext carries the caller-supplied, per-turn environment.
type TurnContext struct {
	// DeterministicRender keeps smalltalk and unknown turns on finite menus
	// instead of the LLM fallback loop.
	DeterministicRender bool
	// Windows maps day-hint keys (today, tomorrow, morning, evening) to
	// absolute time windows.
	Windows map[string]TimeWindow
	// TZName is the session's IANA timezone name, informational.
	TZName string
	// EnablePlanner switches the multi-event plan-draft workflow on.
	EnablePlanner bool
}

// Orchestrator is the turn-processing engine. It is a pure transformation of
// (utterance, session, collaborators) to (result, mutated session): one turn
// is processed start to finish with no internal parallelism, and no global
// mutable state is shared across sessions.
type Orchestrator struct {
	router     *Router
	classifier RouteClassifier
	tools      ToolRegistry
	policy     RiskPolicy
	bus        Bus
	client     CompletionClient
	nlu        CalendarNLU
	plans      PlanBuilder
	maxSteps   int
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCompletionClient wires the language-model collaborator used by the
// fallback loop. Without it, unresolved turns degrade to finite menus.
func WithCompletionClient(c CompletionClient) Option {
	return func(o *Orchestrator) { o.client = c }
}

// WithClassifier wires the confidence-gated LLM route classifier.
func WithClassifier(c RouteClassifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithPolicy wires the risk-policy collaborator.
func WithPolicy(p RiskPolicy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithBus wires the fire-and-forget notification bus.
func WithBus(b Bus) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithPlanBuilder wires the plan-draft builder/renderer collaborator.
func WithPlanBuilder(p PlanBuilder) Option {
	return func(o *Orchestrator) { o.plans = p }
}

// WithMaxSteps overrides the fallback loop step budget.
func WithMaxSteps(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates an orchestrator around the tool registry and the calendar NLU
// helpers. All other collaborators are optional.
func New(tools ToolRegistry, nlu CalendarNLU, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		tools:    tools,
		nlu:      nlu,
		policy:   permissivePolicy{},
		bus:      noopBus{},
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	// Built after the options so the router sees the configured logger and
	// classifier regardless of option order.
	o.router = NewRouter(o.classifier, o.logger)
	return o
}

// Turn processes exactly one user utterance against the session. Pending
// state is resolved in priority order: plan draft, open menu, pending
// confirmation, then deterministic routing, then the fallback loop. The
// returned result is never nil and no error escapes the turn boundary.
func (o *Orchestrator) Turn(ctx context.Context, utterance string, tc TurnContext, sess *Session) *Result {
	if sess == nil {
		sess = NewSession("")
	}
	sess.Trace = newTrace()
	norm := Normalize(utterance)
	sess.PushSummary("kullanıcı: " + clip(utterance, 120))

	var res *Result
	switch {
	case sess.State == StatePendingPlanDraft && sess.PendingPlan != nil:
		res = o.handlePlanDraft(ctx, norm, utterance, tc, sess)
	case sess.State == StatePendingChoice && sess.PendingChoice != nil:
		res = o.handleMenu(ctx, norm, utterance, tc, sess)
	case sess.State == StatePendingConfirmation && sess.PendingAction != nil:
		res = o.handleConfirmation(ctx, norm, utterance, sess)
	default:
		res = o.handleRouting(ctx, norm, utterance, tc, sess)
	}

	o.finishTurn(res, sess)
	return res
}

// handleRouting classifies the utterance and dispatches the route.
func (o *Orchestrator) handleRouting(ctx context.Context, norm, raw string, tc TurnContext, sess *Session) *Result {
	route := o.router.Route(ctx, norm, sess)
	route, exited := applyGuard(route, norm, sess)
	if exited {
		return say(phraseExitAck)
	}
	sess.Trace.Route = route

	var res *Result
	switch route {
	case RouteCalendarCreate:
		if sess.PendingIntent == nil && wantsPlan(norm, tc) {
			res = o.startPlanDraft(ctx, raw, tc, sess)
		} else {
			res = o.handleCalendarIntent(ctx, route, norm, raw, tc, sess)
		}
	case RouteCalendarCancel, RouteCalendarModify:
		res = o.handleCalendarIntent(ctx, route, norm, raw, tc, sess)
	case RouteCalendarQuery:
		in := o.extractIntent(IntentListEvents, norm, raw)
		in = mergeIntent(sess.PendingIntent, in)
		in.Type = IntentListEvents
		res = o.handleQuery(ctx, in, tc, sess)
	case RouteSmalltalk:
		if tc.DeterministicRender {
			res = o.openMenu(smalltalkStage1Menu(), sess)
		} else {
			res = o.runFallback(ctx, raw, tc, sess)
		}
	default: // RouteUnknown
		switch {
		case sess.State == StateAfterCalendarStatus && tc.DeterministicRender:
			// Right after a calendar status answer, an unresolved reply
			// gets the follow-up menu instead of the generic one.
			window := windowOrToday(tc, "today")
			res = o.openMenu(calendarNextMenu(window), sess)
		case tc.DeterministicRender:
			res = o.openMenu(unknownMenu(), sess)
		default:
			res = o.runFallback(ctx, raw, tc, sess)
		}
	}

	if route.IsCalendar() {
		sess.LastRoute = route
	}
	return res
}

// handleQuery executes a read-only listing. Queries never require
// confirmation.
func (o *Orchestrator) handleQuery(ctx context.Context, in *Intent, tc TurnContext, sess *Session) *Result {
	day := in.Slots[SlotDay]
	if day == "" {
		day = "today"
	}
	window, ok := tc.Windows[day]
	if !ok {
		sess.PendingIntent = in
		return askUser(phraseNoDayWindow).WithMeta("reprompt_for", string(SlotDay))
	}

	decision := o.policy.Check(sess.ID, "calendar.list_events", nil, "low", false, "")
	if !decision.Allowed {
		return say(phraseNotAllowed)
	}

	events, err := o.listEvents(ctx, window)
	if err != nil {
		o.logger.Warn("calendar listing failed", "error", err)
		return say(phraseGenericFailure)
	}

	sess.PendingIntent = nil
	sess.LastEvents = events
	sess.State = StateAfterCalendarStatus
	sess.LastRoute = RouteCalendarQuery
	sess.LastTool = "calendar.list_events"
	sess.Trace.NextAction = "rendered_status"

	return say(renderEvents(day, events)).WithMeta("requires_confirmation", false)
}

// listEvents runs the read-only listing tool and decodes its output.
func (o *Orchestrator) listEvents(ctx context.Context, window TimeWindow) ([]Event, error) {
	output, err := o.executeToolCall(ctx, ToolCall{
		Name: "calendar.list_events",
		Params: map[string]any{
			"start": window.Start.Format(time.RFC3339),
			"end":   window.End.Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal([]byte(output), &payload); err != nil {
		return nil, fmt.Errorf("decode listing output: %w", err)
	}
	return payload.Events, nil
}

// offerFreeSlots lists free slots in the window and opens the pick menu.
func (o *Orchestrator) offerFreeSlots(ctx context.Context, window *TimeWindow, tc TurnContext, sess *Session) *Result {
	if window == nil {
		window = windowOrToday(tc, "today")
	}
	if window == nil {
		return say(phraseNoDayWindow)
	}
	output, err := o.executeToolCall(ctx, ToolCall{
		Name: "calendar.free_slots",
		Params: map[string]any{
			"start":            window.Start.Format(time.RFC3339),
			"end":              window.End.Format(time.RFC3339),
			"duration_minutes": 60,
		},
	})
	if err != nil {
		o.logger.Warn("free slot listing failed", "error", err)
		return say(phraseGenericFailure)
	}
	var payload struct {
		Slots []TimeWindow `json:"slots"`
	}
	if err := json.Unmarshal([]byte(output), &payload); err != nil || len(payload.Slots) == 0 {
		return say("Bu aralıkta uygun bir boşluk görünmüyor.")
	}
	return o.openMenu(freeSlotsMenu(payload.Slots), sess)
}

// queueAction risk-checks a fully specified tool call and installs it as the
// pending action awaiting explicit confirmation. State-changing tools are
// never executed on the turn that builds them.
func (o *Orchestrator) queueAction(ctx context.Context, call ToolCall, prompt, originalInput string, sess *Session) *Result {
	tool, found := o.tools.Get(call.Name)
	if !found {
		o.logger.Error("queue for unknown tool", "tool", call.Name)
		return say(phraseGenericFailure)
	}

	decision := o.policy.Check(sess.ID, call.Name, call.Params,
		tool.RiskLevel(), tool.RequiresConfirmation(), prompt)
	if !decision.Allowed {
		sess.Trace.flag("policy_denied:" + call.Name)
		return say(phraseNotAllowed)
	}

	if !decision.RequiresConfirmation && !tool.RequiresConfirmation() {
		output, err := o.executeToolCall(ctx, call)
		if err != nil {
			o.logger.Warn("direct tool execution failed", "tool", call.Name, "error", err)
			return say(phraseGenericFailure)
		}
		sess.LastTool = call.Name
		return say(renderOutcome(call.Name, output))
	}

	if decision.Prompt != "" {
		prompt = decision.Prompt
	}
	sess.PendingAction = &PendingAction{Action: call, Decision: decision, OriginalInput: originalInput}
	sess.State = StatePendingConfirmation
	sess.Trace.NextAction = "confirm:" + call.Name
	o.publish("action.queued", map[string]any{"tool": call.Name, "risk": decision.RiskLevel}, sess.ID)

	return askUser(prompt).
		WithMeta("action_type", call.Name).
		WithMeta("requires_confirmation", true)
}

// executeToolCall runs a registry tool exactly once.
func (o *Orchestrator) executeToolCall(ctx context.Context, call ToolCall) (string, error) {
	tool, found := o.tools.Get(call.Name)
	if !found {
		return "", fmt.Errorf("unknown tool: %s", call.Name)
	}
	input, err := json.Marshal(call.Params)
	if err != nil {
		return "", fmt.Errorf("encode params for %s: %w", call.Name, err)
	}
	started := time.Now()
	output, err := tool.Run(ctx, string(input))
	status := "success"
	if err != nil {
		status = "error"
	}
	toolExecutions.WithLabelValues(call.Name, status).Inc()
	o.logger.Debug("tool executed",
		"tool", call.Name, "status", status,
		"duration_ms", time.Since(started).Milliseconds())
	return output, err
}

// publish sends a best-effort bus notification; failures never affect the
// turn outcome.
func (o *Orchestrator) publish(eventType string, payload any, source string) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("bus publish panicked (swallowed)", "event_type", eventType, "panic", r)
		}
	}()
	o.bus.Publish(eventType, payload, source)
}

// finishTurn stamps the stable metadata surface and the turn counters.
func (o *Orchestrator) finishTurn(res *Result, sess *Session) {
	if res.Metadata == nil {
		res.Metadata = map[string]any{}
	}
	res.Metadata["trace"] = sess.Trace
	res.Metadata["state"] = string(sess.State)
	if sess.Trace.Route != "" {
		res.Metadata["route"] = string(sess.Trace.Route)
	}
	if sess.PendingChoice != nil {
		res.Metadata["menu_id"] = string(sess.PendingChoice.ID)
	}
	turnsTotal.WithLabelValues(string(sess.Trace.Route), string(res.Kind)).Inc()
}

// renderEvents phrases a listing result.
func renderEvents(day string, events []Event) string {
	if len(events) == 0 {
		return phraseNoEvents
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d etkinlik var:", dayLabel(day), len(events))
	for i, ev := range events {
		fmt.Fprintf(&b, "\n%d) %s, %s–%s", i+1, ev.Title,
			ev.Start.Format("15:04"), ev.End.Format("15:04"))
	}
	return b.String()
}

func windowOrToday(tc TurnContext, key string) *TimeWindow {
	if w, ok := tc.Windows[key]; ok {
		return &w
	}
	return nil
}

// permissivePolicy is the default when the caller supplies no policy: tool
// flags drive confirmation, nothing is denied.
type permissivePolicy struct{}

func (permissivePolicy) Check(_, _ string, _ map[string]any, riskLevel string, requiresConfirmation bool, prompt string) Decision {
	return Decision{Allowed: true, RequiresConfirmation: requiresConfirmation, Prompt: prompt, RiskLevel: riskLevel}
}

func (permissivePolicy) Confirm(_, _, _ string) {}

// noopBus drops all notifications.
type noopBus struct{}

func (noopBus) Publish(string, any, string) {}
