package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// confirmVerdict is the parse result of a confirmation reply.
type confirmVerdict int

const (
	confirmUnclear confirmVerdict = iota
	confirmYes
	confirmNo
)

// Confirmation vocabulary. The strict set is the only one accepted for
// destructive tools; there is no silent default for those.
var (
	strictYesTokens = []string{"1", "evet"}
	looseYesTokens  = []string{"olur", "tamam", "ok", "okey", "onayla", "onayliyorum", "aynen", "yap", "kabul", "peki"}
	noTokens        = []string{"0", "hayir", "yok", "olmaz", "istemiyorum", "vazgec", "iptal"}
)

// destructiveTools is the explicit allowlist of tools that demand the strict
// confirmation vocabulary. High-risk tools outside this list still require
// confirmation via policy; they just accept the loose affirmatives.
var destructiveTools = map[string]bool{
	"calendar.delete_event": true,
	"calendar.plan_apply":   true,
}

func isDestructive(call ToolCall) bool {
	if !destructiveTools[call.Name] {
		return false
	}
	if dry, ok := call.Params["dry_run"].(bool); ok && dry {
		return false
	}
	return true
}

// parseConfirm classifies a reply and extracts any trailing free-text note.
// The note is whatever follows the decision token in the raw utterance.
func parseConfirm(norm, raw string, strict bool) (confirmVerdict, string) {
	tokens := normTokens(norm)
	if len(tokens) == 0 {
		return confirmUnclear, ""
	}
	first := tokens[0]

	note := ""
	if rest := strings.Fields(raw); len(rest) > 1 {
		note = strings.Join(rest[1:], " ")
	}

	for _, t := range strictYesTokens {
		if first == t {
			return confirmYes, note
		}
	}
	for _, t := range noTokens {
		if first == t {
			return confirmNo, note
		}
	}
	if isExitPhrase(norm) {
		return confirmNo, ""
	}
	if strict {
		return confirmUnclear, ""
	}
	for _, t := range looseYesTokens {
		if first == t {
			return confirmYes, note
		}
	}
	return confirmUnclear, ""
}

// handleConfirmation resolves the open pending action: execute exactly once
// on confirm, clear without executing on deny, re-ask without losing the
// action on anything ambiguous.
func (o *Orchestrator) handleConfirmation(ctx context.Context, norm, raw string, sess *Session) *Result {
	pa := sess.PendingAction
	strict := isDestructive(pa.Action)
	verdict, note := parseConfirm(norm, raw, strict)

	switch verdict {
	case confirmNo:
		sess.ClearCalendar()
		o.publish("action.denied", map[string]any{"tool": pa.Action.Name}, sess.ID)
		return say(phraseDenyAck)

	case confirmUnclear:
		if strict {
			sess.Trace.flag("strict_confirmation_required")
		}
		return askUser(phraseStrictConfirm).
			WithMeta("action_type", pa.Action.Name).
			WithMeta("requires_confirmation", true)
	}

	// Confirmed. Remove the pending action from state before executing so a
	// tool failure cannot re-enter the confirmation loop.
	sess.PendingAction = nil
	sess.State = StateIdle

	if note != "" && pa.Action.Name == "calendar.create_event" {
		pa.Action.Params["note"] = note
	}

	o.policy.Confirm(sess.ID, pa.Action.Name, pa.Decision.RiskLevel)

	output, err := o.executeToolCall(ctx, pa.Action)
	if err != nil {
		o.logger.Warn("confirmed tool execution failed",
			"tool", pa.Action.Name, "error", err)
		o.publish("tool.failed", map[string]any{"tool": pa.Action.Name, "error": err.Error()}, sess.ID)
		return say(phraseGenericFailure)
	}

	if isCalendarTool(pa.Action.Name) {
		// A completed calendar write clears all calendar-scoped dialog
		// state; the next turn starts fresh.
		sess.ClearCalendar()
	}
	sess.LastTool = pa.Action.Name
	o.publish("tool.executed", map[string]any{"tool": pa.Action.Name}, sess.ID)
	sess.PushSummary("asistan: " + pa.Action.Name + " uygulandı")
	return say(renderOutcome(pa.Action.Name, output)).
		WithMeta("action_type", pa.Action.Name)
}

// outcomePayload is the subset of tool output rendered back to the user.
type outcomePayload struct {
	OK    bool `json:"ok"`
	Event *struct {
		Title string    `json:"title"`
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"event"`
	Created int `json:"created"`
}

// renderOutcome phrases a successful write for the user.
func renderOutcome(toolName, output string) string {
	var p outcomePayload
	if err := json.Unmarshal([]byte(output), &p); err != nil {
		return "Tamamdır."
	}
	switch toolName {
	case "calendar.create_event":
		if p.Event != nil {
			return fmt.Sprintf("Ekledim: %s, %s–%s.", p.Event.Title,
				p.Event.Start.Format("15:04"), p.Event.End.Format("15:04"))
		}
		return "Ekledim."
	case "calendar.update_event":
		if p.Event != nil {
			return fmt.Sprintf("Taşıdım: %s, %s–%s.", p.Event.Title,
				p.Event.Start.Format("15:04"), p.Event.End.Format("15:04"))
		}
		return "Güncelledim."
	case "calendar.delete_event":
		return "Sildim."
	case "calendar.plan_apply":
		if p.Created > 0 {
			return fmt.Sprintf("Planı uyguladım: %d etkinlik eklendi.", p.Created)
		}
		return "Planı uyguladım."
	}
	return "Tamamdır."
}
