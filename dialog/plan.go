package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Plan cues over normalized text. A create-route utterance carrying one of
// these enters the plan-draft workflow instead of single-event slot filling.
var planCues = []string{"plan", "planla", "haftalik", "gunluk program", "program yap"}

func wantsPlan(norm string, tc TurnContext) bool {
	return tc.EnablePlanner && containsAny(norm, planCues...)
}

const planMenuText = "\n1) Onayla\n2) Düzenle\n0) İptal"

// startPlanDraft builds a draft from the utterance and opens the
// confirm/edit/cancel stage.
func (o *Orchestrator) startPlanDraft(ctx context.Context, raw string, tc TurnContext, sess *Session) *Result {
	if o.plans == nil {
		return say(phraseGenericClarify)
	}
	draft, err := o.plans.Build(ctx, raw, tc.Windows)
	if err != nil || draft == nil || len(draft.Events) == 0 {
		if err != nil {
			o.logger.Warn("plan draft build failed", "error", err)
		}
		return say(phraseGenericFailure)
	}
	draft.Preview = o.plans.Render(draft)
	sess.PendingPlan = draft
	sess.State = StatePendingPlanDraft
	sess.Trace.NextAction = "plan_draft"
	return askUser(draft.Preview + planMenuText).
		WithMeta("menu_id", "plan_draft").
		WithMeta("options", map[string]string{"1": "Onayla", "2": "Düzenle", "0": "İptal"})
}

// handlePlanDraft processes one reply against the open draft. Accepting runs
// a dry-run apply immediately and queues the real, writing apply through the
// confirmation gate; a plan is never committed without both the explicit
// accept and the subsequent apply confirmation.
func (o *Orchestrator) handlePlanDraft(ctx context.Context, norm, raw string, tc TurnContext, sess *Session) *Result {
	draft := sess.PendingPlan

	// Same resolution order as resolveChoice: the first bare number that is a
	// valid choice wins, keywords second. An edit instruction may mention
	// other numbers ("2 numaralı etkinliği saat 1'e al"); only the leading
	// match picks the branch.
	choice := ""
	switch bareNumberPattern.FindString(norm) {
	case "1":
		choice = "accept"
	case "2":
		choice = "edit"
	case "0":
		choice = "cancel"
	}
	if choice == "" {
		switch {
		case containsAny(norm, "onayla", "onay", "kabul", "evet"):
			choice = "accept"
		case containsAny(norm, "duzenle", "degistir"):
			choice = "edit"
		case containsAny(norm, "iptal", "vazgec", "hayir") || isExitPhrase(norm):
			choice = "cancel"
		}
	}

	switch choice {
	case "cancel":
		sess.PendingPlan = nil
		sess.State = StateIdle
		sess.RepromptCount = 0
		return say(phrasePlanDiscarded)

	case "edit":
		instruction := stripLeadingChoiceToken(raw)
		if strings.TrimSpace(instruction) == "" {
			return askUser(phrasePlanEmptyEdit).WithMeta("reprompt_for", "plan_edit")
		}
		edited, err := o.plans.Edit(ctx, draft, instruction)
		if err != nil || edited == nil {
			if err != nil {
				o.logger.Warn("plan draft edit failed", "error", err)
			}
			return say(phraseGenericFailure)
		}
		edited.Preview = o.plans.Render(edited)
		sess.PendingPlan = edited
		sess.RepromptCount = 0
		return askUser(edited.Preview + planMenuText).
			WithMeta("menu_id", "plan_draft").
			WithMeta("options", map[string]string{"1": "Onayla", "2": "Düzenle", "0": "İptal"})

	case "accept":
		sess.RepromptCount = 0
		return o.acceptPlanDraft(ctx, draft, raw, sess)
	}

	// Ambiguous reply: the same two-attempt policy as menus, with cancel as
	// the safe default.
	if sess.RepromptCount == 0 {
		sess.RepromptCount = 1
		return askUser("Taslak için ne yapayım?"+planMenuText).
			WithMeta("menu_id", "plan_draft").
			WithMeta("reprompt_for", "plan_draft")
	}
	sess.PendingPlan = nil
	sess.State = StateIdle
	sess.RepromptCount = 0
	sess.Trace.flag("menu_default_applied")
	return say(phrasePlanDiscarded)
}

// acceptPlanDraft executes the read-only dry run and queues the real apply.
func (o *Orchestrator) acceptPlanDraft(ctx context.Context, draft *PlanDraft, raw string, sess *Session) *Result {
	events := make([]map[string]any, 0, len(draft.Events))
	for _, ev := range draft.Events {
		events = append(events, map[string]any{
			"title": ev.Title,
			"start": ev.Start.Format(time.RFC3339),
			"end":   ev.End.Format(time.RFC3339),
		})
	}

	dryRun := ToolCall{Name: "calendar.plan_apply", Params: map[string]any{"events": events, "dry_run": true}}
	output, err := o.executeToolCall(ctx, dryRun)
	if err != nil {
		o.logger.Warn("plan dry-run failed", "error", err)
		return say(phraseGenericFailure)
	}

	realApply := ToolCall{Name: "calendar.plan_apply", Params: map[string]any{"events": events, "dry_run": false}}
	prompt := fmt.Sprintf("%s\n\n%d etkinliği gerçekten ekleyeyim mi? (1: evet / 0: hayır)",
		renderDryRun(output, draft), len(draft.Events))
	return o.queueAction(ctx, realApply, prompt, raw, sess)
}

// renderDryRun phrases the dry-run preview, falling back to the draft's own
// preview text when the tool output is not parseable.
func renderDryRun(output string, draft *PlanDraft) string {
	var p struct {
		Events []struct {
			Title string    `json:"title"`
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"events"`
		Conflicts int `json:"conflicts"`
	}
	if err := json.Unmarshal([]byte(output), &p); err != nil || len(p.Events) == 0 {
		return draft.Preview
	}
	var b strings.Builder
	b.WriteString("Önizleme:")
	for _, ev := range p.Events {
		fmt.Fprintf(&b, "\n- %s: %s–%s", ev.Title, ev.Start.Format("02.01 15:04"), ev.End.Format("15:04"))
	}
	if p.Conflicts > 0 {
		fmt.Fprintf(&b, "\nDikkat: %d çakışma var.", p.Conflicts)
	}
	return b.String()
}

// stripLeadingChoiceToken drops a leading "2" / "düzenle" token so the rest
// of the reply can serve as the edit instruction.
func stripLeadingChoiceToken(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}
	first := Normalize(fields[0])
	if first == "2" || first == "duzenle" || first == "degistir" {
		return strings.Join(fields[1:], " ")
	}
	return raw
}
