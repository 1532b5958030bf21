package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/hrygo/ajanda/dialog"
)

const plannerPrompt = `Sen bir Türkçe takvim planlayıcısısın. Kullanıcının isteğinden
bir etkinlik planı çıkar. Etkinlikler verilen zaman pencerelerinin içinde kalmalı,
birbirleriyle çakışmamalı ve gerçekçi sürelerde olmalı.

Sadece şu JSON ile yanıtla:
{"events": [{"title": "...", "start": "RFC3339", "end": "RFC3339"}], "note": "kısa açıklama"}`

const maxPlanEvents = 10

// Planner implements dialog.PlanBuilder over the completion client.
type Planner struct {
	client dialog.CompletionClient
}

// NewPlanner creates the LLM plan builder.
func NewPlanner(client dialog.CompletionClient) *Planner {
	return &Planner{client: client}
}

// Build drafts a plan from scratch for the instruction.
func (p *Planner) Build(ctx context.Context, instruction string, windows map[string]dialog.TimeWindow) (*dialog.PlanDraft, error) {
	messages := []dialog.Message{
		dialog.SystemMessage(plannerPrompt + "\n\n" + renderWindows(windows)),
		dialog.UserMessage(instruction),
	}
	return p.complete(ctx, messages)
}

// Edit revises an existing draft according to the instruction. The current
// draft is handed back to the model as assistant context.
func (p *Planner) Edit(ctx context.Context, draft *dialog.PlanDraft, instruction string) (*dialog.PlanDraft, error) {
	current, err := json.Marshal(draft)
	if err != nil {
		return nil, errors.Wrap(err, "encode current draft")
	}
	messages := []dialog.Message{
		dialog.SystemMessage(plannerPrompt),
		dialog.AssistantMessage(string(current)),
		dialog.UserMessage("Bu planı şu isteğe göre düzenle: " + instruction),
	}
	return p.complete(ctx, messages)
}

func (p *Planner) complete(ctx context.Context, messages []dialog.Message) (*dialog.PlanDraft, error) {
	raw, err := p.client.CompleteJSON(ctx, messages, "")
	if err != nil {
		return nil, errors.Wrap(err, "planner call failed")
	}

	var draft dialog.PlanDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, errors.Wrap(err, "malformed plan response")
	}
	if len(draft.Events) == 0 {
		return nil, errors.New("plan has no events")
	}
	if len(draft.Events) > maxPlanEvents {
		draft.Events = draft.Events[:maxPlanEvents]
	}
	for i, ev := range draft.Events {
		if strings.TrimSpace(ev.Title) == "" {
			return nil, errors.Errorf("plan event %d has no title", i+1)
		}
		if !ev.End.After(ev.Start) {
			return nil, errors.Errorf("plan event %d has an empty or inverted window", i+1)
		}
	}
	sort.Slice(draft.Events, func(i, j int) bool {
		return draft.Events[i].Start.Before(draft.Events[j].Start)
	})
	draft.Preview = p.Render(&draft)
	return &draft, nil
}

// Render phrases the draft as a numbered list for the user.
func (p *Planner) Render(draft *dialog.PlanDraft) string {
	var b strings.Builder
	b.WriteString("Plan taslağı:")
	for i, ev := range draft.Events {
		fmt.Fprintf(&b, "\n%d) %s %s–%s %s",
			i+1,
			ev.Start.Format("02.01 Mon"),
			ev.Start.Format("15:04"),
			ev.End.Format("15:04"),
			ev.Title)
	}
	if draft.Note != "" {
		b.WriteString("\n" + draft.Note)
	}
	return b.String()
}

func renderWindows(windows map[string]dialog.TimeWindow) string {
	if len(windows) == 0 {
		return ""
	}
	keys := make([]string, 0, len(windows))
	for k := range windows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Kullanılabilir zaman pencereleri:")
	for _, k := range keys {
		w := windows[k]
		fmt.Fprintf(&b, "\n- %s: %s — %s", k,
			w.Start.Format("2006-01-02T15:04:05Z07:00"),
			w.End.Format("2006-01-02T15:04:05Z07:00"))
	}
	return b.String()
}
