package dialog

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultMaxSteps bounds the fallback loop; exceeding it is the only truly
// fatal-to-the-turn outcome.
const DefaultMaxSteps = 8

const protocolSchemaHint = `Yanıtını tek bir JSON nesnesi olarak ver. Geçerli şekiller:
{"type":"say","text":"..."}
{"type":"ask_user","question":"...","choices":["..."],"default":"..."}
{"type":"call_tool","tool":"...","params":{...}}
{"type":"fail","error":"..."}
Başka hiçbir şekil kabul edilmez.`

// maxOfferedChoices caps how many choices an ask_user surfaces.
const maxOfferedChoices = 3

// observation is one tool outcome fed back into the loop conversation.
type observation struct {
	Tool  string `json:"tool"`
	OK    bool   `json:"ok"`
	Out   string `json:"out,omitempty"`
	Error string `json:"error,omitempty"`
}

// runFallback is the bounded language-model action loop, entered only when
// deterministic routing and pending state did not resolve the turn.
func (o *Orchestrator) runFallback(ctx context.Context, utterance string, tc TurnContext, sess *Session) *Result {
	if o.client == nil {
		// No completion collaborator configured: degrade to the finite menu.
		return o.openMenu(unknownMenu(), sess)
	}

	messages := o.fallbackMessages(utterance, sess)
	restated := false

	for step := 1; step <= o.maxSteps; step++ {
		select {
		case <-ctx.Done():
			return fail(ErrCodeLLMUnavailable, phraseGenericFailure).withSteps(step - 1)
		default:
		}

		raw, err := o.client.CompleteJSON(ctx, messages, protocolSchemaHint)
		if err != nil {
			o.logger.Warn("completion call failed", "step", step, "error", err)
			return fail(ErrCodeLLMUnavailable, phraseGenericFailure).withSteps(step)
		}

		action, cerr := CoerceAction(raw)
		if cerr != nil {
			if !restated {
				// One-shot corrective instruction before giving up on the
				// shape.
				restated = true
				o.logger.Debug("coercion failed, requesting restate", "error", cerr)
				messages = append(messages, SystemMessage(
					"Çıktın protokole uymuyor: "+cerr.Error()+". "+protocolSchemaHint))
				continue
			}
			action = SafeSay()
		}

		switch action.Type {
		case ActionSay:
			sess.PushSummary("asistan: " + clip(action.Text, 120))
			return say(action.Text).withSteps(step)

		case ActionFail:
			return fail("model_reported", phraseGenericFailure).
				WithMeta("error", action.Error).withSteps(step)

		case ActionAskUser:
			question := action.Question
			if echoesUser(question, utterance) || roleConfused(question) {
				sess.Trace.flag("llm_question_replaced")
				question = phraseGenericClarify
			}
			r := askUser(question).withSteps(step)
			if n := len(action.Choices); n > 0 {
				if n > maxOfferedChoices {
					action.Choices = action.Choices[:maxOfferedChoices]
				}
				opts := make(map[string]string, len(action.Choices))
				for i, c := range action.Choices {
					opts[fmt.Sprintf("%d", i+1)] = c
				}
				r.WithMeta("options", opts)
			}
			return r

		case ActionCallTool:
			done, result := o.fallbackToolStep(ctx, action, utterance, &messages, sess, step)
			if done {
				return result
			}
		}
	}

	sess.Trace.flag("step_budget_exhausted")
	return fail(ErrCodeStepBudget, phraseStepBudget).withSteps(o.maxSteps)
}

// fallbackToolStep validates, risk-checks and executes one tool call inside
// the loop. It returns done=true when the turn is resolved.
func (o *Orchestrator) fallbackToolStep(ctx context.Context, action *Action, utterance string, messages *[]Message, sess *Session, step int) (bool, *Result) {
	tool, found := o.tools.Get(action.Tool)
	if !found {
		*messages = append(*messages, SystemMessage(
			fmt.Sprintf("Araç %q yok. Kayıtlı araçları kullan.", action.Tool)))
		return false, nil
	}
	if ok, reason := o.tools.ValidateCall(action.Tool, action.Params); !ok {
		*messages = append(*messages, SystemMessage(
			fmt.Sprintf("Araç çağrısı geçersiz: %s. Parametreleri düzelt.", reason)))
		return false, nil
	}

	decision := o.policy.Check(sess.ID, action.Tool, action.Params,
		tool.RiskLevel(), tool.RequiresConfirmation(), "")
	if !decision.Allowed {
		o.appendObservation(messages, observation{Tool: action.Tool, OK: false, Error: "policy denied"})
		sess.Trace.flag("policy_denied:" + action.Tool)
		return false, nil
	}
	if decision.RequiresConfirmation || tool.RequiresConfirmation() {
		// Queue and exit the loop; the next turn goes through the same
		// confirmation gate as the deterministic path.
		call := ToolCall{Name: action.Tool, Params: action.Params}
		prompt := decision.Prompt
		if prompt == "" {
			prompt = fmt.Sprintf("%s aracını çalıştırayım mı? (1: evet / 0: hayır)", action.Tool)
		}
		return true, o.queueAction(ctx, call, prompt, utterance, sess).withSteps(step)
	}

	output, err := o.executeToolCall(ctx, ToolCall{Name: action.Tool, Params: action.Params})
	if err != nil {
		o.appendObservation(messages, observation{Tool: action.Tool, OK: false, Error: err.Error()})
		return false, nil
	}
	sess.LastTool = action.Tool
	o.appendObservation(messages, observation{Tool: action.Tool, OK: true, Out: clip(output, 2000)})
	return false, nil
}

func (o *Orchestrator) appendObservation(messages *[]Message, obs observation) {
	encoded, err := json.Marshal(obs)
	if err != nil {
		encoded = []byte(`{"ok":false}`)
	}
	*messages = append(*messages, UserMessage("[gözlem] "+string(encoded)))
}

// fallbackMessages builds the loop conversation: protocol, catalog, rolling
// session digest, then the utterance.
func (o *Orchestrator) fallbackMessages(utterance string, sess *Session) []Message {
	var b strings.Builder
	b.WriteString("Takvim odaklı bir sesli asistanın karar çekirdeğisin. ")
	b.WriteString(protocolSchemaHint)

	if catalog := o.tools.AsLLMCatalog(); len(catalog) > 0 {
		b.WriteString("\n\nAraçlar:")
		for _, t := range catalog {
			fmt.Fprintf(&b, "\n- %s: %s", t.Name, clip(t.Description, 160))
		}
	}
	if len(sess.Summary) > 0 {
		b.WriteString("\n\nKonuşma özeti:\n")
		b.WriteString(strings.Join(sess.Summary, "\n"))
	}

	return []Message{SystemMessage(b.String()), UserMessage(utterance)}
}

// echoesUser detects a model question that merely parrots the user's own
// utterance back at them.
func echoesUser(question, utterance string) bool {
	q := Normalize(question)
	u := Normalize(utterance)
	if len(u) > 8 && strings.Contains(q, u) {
		return true
	}
	qTokens := normTokens(q)
	uTokens := normTokens(u)
	if len(uTokens) < 3 || len(qTokens) == 0 {
		return false
	}
	overlap := 0
	qSet := make(map[string]bool, len(qTokens))
	for _, t := range qTokens {
		qSet[t] = true
	}
	for _, t := range uTokens {
		if qSet[t] {
			overlap++
		}
	}
	return float64(overlap)/float64(len(uTokens)) > 0.8
}

// roleConfusedFragments betray a model that lost track of who is speaking.
var roleConfusedFragments = []string{
	"kullanici olarak", "ben kullanici", "kullanici:", "asistan:",
	"as the user", "as an ai", "yapay zeka olarak",
}

func roleConfused(question string) bool {
	q := Normalize(question)
	for _, f := range roleConfusedFragments {
		if strings.Contains(q, f) {
			return true
		}
	}
	return false
}

// clip truncates to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut] + "…"
}

// withSteps records loop usage on a result.
func (r *Result) withSteps(steps int) *Result {
	r.StepsUsed = steps
	fallbackSteps.Observe(float64(steps))
	return r
}
