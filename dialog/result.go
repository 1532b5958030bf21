package dialog

// ResultKind is the outcome category of one processed turn.
type ResultKind string

const (
	ResultSay     ResultKind = "say"
	ResultAskUser ResultKind = "ask_user"
	ResultFail    ResultKind = "fail"
)

// Error codes carried in fail results.
const (
	ErrCodeStepBudget     = "step_budget_exhausted"
	ErrCodeLLMUnavailable = "llm_unavailable"
)

// Result is the single output contract of a turn regardless of which
// internal component resolved it.
type Result struct {
	Kind      ResultKind     `json:"kind"`
	Text      string         `json:"text"`
	StepsUsed int            `json:"steps_used"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func newResult(kind ResultKind, text string) *Result {
	return &Result{Kind: kind, Text: text, Metadata: map[string]any{}}
}

func say(text string) *Result     { return newResult(ResultSay, text) }
func askUser(text string) *Result { return newResult(ResultAskUser, text) }

func fail(code, text string) *Result {
	r := newResult(ResultFail, text)
	r.Metadata["error_code"] = code
	return r
}

// WithMeta sets one metadata entry and returns the result for chaining.
func (r *Result) WithMeta(key string, value any) *Result {
	if r.Metadata == nil {
		r.Metadata = map[string]any{}
	}
	r.Metadata[key] = value
	return r
}
