package dialog

import "github.com/google/uuid"

// Trace is the structured per-turn diagnostic record. It carries routing and
// slot facts only, never free-form model reasoning.
type Trace struct {
	TurnID     string            `json:"turn_id"`
	Route      Route             `json:"route,omitempty"`
	Slots      map[string]string `json:"slots,omitempty"`
	Missing    []string          `json:"missing,omitempty"`
	Safety     []string          `json:"safety,omitempty"`
	NextAction string            `json:"next_action,omitempty"`
}

func newTrace() *Trace {
	return &Trace{TurnID: uuid.NewString()}
}

func (t *Trace) setIntent(in *Intent) {
	if in == nil {
		return
	}
	t.Slots = make(map[string]string, len(in.Slots))
	for k, v := range in.Slots {
		t.Slots[string(k)] = v
	}
	t.Missing = t.Missing[:0]
	for _, s := range in.Missing {
		t.Missing = append(t.Missing, string(s))
	}
}

func (t *Trace) flag(reason string) {
	t.Safety = append(t.Safety, reason)
}
