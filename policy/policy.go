// Package policy implements the risk policy consulted before any tool
// execution. Rules are CEL expressions evaluated against the proposed call;
// the first matching rule decides whether the call is denied, gated behind
// explicit confirmation, or allowed outright.
package policy

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"github.com/hrygo/ajanda/dialog"
)

// Effect is what a matching rule does to the call.
type Effect string

const (
	EffectDeny    Effect = "deny"
	EffectConfirm Effect = "confirm"
	EffectAllow   Effect = "allow"
)

// Rule is one CEL policy rule. The expression sees these variables:
// tool (string), risk (string), requires_confirmation (bool) and
// params (map<string, dyn>).
type Rule struct {
	Name   string
	Expr   string
	Effect Effect
	// Prompt overrides the caller-proposed confirmation question.
	Prompt string
}

// DefaultRules is the shipped policy: high-risk calls and write tools go
// through confirmation, everything else is allowed as proposed.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:   "confirm-destructive",
			Expr:   `risk == 'high'`,
			Effect: EffectConfirm,
		},
		{
			Name:   "confirm-writes",
			Expr:   `requires_confirmation`,
			Effect: EffectConfirm,
		},
	}
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// Confirmation is one recorded user approval.
type Confirmation struct {
	Tool string
	Risk string
	At   time.Time
}

// Engine evaluates the rule set and keeps an in-memory ledger of explicit
// confirmations per session.
type Engine struct {
	rules  []compiledRule
	logger *slog.Logger

	mu        sync.Mutex
	confirmed map[string][]Confirmation
}

// NewEngine compiles the rule set. A rule that fails to compile is a
// configuration error and rejects the whole engine.
func NewEngine(rules []Rule, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	env, err := cel.NewEnv(
		cel.Variable("tool", cel.StringType),
		cel.Variable("risk", cel.StringType),
		cel.Variable("requires_confirmation", cel.BoolType),
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CEL environment")
	}

	e := &Engine{logger: logger, confirmed: map[string][]Confirmation{}}
	for _, r := range rules {
		celAST, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, errors.Wrapf(issues.Err(), "invalid policy expression in rule %q", r.Name)
		}
		program, err := env.Program(celAST)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to build program for rule %q", r.Name)
		}
		e.rules = append(e.rules, compiledRule{rule: r, program: program})
	}
	return e, nil
}

// Check evaluates the rules in order; the first match wins. An evaluation
// error fails closed: the rule is treated as a confirmation requirement.
func (e *Engine) Check(sessionID, toolName string, params map[string]any, riskLevel string, requiresConfirmation bool, prompt string) dialog.Decision {
	if params == nil {
		params = map[string]any{}
	}
	vars := map[string]any{
		"tool":                  toolName,
		"risk":                  riskLevel,
		"requires_confirmation": requiresConfirmation,
		"params":                params,
	}

	decision := dialog.Decision{
		Allowed:              true,
		RequiresConfirmation: requiresConfirmation,
		Prompt:               prompt,
		RiskLevel:            riskLevel,
	}

	for _, cr := range e.rules {
		out, _, err := cr.program.Eval(vars)
		if err != nil {
			e.logger.Warn("policy rule evaluation failed, requiring confirmation",
				"rule", cr.rule.Name, "tool", toolName, "error", err)
			decision.RequiresConfirmation = true
			continue
		}
		matched, ok := out.Value().(bool)
		if !ok || !matched {
			continue
		}
		switch cr.rule.Effect {
		case EffectDeny:
			e.logger.Info("policy denied tool call", "rule", cr.rule.Name, "tool", toolName, "session", sessionID)
			return dialog.Decision{Allowed: false, RiskLevel: riskLevel}
		case EffectConfirm:
			decision.RequiresConfirmation = true
			if cr.rule.Prompt != "" {
				decision.Prompt = cr.rule.Prompt
			}
			return decision
		case EffectAllow:
			return decision
		}
	}
	return decision
}

// Confirm records an explicit user approval for audit purposes.
func (e *Engine) Confirm(sessionID, toolName, riskLevel string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmed[sessionID] = append(e.confirmed[sessionID], Confirmation{
		Tool: toolName,
		Risk: riskLevel,
		At:   time.Now(),
	})
}

// Confirmations returns the recorded approvals for a session, oldest first.
func (e *Engine) Confirmations(sessionID string) []Confirmation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Confirmation, len(e.confirmed[sessionID]))
	copy(out, e.confirmed[sessionID])
	return out
}
