package dialog

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType tags the four-variant action protocol, the only vocabulary the
// fallback loop accepts from the language model.
type ActionType string

const (
	ActionSay      ActionType = "say"
	ActionAskUser  ActionType = "ask_user"
	ActionFail     ActionType = "fail"
	ActionCallTool ActionType = "call_tool"
)

// Action is the coerced model output. Exactly the fields of the tagged
// variant are meaningful.
type Action struct {
	Type ActionType

	Text     string // say
	Question string // ask_user
	Choices  []string
	Default  string
	Error    string // fail
	Tool     string // call_tool
	Params   map[string]any
}

// rawAction accepts the loose shapes models actually emit; CoerceAction
// normalizes them into Action.
type rawAction struct {
	Type     string         `json:"type"`
	Action   string         `json:"action"`
	Text     string         `json:"text"`
	Message  string         `json:"message"`
	Content  string         `json:"content"`
	Say      string         `json:"say"`
	Question string         `json:"question"`
	Choices  []string       `json:"choices"`
	Default  string         `json:"default"`
	Error    string         `json:"error"`
	Tool     string         `json:"tool"`
	Name     string         `json:"name"`
	ToolName string         `json:"tool_name"`
	Params   map[string]any `json:"params"`
	Args     map[string]any `json:"arguments"`
}

// typeAliases maps the tag spellings seen in the wild onto the protocol.
var typeAliases = map[string]ActionType{
	"say":       ActionSay,
	"answer":    ActionSay,
	"respond":   ActionSay,
	"ask_user":  ActionAskUser,
	"ask":       ActionAskUser,
	"question":  ActionAskUser,
	"fail":      ActionFail,
	"error":     ActionFail,
	"call_tool": ActionCallTool,
	"tool_call": ActionCallTool,
	"tool":      ActionCallTool,
}

// CoerceAction validates raw model output against the protocol. It returns
// an error only when the payload cannot be read as a protocol action at all;
// the caller decides between a one-shot restate instruction and falling back
// to a safe Say.
func CoerceAction(raw json.RawMessage) (*Action, error) {
	var ra rawAction
	if err := json.Unmarshal(raw, &ra); err != nil {
		return nil, fmt.Errorf("model output is not an object: %w", err)
	}

	tag := strings.ToLower(strings.TrimSpace(ra.Type))
	if tag == "" {
		tag = strings.ToLower(strings.TrimSpace(ra.Action))
	}
	typ, known := typeAliases[tag]
	if !known {
		return nil, fmt.Errorf("unknown action type %q", tag)
	}

	text := firstNonEmpty(ra.Text, ra.Message, ra.Content, ra.Say)
	switch typ {
	case ActionSay:
		if text == "" {
			return nil, fmt.Errorf("say action without text")
		}
		return &Action{Type: ActionSay, Text: text}, nil

	case ActionAskUser:
		q := firstNonEmpty(ra.Question, text)
		if q == "" {
			return nil, fmt.Errorf("ask_user action without question")
		}
		return &Action{Type: ActionAskUser, Question: q, Choices: ra.Choices, Default: ra.Default}, nil

	case ActionFail:
		return &Action{Type: ActionFail, Error: firstNonEmpty(ra.Error, text, "unspecified failure")}, nil

	default: // ActionCallTool
		name := firstNonEmpty(ra.Tool, ra.Name, ra.ToolName)
		if name == "" {
			return nil, fmt.Errorf("call_tool action without tool name")
		}
		params := ra.Params
		if params == nil {
			params = ra.Args
		}
		if params == nil {
			params = map[string]any{}
		}
		return &Action{Type: ActionCallTool, Tool: name, Params: params}, nil
	}
}

// SafeSay is the coercion target for output that cannot be repaired.
func SafeSay() *Action {
	return &Action{Type: ActionSay, Text: phraseGenericClarify}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
