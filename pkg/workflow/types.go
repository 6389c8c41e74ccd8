// Package workflow defines the ASL-dialect workflow definition format:
// StartAt/States, the three supported state types (Task, Choice,
// Pass), and the data-shaping fields each state carries.
package workflow

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/lyzr/wkflws/pkg/intrinsic"
	"github.com/lyzr/wkflws/pkg/wkerrors"
)

// StateType is the discriminator for a state object.
type StateType string

const (
	Task   StateType = "Task"
	Choice StateType = "Choice"
	Pass   StateType = "Pass"
)

// Definition is a workflow definition document: StartAt plus a map of
// named states. It is treated as deeply immutable within a single
// execution; the engine clones it per execution.
type Definition struct {
	StartAt string            `json:"StartAt"`
	Comment string            `json:"Comment,omitempty"`
	States  map[string]*State `json:"States"`
}

// State is a single node in the state machine. Fields not relevant to
// its Type are simply left zero.
type State struct {
	Type           StateType              `json:"Type"`
	Resource       string                 `json:"Resource,omitempty"`
	Next           string                 `json:"Next,omitempty"`
	End            bool                   `json:"End,omitempty"`
	InputPath      *string                `json:"InputPath,omitempty"`
	Parameters     map[string]interface{} `json:"Parameters,omitempty"`
	ResultSelector map[string]interface{} `json:"ResultSelector,omitempty"`
	ResultPath     *string                `json:"ResultPath,omitempty"`
	OutputPath     *string                `json:"OutputPath,omitempty"`
	Result         interface{}            `json:"Result,omitempty"`
	Choices        []ChoiceRule           `json:"Choices,omitempty"`
	Default        string                 `json:"Default,omitempty"`
}

// ChoiceRule is one entry of a Choice state's Choices list: either a
// leaf comparator bound to Variable, or a boolean combinator (And,
// Not) over nested rules.
type ChoiceRule struct {
	Variable string `json:"Variable,omitempty"`
	Next     string `json:"Next,omitempty"`

	StringEquals             *string          `json:"StringEquals,omitempty"`
	NumericEquals            *decimal.Decimal `json:"NumericEquals,omitempty"`
	NumericGreaterThan       *decimal.Decimal `json:"NumericGreaterThan,omitempty"`
	NumericGreaterThanEquals *decimal.Decimal `json:"NumericGreaterThanEquals,omitempty"`
	NumericLessThan          *decimal.Decimal `json:"NumericLessThan,omitempty"`
	NumericLessThanEquals    *decimal.Decimal `json:"NumericLessThanEquals,omitempty"`
	IsPresent                *bool            `json:"IsPresent,omitempty"`
	IsNull                   *bool            `json:"IsNull,omitempty"`
	IsNumeric                *bool            `json:"IsNumeric,omitempty"`
	IsString                 *bool            `json:"IsString,omitempty"`
	IsBoolean                *bool            `json:"IsBoolean,omitempty"`

	And []ChoiceRule  `json:"And,omitempty"`
	Not *ChoiceRule   `json:"Not,omitempty"`
}

// Clone deep-copies a definition via a JSON round trip, matching the
// engine's dispatch-time cloning requirement: per-run mutations (e.g.
// rewriting Resource for an executor-specific invocation) must not
// leak back into a cached definition.
func (d *Definition) Clone() (*Definition, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return decodeDefinition(b)
}

// ParseDefinition decodes a workflow definition document and validates
// its structural invariants (see Validate).
func ParseDefinition(data []byte) (*Definition, error) {
	def, err := decodeDefinition(data)
	if err != nil {
		return nil, &wkerrors.ExecutionError{Msg: "invalid workflow definition JSON", Err: err}
	}
	if err := checkNoEndOnChoiceRules(data); err != nil {
		return nil, err
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// decodeDefinition decodes data with json.Number enabled so that every
// embedded JSON number in a Parameters/ResultSelector/Result field
// normalizes to decimal.Decimal (via intrinsic.NormalizeDecoded)
// instead of float64 — matching the runtime value model the intrinsic
// interpreter and Choice comparators require, rather than only holding
// for values that happen to pass through intrinsic.ParseJSON first.
func decodeDefinition(data []byte) (*Definition, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, err
	}
	for _, st := range def.States {
		if st.Parameters != nil {
			st.Parameters = intrinsic.NormalizeDecoded(st.Parameters).(map[string]interface{})
		}
		if st.ResultSelector != nil {
			st.ResultSelector = intrinsic.NormalizeDecoded(st.ResultSelector).(map[string]interface{})
		}
		if st.Result != nil {
			st.Result = intrinsic.NormalizeDecoded(st.Result)
		}
	}
	return &def, nil
}

// Validate enforces definition-level structural rules: StartAt must
// reference an existing state, every Next must reference an existing
// state, and (checked separately, at parse time, via
// checkNoEndOnChoiceRules) a Choice state's rules must not declare End.
func (d *Definition) Validate() error {
	if d.StartAt == "" {
		return &wkerrors.ExecutionError{Msg: "workflow definition has no StartAt"}
	}
	if _, ok := d.States[d.StartAt]; !ok {
		return &wkerrors.ExecutionError{State: d.StartAt, Msg: "StartAt references an unknown state"}
	}
	for name, st := range d.States {
		switch st.Type {
		case Task, Choice, Pass:
		default:
			return &wkerrors.ExecutionError{State: name, Msg: "unknown state Type: " + string(st.Type)}
		}
		if st.Next != "" {
			if _, ok := d.States[st.Next]; !ok {
				return &wkerrors.ExecutionError{State: name, Msg: "Next references an unknown state: " + st.Next}
			}
		}
		if st.Type == Choice {
			for _, rule := range st.Choices {
				if rule.Next != "" {
					if _, ok := d.States[rule.Next]; !ok {
						return &wkerrors.ExecutionError{State: name, Msg: "Choice rule Next references an unknown state: " + rule.Next}
					}
				}
			}
			if st.Default != "" {
				if _, ok := d.States[st.Default]; !ok {
					return &wkerrors.ExecutionError{State: name, Msg: "Default references an unknown state: " + st.Default}
				}
			}
		}
		if st.ResultPath != nil {
			if err := validateResultPath(*st.ResultPath); err != nil {
				return &wkerrors.ExecutionError{State: name, Msg: "invalid ResultPath", Err: err}
			}
		}
	}
	return nil
}

func validateResultPath(p string) error {
	if len(p) == 0 || p[0] != '$' {
		return &wkerrors.ExecutionError{Msg: "ResultPath must begin with '$'"}
	}
	if len(p) > 1 && p[1] == '$' {
		return &wkerrors.ExecutionError{Msg: "ResultPath must not begin with '$$'"}
	}
	return nil
}

// checkNoEndOnChoiceRules re-parses the raw document to check a rule
// the typed struct can't express by construction: a Choice state's
// Choices entries must not carry an "End" key.
func checkNoEndOnChoiceRules(data []byte) error {
	var raw struct {
		States map[string]struct {
			Type    string                   `json:"Type"`
			Choices []map[string]interface{} `json:"Choices"`
		} `json:"States"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil // already reported by the typed unmarshal
	}
	for name, st := range raw.States {
		if st.Type != string(Choice) {
			continue
		}
		for _, rule := range st.Choices {
			if _, has := rule["End"]; has {
				return &wkerrors.ExecutionError{State: name, Msg: "Choice rules must not declare End"}
			}
		}
	}
	return nil
}
