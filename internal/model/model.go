// Package model defines the core domain types shared across all GitPilot
// packages. It has zero dependencies on other GitPilot packages.
package model

import (
	"encoding/json"
	"fmt"
)

// Action is a file-level operation within a plan step.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionModify Action = "MODIFY"
	ActionDelete Action = "DELETE"
	// ActionRead is advisory: it never mutates the repository and only
	// affects execution-log narration.
	ActionRead Action = "READ"
)

// Valid reports whether a is one of the four known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionModify, ActionDelete, ActionRead:
		return true
	}
	return false
}

// UnmarshalJSON validates the action enum at parse time so a malformed plan
// is rejected before it can become the audit basis for real writes.
func (a *Action) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v := Action(s)
	if !v.Valid() {
		return fmt.Errorf("invalid action %q (must be CREATE, MODIFY, DELETE, or READ)", s)
	}
	*a = v
	return nil
}

// FileAction is one file-level operation in a plan step.
type FileAction struct {
	Path   string `json:"path"`
	Action Action `json:"action"`
}

// PlanStep is a single ordered step in a plan. StepNumber is 1-based and
// used for human display and execution-log correlation.
type PlanStep struct {
	StepNumber  int          `json:"step_number"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Files       []FileAction `json:"files"`
	Risks       *string      `json:"risks"`
}

// Plan is the structured, human-reviewable change plan produced by the
// planning phase. It is inert until the caller explicitly submits it for
// execution; re-submitting an edited Plan is permitted.
type Plan struct {
	Goal    string     `json:"goal"`
	Summary string     `json:"summary"`
	Steps   []PlanStep `json:"steps"`
}

// Actions returns every file action across all steps, in execution order.
func (p *Plan) Actions() []FileAction {
	var out []FileAction
	for _, step := range p.Steps {
		out = append(out, step.Files...)
	}
	return out
}

// ParsePlan deserializes raw JSON into a Plan, enforcing the action enum.
func ParsePlan(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
