package model

import (
	"fmt"
	"strings"
)

// Outcome is the result of a single file operation during execution.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// ExecutionStatus describes how an execution run finished. The run itself
// never aborts on a per-file failure; "partial" means it finished with at
// least one failed file.
type ExecutionStatus string

const (
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionPartial   ExecutionStatus = "partial"
)

// FileResult records the outcome of one file operation.
type FileResult struct {
	Path      string  `json:"path"`
	Action    Action  `json:"action"`
	Outcome   Outcome `json:"outcome"`
	Error     string  `json:"error,omitempty"`
	CommitSHA string  `json:"commit_sha,omitempty"`
}

// StepResult records the outcomes of one plan step.
type StepResult struct {
	StepNumber int          `json:"step_number"`
	Title      string       `json:"title"`
	Files      []FileResult `json:"files"`
}

// Summary renders the step as a human-readable audit block with one ✓/✗
// line per file. The structured Files list is the source of truth; this is
// presentation only.
func (s *StepResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d: %s", s.StepNumber, s.Title)
	for _, f := range s.Files {
		if f.Outcome == OutcomeFailure {
			fmt.Fprintf(&b, "\n  ✗ Failed to %s %s: %s", actionVerb(f.Action), f.Path, f.Error)
			continue
		}
		fmt.Fprintf(&b, "\n  ✓ %s %s", actionPastTense(f.Action), f.Path)
	}
	return b.String()
}

// ExecutionLog is the audit record returned from executing a plan.
type ExecutionLog struct {
	Status    ExecutionStatus `json:"status"`
	Message   string          `json:"message"`
	Branch    string          `json:"branch"`
	BranchURL string          `json:"branch_url"`
	Steps     []StepResult    `json:"steps"`
}

// FailureCount returns the number of failed file operations across all steps.
func (l *ExecutionLog) FailureCount() int {
	n := 0
	for _, step := range l.Steps {
		for _, f := range step.Files {
			if f.Outcome == OutcomeFailure {
				n++
			}
		}
	}
	return n
}

func actionVerb(a Action) string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionModify:
		return "modify"
	case ActionDelete:
		return "delete"
	case ActionRead:
		return "read"
	}
	return "process"
}

func actionPastTense(a Action) string {
	switch a {
	case ActionCreate:
		return "Created"
	case ActionModify:
		return "Modified"
	case ActionDelete:
		return "Deleted"
	case ActionRead:
		return "Read"
	}
	return "Processed"
}
