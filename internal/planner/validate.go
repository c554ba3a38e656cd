package planner

import (
	"fmt"
	"strings"

	"github.com/jxucoder/gitpilot/internal/model"
)

// Violation is one file action that contradicts the snapshot the plan was
// generated against.
type Violation struct {
	Path   string
	Action model.Action
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s %s: %s", v.Action, v.Path, v.Reason)
}

// ValidatePlan cross-checks every file action against the snapshot:
// CREATE targets must not exist, MODIFY and DELETE targets must exist, and
// no path may be deleted twice. READ is advisory and never checked.
func ValidatePlan(plan *model.Plan, snap *model.RepositorySnapshot) []Violation {
	var violations []Violation
	deleted := make(map[string]bool)

	for _, step := range plan.Steps {
		for _, f := range step.Files {
			switch f.Action {
			case model.ActionCreate:
				if snap.Contains(f.Path) {
					violations = append(violations, Violation{f.Path, f.Action, "target already exists in the repository"})
				}
			case model.ActionModify:
				if !snap.Contains(f.Path) {
					violations = append(violations, Violation{f.Path, f.Action, "target does not exist in the repository"})
				}
			case model.ActionDelete:
				if !snap.Contains(f.Path) {
					violations = append(violations, Violation{f.Path, f.Action, "target does not exist in the repository"})
				} else if deleted[f.Path] {
					violations = append(violations, Violation{f.Path, f.Action, "path is deleted more than once"})
				}
				deleted[f.Path] = true
			}
		}
	}
	return violations
}

func joinViolations(violations []Violation) string {
	parts := make([]string, len(violations))
	for i, v := range violations {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}
