// Package planner implements the two-phase exploration -> planning protocol
// that keeps the model grounded in verified repository state.
//
// Exploration runs an agent over the read-only tool set and always produces
// a report, even on partial failure: a direct snapshot fetch provides a
// deterministic ground-truth file listing that is embedded in the report
// regardless of what the agent does. Planning then drives a single
// completion under a strict JSON output contract and deserializes the
// result into a typed Plan. Malformed output surfaces as a
// PlanGenerationError, never as a partially-parsed plan.
package planner

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/jxucoder/gitpilot/internal/agent"
	"github.com/jxucoder/gitpilot/internal/llm"
	"github.com/jxucoder/gitpilot/internal/model"
	"github.com/jxucoder/gitpilot/internal/tools"
)

// PlanGenerationError means the model output failed schema or snapshot
// validation, or the model call itself failed.
type PlanGenerationError struct {
	Reason string
	Raw    string // raw model output, when available
	Err    error
}

func (e *PlanGenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("plan generation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("plan generation failed: %s", e.Reason)
}

func (e *PlanGenerationError) Unwrap() error { return e.Err }

// Planner drives the exploration and planning phases.
type Planner struct {
	llm      llm.Client
	maxTurns int
}

// New creates a Planner. maxTurns bounds the exploration agent's tool loop;
// pass 0 for the default.
func New(client llm.Client, maxTurns int) *Planner {
	return &Planner{llm: client, maxTurns: maxTurns}
}

// Explore produces the exploration report for one repository. The returned
// snapshot is nil when the direct fetch failed; the report then carries a
// textual warning instead of the ground-truth listing. Exploration never
// fails outright: every error degrades into report text so planning always
// has something to consume.
func (p *Planner) Explore(ctx context.Context, rc tools.RepoContext) (string, *model.RepositorySnapshot) {
	var stateBlock string
	snap, err := rc.Reader.Snapshot(ctx, rc.Owner, rc.Repo, "")
	if err != nil {
		log.WithFields(log.Fields{"repo": rc.FullName()}).WithError(err).Warn("snapshot pre-fetch failed")
		stateBlock = snapshotWarning(err)
		snap = nil
	} else {
		stateBlock = repoStateBlock(snap)
	}

	reg := tools.NewRegistry(rc)
	user := fmt.Sprintf("Repository: %s\n\n%s\nWrite your exploration report now.", rc.FullName(), stateBlock)

	report, err := agent.Run(ctx, p.llm, reg, explorerSystemPrompt, user, p.maxTurns)
	if err != nil {
		log.WithFields(log.Fields{"repo": rc.FullName()}).WithError(err).Warn("exploration agent failed")
		report = fmt.Sprintf("Warning: the exploration agent failed: %v", err)
	}

	return stateBlock + "\nAGENT FINDINGS:\n" + report, snap
}

// GeneratePlan runs the full exploration -> planning pipeline for a goal.
// Plans that violate the snapshot grounding rules (CREATE of an existing
// path, MODIFY/DELETE of a missing one, duplicate DELETE targets) are
// rejected rather than returned.
func (p *Planner) GeneratePlan(ctx context.Context, goal string, rc tools.RepoContext) (*model.Plan, error) {
	report, snap := p.Explore(ctx, rc)

	system := fmt.Sprintf(plannerSystemPrompt, planSchema())
	raw, err := p.llm.Complete(ctx, system, planUserPrompt(goal, report))
	if err != nil {
		return nil, &PlanGenerationError{Reason: "model call failed", Err: err}
	}

	jsonStr := extractJSONObject(raw)
	if jsonStr == "" {
		return nil, &PlanGenerationError{Reason: "no JSON object in model output", Raw: raw}
	}

	plan, err := model.ParsePlan([]byte(jsonStr))
	if err != nil {
		return nil, &PlanGenerationError{Reason: "model output failed schema validation", Raw: raw, Err: err}
	}

	if snap != nil {
		if violations := ValidatePlan(plan, snap); len(violations) > 0 {
			return nil, &PlanGenerationError{
				Reason: "plan failed snapshot validation: " + joinViolations(violations),
				Raw:    raw,
			}
		}
	}

	log.WithFields(log.Fields{"repo": rc.FullName(), "steps": len(plan.Steps)}).Info("plan generated")
	return plan, nil
}

// extractJSONObject finds the outermost JSON object in the text, tolerating
// markdown code fences the contract forbids but models sometimes emit.
func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
