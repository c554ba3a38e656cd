// Package executor applies an approved plan to a repository on a dedicated
// feature branch.
//
// Execution is a three-stage run: branch setup, a strictly sequential pass
// over every step's file actions, and a final audit log. There is no
// rollback; each file operation is isolated, and a failure marks that file
// in the log and moves on. Only branch setup (for a reason other than
// pre-existence) aborts the run.
package executor

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	ghx "github.com/jxucoder/gitpilot/internal/github"
	"github.com/jxucoder/gitpilot/internal/llm"
	"github.com/jxucoder/gitpilot/internal/model"
)

// RepoService is the write-side repository surface execution drives. The
// github.Client satisfies it; tests substitute in-memory fakes.
type RepoService interface {
	ReadFile(ctx context.Context, owner, repo, path, ref string) (string, error)
	WriteFile(ctx context.Context, owner, repo, path, content, message, branch string) (*ghx.Commit, error)
	DeleteFile(ctx context.Context, owner, repo, path, message, branch string) (*ghx.Commit, error)
	CreateBranch(ctx context.Context, owner, repo, branch string) (string, error)
}

// BranchSetupError means the feature branch could not be created for a
// reason other than already existing.
type BranchSetupError struct {
	Branch string
	Err    error
}

func (e *BranchSetupError) Error() string {
	return fmt.Sprintf("branch setup failed for %q: %v", e.Branch, e.Err)
}

func (e *BranchSetupError) Unwrap() error { return e.Err }

// Executor runs plans against a repository.
type Executor struct {
	llm      llm.Client
	repo     RepoService
	fallback RepoService // nil when no installation credential is configured
	now      func() time.Time
}

// New creates an Executor. fallback, when non-nil, is an alternate
// credential's repository service retried once per operation after a
// permissions failure.
func New(client llm.Client, repo, fallback RepoService) *Executor {
	return &Executor{llm: client, repo: repo, fallback: fallback, now: time.Now}
}

// Execute applies the plan to owner/repo on a feature branch and returns the
// audit log. branchName, when empty, is derived from the plan goal. Per-file
// failures are recorded in the log, never returned as errors.
func (e *Executor) Execute(ctx context.Context, plan *model.Plan, owner, repo, branchName string) (*model.ExecutionLog, error) {
	if branchName == "" {
		branchName = BranchName(plan.Goal, e.now())
	}

	if err := e.setupBranch(ctx, owner, repo, branchName); err != nil {
		return nil, err
	}

	execLog := &model.ExecutionLog{
		Branch:    branchName,
		BranchURL: fmt.Sprintf("https://github.com/%s/%s/tree/%s", owner, repo, branchName),
	}

	for _, step := range plan.Steps {
		result := model.StepResult{StepNumber: step.StepNumber, Title: step.Title}
		for _, fa := range step.Files {
			result.Files = append(result.Files, e.applyFile(ctx, plan, step, fa, owner, repo, branchName))
		}
		execLog.Steps = append(execLog.Steps, result)
	}

	if n := execLog.FailureCount(); n > 0 {
		execLog.Status = model.ExecutionPartial
		execLog.Message = fmt.Sprintf("Execution finished with %d failed file operation(s); review the log and re-run or fix manually.", n)
	} else {
		execLog.Status = model.ExecutionCompleted
		execLog.Message = fmt.Sprintf("All %d step(s) applied to branch %s.", len(plan.Steps), branchName)
	}

	log.WithFields(log.Fields{
		"repo":     owner + "/" + repo,
		"branch":   branchName,
		"status":   execLog.Status,
		"failures": execLog.FailureCount(),
	}).Info("execution finished")
	return execLog, nil
}

// setupBranch creates the feature branch, reusing it when it already exists
// so re-running an execution is idempotent.
func (e *Executor) setupBranch(ctx context.Context, owner, repo, branch string) error {
	_, err := e.repo.CreateBranch(ctx, owner, repo, branch)
	if err == nil {
		return nil
	}
	if ghx.IsBranchExists(err) {
		log.WithFields(log.Fields{"branch": branch}).Warn("branch already exists, reusing it")
		return nil
	}
	return &BranchSetupError{Branch: branch, Err: err}
}

// applyFile performs one file action and returns its audit record. All
// errors are captured here; nothing propagates to the step loop.
func (e *Executor) applyFile(ctx context.Context, plan *model.Plan, step model.PlanStep, fa model.FileAction, owner, repo, branch string) model.FileResult {
	result := model.FileResult{Path: fa.Path, Action: fa.Action}

	var commit *ghx.Commit
	var err error
	switch fa.Action {
	case model.ActionCreate:
		commit, err = e.createFile(ctx, plan, step, fa.Path, owner, repo, branch)
	case model.ActionModify:
		commit, err = e.modifyFile(ctx, plan, step, fa.Path, owner, repo, branch)
	case model.ActionDelete:
		commit, err = e.deleteFile(ctx, step, fa.Path, owner, repo, branch)
	case model.ActionRead:
		// Advisory: consulted during planning, nothing to apply.
		result.Outcome = model.OutcomeSuccess
		return result
	default:
		err = fmt.Errorf("unsupported action %q", fa.Action)
	}

	if err != nil {
		log.WithFields(log.Fields{"path": fa.Path, "action": fa.Action}).WithError(err).Warn("file operation failed")
		result.Outcome = model.OutcomeFailure
		result.Error = err.Error()
		return result
	}

	result.Outcome = model.OutcomeSuccess
	if commit != nil {
		result.CommitSHA = commit.SHA
	}
	return result
}

func (e *Executor) createFile(ctx context.Context, plan *model.Plan, step model.PlanStep, path, owner, repo, branch string) (*ghx.Commit, error) {
	content, err := e.generateContent(ctx, createContentPrompt(path, plan.Goal, step.Description))
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("GitPilot: Create %s - %s", path, step.Title)
	return e.withFallback(func(svc RepoService) (*ghx.Commit, error) {
		return svc.WriteFile(ctx, owner, repo, path, content, message, branch)
	})
}

func (e *Executor) modifyFile(ctx context.Context, plan *model.Plan, step model.PlanStep, path, owner, repo, branch string) (*ghx.Commit, error) {
	// Read from the feature branch tip so earlier steps' commits are
	// observed, not the pre-execution state.
	existing, err := e.repo.ReadFile(ctx, owner, repo, path, branch)
	if err != nil {
		return nil, fmt.Errorf("reading current content: %w", err)
	}

	content, err := e.generateContent(ctx, modifyContentPrompt(path, plan.Goal, step.Description, existing))
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("GitPilot: Modify %s - %s", path, step.Title)
	return e.withFallback(func(svc RepoService) (*ghx.Commit, error) {
		return svc.WriteFile(ctx, owner, repo, path, content, message, branch)
	})
}

func (e *Executor) deleteFile(ctx context.Context, step model.PlanStep, path, owner, repo, branch string) (*ghx.Commit, error) {
	message := fmt.Sprintf("GitPilot: Delete %s - %s", path, step.Title)
	return e.withFallback(func(svc RepoService) (*ghx.Commit, error) {
		return svc.DeleteFile(ctx, owner, repo, path, message, branch)
	})
}

func (e *Executor) generateContent(ctx context.Context, prompt string) (string, error) {
	raw, err := e.llm.Complete(ctx, contentSystemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("content generation: %w", err)
	}
	return StripFences(raw), nil
}

// withFallback runs op against the primary service, retrying once with the
// fallback credential on a permissions failure. Repositories can authorize
// the two credentials differently, so the retry is per-operation.
func (e *Executor) withFallback(op func(RepoService) (*ghx.Commit, error)) (*ghx.Commit, error) {
	commit, err := op(e.repo)
	if err == nil || e.fallback == nil || !ghx.IsPermissionDenied(err) {
		return commit, err
	}
	log.WithError(err).Info("retrying write with installation credential")
	return op(e.fallback)
}
