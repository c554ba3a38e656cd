package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	ghx "github.com/jxucoder/gitpilot/internal/github"
	"github.com/jxucoder/gitpilot/internal/model"
)

// scriptedLLM returns canned responses in order and records prompts.
type scriptedLLM struct {
	responses []string
	prompts   []string
}

func (s *scriptedLLM) Complete(ctx context.Context, system, user string) (string, error) {
	s.prompts = append(s.prompts, user)
	if len(s.responses) == 0 {
		return "generated content", nil
	}
	r := s.responses[0]
	s.responses = s.responses[1:]
	return r, nil
}

// fakeRepo is an in-memory feature branch.
type fakeRepo struct {
	files           map[string]string
	messages        []string
	branches        []string
	createBranchErr error
	writeErr        map[string]error
	deleteErr       map[string]error
	writes          int
}

func newFakeRepo(files map[string]string) *fakeRepo {
	if files == nil {
		files = map[string]string{}
	}
	return &fakeRepo{files: files, writeErr: map[string]error{}, deleteErr: map[string]error{}}
}

func (f *fakeRepo) ReadFile(ctx context.Context, owner, repo, path, ref string) (string, error) {
	content, ok := f.files[path]
	if !ok {
		return "", &ghx.NotFoundError{Resource: path}
	}
	return content, nil
}

func (f *fakeRepo) WriteFile(ctx context.Context, owner, repo, path, content, message, branch string) (*ghx.Commit, error) {
	f.writes++
	if err := f.writeErr[path]; err != nil {
		return nil, err
	}
	f.files[path] = content
	f.messages = append(f.messages, message)
	return &ghx.Commit{SHA: fmt.Sprintf("sha-%d", f.writes)}, nil
}

func (f *fakeRepo) DeleteFile(ctx context.Context, owner, repo, path, message, branch string) (*ghx.Commit, error) {
	if err := f.deleteErr[path]; err != nil {
		return nil, err
	}
	if _, ok := f.files[path]; !ok {
		return nil, &ghx.NotFoundError{Resource: path}
	}
	delete(f.files, path)
	f.messages = append(f.messages, message)
	return &ghx.Commit{SHA: "del-sha"}, nil
}

func (f *fakeRepo) CreateBranch(ctx context.Context, owner, repo, branch string) (string, error) {
	if f.createBranchErr != nil {
		return "", f.createBranchErr
	}
	f.branches = append(f.branches, branch)
	return "refs/heads/" + branch, nil
}

func onePlan(steps ...model.PlanStep) *model.Plan {
	return &model.Plan{Goal: "test goal", Summary: "test", Steps: steps}
}

func TestBranchNameDeterminism(t *testing.T) {
	now := time.Unix(1700000123456, 0)
	a := BranchName("Add CI pipeline!", now)
	b := BranchName("Add CI pipeline!", now)
	if a != b {
		t.Fatalf("same goal, same time must derive the same name: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "gitpilot-add-ci-pipeline-") {
		t.Fatalf("unexpected name: %q", a)
	}
}

func TestBranchNamePunctuationOnlyGoal(t *testing.T) {
	name := BranchName("!!! ??? ...", time.Unix(1700000000, 0))
	if name == "" || name == "gitpilot-" {
		t.Fatalf("sanitized name must not be empty: %q", name)
	}
	if !strings.HasPrefix(name, "gitpilot-") {
		t.Fatalf("missing prefix: %q", name)
	}
}

func TestBranchNameTruncation(t *testing.T) {
	goal := strings.Repeat("refactor everything ", 10)
	name := BranchName(goal, time.Unix(1700000000, 0))
	// prefix + slug (<=40) + dash + 6 digit suffix
	if len(name) > len("gitpilot-")+40+1+6 {
		t.Fatalf("name too long (%d): %q", len(name), name)
	}
	if strings.Contains(name, "--") {
		t.Fatalf("collapsed runs must not leave double dashes: %q", name)
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"```python\nprint('hi')\n```": "print('hi')",
		"```\nplain\n```":             "plain",
		"no fences here":              "no fences here",
		"```just one line":            "```just one line",
	}
	for in, want := range cases {
		if got := StripFences(in); got != want {
			t.Fatalf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExecuteCreateStripsFencesBeforeCommit(t *testing.T) {
	llm := &scriptedLLM{responses: []string{"```python\nprint('demo')\n```"}}
	repo := newFakeRepo(nil)
	ex := New(llm, repo, nil)

	plan := onePlan(model.PlanStep{
		StepNumber: 1, Title: "Add demo", Description: "create demo.py",
		Files: []model.FileAction{{Path: "demo.py", Action: model.ActionCreate}},
	})

	execLog, err := ex.Execute(context.Background(), plan, "acme", "demo", "feature")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if execLog.Status != model.ExecutionCompleted {
		t.Fatalf("unexpected status: %s", execLog.Status)
	}
	if got := repo.files["demo.py"]; got != "print('demo')" {
		t.Fatalf("fences not stripped from committed blob: %q", got)
	}
	if repo.messages[0] != "GitPilot: Create demo.py - Add demo" {
		t.Fatalf("unexpected commit message: %q", repo.messages[0])
	}
}

func TestExecuteModifyReadsBranchTip(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		"v1 content from step 1",
		"v2 content from step 2",
	}}
	repo := newFakeRepo(nil)
	ex := New(llm, repo, nil)

	plan := onePlan(
		model.PlanStep{
			StepNumber: 1, Title: "Create", Description: "create a.py",
			Files: []model.FileAction{{Path: "a.py", Action: model.ActionCreate}},
		},
		model.PlanStep{
			StepNumber: 2, Title: "Modify", Description: "update a.py",
			Files: []model.FileAction{{Path: "a.py", Action: model.ActionModify}},
		},
	)

	execLog, err := ex.Execute(context.Background(), plan, "acme", "demo", "feature")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if execLog.FailureCount() != 0 {
		t.Fatalf("unexpected failures: %+v", execLog.Steps)
	}
	// The modify prompt must embed step 1's committed content, not the
	// pre-execution state.
	if !strings.Contains(llm.prompts[1], "v1 content from step 1") {
		t.Fatalf("modify prompt missing branch-tip content: %q", llm.prompts[1])
	}
	if repo.files["a.py"] != "v2 content from step 2" {
		t.Fatalf("final content wrong: %q", repo.files["a.py"])
	}
}

func TestExecutePartialFailureContinues(t *testing.T) {
	llm := &scriptedLLM{}
	repo := newFakeRepo(map[string]string{"a.py": "old a", "b.py": "old b", "c.py": "old c"})
	repo.writeErr["a.py"] = &ghx.WriteConflictError{Path: "a.py"}
	ex := New(llm, repo, nil)

	plan := onePlan(
		model.PlanStep{
			StepNumber: 1, Title: "Update both", Description: "update",
			Files: []model.FileAction{
				{Path: "a.py", Action: model.ActionModify},
				{Path: "b.py", Action: model.ActionModify},
			},
		},
		model.PlanStep{
			StepNumber: 2, Title: "Drop c", Description: "remove c.py",
			Files: []model.FileAction{{Path: "c.py", Action: model.ActionDelete}},
		},
	)

	execLog, err := ex.Execute(context.Background(), plan, "acme", "demo", "feature")
	if err != nil {
		t.Fatalf("per-file failure must not abort: %v", err)
	}
	if execLog.Status != model.ExecutionPartial {
		t.Fatalf("expected partial status, got %s", execLog.Status)
	}
	if execLog.FailureCount() != 1 {
		t.Fatalf("expected 1 failure, got %d", execLog.FailureCount())
	}

	summary := execLog.Steps[0].Summary()
	if !strings.Contains(summary, "✗ Failed to modify a.py") {
		t.Fatalf("missing failure line: %s", summary)
	}
	if !strings.Contains(summary, "✓ Modified b.py") {
		t.Fatalf("missing success line: %s", summary)
	}

	// Step 2 still ran.
	if _, exists := repo.files["c.py"]; exists {
		t.Fatal("subsequent step did not execute")
	}
}

func TestExecuteBranchAlreadyExistsIsReused(t *testing.T) {
	repo := newFakeRepo(nil)
	repo.createBranchErr = &ghx.BranchExistsError{Branch: "feature"}
	ex := New(&scriptedLLM{}, repo, nil)

	execLog, err := ex.Execute(context.Background(), onePlan(), "acme", "demo", "feature")
	if err != nil {
		t.Fatalf("pre-existing branch must be reused: %v", err)
	}
	if execLog.Branch != "feature" {
		t.Fatalf("unexpected branch: %q", execLog.Branch)
	}
}

func TestExecuteBranchSetupFailureAborts(t *testing.T) {
	repo := newFakeRepo(nil)
	repo.createBranchErr = &ghx.NotFoundError{Resource: "acme/demo"}
	ex := New(&scriptedLLM{}, repo, nil)

	_, err := ex.Execute(context.Background(), onePlan(), "acme", "demo", "")
	var bsErr *BranchSetupError
	if !errors.As(err, &bsErr) {
		t.Fatalf("expected BranchSetupError, got %v", err)
	}
}

func TestExecuteDerivesBranchNameFromGoal(t *testing.T) {
	repo := newFakeRepo(nil)
	ex := New(&scriptedLLM{}, repo, nil)
	ex.now = func() time.Time { return time.Unix(1700000000, 0) }

	execLog, err := ex.Execute(context.Background(), onePlan(), "acme", "demo", "")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasPrefix(execLog.Branch, "gitpilot-test-goal-") {
		t.Fatalf("unexpected derived branch: %q", execLog.Branch)
	}
	if want := "https://github.com/acme/demo/tree/" + execLog.Branch; execLog.BranchURL != want {
		t.Fatalf("branch URL %q, want %q", execLog.BranchURL, want)
	}
}

func TestExecutePermissionFallbackPerOperation(t *testing.T) {
	primary := newFakeRepo(nil)
	primary.writeErr["a.py"] = &ghx.PermissionError{Resource: "a.py"}
	fallback := newFakeRepo(nil)
	ex := New(&scriptedLLM{}, primary, fallback)

	plan := onePlan(model.PlanStep{
		StepNumber: 1, Title: "Create", Description: "create files",
		Files: []model.FileAction{
			{Path: "a.py", Action: model.ActionCreate},
			{Path: "b.py", Action: model.ActionCreate},
		},
	})

	execLog, err := ex.Execute(context.Background(), plan, "acme", "demo", "feature")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if execLog.FailureCount() != 0 {
		t.Fatalf("fallback should have rescued the write: %+v", execLog.Steps)
	}
	if _, ok := fallback.files["a.py"]; !ok {
		t.Fatal("denied write did not reach the fallback credential")
	}
	// The second write succeeded on the primary; the fallback only sees
	// the operation the primary denied.
	if _, ok := primary.files["b.py"]; !ok {
		t.Fatal("permitted write should stay on the primary credential")
	}
	if _, ok := fallback.files["b.py"]; ok {
		t.Fatal("fallback must not be used for permitted writes")
	}
}

func TestExecuteReadActionIsInformational(t *testing.T) {
	repo := newFakeRepo(map[string]string{"README.md": "docs"})
	ex := New(&scriptedLLM{}, repo, nil)

	plan := onePlan(model.PlanStep{
		StepNumber: 1, Title: "Consult docs", Description: "read",
		Files: []model.FileAction{{Path: "README.md", Action: model.ActionRead}},
	})

	execLog, err := ex.Execute(context.Background(), plan, "acme", "demo", "feature")
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if execLog.Status != model.ExecutionCompleted {
		t.Fatalf("unexpected status: %s", execLog.Status)
	}
	if repo.writes != 0 {
		t.Fatalf("READ must not mutate, saw %d writes", repo.writes)
	}
}
