package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestParsePlanRoundTrip(t *testing.T) {
	risks := "touches CI config"
	original := &Plan{
		Goal:    "add a tutorial",
		Summary: "Create docs/tutorial.md and link it from the README",
		Steps: []PlanStep{
			{
				StepNumber:  1,
				Title:       "Create tutorial",
				Description: "Write a getting-started tutorial",
				Files: []FileAction{
					{Path: "docs/tutorial.md", Action: ActionCreate},
				},
				Risks: nil,
			},
			{
				StepNumber:  2,
				Title:       "Link tutorial",
				Description: "Add a docs section to the README",
				Files: []FileAction{
					{Path: "README.md", Action: ActionModify},
				},
				Risks: &risks,
			},
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := ParsePlan(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(original, parsed) {
		t.Fatalf("round trip mismatch:\n  want %+v\n  got  %+v", original, parsed)
	}
}

func TestParsePlanRejectsUnknownAction(t *testing.T) {
	raw := `{"goal":"g","summary":"s","steps":[
		{"step_number":1,"title":"t","description":"d",
		 "files":[{"path":"a.py","action":"RENAME"}],"risks":null}]}`
	if _, err := ParsePlan([]byte(raw)); err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParsePlanNullRisks(t *testing.T) {
	raw := `{"goal":"g","summary":"s","steps":[
		{"step_number":1,"title":"t","description":"d","files":[],"risks":null}]}`
	p, err := ParsePlan([]byte(raw))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Steps[0].Risks != nil {
		t.Fatalf("expected nil risks, got %v", *p.Steps[0].Risks)
	}
}

func TestPlanActionsOrder(t *testing.T) {
	p := &Plan{Steps: []PlanStep{
		{StepNumber: 1, Files: []FileAction{{Path: "a", Action: ActionCreate}, {Path: "b", Action: ActionCreate}}},
		{StepNumber: 2, Files: []FileAction{{Path: "a", Action: ActionModify}}},
	}}
	actions := p.Actions()
	if len(actions) != 3 || actions[0].Path != "a" || actions[2].Action != ActionModify {
		t.Fatalf("unexpected actions: %+v", actions)
	}
}

func TestStepResultSummary(t *testing.T) {
	step := StepResult{
		StepNumber: 2,
		Title:      "Clean up",
		Files: []FileResult{
			{Path: "old.py", Action: ActionDelete, Outcome: OutcomeSuccess},
			{Path: "notes.txt", Action: ActionDelete, Outcome: OutcomeFailure, Error: "sha mismatch"},
		},
	}
	got := step.Summary()
	if !strings.Contains(got, "Step 2: Clean up") {
		t.Fatalf("missing header: %q", got)
	}
	if !strings.Contains(got, "✓ Deleted old.py") {
		t.Fatalf("missing success line: %q", got)
	}
	if !strings.Contains(got, "✗ Failed to delete notes.txt: sha mismatch") {
		t.Fatalf("missing failure line: %q", got)
	}
}

func TestExecutionLogFailureCount(t *testing.T) {
	log := &ExecutionLog{Steps: []StepResult{
		{Files: []FileResult{{Outcome: OutcomeSuccess}, {Outcome: OutcomeFailure}}},
		{Files: []FileResult{{Outcome: OutcomeFailure}}},
	}}
	if got := log.FailureCount(); got != 2 {
		t.Fatalf("failure count = %d, want 2", got)
	}
}

func TestSnapshotDerivedFacts(t *testing.T) {
	snap := &RepositorySnapshot{
		Owner: "acme",
		Repo:  "demo",
		Ref:   "HEAD",
		Paths: []string{"README.md", "src/main.py", "src/utils.py", "docs/tutorial.md", "Makefile"},
	}

	if !snap.Contains("src/main.py") || snap.Contains("src") {
		t.Fatal("Contains should match whole blob paths only")
	}

	hist := snap.ExtensionHistogram()
	if hist[".py"] != 2 || hist[".md"] != 2 {
		t.Fatalf("unexpected histogram: %v", hist)
	}

	dirs := snap.TopLevelDirs()
	if !reflect.DeepEqual(dirs, []string{"docs", "src"}) {
		t.Fatalf("unexpected dirs: %v", dirs)
	}

	keys := snap.KeyFiles()
	if !reflect.DeepEqual(keys, []string{"Makefile", "README.md"}) {
		t.Fatalf("unexpected key files: %v", keys)
	}
}
