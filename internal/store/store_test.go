package store

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func TestRunCRUD(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	run := &Run{
		ID:        "run-1",
		Kind:      KindExecute,
		Repo:      "acme/demo",
		Goal:      "delete all files except README.md",
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	got, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Repo != run.Repo || got.Kind != KindExecute || got.Status != StatusRunning {
		t.Fatalf("unexpected run: %+v", got)
	}

	got.Status = StatusPartial
	got.Branch = "gitpilot-delete-all-123456"
	got.Steps = 2
	got.Failures = 1
	if err := s.UpdateRun(got); err != nil {
		t.Fatalf("update run: %v", err)
	}

	got2, err := s.GetRun(run.ID)
	if err != nil {
		t.Fatalf("get updated run: %v", err)
	}
	if got2.Status != StatusPartial || got2.Failures != 1 || got2.Branch != got.Branch {
		t.Fatalf("update not persisted: %+v", got2)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Now().UTC()
	for i, id := range []string{"old", "mid", "new"} {
		run := &Run{
			ID: id, Kind: KindPlan, Repo: "acme/demo", Goal: "g",
			Status:    StatusComplete,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateRun(run); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "new" || runs[2].ID != "old" {
		t.Fatalf("unexpected order: %+v", runs)
	}
}

func TestRunEvents(t *testing.T) {
	s := newTestStore(t)

	now := time.Now().UTC()
	run := &Run{ID: "run-ev", Kind: KindExecute, Repo: "acme/demo", Goal: "g",
		Status: StatusRunning, CreatedAt: now, UpdatedAt: now}
	if err := s.CreateRun(run); err != nil {
		t.Fatalf("create run: %v", err)
	}

	for _, data := range []string{"branch created", "step 1 done"} {
		ev := &Event{RunID: run.ID, Type: "step", Data: data, CreatedAt: time.Now().UTC()}
		if err := s.AddEvent(ev); err != nil {
			t.Fatalf("add event: %v", err)
		}
		if ev.ID == 0 {
			t.Fatal("event ID not assigned")
		}
	}

	events, err := s.GetEvents(run.ID)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	if len(events) != 2 || events[0].Data != "branch created" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestGetRunMissing(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetRun("nope"); err == nil {
		t.Fatal("expected error for missing run")
	}
}
