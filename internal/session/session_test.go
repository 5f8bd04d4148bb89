package session

import (
	"context"
	"errors"
	"testing"

	"github.com/BrianElionDev/Loomify/internal/domain"
)

type fakeUpdater struct {
	calls       int
	completions []domain.CompletionUpdate
	texts       []domain.TextUpdate
	err         error
	result      domain.Recording
}

func (u *fakeUpdater) UpdateTasks(ctx context.Context, id string, completions []domain.CompletionUpdate, texts []domain.TextUpdate) (domain.Recording, error) {
	u.calls++
	u.completions = completions
	u.texts = texts
	if u.err != nil {
		return domain.Recording{}, u.err
	}
	rec := u.result
	rec.ID = id
	rec.Analysis = domain.ApplyUpdates(rec.Analysis, completions, texts)
	return rec, nil
}

func seedRecording() domain.Recording {
	return domain.Recording{
		ID: "rec-1",
		Analysis: domain.AnalysisResult{Developers: []domain.Developer{
			{Name: "Alice", Tasks: []domain.Task{
				{Text: "Fix login", Completed: false},
				{Text: "Write docs", Completed: true},
			}},
			{Name: "Bob", Tasks: []domain.Task{
				{Text: "Review PR", Completed: false},
			}},
		}},
	}
}

func TestSaveWithoutEditsNeverCallsUpdater(t *testing.T) {
	s := New(seedRecording())
	u := &fakeUpdater{}
	_, saved, err := s.Save(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if saved {
		t.Fatal("expected saved=false for an empty dirty set")
	}
	if u.calls != 0 {
		t.Fatalf("updater called %d times, expected 0", u.calls)
	}
}

func TestChangesAreMinimalDiffs(t *testing.T) {
	s := New(seedRecording())
	s.Toggle("Alice", 0)
	s.SetText("Bob", 0, "Review and merge PR")
	// setting a value equal to its seed contributes no change
	s.SetCompleted("Alice", 1, true)

	completions, texts := s.Changes()
	if len(completions) != 1 || len(texts) != 1 {
		t.Fatalf("expected 1 completion + 1 text change, got %d/%d", len(completions), len(texts))
	}
	c := completions[0]
	if c.Dev != "Alice" || c.TaskIndex != 0 || !c.Completed {
		t.Fatalf("unexpected completion diff: %+v", c)
	}
	x := texts[0]
	if x.Dev != "Bob" || x.TaskIndex != 0 || x.Text != "Review and merge PR" {
		t.Fatalf("unexpected text diff: %+v", x)
	}
}

func TestEditingBackToSeedEmptiesDirtySet(t *testing.T) {
	s := New(seedRecording())
	s.Toggle("Alice", 0)
	s.SetText("Alice", 1, "Write better docs")
	if !s.Dirty() {
		t.Fatal("expected dirty after edits")
	}
	s.Toggle("Alice", 0)
	s.SetText("Alice", 1, "Write docs")
	if s.Dirty() {
		t.Fatal("expected clean after editing values back to their seed")
	}
}

func TestRevertTextLeavesOtherEditsPending(t *testing.T) {
	s := New(seedRecording())
	s.SetText("Alice", 0, "Fix login for SSO")
	s.Toggle("Bob", 0)
	s.RevertText("Alice", 0)

	if text, _ := s.Text("Alice", 0); text != "Fix login" {
		t.Fatalf("expected reverted text, got %q", text)
	}
	completions, texts := s.Changes()
	if len(texts) != 0 {
		t.Fatalf("expected no text changes after revert, got %+v", texts)
	}
	if len(completions) != 1 || completions[0].Dev != "Bob" {
		t.Fatalf("expected Bob's toggle to survive the revert, got %+v", completions)
	}
}

func TestUnknownPositionsIgnored(t *testing.T) {
	s := New(seedRecording())
	s.Toggle("Carol", 0)
	s.SetText("Alice", 9, "out of range")
	if s.Dirty() {
		t.Fatal("edits to unknown positions must not dirty the session")
	}
}

func TestSaveReseedsFromResult(t *testing.T) {
	rec := seedRecording()
	s := New(rec)
	u := &fakeUpdater{result: rec}
	s.Toggle("Alice", 0)

	saved, ok, err := s.Save(context.Background(), u)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected saved=true")
	}
	if !saved.Analysis.Developers[0].Tasks[0].Completed {
		t.Fatal("expected save result to carry the applied edit")
	}
	if s.Dirty() {
		t.Fatal("expected a clean session after a successful save")
	}
	// a second save is a no-op
	_, ok, err = s.Save(context.Background(), u)
	if err != nil || ok {
		t.Fatalf("expected idempotent follow-up save, got ok=%v err=%v", ok, err)
	}
	if u.calls != 1 {
		t.Fatalf("updater called %d times, expected 1", u.calls)
	}
}

func TestSaveFailureKeepsPendingEdits(t *testing.T) {
	s := New(seedRecording())
	u := &fakeUpdater{err: errors.New("write conflict")}
	s.Toggle("Alice", 0)

	_, ok, err := s.Save(context.Background(), u)
	if err == nil || ok {
		t.Fatalf("expected failed save, got ok=%v err=%v", ok, err)
	}
	if !s.Dirty() {
		t.Fatal("expected pending edits to survive a failed save")
	}
	completions, _ := s.Changes()
	if len(completions) != 1 || completions[0].Dev != "Alice" {
		t.Fatalf("unexpected surviving diff: %+v", completions)
	}
}
