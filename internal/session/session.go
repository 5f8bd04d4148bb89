package session

import (
	"context"

	"github.com/BrianElionDev/Loomify/internal/domain"
)

// TaskUpdater is the save path a session hands its diffs to. *cache.Store
// satisfies it.
type TaskUpdater interface {
	UpdateTasks(ctx context.Context, id string, completions []domain.CompletionUpdate, texts []domain.TextUpdate) (domain.Recording, error)
}

type taskKey struct {
	Dev   string
	Index int
}

// Session tracks pending completion and text edits for one open recording.
// It holds a seed snapshot and two mutable maps; the dirty set is computed by
// diffing against the seed on demand, never tracked as a flag, so editing a
// value back to its original empties it again.
type Session struct {
	RecordingID string

	order         []taskKey
	seedCompleted map[taskKey]bool
	seedText      map[taskKey]string
	completed     map[taskKey]bool
	text          map[taskKey]string
}

// New seeds a session from the recording's current analysis.
func New(rec domain.Recording) *Session {
	s := &Session{RecordingID: rec.ID}
	s.seed(rec.Analysis)
	return s
}

func (s *Session) seed(a domain.AnalysisResult) {
	s.order = s.order[:0]
	s.seedCompleted = map[taskKey]bool{}
	s.seedText = map[taskKey]string{}
	s.completed = map[taskKey]bool{}
	s.text = map[taskKey]string{}
	for _, dev := range a.Developers {
		for i, t := range dev.Tasks {
			k := taskKey{Dev: dev.Name, Index: i}
			s.order = append(s.order, k)
			s.seedCompleted[k] = t.Completed
			s.seedText[k] = t.Text
			s.completed[k] = t.Completed
			s.text[k] = t.Text
		}
	}
}

// SetCompleted records a pending completion value for one task.
func (s *Session) SetCompleted(dev string, index int, completed bool) {
	k := taskKey{Dev: dev, Index: index}
	if _, ok := s.seedCompleted[k]; !ok {
		return
	}
	s.completed[k] = completed
}

// Toggle flips one task's pending completion value.
func (s *Session) Toggle(dev string, index int) {
	k := taskKey{Dev: dev, Index: index}
	if _, ok := s.seedCompleted[k]; !ok {
		return
	}
	s.completed[k] = !s.completed[k]
}

// SetText records a pending text edit for one task.
func (s *Session) SetText(dev string, index int, text string) {
	k := taskKey{Dev: dev, Index: index}
	if _, ok := s.seedText[k]; !ok {
		return
	}
	s.text[k] = text
}

// RevertText cancels one task's text edit, leaving other pending edits alone.
func (s *Session) RevertText(dev string, index int) {
	k := taskKey{Dev: dev, Index: index}
	if seed, ok := s.seedText[k]; ok {
		s.text[k] = seed
	}
}

// Completed returns the pending completion value for one task.
func (s *Session) Completed(dev string, index int) (bool, bool) {
	v, ok := s.completed[taskKey{Dev: dev, Index: index}]
	return v, ok
}

// Text returns the pending text for one task.
func (s *Session) Text(dev string, index int) (string, bool) {
	v, ok := s.text[taskKey{Dev: dev, Index: index}]
	return v, ok
}

// Changes returns the minimal sets of changed triples, in seed order.
func (s *Session) Changes() ([]domain.CompletionUpdate, []domain.TextUpdate) {
	var completions []domain.CompletionUpdate
	var texts []domain.TextUpdate
	for _, k := range s.order {
		if s.completed[k] != s.seedCompleted[k] {
			completions = append(completions, domain.CompletionUpdate{Dev: k.Dev, TaskIndex: k.Index, Completed: s.completed[k]})
		}
		if s.text[k] != s.seedText[k] {
			texts = append(texts, domain.TextUpdate{Dev: k.Dev, TaskIndex: k.Index, Text: s.text[k]})
		}
	}
	return completions, texts
}

// Dirty reports whether any pending value diverges from the seed.
func (s *Session) Dirty() bool {
	completions, texts := s.Changes()
	return len(completions) > 0 || len(texts) > 0
}

// Save hands the diffs to the updater and re-seeds from the result. With an
// empty dirty set it never calls the updater and reports saved=false. On
// failure the session keeps its pending edits so the caller can retry.
func (s *Session) Save(ctx context.Context, updater TaskUpdater) (rec domain.Recording, saved bool, err error) {
	completions, texts := s.Changes()
	if len(completions) == 0 && len(texts) == 0 {
		return domain.Recording{}, false, nil
	}
	rec, err = updater.UpdateTasks(ctx, s.RecordingID, completions, texts)
	if err != nil {
		return domain.Recording{}, false, err
	}
	s.seed(rec.Analysis)
	return rec, true, nil
}
