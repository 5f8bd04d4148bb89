package domain

// Recording is one analyzed call/video and its metadata. Rows are created by
// the analysis ingest path and never deleted; only the attached analysis is
// mutated afterwards.
type Recording struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Link            string         `json:"link,omitempty"`
	Thumbnail       string         `json:"thumbnail,omitempty"`
	DurationSeconds int            `json:"duration_seconds"`
	Date            string         `json:"date,omitempty"`
	Project         string         `json:"project,omitempty"`
	RecordingType   string         `json:"recording_type,omitempty"`
	Transcript      string         `json:"transcript,omitempty"`
	Model           string         `json:"model,omitempty"`
	Analysis        AnalysisResult `json:"llm_answer"`
	CreatedAt       string         `json:"created_at" format:"date-time"`
	UpdatedAt       string         `json:"updated_at" format:"date-time"`
}

// AnalysisResult is the AI-derived structure attached to a recording. Writes
// replace the whole value; there is no nested-path update.
type AnalysisResult struct {
	Project    string      `json:"project,omitempty"`
	Developers []Developer `json:"developers"`
}

// Developer is one person credited with tasks in a recording. Identity is the
// display name; the same name across recordings is the same logical person.
type Developer struct {
	Name  string `json:"dev"`
	Tasks []Task `json:"tasks"`
}

// Task is one extracted action item. A task is identified by its position in
// the developer's list: task lists are append-only and index-stable, so the
// system only ever mutates text and the completed flag in place.
type Task struct {
	Text      string `json:"task"`
	Timestamp string `json:"timestamp,omitempty"`
	Completed bool   `json:"completed"`
}

// Summary is one imported meeting summary. Content is an HTML fragment.
type Summary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Filename  string `json:"filename,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Event is one audit log entry for a store mutation.
type Event struct {
	ID          int64  `json:"id"`
	TS          string `json:"ts" format:"date-time"`
	Type        string `json:"type"`
	RecordingID string `json:"recording_id,omitempty"`
	Payload     string `json:"payload_json"`
}

// CompletionUpdate flips one task's completed flag.
type CompletionUpdate struct {
	Dev       string `json:"dev"`
	TaskIndex int    `json:"task_index"`
	Completed bool   `json:"completed"`
}

// TextUpdate rewrites one task's text.
type TextUpdate struct {
	Dev       string `json:"dev"`
	TaskIndex int    `json:"task_index"`
	Text      string `json:"text"`
}

// ApplyUpdates returns a deep copy of a with the named positions overwritten.
// Unknown developer names and out-of-range indexes are skipped.
func ApplyUpdates(a AnalysisResult, completions []CompletionUpdate, texts []TextUpdate) AnalysisResult {
	out := AnalysisResult{Project: a.Project, Developers: make([]Developer, len(a.Developers))}
	for i, dev := range a.Developers {
		tasks := make([]Task, len(dev.Tasks))
		copy(tasks, dev.Tasks)
		out.Developers[i] = Developer{Name: dev.Name, Tasks: tasks}
	}
	devIndex := func(name string) int {
		for i := range out.Developers {
			if out.Developers[i].Name == name {
				return i
			}
		}
		return -1
	}
	for _, u := range completions {
		di := devIndex(u.Dev)
		if di < 0 || u.TaskIndex < 0 || u.TaskIndex >= len(out.Developers[di].Tasks) {
			continue
		}
		out.Developers[di].Tasks[u.TaskIndex].Completed = u.Completed
	}
	for _, u := range texts {
		di := devIndex(u.Dev)
		if di < 0 || u.TaskIndex < 0 || u.TaskIndex >= len(out.Developers[di].Tasks) {
			continue
		}
		out.Developers[di].Tasks[u.TaskIndex].Text = u.Text
	}
	return out
}
