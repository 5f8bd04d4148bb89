package server

import "github.com/BrianElionDev/Loomify/internal/domain"

// CreateRecordingRequest is the ingest payload. The id is optional; the store
// assigns one when absent.
type CreateRecordingRequest struct {
	ID              string                `json:"id,omitempty"`
	Title           string                `json:"title"`
	Link            string                `json:"link,omitempty"`
	Thumbnail       string                `json:"thumbnail,omitempty"`
	DurationSeconds int                   `json:"duration_seconds,omitempty"`
	Date            string                `json:"date,omitempty"`
	Project         string                `json:"project,omitempty"`
	RecordingType   string                `json:"recording_type,omitempty"`
	Transcript      string                `json:"transcript,omitempty"`
	Model           string                `json:"model,omitempty"`
	Analysis        domain.AnalysisResult `json:"llm_answer"`
}

func (r CreateRecordingRequest) toDomain() domain.Recording {
	return domain.Recording{
		ID:              r.ID,
		Title:           r.Title,
		Link:            r.Link,
		Thumbnail:       r.Thumbnail,
		DurationSeconds: r.DurationSeconds,
		Date:            r.Date,
		Project:         r.Project,
		RecordingType:   r.RecordingType,
		Transcript:      r.Transcript,
		Model:           r.Model,
		Analysis:        r.Analysis,
	}
}
