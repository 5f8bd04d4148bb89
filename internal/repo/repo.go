package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrianElionDev/Loomify/internal/domain"
	"github.com/BrianElionDev/Loomify/internal/events"
)

type Repo struct {
	DB     *sql.DB
	Events events.Writer
	Now    func() time.Time
}

var ErrNotFound = errors.New("not found")

const recordingColumns = `id,title,COALESCE(link,'') AS link,COALESCE(thumbnail,'') AS thumbnail,duration_seconds,COALESCE(date,'') AS date,COALESCE(project,'') AS project,COALESCE(recording_type,'') AS recording_type,COALESCE(transcript,'') AS transcript,COALESCE(model,'') AS model,llm_answer,created_at,updated_at`

func (r Repo) now() string {
	if r.Now != nil {
		return r.Now().UTC().Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func scanRecording(scan func(dest ...any) error) (domain.Recording, error) {
	var rec domain.Recording
	var analysis string
	err := scan(&rec.ID, &rec.Title, &rec.Link, &rec.Thumbnail, &rec.DurationSeconds, &rec.Date,
		&rec.Project, &rec.RecordingType, &rec.Transcript, &rec.Model, &analysis, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal([]byte(analysis), &rec.Analysis); err != nil {
		return rec, fmt.Errorf("decode llm_answer for %s: %w", rec.ID, err)
	}
	return rec, nil
}

// ListRecordings returns every recording, newest creation timestamp first.
func (r Repo) ListRecordings(ctx context.Context) ([]domain.Recording, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+recordingColumns+` FROM loom_analysis ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Recording
	for rows.Next() {
		rec, err := scanRecording(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (r Repo) GetRecording(ctx context.Context, id string) (domain.Recording, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM loom_analysis WHERE id=?`, id)
	return scanRecording(row.Scan)
}

func (r Repo) InsertRecording(ctx context.Context, rec domain.Recording) (domain.Recording, error) {
	analysis, err := json.Marshal(rec.Analysis)
	if err != nil {
		return domain.Recording{}, fmt.Errorf("encode llm_answer: %w", err)
	}
	now := r.now()
	if rec.CreatedAt == "" {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Recording{}, err
	}
	defer tx.Rollback()
	_, err = tx.ExecContext(ctx, `INSERT INTO loom_analysis(id,title,link,thumbnail,duration_seconds,date,project,recording_type,transcript,model,llm_answer,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ID, rec.Title, nullable(rec.Link), nullable(rec.Thumbnail), rec.DurationSeconds, nullable(rec.Date),
		nullable(rec.Project), nullable(rec.RecordingType), nullable(rec.Transcript), nullable(rec.Model),
		string(analysis), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		return domain.Recording{}, err
	}
	if err := r.Events.Append(ctx, tx, "recording.ingested", rec.ID, events.EventPayload{"title": rec.Title}); err != nil {
		return domain.Recording{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Recording{}, err
	}
	return r.GetRecording(ctx, rec.ID)
}

// ReplaceAnalysis overwrites the whole llm_answer field on the named
// recording and returns the post-write row. Last writer wins; there is no
// optimistic concurrency check.
func (r Repo) ReplaceAnalysis(ctx context.Context, id string, analysis domain.AnalysisResult) (domain.Recording, error) {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return domain.Recording{}, fmt.Errorf("encode llm_answer: %w", err)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Recording{}, err
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `UPDATE loom_analysis SET llm_answer=?, updated_at=? WHERE id=?`,
		string(payload), r.now(), id)
	if err != nil {
		return domain.Recording{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Recording{}, ErrNotFound
	}
	if err := r.Events.Append(ctx, tx, "analysis.replaced", id, events.EventPayload{"developers": len(analysis.Developers)}); err != nil {
		return domain.Recording{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Recording{}, err
	}
	return r.GetRecording(ctx, id)
}

func (r Repo) ListSummaries(ctx context.Context) ([]domain.Summary, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,title,COALESCE(filename,'') AS filename,content,created_at FROM meeting_summaries ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Summary
	for rows.Next() {
		var s domain.Summary
		if err := rows.Scan(&s.ID, &s.Title, &s.Filename, &s.Content, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func (r Repo) InsertSummary(ctx context.Context, s domain.Summary) error {
	if s.CreatedAt == "" {
		s.CreatedAt = r.now()
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO meeting_summaries(id,title,filename,content,created_at) VALUES (?,?,?,?,?)`,
		s.ID, s.Title, nullable(s.Filename), s.Content, s.CreatedAt)
	return err
}

type EventFilters struct {
	Type        string
	RecordingID string
	Limit       int
}

func (r Repo) LatestEvents(ctx context.Context, f EventFilters) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.RecordingID != "" {
		clauses = append(clauses, "recording_id=?")
		args = append(args, f.RecordingID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := `SELECT id,ts,type,COALESCE(recording_id,'') AS recording_id,payload_json FROM events ` + where + ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.RecordingID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
