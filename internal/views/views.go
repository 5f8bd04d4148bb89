package views

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/BrianElionDev/Loomify/internal/domain"
)

// Grouping modes for recordings and tasks.
const (
	GroupByDate    = "date"
	GroupByProject = "project"
	GroupByType    = "type"
)

// Sentinel bucket keys for recordings without a label. Sentinel buckets sort
// strictly last regardless of alphabetical position.
const (
	NoProjectBucket = "No Project"
	NoTypeBucket    = "Uncategorized"
)

// Task statuses for filtering.
const (
	StatusAll       = "all"
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// TaskRef is one task tagged with its origin, for cross-recording views.
type TaskRef struct {
	RecordingID    string      `json:"recording_id"`
	RecordingTitle string      `json:"recording_title"`
	Project        string      `json:"project,omitempty"`
	Date           string      `json:"date,omitempty"`
	Dev            string      `json:"dev"`
	TaskIndex      int         `json:"task_index"`
	Task           domain.Task `json:"task"`
}

// DevRollup aggregates one developer's tasks across all recordings.
type DevRollup struct {
	Name           string    `json:"name"`
	Tasks          []TaskRef `json:"tasks"`
	TotalTasks     int       `json:"total_tasks"`
	CompletedTasks int       `json:"completed_tasks"`
	CompletionRate int       `json:"completion_rate"`
}

// Group is one bucket of recordings under a grouping mode.
type Group struct {
	Key        string             `json:"key"`
	Recordings []domain.Recording `json:"recordings"`
}

// roundPct computes round(100*n/total), 0 when total is zero.
func roundPct(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(n) / float64(total)))
}

// CompletionPercentage is the recording's completion across all developers.
func CompletionPercentage(rec domain.Recording) int {
	total, done := 0, 0
	for _, dev := range rec.Analysis.Developers {
		for _, t := range dev.Tasks {
			total++
			if t.Completed {
				done++
			}
		}
	}
	return roundPct(done, total)
}

// EffectiveProject resolves the recording's project label, preferring the
// row-level label over the one inside the analysis.
func EffectiveProject(rec domain.Recording) string {
	if rec.Project != "" {
		return rec.Project
	}
	return rec.Analysis.Project
}

// DisplayDate is the recording's optional display date, falling back to the
// creation timestamp.
func DisplayDate(rec domain.Recording) string {
	if rec.Date != "" {
		return rec.Date
	}
	return rec.CreatedAt
}

// DeveloperRollups flattens all recordings' developers by name and aggregates
// their tasks, sorted alphabetically by developer name.
func DeveloperRollups(recs []domain.Recording) []DevRollup {
	byName := map[string]*DevRollup{}
	var names []string
	for _, rec := range recs {
		for _, dev := range rec.Analysis.Developers {
			r, ok := byName[dev.Name]
			if !ok {
				r = &DevRollup{Name: dev.Name}
				byName[dev.Name] = r
				names = append(names, dev.Name)
			}
			for i, t := range dev.Tasks {
				r.Tasks = append(r.Tasks, TaskRef{
					RecordingID:    rec.ID,
					RecordingTitle: rec.Title,
					Project:        EffectiveProject(rec),
					Date:           DisplayDate(rec),
					Dev:            dev.Name,
					TaskIndex:      i,
					Task:           t,
				})
				r.TotalTasks++
				if t.Completed {
					r.CompletedTasks++
				}
			}
		}
	}
	sort.Strings(names)
	res := make([]DevRollup, 0, len(names))
	for _, name := range names {
		r := byName[name]
		r.CompletionRate = roundPct(r.CompletedTasks, r.TotalTasks)
		res = append(res, *r)
	}
	return res
}

// GroupRecordings buckets recordings by the given mode. Date buckets are in
// descending date order; project/type buckets ascend alphabetically with the
// sentinel bucket always last.
func GroupRecordings(recs []domain.Recording, mode string) []Group {
	buckets := map[string][]domain.Recording{}
	var keys []string
	for _, rec := range recs {
		key := bucketKey(rec, mode)
		if _, ok := buckets[key]; !ok {
			keys = append(keys, key)
		}
		buckets[key] = append(buckets[key], rec)
	}
	sentinel := sentinelFor(mode)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i] == sentinel {
			return false
		}
		if keys[j] == sentinel {
			return true
		}
		if mode == GroupByDate {
			return keys[i] > keys[j]
		}
		return keys[i] < keys[j]
	})
	res := make([]Group, 0, len(keys))
	for _, key := range keys {
		res = append(res, Group{Key: key, Recordings: buckets[key]})
	}
	return res
}

func bucketKey(rec domain.Recording, mode string) string {
	switch mode {
	case GroupByProject:
		if p := EffectiveProject(rec); p != "" {
			return p
		}
		return NoProjectBucket
	case GroupByType:
		if rec.RecordingType != "" {
			return rec.RecordingType
		}
		return NoTypeBucket
	default:
		return DayKey(DisplayDate(rec))
	}
}

func sentinelFor(mode string) string {
	switch mode {
	case GroupByProject:
		return NoProjectBucket
	case GroupByType:
		return NoTypeBucket
	default:
		return ""
	}
}

// DayKey reduces a timestamp to day granularity. Unparseable values pass
// through unchanged so they still bucket deterministically.
func DayKey(ts string) string {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ts
}

// Filter is a conjunctive task filter.
type Filter struct {
	Status string // all, completed, pending
	Search string // case-insensitive substring over task text, title, dev name
	Mode   string // grouping mode the Bucket value belongs to
	Bucket string // optional single-value bucket equality
}

// FilterTasks returns every task matching all of the filter's conditions.
func FilterTasks(recs []domain.Recording, f Filter) []TaskRef {
	search := strings.ToLower(f.Search)
	var res []TaskRef
	for _, rec := range recs {
		if f.Bucket != "" && bucketKey(rec, f.Mode) != f.Bucket {
			continue
		}
		for _, dev := range rec.Analysis.Developers {
			for i, t := range dev.Tasks {
				switch f.Status {
				case StatusCompleted:
					if !t.Completed {
						continue
					}
				case StatusPending:
					if t.Completed {
						continue
					}
				}
				if search != "" &&
					!strings.Contains(strings.ToLower(t.Text), search) &&
					!strings.Contains(strings.ToLower(rec.Title), search) &&
					!strings.Contains(strings.ToLower(dev.Name), search) {
					continue
				}
				res = append(res, TaskRef{
					RecordingID:    rec.ID,
					RecordingTitle: rec.Title,
					Project:        EffectiveProject(rec),
					Date:           DisplayDate(rec),
					Dev:            dev.Name,
					TaskIndex:      i,
					Task:           t,
				})
			}
		}
	}
	return res
}

// FormatDuration renders seconds as MM:SS (or H:MM:SS past an hour) at the
// presentation boundary; the store keeps numeric seconds.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
