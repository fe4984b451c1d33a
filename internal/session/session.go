package session

import (
	"time"

	"github.com/fakeyudi/partline/internal/partition"
	"github.com/fakeyudi/partline/internal/timeline"
)

// Session is the track the CLI is currently working on: one context over one
// span of video.
type Session struct {
	ID        string           `json:"id"`
	StartTime time.Time        `json:"start_time"`
	StopTime  *time.Time       `json:"stop_time,omitempty"`
	Filter    partition.Filter `json:"filter"`
	Range     timeline.Range   `json:"range"`
	DBPath    string           `json:"db_path"`
	Annotator string           `json:"annotator,omitempty"`
	Notes     []Note           `json:"notes"`
	Journal   []Entry          `json:"journal"`
	// Cursor is the partition index the view last had hovered.
	Cursor int `json:"cursor,omitempty"`
}

// Note is a free-text remark attached to a session.
type Note struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	IsSummary bool      `json:"is_summary"` // true when added via close -m
}

// Entry records one change made to the track during the session.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Op        string    `json:"op"` // "cut" | "edit" | "import"
	Detail    string    `json:"detail"`
}

// Log appends a journal entry stamped with now.
func (s *Session) Log(now time.Time, op, detail string) {
	s.Journal = append(s.Journal, Entry{Timestamp: now, Op: op, Detail: detail})
}
