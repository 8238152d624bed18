// Package metrics derives dashboard metrics from a task table snapshot.
//
// Every method on Engine is a pure function of its input table and the
// engine clock. Missing columns and malformed cells never produce errors:
// the affected figures degrade to zero.
package metrics

import (
	"math"
	"time"

	"github.com/starford/opsdash/internal/table"
)

// Logical field names read from the source sheet.
const (
	FieldStatus       = "Status"
	FieldProject      = "Project"
	FieldDateAssigned = "Date Assigned"
	FieldTask         = "Task"
	FieldTranscriptID = "Transcript ID"
)

// AssigneeFields lists the accepted assignee headers in preference order.
var AssigneeFields = []string{"Assigned To", "Person", "assignee"}

// DateLayout is the canonical Date Assigned format. Parsing also accepts
// unpadded month and day ("2025-3-7").
const DateLayout = "2006-01-02"

const parseLayout = "2006-1-2"

// DefaultOverdueDays is the age after which a pending task counts as overdue.
const DefaultOverdueDays = 30

// Executive is the whole-table KPI summary.
type Executive struct {
	ActiveTasks     int     `json:"active_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	OverdueTasks    int     `json:"overdue_tasks"`
	CompletionRate  float64 `json:"completion_rate"`
	TotalTasks      int     `json:"total_tasks"`
	Open            int     `json:"open"`
	Working         int     `json:"working"`
	Done            int     `json:"done"`
	Archived        int     `json:"archived"`
	Unclassified    int     `json:"unclassified"`
}

// Completed returns done plus archived.
func (e Executive) Completed() int {
	return e.Done + e.Archived
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for overdue and age calculations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithOverdueDays sets the overdue threshold in days.
func WithOverdueDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.overdueDays = days
		}
	}
}

// Engine computes metrics. It holds configuration only and is safe for
// concurrent use.
type Engine struct {
	now         func() time.Time
	overdueDays int
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		now:         time.Now,
		overdueDays: DefaultOverdueDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OverdueDays returns the configured threshold.
func (e *Engine) OverdueDays() int {
	return e.overdueDays
}

// Executive computes the KPI summary. An empty table or one without a Status
// column yields the zero value.
func (e *Engine) Executive(t *table.Table) Executive {
	if t == nil || t.Len() == 0 || !t.Exists(FieldStatus) {
		return Executive{}
	}
	statuses, err := t.Column(FieldStatus)
	if err != nil {
		return Executive{}
	}

	var m Executive
	m.TotalTasks = len(statuses)
	for _, s := range statuses {
		switch Classify(s) {
		case Open:
			m.Open++
		case Working:
			m.Working++
		case Done:
			m.Done++
		case Archived:
			m.Archived++
		default:
			m.Unclassified++
		}
	}
	m.ActiveTasks = m.Open
	m.InProgressTasks = m.Working
	m.OverdueTasks = e.countOverdue(t, statuses)
	m.CompletionRate = completionRate(m.Completed(), m.TotalTasks)
	return m
}

func (e *Engine) countOverdue(t *table.Table, statuses []string) int {
	if !t.Exists(FieldDateAssigned) {
		return 0
	}
	dates, err := t.Column(FieldDateAssigned)
	if err != nil {
		return 0
	}
	now := e.now()
	n := 0
	for i := range statuses {
		if e.overdue(statuses[i], dates[i], now) {
			n++
		}
	}
	return n
}

func (e *Engine) overdue(status, date string, now time.Time) bool {
	if !isPending(status) {
		return false
	}
	days, ok := daysOld(date, now)
	return ok && days > e.overdueDays
}

// daysOld returns the number of calendar days from the assigned date to
// now's date in now's location. Both dates are compared as UTC midnights so
// DST transitions never shift the count.
func daysOld(date string, now time.Time) (int, bool) {
	d, ok := parseDate(date, time.UTC)
	if !ok {
		return 0, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(today.Sub(d) / (24 * time.Hour)), true
}

func parseDate(value string, loc *time.Location) (time.Time, bool) {
	s := normalize(value)
	if s == "" {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(parseLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func completionRate(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}
