package metrics

import (
	"sort"
	"strings"

	"github.com/starford/opsdash/internal/table"
)

// Count is one labelled bar or slice of a chart.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Status chart labels.
const (
	LabelNotStarted = "Not Started"
	LabelInProgress = "In Progress"
	LabelCompleted  = "Completed"
	LabelArchived   = "Archived"
)

// StatusCounts returns the four bucket counts in fixed chart order.
func (e *Engine) StatusCounts(t *table.Table) []Count {
	m := e.Executive(t)
	return []Count{
		{Label: LabelNotStarted, Count: m.Open},
		{Label: LabelInProgress, Count: m.Working},
		{Label: LabelCompleted, Count: m.Done},
		{Label: LabelArchived, Count: m.Archived},
	}
}

// ProjectCounts returns task counts per normalized project, largest first,
// labelled with the display name.
func (e *Engine) ProjectCounts(t *table.Table) []Count {
	if t == nil || !t.Exists(FieldProject) {
		return []Count{}
	}
	values, err := t.Column(FieldProject)
	if err != nil {
		return []Count{}
	}
	return tally(values, normalize, DisplayName)
}

// AssigneeCounts returns task counts per assignee, largest first. The
// assignee column is the first present of AssigneeFields.
func (e *Engine) AssigneeCounts(t *table.Table) []Count {
	if t == nil {
		return []Count{}
	}
	field, ok := t.First(AssigneeFields...)
	if !ok {
		return []Count{}
	}
	values, err := t.Column(field)
	if err != nil {
		return []Count{}
	}
	return tally(values, strings.TrimSpace, func(k string) string {
		if k == "" {
			return UnassignedLabel
		}
		return k
	})
}

func tally(values []string, key func(string) string, label func(string) string) []Count {
	counts := make(map[string]int)
	for _, v := range values {
		counts[key(v)]++
	}
	out := make([]Count, 0, len(counts))
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		out = append(out, Count{Label: label(k), Count: counts[k]})
	}
	return out
}

// Age bucket labels in chart order.
var ageLabels = []string{"0-7 days", "8-14 days", "15-30 days", "30+ days"}

// AgeBuckets groups tasks by days since Date Assigned. Rows without a valid
// date are left out; future dates count as age zero.
func (e *Engine) AgeBuckets(t *table.Table) []Count {
	out := make([]Count, len(ageLabels))
	for i, l := range ageLabels {
		out[i].Label = l
	}
	if t == nil || !t.Exists(FieldDateAssigned) {
		return out
	}
	dates, err := t.Column(FieldDateAssigned)
	if err != nil {
		return out
	}
	now := e.now()
	for _, d := range dates {
		days, ok := daysOld(d, now)
		if !ok {
			continue
		}
		out[ageBucket(days)].Count++
	}
	return out
}

func ageBucket(days int) int {
	switch {
	case days <= 7:
		return 0
	case days <= 14:
		return 1
	case days <= 30:
		return 2
	default:
		return 3
	}
}

// Task is one normalized source row.
type Task struct {
	Row          int    `json:"row"`
	Title        string `json:"task"`
	TranscriptID string `json:"transcript_id,omitempty"`
	Status       string `json:"status"`
	Bucket       Bucket `json:"bucket"`
	Badge        string `json:"badge"`
	ProjectKey   string `json:"project_key"`
	Project      string `json:"project"`
	Assignee     string `json:"assignee"`
	DateAssigned string `json:"date_assigned"`
	Relative     string `json:"date_relative"`
	AgeDays      *int   `json:"age_days,omitempty"`
	Overdue      bool   `json:"overdue"`
}

// Tasks normalizes every row. Absent fields are left empty.
func (e *Engine) Tasks(t *table.Table) []Task {
	if t == nil || t.Len() == 0 {
		return []Task{}
	}
	assigneeField, _ := t.First(AssigneeFields...)
	col := func(name string) []string {
		if name == "" {
			return make([]string, t.Len())
		}
		v, err := t.Column(name)
		if err != nil {
			return make([]string, t.Len())
		}
		return v
	}
	var (
		titles      = col(FieldTask)
		transcripts = col(FieldTranscriptID)
		statuses    = col(FieldStatus)
		projects    = col(FieldProject)
		assignees   = col(assigneeField)
		dates       = col(FieldDateAssigned)
		now         = e.now()
		// overdue needs both columns, matching Executive.
		canOverdue = t.Exists(FieldStatus) && t.Exists(FieldDateAssigned)
	)

	out := make([]Task, t.Len())
	for i := range out {
		key := normalize(projects[i])
		task := Task{
			Row:          i,
			Title:        strings.TrimSpace(titles[i]),
			TranscriptID: strings.TrimSpace(transcripts[i]),
			Status:       strings.TrimSpace(statuses[i]),
			Bucket:       Classify(statuses[i]),
			Badge:        BadgeLabel(statuses[i]),
			ProjectKey:   key,
			Project:      DisplayName(key),
			Assignee:     strings.TrimSpace(assignees[i]),
			DateAssigned: strings.TrimSpace(dates[i]),
			Relative:     RelativeDate(dates[i], now),
		}
		if days, ok := daysOld(dates[i], now); ok {
			task.AgeDays = &days
		}
		if canOverdue {
			task.Overdue = e.overdue(statuses[i], dates[i], now)
		}
		out[i] = task
	}
	return out
}
