package metrics

import (
	"math"
	"sort"

	"github.com/starford/opsdash/internal/table"
)

// ProjectRollup aggregates tasks sharing one normalized project name.
type ProjectRollup struct {
	Key          string `json:"key"`
	DisplayName  string `json:"project"`
	Total        int    `json:"total"`
	Open         int    `json:"open"`
	InProgress   int    `json:"in_progress"`
	Complete     int    `json:"complete"`
	Archived     int    `json:"archived"`
	Unclassified int    `json:"unclassified"`
	HealthScore  int    `json:"health_score"`
}

// ProjectRollup groups rows by trimmed, case-folded project name. A table
// without a Project column yields an empty map; a missing Status column
// leaves every row unclassified.
func (e *Engine) ProjectRollup(t *table.Table) map[string]ProjectRollup {
	out := make(map[string]ProjectRollup)
	if t == nil || t.Len() == 0 || !t.Exists(FieldProject) {
		return out
	}
	projects, err := t.Column(FieldProject)
	if err != nil {
		return out
	}
	statuses, err := t.Column(FieldStatus)
	if err != nil {
		statuses = make([]string, len(projects))
	}

	for i, p := range projects {
		key := normalize(p)
		r := out[key]
		r.Key = key
		r.Total++
		switch Classify(statuses[i]) {
		case Open:
			r.Open++
		case Working:
			r.InProgress++
		case Done:
			r.Complete++
		case Archived:
			r.Archived++
		default:
			r.Unclassified++
		}
		out[key] = r
	}

	for k, r := range out {
		r.HealthScore = healthScore(r.Complete, r.InProgress, r.Total)
		r.DisplayName = DisplayName(k)
		out[k] = r
	}
	return out
}

// SortedRollups orders rollups by total descending, then key.
func SortedRollups(m map[string]ProjectRollup) []ProjectRollup {
	out := make([]ProjectRollup, 0, len(m))
	for _, r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// healthScore weights in-progress work at half of completed work.
func healthScore(complete, inProgress, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round((float64(complete) + 0.5*float64(inProgress)) / float64(total) * 100))
}
