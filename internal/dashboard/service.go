// Package dashboard coordinates snapshot reads, metric computation, history
// recording and change notifications behind the API and MCP surfaces.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/starford/opsdash/internal/apperr"
	"github.com/starford/opsdash/internal/history"
	"github.com/starford/opsdash/internal/metrics"
	"github.com/starford/opsdash/internal/snapshot"
	"github.com/starford/opsdash/internal/sse"
)

// SnapshotFetched is published for every fetch, changed or not.
const SnapshotFetched = "snapshot.fetched"

// Snapshots is the read side of the snapshot cache.
type Snapshots interface {
	Get(ctx context.Context) (*snapshot.Snapshot, error)
	Invalidate()
}

// Publisher receives change notifications. *sse.Broker satisfies it.
type Publisher interface {
	Publish(event sse.Event)
	PublishMetrics(data any)
}

// Meta describes the snapshot a response was computed from.
type Meta struct {
	SnapshotID  string    `json:"snapshot_id"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
	Checksum    string    `json:"checksum"`
	Rows        int       `json:"rows"`
	OverdueDays int       `json:"overdue_after_days"`
}

// Trend compares the current completion rate with the previous distinct
// snapshot on record.
type Trend struct {
	PreviousRate float64   `json:"previous_completion_rate"`
	Delta        float64   `json:"completion_rate_delta"`
	Since        time.Time `json:"since"`
}

// Overview is the full dashboard payload.
type Overview struct {
	Meta      Meta                    `json:"snapshot"`
	Executive metrics.Executive       `json:"executive"`
	Trend     *Trend                  `json:"trend,omitempty"`
	Statuses  []metrics.Count         `json:"statuses"`
	Projects  []metrics.ProjectRollup `json:"projects"`
	Assignees []metrics.Count         `json:"assignees"`
	Ages      []metrics.Count         `json:"ages"`
}

// MetricsUpdate is the payload of a metrics.updated event.
type MetricsUpdate struct {
	Meta      Meta              `json:"snapshot"`
	Executive metrics.Executive `json:"executive"`
}

// TaskFilter narrows Tasks. Zero values match everything.
type TaskFilter struct {
	Bucket      *metrics.Bucket
	Project     string
	OverdueOnly bool
	Limit       int
}

// Option configures a Service.
type Option func(*Service)

// WithHistory records a run per distinct snapshot, keeping the newest retain
// rows (retain <= 0 keeps all).
func WithHistory(store history.Store, retain int) Option {
	return func(s *Service) {
		s.history = store
		s.retain = retain
	}
}

// WithPublisher sets the change notification sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// Service serves dashboard views over the current snapshot.
type Service struct {
	snapshots Snapshots
	engine    *metrics.Engine
	history   history.Store
	retain    int
	publisher Publisher
	logger    *slog.Logger

	mu           sync.Mutex
	primed       bool
	lastChecksum string
}

// NewService creates a dashboard service.
func NewService(snapshots Snapshots, engine *metrics.Engine, opts ...Option) *Service {
	s := &Service{
		snapshots: snapshots,
		engine:    engine,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Overview computes every view from one snapshot.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.overview(ctx, snap), nil
}

// Refresh drops the cached snapshot and recomputes the overview from a new
// fetch.
func (s *Service) Refresh(ctx context.Context) (*Overview, error) {
	s.snapshots.Invalidate()
	return s.Overview(ctx)
}

// Executive returns the KPI summary.
func (s *Service) Executive(ctx context.Context) (metrics.Executive, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return metrics.Executive{}, err
	}
	return s.engine.Executive(snap.Table), nil
}

// Projects returns per-project rollups, largest first.
func (s *Service) Projects(ctx context.Context) ([]metrics.ProjectRollup, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return metrics.SortedRollups(s.engine.ProjectRollup(snap.Table)), nil
}

// Project returns the rollup for one project, matched case-insensitively.
func (s *Service) Project(ctx context.Context, name string) (metrics.ProjectRollup, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return metrics.ProjectRollup{}, err
	}
	r, ok := s.engine.ProjectRollup(snap.Table)[projectKey(name)]
	if !ok {
		return metrics.ProjectRollup{}, apperr.ErrNotFound
	}
	return r, nil
}

// Statuses returns the status distribution.
func (s *Service) Statuses(ctx context.Context) ([]metrics.Count, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.StatusCounts(snap.Table), nil
}

// Assignees returns task counts per assignee.
func (s *Service) Assignees(ctx context.Context) ([]metrics.Count, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.AssigneeCounts(snap.Table), nil
}

// Ages returns the task age distribution.
func (s *Service) Ages(ctx context.Context) ([]metrics.Count, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.engine.AgeBuckets(snap.Table), nil
}

// Tasks returns normalized task rows matching f, in sheet order.
func (s *Service) Tasks(ctx context.Context, f TaskFilter) ([]metrics.Task, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	key := projectKey(f.Project)
	out := []metrics.Task{}
	for _, task := range s.engine.Tasks(snap.Table) {
		if f.Bucket != nil && task.Bucket != *f.Bucket {
			continue
		}
		if f.Project != "" && task.ProjectKey != key {
			continue
		}
		if f.OverdueOnly && !task.Overdue {
			continue
		}
		out = append(out, task)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

// Export returns the snapshot rows, header first, as the sheet exposes them
// after header deduplication.
func (s *Service) Export(ctx context.Context) (Meta, [][]string, error) {
	snap, err := s.snapshot(ctx)
	if err != nil {
		return Meta{}, nil, err
	}
	return s.meta(snap), snap.Table.Records(), nil
}

// History returns up to limit recorded runs, newest first. Without a history
// store it returns an empty list.
func (s *Service) History(ctx context.Context, limit int) ([]history.Run, error) {
	if s.history == nil {
		return []history.Run{}, nil
	}
	return s.history.List(ctx, limit)
}

func (s *Service) snapshot(ctx context.Context) (*snapshot.Snapshot, error) {
	snap, err := s.snapshots.Get(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Fresh {
		s.observe(ctx, snap)
	}
	return snap, nil
}

// observe records and announces a freshly fetched snapshot when its content
// differs from the last one seen.
func (s *Service) observe(ctx context.Context, snap *snapshot.Snapshot) {
	meta := s.meta(snap)
	if s.publisher != nil {
		s.publisher.Publish(sse.Event{Type: SnapshotFetched, Data: meta})
	}

	// History writes outlive the request that triggered the fetch.
	hctx := context.WithoutCancel(ctx)

	s.mu.Lock()
	if !s.primed {
		s.prime(hctx)
	}
	if snap.Checksum == s.lastChecksum {
		s.mu.Unlock()
		return
	}
	prev := s.lastChecksum
	s.lastChecksum = snap.Checksum
	s.mu.Unlock()

	exec := s.engine.Executive(snap.Table)

	if s.history != nil {
		run, err := s.history.Record(hctx, history.Run{
			SnapshotID:     meta.SnapshotID,
			Source:         meta.Source,
			TakenAt:        meta.FetchedAt,
			Checksum:       meta.Checksum,
			Total:          exec.TotalTasks,
			Open:           exec.Open,
			Working:        exec.Working,
			Done:           exec.Done,
			Archived:       exec.Archived,
			Overdue:        exec.OverdueTasks,
			CompletionRate: exec.CompletionRate,
		})
		if err != nil {
			s.logger.Error("dashboard: record run failed", slog.String("error", err.Error()))
			// Let the next fetch of this content try again.
			s.mu.Lock()
			if s.lastChecksum == snap.Checksum {
				s.lastChecksum = prev
			}
			s.mu.Unlock()
		} else {
			s.logger.Info("dashboard: run recorded",
				slog.String("run", run.ID),
				slog.String("checksum", run.Checksum),
				slog.Int("total", run.Total))
			if s.retain > 0 {
				if n, err := s.history.Prune(hctx, s.retain); err != nil {
					s.logger.Error("dashboard: prune history failed", slog.String("error", err.Error()))
				} else if n > 0 {
					s.logger.Debug("dashboard: history pruned", slog.Int64("removed", n))
				}
			}
		}
	}

	if s.publisher != nil {
		s.publisher.PublishMetrics(MetricsUpdate{Meta: meta, Executive: exec})
	}
}

// prime loads the last recorded checksum once. A failed read is retried on
// the next fresh snapshot. Callers hold s.mu.
func (s *Service) prime(ctx context.Context) {
	if s.history == nil {
		s.primed = true
		return
	}
	last, err := s.history.Latest(ctx)
	switch {
	case err == nil:
		s.lastChecksum = last.Checksum
	case !errors.Is(err, apperr.ErrNotFound):
		s.logger.Error("dashboard: load latest run failed", slog.String("error", err.Error()))
		return
	}
	s.primed = true
}

func (s *Service) overview(ctx context.Context, snap *snapshot.Snapshot) *Overview {
	t := snap.Table
	ov := &Overview{
		Meta:      s.meta(snap),
		Executive: s.engine.Executive(t),
		Statuses:  s.engine.StatusCounts(t),
		Projects:  metrics.SortedRollups(s.engine.ProjectRollup(t)),
		Assignees: s.engine.AssigneeCounts(t),
		Ages:      s.engine.AgeBuckets(t),
	}
	ov.Trend = s.trend(ctx, snap.Checksum, ov.Executive.CompletionRate)
	return ov
}

// trend finds the newest recorded run with different content and compares
// completion rates against it.
func (s *Service) trend(ctx context.Context, checksum string, rate float64) *Trend {
	if s.history == nil {
		return nil
	}
	runs, err := s.history.List(ctx, 10)
	if err != nil {
		s.logger.Error("dashboard: load trend failed", slog.String("error", err.Error()))
		return nil
	}
	for _, r := range runs {
		if r.Checksum == checksum {
			continue
		}
		return &Trend{
			PreviousRate: r.CompletionRate,
			Delta:        roundTenth(rate - r.CompletionRate),
			Since:        r.TakenAt,
		}
	}
	return nil
}

func (s *Service) meta(snap *snapshot.Snapshot) Meta {
	return Meta{
		SnapshotID:  snap.ID.String(),
		Source:      snap.Source,
		FetchedAt:   snap.FetchedAt,
		Checksum:    snap.Checksum,
		Rows:        snap.Table.Len(),
		OverdueDays: s.engine.OverdueDays(),
	}
}

func projectKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
