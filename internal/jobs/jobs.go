// Package jobs runs token analyses asynchronously on an in-process
// worker pool. Requests for a token already in flight join the
// existing job instead of queueing a duplicate.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mbd888/rugscan/internal/analysis"
	"github.com/mbd888/rugscan/internal/capability"
	"github.com/mbd888/rugscan/internal/idgen"
	"github.com/mbd888/rugscan/internal/metrics"
)

// Status is the lifecycle state of an analysis job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ErrQueueFull is returned by Enqueue when the backlog is at capacity.
var ErrQueueFull = errors.New("job queue full")

// ErrNotFound is returned by Get for unknown or swept job IDs.
var ErrNotFound = errors.New("job not found")

// Job tracks one asynchronous analysis request.
type Job struct {
	ID         string           `json:"jobId"`
	Chain      string           `json:"chain"`
	Address    string           `json:"address"`
	Status     Status           `json:"status"`
	Error      string           `json:"error,omitempty"`
	Report     *analysis.Report `json:"report,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	StartedAt  time.Time        `json:"startedAt,omitempty"`
	FinishedAt time.Time        `json:"finishedAt,omitempty"`
}

// Analyzer produces a report for one token. Satisfied by analysis.Service.
type Analyzer interface {
	Analyze(ctx context.Context, chain, address string) (*analysis.Report, error)
}

// Notifier receives terminal job transitions. Satisfied by the realtime hub.
type Notifier interface {
	JobCompleted(job Job)
	JobFailed(job Job)
}

// Queue is the worker pool. Create with New, then Start.
type Queue struct {
	analyzer  Analyzer
	notifier  Notifier
	logger    *slog.Logger
	timeout   time.Duration
	retention time.Duration
	workers   int

	tasks chan string // job IDs awaiting a worker

	mu       sync.Mutex
	jobs     map[string]*Job
	inflight map[string]string // chain:address → job ID, queued or running only

	wg   sync.WaitGroup
	now  func() time.Time
	once sync.Once
}

// Config wires the queue's collaborators and tuning knobs.
type Config struct {
	Analyzer  Analyzer
	Notifier  Notifier // optional
	Logger    *slog.Logger
	Workers   int           // default 4
	Timeout   time.Duration // per-job analysis deadline, default 2m
	Retention time.Duration // how long finished jobs stay queryable, default 1h
	Backlog   int           // queued-job capacity, default 256
}

// New creates a job queue. Call Start to launch the workers.
func New(cfg Config) *Queue {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = time.Hour
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 256
	}
	return &Queue{
		analyzer:  cfg.Analyzer,
		notifier:  cfg.Notifier,
		logger:    logger,
		timeout:   cfg.Timeout,
		retention: cfg.Retention,
		workers:   cfg.Workers,
		tasks:     make(chan string, cfg.Backlog),
		jobs:      make(map[string]*Job),
		inflight:  make(map[string]string),
		now:       time.Now,
	}
}

// Start launches the workers and the retention sweeper. They exit when
// ctx is done; Stop waits for in-flight jobs to finish.
func (q *Queue) Start(ctx context.Context) {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go q.worker(ctx)
		}
		q.wg.Add(1)
		go q.sweeper(ctx)
		q.logger.Info("job queue started", "workers", q.workers)
	})
}

// Stop blocks until all workers have drained. Call after cancelling the
// context passed to Start.
func (q *Queue) Stop() {
	q.wg.Wait()
}

// Enqueue schedules an analysis of one token. If the token already has
// a queued or running job the existing job is returned and created is
// false.
func (q *Queue) Enqueue(chain, address string) (Job, bool, error) {
	chain = strings.ToLower(chain)
	address = strings.ToLower(address)
	key := chain + ":" + address

	q.mu.Lock()
	if id, ok := q.inflight[key]; ok {
		existing := *q.jobs[id]
		q.mu.Unlock()
		return existing, false, nil
	}
	job := &Job{
		ID:        idgen.WithPrefix("job_"),
		Chain:     chain,
		Address:   address,
		Status:    StatusQueued,
		CreatedAt: q.now().UTC(),
	}
	q.jobs[job.ID] = job
	q.inflight[key] = job.ID
	q.mu.Unlock()

	select {
	case q.tasks <- job.ID:
		metrics.JobQueueDepth.Inc()
		return *job, true, nil
	default:
		q.mu.Lock()
		delete(q.jobs, job.ID)
		delete(q.inflight, key)
		q.mu.Unlock()
		return Job{}, false, ErrQueueFull
	}
}

// Get returns a snapshot of a job by ID.
func (q *Queue) Get(id string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// Depth returns the number of jobs waiting for a worker.
func (q *Queue) Depth() int {
	return len(q.tasks)
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.tasks:
			metrics.JobQueueDepth.Dec()
			q.run(ctx, id)
		}
	}
}

func (q *Queue) run(ctx context.Context, id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = StatusRunning
	job.StartedAt = q.now().UTC()
	chain, address := job.Chain, job.Address
	q.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, q.timeout)
	start := q.now()
	report, err := q.analyzer.Analyze(jobCtx, chain, address)
	cancel()
	metrics.AnalysisDuration.Observe(q.now().Sub(start).Seconds())

	q.mu.Lock()
	job.FinishedAt = q.now().UTC()
	delete(q.inflight, chain+":"+address)
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
	} else {
		job.Status = StatusCompleted
		job.Report = report
	}
	snapshot := *job
	q.mu.Unlock()

	if err != nil {
		metrics.AnalysesTotal.WithLabelValues(chain, outcome(err)).Inc()
		q.logger.Warn("analysis job failed",
			"job_id", id, "chain", chain, "address", address, "error", err)
		if q.notifier != nil {
			q.notifier.JobFailed(snapshot)
		}
		return
	}

	metrics.AnalysesTotal.WithLabelValues(chain, "completed").Inc()
	metrics.ReportsByTier.WithLabelValues(string(report.RiskTier)).Inc()
	q.logger.Info("analysis job completed",
		"job_id", id, "chain", chain, "address", address,
		"risk_score", report.RiskScore, "tier", report.RiskTier)
	if q.notifier != nil {
		q.notifier.JobCompleted(snapshot)
	}
}

func outcome(err error) string {
	if errors.Is(err, capability.ErrNotAContract) {
		return "not_contract"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "failed"
}

// sweeper drops finished jobs past the retention window.
func (q *Queue) sweeper(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.sweep()
		}
	}
}

func (q *Queue) sweep() {
	cutoff := q.now().Add(-q.retention)
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, job := range q.jobs {
		if job.Status != StatusCompleted && job.Status != StatusFailed {
			continue
		}
		if job.FinishedAt.Before(cutoff) {
			delete(q.jobs, id)
		}
	}
}
