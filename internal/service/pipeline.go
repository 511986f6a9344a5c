package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adam-a-i/ruya/internal/domain"
	"github.com/adam-a-i/ruya/internal/logger"
	"github.com/adam-a-i/ruya/internal/repository"
)

// JobHandler runs one pipeline job.
type JobHandler func(ctx context.Context, job *domain.PipelineJob) error

// ErrQueueFull is returned by Enqueue when the buffer is exhausted. It maps to
// ErrServiceUnavailable.
var ErrQueueFull = fmt.Errorf("pipeline queue is full: %w", domain.ErrServiceUnavailable)

type PipelineOptions struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	// PollInterval is how often Wait re-reads a job.
	PollInterval time.Duration
}

// Pipeline is an in-process job queue whose status lives in the store.
type Pipeline struct {
	store    store.Store
	log      *logger.Logger
	opts     PipelineOptions
	queue    chan *domain.PipelineJob
	mu       sync.RWMutex
	handlers map[domain.JobType]JobHandler
}

func NewPipeline(st store.Store, log *logger.Logger, opts PipelineOptions) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	return &Pipeline{
		store:    st,
		log:      log.With("component", "pipeline"),
		opts:     opts,
		queue:    make(chan *domain.PipelineJob, opts.QueueSize),
		handlers: make(map[domain.JobType]JobHandler),
	}
}

// Register sets the handler for a job type.
func (p *Pipeline) Register(jobType domain.JobType, h JobHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[jobType] = h
}

// Enqueue persists a queued job and hands it to the workers.
func (p *Pipeline) Enqueue(ctx context.Context, jobType domain.JobType, ref string) (*domain.PipelineJob, error) {
	now := time.Now().UTC()
	job := &domain.PipelineJob{
		ID:        "job_" + uuid.New().String()[:8],
		Type:      jobType,
		Ref:       ref,
		Status:    domain.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	select {
	case p.queue <- job:
		return job, nil
	default:
		if err := p.store.UpdateJobStatus(ctx, job.ID, domain.JobStatusFailed, ErrQueueFull.Error()); err != nil {
			p.log.Warn("failed to mark dropped job", "job_id", job.ID, "error", err)
		}
		return nil, ErrQueueFull
	}
}

// Run starts the workers and blocks until ctx is cancelled and they exit.
func (p *Pipeline) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			p.work(ctx, worker)
		}(i)
	}
	p.log.Info("pipeline started", "workers", p.opts.Workers)
	wg.Wait()
	return nil
}

func (p *Pipeline) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			p.process(ctx, worker, job)
		}
	}
}

func (p *Pipeline) process(ctx context.Context, worker int, job *domain.PipelineJob) {
	log := p.log.With("job_id", job.ID, "job_type", job.Type, "worker", worker)

	p.mu.RLock()
	handler := p.handlers[job.Type]
	p.mu.RUnlock()

	// Status writes use a context that survives shutdown so a job is never left running.
	statusCtx := context.WithoutCancel(ctx)
	if handler == nil {
		p.finish(statusCtx, log, job, fmt.Errorf("no handler for job type %s", job.Type))
		return
	}
	if err := p.store.UpdateJobStatus(statusCtx, job.ID, domain.JobStatusRunning, ""); err != nil {
		log.Warn("failed to mark job running", "error", err)
	}

	jobCtx := ctx
	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}
	p.finish(statusCtx, log, job, p.safeRun(jobCtx, handler, job))
}

func (p *Pipeline) safeRun(ctx context.Context, h JobHandler, job *domain.PipelineJob) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return h(ctx, job)
}

func (p *Pipeline) finish(ctx context.Context, log *logger.Logger, job *domain.PipelineJob, runErr error) {
	status, msg := domain.JobStatusSucceeded, ""
	if runErr != nil {
		status, msg = domain.JobStatusFailed, runErr.Error()
		log.Error("job failed", "error", runErr)
	} else {
		log.Debug("job succeeded")
	}
	if err := p.store.UpdateJobStatus(ctx, job.ID, status, msg); err != nil {
		log.Error("failed to record job status", "status", status, "error", err)
	}
}

// Wait blocks until the job reaches a final status or ctx is done.
func (p *Pipeline) Wait(ctx context.Context, jobID string) (*domain.PipelineJob, error) {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		job, err := p.store.GetJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to get job: %w", err)
		}
		if job == nil {
			return nil, fmt.Errorf("job %s: %w", jobID, domain.ErrNotFound)
		}
		if job.Status.IsFinal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetJob returns a job by id.
func (s *Service) GetJob(ctx context.Context, id string) (*domain.PipelineJob, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return job, nil
}
