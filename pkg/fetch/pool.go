package fetch

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Task is one unit of a bulk import.
type Task struct {
	// ID identifies the task in results and logs.
	ID string

	// Run performs the work.
	Run func(ctx context.Context) error
}

// TaskResult reports one task's outcome.
type TaskResult struct {
	ID  string
	Err error
}

// PoolConfig configures bulk-import execution.
type PoolConfig struct {
	// MaxConcurrency is the number of parallel workers.
	MaxConcurrency int

	// Timeout bounds each task.
	Timeout time.Duration
}

// DefaultPoolConfig keeps bulk imports well under upstream limits.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
	}
}

// Pool runs bulk-import tasks through a bounded worker pool. Used by the
// long-running team/match import paths that run as background jobs.
type Pool struct {
	config PoolConfig
	logger zerolog.Logger
}

// NewPool creates a worker pool.
func NewPool(config PoolConfig, logger zerolog.Logger) *Pool {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &Pool{config: config, logger: logger}
}

// Run executes all tasks and returns one result per task. Individual task
// failures do not stop the batch; cancellation of ctx does.
func (p *Pool) Run(ctx context.Context, tasks []Task) []TaskResult {
	if len(tasks) == 0 {
		return nil
	}

	start := time.Now()
	queue := make(chan Task, len(tasks))
	results := make(chan TaskResult, len(tasks))

	for _, task := range tasks {
		queue <- task
	}
	close(queue)

	workers := p.config.MaxConcurrency
	if workers > len(tasks) {
		workers = len(tasks)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go p.worker(ctx, queue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]TaskResult, 0, len(tasks))
	failed := 0
	for res := range results {
		if res.Err != nil {
			failed++
		}
		collected = append(collected, res)
	}

	p.logger.Info().
		Int("tasks", len(tasks)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Bulk import batch finished")

	return collected
}

// worker drains the queue until empty or the batch is cancelled.
func (p *Pool) worker(ctx context.Context, queue <-chan Task, results chan<- TaskResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range queue {
		select {
		case <-ctx.Done():
			results <- TaskResult{ID: task.ID, Err: ctx.Err()}
			continue
		default:
		}

		taskCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		err := task.Run(taskCtx)
		cancel()

		if err != nil {
			p.logger.Warn().Err(err).Str("task", task.ID).Msg("Bulk import task failed")
		}
		results <- TaskResult{ID: task.ID, Err: err}
	}
}
