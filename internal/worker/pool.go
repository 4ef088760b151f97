package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mailforge/campaign-pipeline/internal/mailer"
	"github.com/mailforge/campaign-pipeline/internal/queue"
	"github.com/mailforge/campaign-pipeline/internal/repository"
)

// Pool runs a fixed number of workers against the shared queue. The rate
// limiter is shared so the send rate is a process-wide bound, not per worker.
type Pool struct {
	workers []*Worker
	wg      sync.WaitGroup
	logger  *zap.Logger
}

func NewPool(size int, q *queue.JobQueue, sendLogs repository.SendLogRepository, decrypter Decrypter, m mailer.Mailer, limiter *rate.Limiter, bus Publisher, hooks MetricHooks, logger *zap.Logger) *Pool {
	p := &Pool{logger: logger}
	for i := 0; i < size; i++ {
		p.workers = append(p.workers, New(i+1, q, sendLogs, decrypter, m, limiter, bus, hooks, logger))
	}
	return p
}

// Start launches all workers. They stop when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting worker pool", zap.Int("size", len(p.workers)))
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
	p.logger.Info("worker pool drained")
}
