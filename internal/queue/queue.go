// Package queue is the in-process work queue feeding the email workers.
//
// Delivery is at-least-once: a job that is nacked (or whose worker dies
// mid-flight and re-enqueues on restart) is delivered again with an
// incremented attempt number, after exponential backoff. The worker
// pipeline's dedup gate, not the queue, is what prevents duplicate sends.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailforge/campaign-pipeline/internal/domain"
)

// Delivery is one handoff of a job to a worker. Attempt starts at 1 and
// increments on every redelivery.
type Delivery struct {
	Job     domain.Job
	Attempt int
}

// DeadJob is a job parked after exhausting its attempts, retained for
// post-mortem inspection.
type DeadJob struct {
	Job       domain.Job
	Attempts  int
	LastError string
	DiedAt    time.Time
}

type completedEntry struct {
	jobID  string
	doneAt time.Time
}

// Config bounds the queue. Zero values fall back to defaults.
type Config struct {
	Capacity    int
	MaxAttempts int
	BaseBackoff time.Duration

	// Retention windows: short for completed jobs, long for dead ones,
	// so operators can inspect failures without unbounded growth.
	CompletedRetention time.Duration
	DeadRetention      time.Duration
}

func (c *Config) applyDefaults() {
	if c.Capacity <= 0 {
		c.Capacity = 10000
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.CompletedRetention <= 0 {
		c.CompletedRetention = time.Hour
	}
	if c.DeadRetention <= 0 {
		c.DeadRetention = 24 * time.Hour
	}
}

// JobQueue is a bounded channel-backed queue with automatic backoff
// redelivery on Nack and a dead bucket once attempts are exhausted.
type JobQueue struct {
	cfg    Config
	ch     chan Delivery
	logger *zap.Logger

	mu        sync.Mutex
	dead      []DeadJob
	completed []completedEntry
}

func New(cfg Config, logger *zap.Logger) *JobQueue {
	cfg.applyDefaults()
	return &JobQueue{
		cfg:    cfg,
		ch:     make(chan Delivery, cfg.Capacity),
		logger: logger,
	}
}

// Enqueue places a job on the queue and returns its id, assigning one when
// the producer did not. Non-blocking: a full queue returns ErrQueueFull
// immediately rather than stalling the orchestrator's per-recipient loop.
func (q *JobQueue) Enqueue(job domain.Job) (string, error) {
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	select {
	case q.ch <- Delivery{Job: job, Attempt: 1}:
		return job.JobID, nil
	default:
		return "", domain.ErrQueueFull
	}
}

// Dequeue blocks until a delivery is available or ctx is cancelled.
// Returns (Delivery{}, false) on cancellation (graceful shutdown signal).
func (q *JobQueue) Dequeue(ctx context.Context) (Delivery, bool) {
	select {
	case d := <-q.ch:
		return d, true
	case <-ctx.Done():
		return Delivery{}, false
	}
}

// Ack records the delivery as completed. Acknowledging a redelivered
// duplicate is legal and counts as completion of that delivery.
func (q *JobQueue) Ack(d Delivery) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed = append(q.completed, completedEntry{jobID: d.Job.JobID, doneAt: time.Now()})
}

// Nack schedules a redelivery after exponential backoff, or parks the job
// in the dead bucket once the attempt cap is reached.
func (q *JobQueue) Nack(d Delivery, cause error) {
	if d.Attempt >= q.cfg.MaxAttempts {
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		q.mu.Lock()
		q.dead = append(q.dead, DeadJob{
			Job:       d.Job,
			Attempts:  d.Attempt,
			LastError: msg,
			DiedAt:    time.Now(),
		})
		q.mu.Unlock()
		q.logger.Warn("job exhausted attempts, parked as dead",
			zap.String("job_id", d.Job.JobID),
			zap.String("campaign_id", d.Job.CampaignID),
			zap.Int("attempts", d.Attempt),
			zap.Error(cause))
		return
	}

	next := Delivery{Job: d.Job, Attempt: d.Attempt + 1}
	delay := q.backoff(d.Attempt)
	q.logger.Info("job nacked, scheduling redelivery",
		zap.String("job_id", d.Job.JobID),
		zap.Int("next_attempt", next.Attempt),
		zap.Duration("delay", delay),
		zap.Error(cause))
	time.AfterFunc(delay, func() { q.redeliver(next) })
}

// redeliver pushes a scheduled redelivery back onto the channel. If the
// queue is momentarily full the push is retried after the base delay;
// redeliveries are never dropped.
func (q *JobQueue) redeliver(d Delivery) {
	select {
	case q.ch <- d:
	default:
		time.AfterFunc(q.cfg.BaseBackoff, func() { q.redeliver(d) })
	}
}

// backoff doubles per attempt: base, 2*base, 4*base, ...
func (q *JobQueue) backoff(attempt int) time.Duration {
	d := q.cfg.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

// Depth is the number of deliveries currently waiting.
func (q *JobQueue) Depth() int { return len(q.ch) }

// DeadJobs returns a copy of the dead bucket.
func (q *JobQueue) DeadJobs() []DeadJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadJob, len(q.dead))
	copy(out, q.dead)
	return out
}

// DeadCount is the current size of the dead bucket.
func (q *JobQueue) DeadCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.dead)
}

// CompletedCount is the number of completions inside the retention window.
func (q *JobQueue) CompletedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.completed)
}

// RunJanitor prunes completed and dead entries past their retention
// windows. Ticks every interval until ctx is cancelled.
func (q *JobQueue) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.prune(time.Now())
		}
	}
}

func (q *JobQueue) prune(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.completed[:0]
	for _, e := range q.completed {
		if now.Sub(e.doneAt) < q.cfg.CompletedRetention {
			kept = append(kept, e)
		}
	}
	q.completed = kept

	keptDead := q.dead[:0]
	for _, d := range q.dead {
		if now.Sub(d.DiedAt) < q.cfg.DeadRetention {
			keptDead = append(keptDead, d)
		}
	}
	q.dead = keptDead
}
