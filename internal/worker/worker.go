// Package worker consumes jobs from the queue and runs the send pipeline:
// claim, mark sending, decrypt, submit, record outcome, publish event.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mailforge/campaign-pipeline/internal/domain"
	"github.com/mailforge/campaign-pipeline/internal/mailer"
	"github.com/mailforge/campaign-pipeline/internal/queue"
	"github.com/mailforge/campaign-pipeline/internal/repository"
	"github.com/mailforge/campaign-pipeline/internal/tracing"
)

// Decrypter recovers a plaintext credential from its encrypted form. The
// worker is the only consumer of this capability; handing it the interface
// rather than the key keeps plaintext confined to the send path.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// Publisher is the slice of the event bus the worker needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any)
}

// MetricHooks are optional callbacks fired per processed job. Nil hooks are
// skipped, so tests and tools can run without a metrics registry.
type MetricHooks struct {
	OnSent    func(latency time.Duration)
	OnFailed  func()
	OnSkipped func()
}

// Worker processes one delivery at a time from the shared queue.
type Worker struct {
	id        int
	queue     *queue.JobQueue
	sendLogs  repository.SendLogRepository
	decrypter Decrypter
	mailer    mailer.Mailer
	limiter   *rate.Limiter
	bus       Publisher
	hooks     MetricHooks
	logger    *zap.Logger
}

func New(id int, q *queue.JobQueue, sendLogs repository.SendLogRepository, decrypter Decrypter, m mailer.Mailer, limiter *rate.Limiter, bus Publisher, hooks MetricHooks, logger *zap.Logger) *Worker {
	return &Worker{
		id:        id,
		queue:     q,
		sendLogs:  sendLogs,
		decrypter: decrypter,
		mailer:    m,
		limiter:   limiter,
		bus:       bus,
		hooks:     hooks,
		logger:    logger.With(zap.Int("worker_id", id)),
	}
}

// Run consumes deliveries until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started")
	for {
		d, ok := w.queue.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopped")
			return
		}
		w.process(ctx, d)
	}
}

// process runs the full pipeline for one delivery. The dedup claim comes
// first: on a redelivered duplicate the row already exists, the claim
// reports not-claimed, and the delivery is acked without touching SMTP.
func (w *Worker) process(ctx context.Context, d queue.Delivery) {
	job := d.Job
	ctx = tracing.WithTraceID(ctx, job.TraceID)
	log := w.logger.With(
		zap.String("job_id", job.JobID),
		zap.String("campaign_id", job.CampaignID),
		zap.String("recipient", job.To),
		zap.String("trace_id", job.TraceID),
		zap.Int("attempt", d.Attempt),
	)

	claimed, _, err := w.sendLogs.ClaimOrSkip(ctx, job.CampaignID, job.To, job.JobID, job.RecipientID)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		w.queue.Nack(d, err)
		return
	}
	if !claimed {
		log.Info("duplicate delivery, skipping")
		if w.hooks.OnSkipped != nil {
			w.hooks.OnSkipped()
		}
		w.queue.Ack(d)
		return
	}

	if err := w.sendLogs.MarkSending(ctx, job.CampaignID, job.To, d.Attempt); err != nil {
		log.Error("mark sending failed", zap.Error(err))
		w.queue.Nack(d, err)
		return
	}

	if err := w.limiter.Wait(ctx); err != nil {
		w.queue.Nack(d, err)
		return
	}

	password, err := w.decrypter.Decrypt(job.Sender.SMTP.PasswordEncrypted)
	if err != nil {
		log.Error("credential decrypt failed", zap.Error(err))
		w.fail(ctx, d, err, log)
		return
	}

	start := time.Now()
	res, err := w.mailer.Send(ctx, mailer.SMTPConfig{
		Host:     job.Sender.SMTP.Host,
		Port:     job.Sender.SMTP.Port,
		Secure:   job.Sender.SMTP.Secure,
		Username: job.Sender.SMTP.Username,
		Password: password,
	}, mailer.Message{
		From:     job.Sender.Email,
		FromName: job.Sender.Name,
		To:       job.To,
		Subject:  job.Subject,
		HTML:     job.HTML,
	})
	if err != nil {
		log.Warn("send failed", zap.Error(err))
		w.fail(ctx, d, err, log)
		return
	}

	sentAt := time.Now()
	if err := w.sendLogs.MarkSent(ctx, job.CampaignID, job.To, res.MessageID, sentAt, d.Attempt); err != nil {
		// The email left the building; the log update is retried by no one,
		// so record the discrepancy and move on.
		log.Error("mark sent failed after successful send", zap.Error(err))
	}
	w.bus.Publish(ctx, domain.TopicEmailSent, domain.EmailSentEvent{
		CampaignID:     job.CampaignID,
		JobID:          job.JobID,
		RecipientEmail: job.To,
		SentAt:         sentAt,
		Attempts:       d.Attempt,
	})
	if w.hooks.OnSent != nil {
		w.hooks.OnSent(time.Since(start))
	}
	log.Info("email sent", zap.String("message_id", res.MessageID))
	w.queue.Ack(d)
}

// fail records the failure, publishes email.failed, and nacks so the queue
// decides between redelivery and the dead bucket.
func (w *Worker) fail(ctx context.Context, d queue.Delivery, cause error, log *zap.Logger) {
	job := d.Job
	failedAt := time.Now()
	if err := w.sendLogs.MarkFailed(ctx, job.CampaignID, job.To, cause.Error(), failedAt, d.Attempt); err != nil {
		log.Error("mark failed errored", zap.Error(err))
	}
	w.bus.Publish(ctx, domain.TopicEmailFailed, domain.EmailFailedEvent{
		CampaignID:     job.CampaignID,
		JobID:          job.JobID,
		RecipientEmail: job.To,
		Error:          cause.Error(),
		FailedAt:       failedAt,
		Attempts:       d.Attempt,
	})
	if w.hooks.OnFailed != nil {
		w.hooks.OnFailed()
	}
	w.queue.Nack(d, cause)
}
