package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mailforge/campaign-pipeline/internal/domain"
	"github.com/mailforge/campaign-pipeline/internal/mailer"
	"github.com/mailforge/campaign-pipeline/internal/queue"
	"github.com/mailforge/campaign-pipeline/internal/repository"
)

type fakeDecrypter struct {
	err error
}

func (f fakeDecrypter) Decrypt(ciphertext string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "plain:" + ciphertext, nil
}

type sendCall struct {
	cfg mailer.SMTPConfig
	msg mailer.Message
}

type fakeMailer struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
}

func (f *fakeMailer) Send(_ context.Context, cfg mailer.SMTPConfig, msg mailer.Message) (*mailer.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, sendCall{cfg: cfg, msg: msg})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &mailer.Result{MessageID: "<mid-1@test>"}, nil
}

func (f *fakeMailer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeMailer) call(i int) sendCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

type busEvent struct {
	topic   string
	payload any
}

type recordingBus struct {
	mu     sync.Mutex
	events []busEvent
}

func (b *recordingBus) Publish(_ context.Context, topic string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, busEvent{topic: topic, payload: payload})
}

func (b *recordingBus) byTopic(topic string) []busEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []busEvent
	for _, e := range b.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

func testDelivery(jobID string, attempt int) queue.Delivery {
	return queue.Delivery{
		Job: domain.Job{
			JobID:       jobID,
			CampaignID:  "camp-1",
			RecipientID: "rcpt-1",
			To:          "alice@example.com",
			Subject:     "Hello",
			HTML:        "<p>Hi</p>",
			TraceID:     "trace-1",
			Sender: domain.JobSender{
				Email: "news@example.com",
				Name:  "Newsletter",
				SMTP: domain.SMTPConfig{
					Host:              "smtp.example.com",
					Port:              587,
					Username:          "news@example.com",
					PasswordEncrypted: "enc-secret",
				},
			},
		},
		Attempt: attempt,
	}
}

type fixture struct {
	worker   *Worker
	queue    *queue.JobQueue
	sendLogs *repository.MockSendLogRepository
	mailer   *fakeMailer
	bus      *recordingBus
}

func newFixture(maxAttempts int, m *fakeMailer, d Decrypter) *fixture {
	q := queue.New(queue.Config{Capacity: 8, MaxAttempts: maxAttempts, BaseBackoff: time.Millisecond}, zap.NewNop())
	logs := repository.NewMockSendLogRepository()
	bus := &recordingBus{}
	w := New(1, q, logs, d, m, rate.NewLimiter(rate.Inf, 0), bus, MetricHooks{}, zap.NewNop())
	return &fixture{worker: w, queue: q, sendLogs: logs, mailer: m, bus: bus}
}

func TestProcess_SuccessfulSend(t *testing.T) {
	fm := &fakeMailer{}
	f := newFixture(3, fm, fakeDecrypter{})

	f.worker.process(context.Background(), testDelivery("job-1", 1))

	entry, ok := f.sendLogs.Get("camp-1", "alice@example.com")
	if !ok {
		t.Fatal("send log entry missing")
	}
	if entry.Status != domain.SendSent {
		t.Fatalf("status = %s, want SENT", entry.Status)
	}
	if entry.ProviderMessageID == nil || *entry.ProviderMessageID != "<mid-1@test>" {
		t.Fatalf("provider message id not recorded: %+v", entry)
	}
	if entry.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", entry.Attempts)
	}

	if fm.callCount() != 1 {
		t.Fatalf("mailer calls = %d, want 1", fm.callCount())
	}
	call := fm.call(0)
	if call.cfg.Password != "plain:enc-secret" {
		t.Fatalf("mailer received password %q, want decrypted form", call.cfg.Password)
	}
	if call.msg.To != "alice@example.com" || call.msg.FromName != "Newsletter" {
		t.Fatalf("unexpected message: %+v", call.msg)
	}

	sent := f.bus.byTopic(domain.TopicEmailSent)
	if len(sent) != 1 {
		t.Fatalf("email.sent events = %d, want 1", len(sent))
	}
	ev := sent[0].payload.(domain.EmailSentEvent)
	if ev.CampaignID != "camp-1" || ev.JobID != "job-1" || ev.Attempts != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}

	if f.queue.CompletedCount() != 1 {
		t.Fatal("delivery was not acked")
	}
}

func TestProcess_DuplicateDeliverySkipped(t *testing.T) {
	fm := &fakeMailer{}
	f := newFixture(3, fm, fakeDecrypter{})

	skipped := 0
	f.worker.hooks = MetricHooks{OnSkipped: func() { skipped++ }}

	// A different job already claimed this recipient.
	f.sendLogs.Seed(&domain.SendLog{
		ID:             "log-1",
		JobID:          "other-job",
		CampaignID:     "camp-1",
		RecipientEmail: "alice@example.com",
		Status:         domain.SendSent,
	})

	f.worker.process(context.Background(), testDelivery("job-1", 1))

	if fm.callCount() != 0 {
		t.Fatal("duplicate delivery must not reach the mailer")
	}
	if len(f.bus.events) != 0 {
		t.Fatalf("no events expected, got %+v", f.bus.events)
	}
	if skipped != 1 {
		t.Fatalf("OnSkipped fired %d times, want 1", skipped)
	}
	if f.queue.CompletedCount() != 1 {
		t.Fatal("skip must still ack the delivery")
	}
}

func TestProcess_SendFailure(t *testing.T) {
	fm := &fakeMailer{err: errors.New("smtp 550")}
	f := newFixture(1, fm, fakeDecrypter{})

	failed := 0
	f.worker.hooks = MetricHooks{OnFailed: func() { failed++ }}

	f.worker.process(context.Background(), testDelivery("job-1", 1))

	entry, _ := f.sendLogs.Get("camp-1", "alice@example.com")
	if entry.Status != domain.SendFailed {
		t.Fatalf("status = %s, want FAILED", entry.Status)
	}
	if entry.Error == nil || *entry.Error != "smtp 550" {
		t.Fatalf("error not recorded: %+v", entry)
	}

	events := f.bus.byTopic(domain.TopicEmailFailed)
	if len(events) != 1 {
		t.Fatalf("email.failed events = %d, want 1", len(events))
	}
	ev := events[0].payload.(domain.EmailFailedEvent)
	if ev.Error != "smtp 550" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if failed != 1 {
		t.Fatalf("OnFailed fired %d times, want 1", failed)
	}

	// MaxAttempts 1: the nack parks the job immediately.
	if f.queue.DeadCount() != 1 {
		t.Fatalf("dead count = %d, want 1", f.queue.DeadCount())
	}
}

func TestProcess_RedeliveredFailedJobIsNotResent(t *testing.T) {
	fm := &fakeMailer{err: errors.New("smtp 550")}
	f := newFixture(5, fm, fakeDecrypter{})

	// First delivery records the failure; the queue then redelivers the
	// same job. Existence of the row means the send was handled, so the
	// redeliveries must not touch SMTP or emit further outcome events.
	f.worker.process(context.Background(), testDelivery("job-1", 1))
	f.worker.process(context.Background(), testDelivery("job-1", 2))
	f.worker.process(context.Background(), testDelivery("job-1", 3))

	if fm.callCount() != 1 {
		t.Fatalf("SMTP submissions = %d, want exactly 1 per logical send", fm.callCount())
	}
	if events := f.bus.byTopic(domain.TopicEmailFailed); len(events) != 1 {
		t.Fatalf("email.failed events = %d, want exactly 1", len(events))
	}

	entry, _ := f.sendLogs.Get("camp-1", "alice@example.com")
	if entry.Status != domain.SendFailed {
		t.Fatalf("status = %s, want FAILED to stand", entry.Status)
	}
	if entry.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (redeliveries never re-mark the row)", entry.Attempts)
	}
	if f.sendLogs.Len() != 1 {
		t.Fatalf("entries = %d, want a single row", f.sendLogs.Len())
	}

	// Redeliveries are acked, not nacked, so the job never goes dead.
	if f.queue.CompletedCount() != 2 || f.queue.DeadCount() != 0 {
		t.Fatalf("completed=%d dead=%d, want 2/0", f.queue.CompletedCount(), f.queue.DeadCount())
	}
}

func TestProcess_DecryptFailureIsSendFailure(t *testing.T) {
	fm := &fakeMailer{}
	f := newFixture(1, fm, fakeDecrypter{err: errors.New("bad ciphertext")})

	f.worker.process(context.Background(), testDelivery("job-1", 1))

	if fm.callCount() != 0 {
		t.Fatal("mailer must not be called without a credential")
	}
	entry, _ := f.sendLogs.Get("camp-1", "alice@example.com")
	if entry.Status != domain.SendFailed {
		t.Fatalf("status = %s, want FAILED", entry.Status)
	}
	if len(f.bus.byTopic(domain.TopicEmailFailed)) != 1 {
		t.Fatal("expected email.failed event")
	}
}

func TestProcess_ClaimErrorNacks(t *testing.T) {
	fm := &fakeMailer{}
	f := newFixture(1, fm, fakeDecrypter{})
	f.sendLogs.ClaimErr = errors.New("db down")

	f.worker.process(context.Background(), testDelivery("job-1", 1))

	if fm.callCount() != 0 {
		t.Fatal("mailer must not be called when the claim errors")
	}
	if len(f.bus.events) != 0 {
		t.Fatal("no events expected on infrastructure error")
	}
	if f.queue.DeadCount() != 1 {
		t.Fatal("expected nack to park the job at the attempt cap")
	}
}

func TestPool_DrainsOnCancel(t *testing.T) {
	fm := &fakeMailer{}
	q := queue.New(queue.Config{Capacity: 8, MaxAttempts: 3, BaseBackoff: time.Millisecond}, zap.NewNop())
	logs := repository.NewMockSendLogRepository()
	pool := NewPool(3, q, logs, fakeDecrypter{}, fm, rate.NewLimiter(rate.Inf, 0), &recordingBus{}, MetricHooks{}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	q.Enqueue(domain.Job{JobID: "job-1", CampaignID: "camp-1", To: "a@example.com"})
	q.Enqueue(domain.Job{JobID: "job-2", CampaignID: "camp-1", To: "b@example.com"})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && fm.callCount() < 2 {
		time.Sleep(time.Millisecond)
	}
	if fm.callCount() != 2 {
		t.Fatalf("mailer calls = %d, want 2", fm.callCount())
	}

	cancel()
	done := make(chan struct{})
	go func() { pool.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool did not drain after cancel")
	}
}
