package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mailforge/campaign-pipeline/internal/domain"
	"github.com/mailforge/campaign-pipeline/internal/queue"
)

func testJob(id string) domain.Job {
	return domain.Job{JobID: id, CampaignID: "c-1", To: "alice@example.com"}
}

func TestEnqueueDequeue(t *testing.T) {
	q := queue.New(queue.Config{Capacity: 4}, zap.NewNop())

	id, err := q.Enqueue(testJob("j-1"))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id != "j-1" {
		t.Fatalf("expected caller-assigned id, got %q", id)
	}
	if q.Depth() != 1 {
		t.Fatalf("depth = %d, want 1", q.Depth())
	}

	d, ok := q.Dequeue(context.Background())
	if !ok {
		t.Fatal("Dequeue returned !ok")
	}
	if d.Job.JobID != "j-1" || d.Attempt != 1 {
		t.Fatalf("unexpected delivery: %+v", d)
	}
}

func TestEnqueue_AssignsID(t *testing.T) {
	q := queue.New(queue.Config{Capacity: 1}, zap.NewNop())

	id, err := q.Enqueue(domain.Job{CampaignID: "c-1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated job id")
	}
}

func TestEnqueue_FullQueue(t *testing.T) {
	q := queue.New(queue.Config{Capacity: 1}, zap.NewNop())

	if _, err := q.Enqueue(testJob("j-1")); err != nil {
		t.Fatalf("first Enqueue: %v", err)
	}
	if _, err := q.Enqueue(testJob("j-2")); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestDequeue_ContextCancelled(t *testing.T) {
	q := queue.New(queue.Config{Capacity: 1}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := q.Dequeue(ctx); ok {
		t.Fatal("expected !ok on cancelled context")
	}
}

func TestNack_RedeliversWithBackoff(t *testing.T) {
	q := queue.New(queue.Config{Capacity: 4, MaxAttempts: 3, BaseBackoff: time.Millisecond}, zap.NewNop())

	q.Enqueue(testJob("j-1"))
	d, _ := q.Dequeue(context.Background())
	q.Nack(d, errors.New("smtp timeout"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	redelivered, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected redelivery before timeout")
	}
	if redelivered.Job.JobID != "j-1" {
		t.Fatalf("redelivered wrong job: %+v", redelivered)
	}
	if redelivered.Attempt != 2 {
		t.Fatalf("attempt = %d, want 2", redelivered.Attempt)
	}
}

func TestNack_ParksDeadAtAttemptCap(t *testing.T) {
	q := queue.New(queue.Config{Capacity: 4, MaxAttempts: 2, BaseBackoff: time.Millisecond}, zap.NewNop())

	q.Enqueue(testJob("j-1"))
	d, _ := q.Dequeue(context.Background())
	q.Nack(d, errors.New("attempt 1 failed"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	d, ok := q.Dequeue(ctx)
	if !ok {
		t.Fatal("expected redelivery")
	}
	q.Nack(d, errors.New("attempt 2 failed"))

	if q.DeadCount() != 1 {
		t.Fatalf("dead count = %d, want 1", q.DeadCount())
	}
	dead := q.DeadJobs()[0]
	if dead.Job.JobID != "j-1" || dead.Attempts != 2 {
		t.Fatalf("unexpected dead job: %+v", dead)
	}
	if dead.LastError != "attempt 2 failed" {
		t.Fatalf("last error = %q", dead.LastError)
	}

	// No further redelivery should arrive.
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	if _, ok := q.Dequeue(short); ok {
		t.Fatal("dead job must not be redelivered")
	}
}

func TestAck_TracksCompleted(t *testing.T) {
	q := queue.New(queue.Config{Capacity: 2}, zap.NewNop())

	q.Enqueue(testJob("j-1"))
	d, _ := q.Dequeue(context.Background())
	q.Ack(d)

	if q.CompletedCount() != 1 {
		t.Fatalf("completed count = %d, want 1", q.CompletedCount())
	}
}

func TestJanitor_PrunesRetentionWindows(t *testing.T) {
	q := queue.New(queue.Config{
		Capacity:           4,
		MaxAttempts:        1,
		CompletedRetention: 10 * time.Millisecond,
		DeadRetention:      10 * time.Millisecond,
	}, zap.NewNop())

	q.Enqueue(testJob("j-ok"))
	d, _ := q.Dequeue(context.Background())
	q.Ack(d)

	q.Enqueue(testJob("j-dead"))
	d, _ = q.Dequeue(context.Background())
	q.Nack(d, errors.New("boom"))

	if q.CompletedCount() != 1 || q.DeadCount() != 1 {
		t.Fatalf("precondition: completed=%d dead=%d", q.CompletedCount(), q.DeadCount())
	}

	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go q.RunJanitor(ctx, time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if q.CompletedCount() == 0 && q.DeadCount() == 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	if q.CompletedCount() != 0 || q.DeadCount() != 0 {
		t.Fatalf("janitor did not prune: completed=%d dead=%d", q.CompletedCount(), q.DeadCount())
	}
}
