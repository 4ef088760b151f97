package aggregator

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mailforge/campaign-pipeline/internal/domain"
	"github.com/mailforge/campaign-pipeline/internal/repository"
)

func seedCampaign(campaigns *repository.MockCampaignRepository, status domain.CampaignStatus, total int) {
	campaigns.Create(context.Background(), &domain.Campaign{
		ID:              "camp-1",
		UserID:          "user-1",
		Status:          status,
		TotalRecipients: total,
	})
}

func seedLog(logs *repository.MockSendLogRepository, email string, status domain.SendLogStatus) {
	logs.Seed(&domain.SendLog{
		ID:             "log-" + email,
		JobID:          "job-" + email,
		CampaignID:     "camp-1",
		RecipientEmail: email,
		Status:         status,
	})
}

func TestSettle_QueuedMovesToSendingOnFirstOutcome(t *testing.T) {
	campaigns := repository.NewMockCampaignRepository()
	logs := repository.NewMockSendLogRepository()
	seedCampaign(campaigns, domain.StatusQueued, 3)
	seedLog(logs, "a@example.com", domain.SendSent)
	seedLog(logs, "b@example.com", domain.SendPending)

	a := New(campaigns, logs, zap.NewNop())
	if err := a.Settle(context.Background(), "camp-1"); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	c, _ := campaigns.GetByID(context.Background(), "camp-1")
	if c.Status != domain.StatusSending {
		t.Fatalf("status = %s, want SENDING", c.Status)
	}
	if c.SentCount != 1 || c.FailedCount != 0 {
		t.Fatalf("counts = %d/%d, want 1/0", c.SentCount, c.FailedCount)
	}
}

func TestSettle_QueuedStaysQueuedWithoutOutcomes(t *testing.T) {
	campaigns := repository.NewMockCampaignRepository()
	logs := repository.NewMockSendLogRepository()
	seedCampaign(campaigns, domain.StatusQueued, 2)
	seedLog(logs, "a@example.com", domain.SendPending)

	a := New(campaigns, logs, zap.NewNop())
	a.Settle(context.Background(), "camp-1")

	c, _ := campaigns.GetByID(context.Background(), "camp-1")
	if c.Status != domain.StatusQueued {
		t.Fatalf("status = %s, want QUEUED", c.Status)
	}
}

func TestSettle_CompletesWhenAllSettled(t *testing.T) {
	campaigns := repository.NewMockCampaignRepository()
	logs := repository.NewMockSendLogRepository()
	seedCampaign(campaigns, domain.StatusSending, 3)
	seedLog(logs, "a@example.com", domain.SendSent)
	seedLog(logs, "b@example.com", domain.SendSent)
	seedLog(logs, "c@example.com", domain.SendFailed)

	a := New(campaigns, logs, zap.NewNop())
	a.Settle(context.Background(), "camp-1")

	c, _ := campaigns.GetByID(context.Background(), "camp-1")
	if c.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", c.Status)
	}
	if c.SentCount != 2 || c.FailedCount != 1 {
		t.Fatalf("counts = %d/%d, want 2/1", c.SentCount, c.FailedCount)
	}
}

func TestSettle_AllFailedMeansFailed(t *testing.T) {
	campaigns := repository.NewMockCampaignRepository()
	logs := repository.NewMockSendLogRepository()
	seedCampaign(campaigns, domain.StatusSending, 2)
	seedLog(logs, "a@example.com", domain.SendFailed)
	seedLog(logs, "b@example.com", domain.SendFailed)

	a := New(campaigns, logs, zap.NewNop())
	a.Settle(context.Background(), "camp-1")

	c, _ := campaigns.GetByID(context.Background(), "camp-1")
	if c.Status != domain.StatusFailed {
		t.Fatalf("status = %s, want FAILED", c.Status)
	}
}

func TestSettle_PendingBlocksCompletion(t *testing.T) {
	campaigns := repository.NewMockCampaignRepository()
	logs := repository.NewMockSendLogRepository()
	seedCampaign(campaigns, domain.StatusSending, 3)
	seedLog(logs, "a@example.com", domain.SendSent)
	seedLog(logs, "b@example.com", domain.SendFailed)
	seedLog(logs, "c@example.com", domain.SendSending)

	a := New(campaigns, logs, zap.NewNop())
	a.Settle(context.Background(), "camp-1")

	c, _ := campaigns.GetByID(context.Background(), "camp-1")
	if c.Status != domain.StatusSending {
		t.Fatalf("status = %s, want SENDING", c.Status)
	}
}

func TestSettle_TerminalCampaignUntouched(t *testing.T) {
	campaigns := repository.NewMockCampaignRepository()
	logs := repository.NewMockSendLogRepository()
	seedCampaign(campaigns, domain.StatusCompleted, 1)
	logs.StatsErr = context.DeadlineExceeded // would fail if Stats were consulted

	a := New(campaigns, logs, zap.NewNop())
	if err := a.Settle(context.Background(), "camp-1"); err != nil {
		t.Fatalf("settling a terminal campaign must be a no-op, got %v", err)
	}
}

func TestSettle_IsIdempotent(t *testing.T) {
	campaigns := repository.NewMockCampaignRepository()
	logs := repository.NewMockSendLogRepository()
	seedCampaign(campaigns, domain.StatusSending, 1)
	seedLog(logs, "a@example.com", domain.SendSent)

	a := New(campaigns, logs, zap.NewNop())
	a.Settle(context.Background(), "camp-1")
	a.Settle(context.Background(), "camp-1")
	a.Settle(context.Background(), "camp-1")

	c, _ := campaigns.GetByID(context.Background(), "camp-1")
	if c.Status != domain.StatusCompleted || c.SentCount != 1 {
		t.Fatalf("repeated settles diverged: %+v", c)
	}
}

func TestHandleOutcome_SettlesFromEvent(t *testing.T) {
	campaigns := repository.NewMockCampaignRepository()
	logs := repository.NewMockSendLogRepository()
	seedCampaign(campaigns, domain.StatusSending, 1)
	seedLog(logs, "a@example.com", domain.SendSent)

	a := New(campaigns, logs, zap.NewNop())
	a.handleOutcome([]byte(`{"campaignId":"camp-1","jobId":"job-1","recipientEmail":"a@example.com"}`))

	c, _ := campaigns.GetByID(context.Background(), "camp-1")
	if c.Status != domain.StatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", c.Status)
	}
}

func TestRun_SweepSettlesActiveCampaigns(t *testing.T) {
	campaigns := repository.NewMockCampaignRepository()
	logs := repository.NewMockSendLogRepository()
	seedCampaign(campaigns, domain.StatusSending, 1)
	seedLog(logs, "a@example.com", domain.SendSent)

	a := New(campaigns, logs, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go a.Run(ctx, time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		c, _ := campaigns.GetByID(context.Background(), "camp-1")
		if c.Status == domain.StatusCompleted {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	c, _ := campaigns.GetByID(context.Background(), "camp-1")
	if c.Status != domain.StatusCompleted {
		t.Fatalf("sweep did not settle campaign: %+v", c)
	}
}
