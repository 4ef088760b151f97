package replicator

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/mailforge/campaign-pipeline/internal/domain"
	"github.com/mailforge/campaign-pipeline/internal/repository"
)

func senderPayload(t *testing.T, ev domain.SenderEvent) []byte {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestSenderReplicator_CreatesSnapshot(t *testing.T) {
	repo := repository.NewMockSenderSnapshotRepository()
	r := NewSenderReplicator(repo, zap.NewNop())

	r.handle(senderPayload(t, domain.SenderEvent{
		SenderID:     "snd-1",
		UserID:       "user-1",
		FromEmail:    "news@example.com",
		Name:         "Newsletter",
		SMTPHost:     "smtp.example.com",
		SMTPPort:     587,
		SMTPUser:     "news@example.com",
		SMTPPassword: "enc-secret",
	}))

	snap, ok := repo.GetBySenderID("snd-1")
	if !ok {
		t.Fatal("snapshot not written")
	}
	if snap.FromEmail != "news@example.com" || snap.SMTPPort != 587 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if !snap.IsActive {
		t.Fatal("IsActive should default to true when the event omits it")
	}
	if snap.LastSyncedAt.IsZero() {
		t.Fatal("LastSyncedAt not set")
	}
}

func TestSenderReplicator_UpdateOverwrites(t *testing.T) {
	repo := repository.NewMockSenderSnapshotRepository()
	r := NewSenderReplicator(repo, zap.NewNop())

	r.handle(senderPayload(t, domain.SenderEvent{
		SenderID: "snd-1", UserID: "user-1", FromEmail: "news@example.com", SMTPHost: "old.example.com",
	}))

	inactive := false
	r.handle(senderPayload(t, domain.SenderEvent{
		SenderID: "snd-1", UserID: "user-1", FromEmail: "news@example.com",
		SMTPHost: "new.example.com", IsActive: &inactive,
	}))

	snap, _ := repo.GetBySenderID("snd-1")
	if snap.SMTPHost != "new.example.com" {
		t.Fatalf("host = %s, want new.example.com", snap.SMTPHost)
	}
	if snap.IsActive {
		t.Fatal("explicit isActive=false must be applied")
	}
}

func TestSenderReplicator_DropsMalformed(t *testing.T) {
	repo := repository.NewMockSenderSnapshotRepository()
	r := NewSenderReplicator(repo, zap.NewNop())

	r.handle([]byte(`{not json`))
	r.handle(senderPayload(t, domain.SenderEvent{SenderID: "snd-1"})) // missing userId, fromEmail

	if _, ok := repo.GetBySenderID("snd-1"); ok {
		t.Fatal("incomplete event must not produce a snapshot")
	}
}

func TestRecipientReplicator_CreatesSnapshot(t *testing.T) {
	repo := repository.NewMockRecipientSnapshotRepository()
	r := NewRecipientReplicator(repo, zap.NewNop())

	data, _ := json.Marshal(domain.RecipientEvent{
		ID:         "rcpt-1",
		CampaignID: "camp-1",
		Email:      "alice@example.com",
		Name:       "Alice",
		Metadata:   map[string]any{"plan": "pro"},
	})
	r.handle(data)

	snap, ok := repo.GetByID("rcpt-1")
	if !ok {
		t.Fatal("snapshot not written")
	}
	if snap.Email != "alice@example.com" || snap.CampaignID != "camp-1" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Name == nil || *snap.Name != "Alice" {
		t.Fatalf("name not mapped: %+v", snap)
	}
	if snap.Metadata["plan"] != "pro" {
		t.Fatalf("metadata not mapped: %+v", snap.Metadata)
	}
}

func TestRecipientReplicator_DropsMalformed(t *testing.T) {
	repo := repository.NewMockRecipientSnapshotRepository()
	r := NewRecipientReplicator(repo, zap.NewNop())

	r.handle([]byte(`"just a string"`))
	data, _ := json.Marshal(domain.RecipientEvent{ID: "rcpt-1", Email: "a@example.com"}) // missing campaignId
	r.handle(data)

	if _, ok := repo.GetByID("rcpt-1"); ok {
		t.Fatal("incomplete event must not produce a snapshot")
	}
}
