// Package service holds the campaign orchestrator: CRUD, the prepare
// validation gate, and the start fan-out into the job queue.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mailforge/campaign-pipeline/internal/domain"
	"github.com/mailforge/campaign-pipeline/internal/repository"
	"github.com/mailforge/campaign-pipeline/internal/tracing"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Enqueuer is the slice of the job queue the orchestrator needs.
type Enqueuer interface {
	Enqueue(job domain.Job) (string, error)
}

// StartResult summarizes one start fan-out.
type StartResult struct {
	CampaignID string `json:"campaign_id"`
	Total      int    `json:"total"`
	Enqueued   int    `json:"enqueued"`
	Skipped    int    `json:"skipped"`
}

// CampaignService owns the campaign lifecycle. Every read and write is
// scoped to the calling user; a campaign owned by someone else is
// indistinguishable from a missing one.
type CampaignService struct {
	campaigns  repository.CampaignRepository
	senders    repository.SenderSnapshotRepository
	recipients repository.RecipientSnapshotRepository
	sendLogs   repository.SendLogRepository
	queue      Enqueuer
	logger     *zap.Logger
}

func NewCampaignService(
	campaigns repository.CampaignRepository,
	senders repository.SenderSnapshotRepository,
	recipients repository.RecipientSnapshotRepository,
	sendLogs repository.SendLogRepository,
	queue Enqueuer,
	logger *zap.Logger,
) *CampaignService {
	return &CampaignService{
		campaigns:  campaigns,
		senders:    senders,
		recipients: recipients,
		sendLogs:   sendLogs,
		queue:      queue,
		logger:     logger,
	}
}

func (s *CampaignService) Create(ctx context.Context, userID string, req domain.CreateCampaignRequest) (*domain.Campaign, error) {
	var violations []string
	if req.Name == "" {
		violations = append(violations, "name is required")
	}
	if req.Subject == "" {
		violations = append(violations, "subject is required")
	}
	if req.SenderEmail != "" && !validEmail(req.SenderEmail) {
		violations = append(violations, fmt.Sprintf("sender_email %q is not a valid address", req.SenderEmail))
	}
	if len(violations) > 0 {
		return nil, &domain.ValidationError{Violations: violations}
	}

	now := time.Now().UTC()
	c := &domain.Campaign{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        req.Name,
		Subject:     req.Subject,
		BodyHTML:    req.BodyHTML,
		BodyText:    req.BodyText,
		SenderEmail: req.SenderEmail,
		Status:      domain.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.campaigns.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	s.logger.Info("campaign created",
		zap.String("campaign_id", c.ID), zap.String("user_id", userID))
	return c, nil
}

func (s *CampaignService) Get(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	return s.getOwned(ctx, userID, id)
}

func (s *CampaignService) List(ctx context.Context, userID string, f domain.ListFilter) ([]*domain.Campaign, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return s.campaigns.List(ctx, userID, f)
}

func (s *CampaignService) Update(ctx context.Context, userID, id string, req domain.UpdateCampaignRequest) (*domain.Campaign, error) {
	c, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := domain.EnsureTransition(c.Status, domain.ActionUpdate); err != nil {
		return nil, err
	}
	if req.SenderEmail != nil && *req.SenderEmail != "" && !validEmail(*req.SenderEmail) {
		return nil, &domain.ValidationError{
			Violations: []string{fmt.Sprintf("sender_email %q is not a valid address", *req.SenderEmail)},
		}
	}

	if req.Name != nil {
		c.Name = *req.Name
	}
	if req.Subject != nil {
		c.Subject = *req.Subject
	}
	if req.BodyHTML != nil {
		c.BodyHTML = *req.BodyHTML
	}
	if req.BodyText != nil {
		c.BodyText = *req.BodyText
	}
	if req.SenderEmail != nil {
		c.SenderEmail = *req.SenderEmail
	}
	if err := s.campaigns.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignService) Delete(ctx context.Context, userID, id string) error {
	c, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return err
	}
	if err := domain.EnsureTransition(c.Status, domain.ActionDelete); err != nil {
		return err
	}
	return s.campaigns.Delete(ctx, id)
}

// Prepare validates a draft end to end and, when everything holds, moves it
// to READY together with the recipient count measured now. All violations
// are collected before refusing, so one round trip surfaces the full list.
func (s *CampaignService) Prepare(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	c, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := domain.EnsureTransition(c.Status, domain.ActionPrepare); err != nil {
		return nil, err
	}

	var violations []string
	if c.Subject == "" {
		violations = append(violations, "subject is required")
	}
	if c.BodyHTML == "" && c.BodyText == "" {
		violations = append(violations, "body is required")
	}
	// Sender registration and activity are deliberately not checked here;
	// the snapshot may lag and both are re-verified at start time anyway.
	switch {
	case c.SenderEmail == "":
		violations = append(violations, "sender_email is required")
	case !validEmail(c.SenderEmail):
		violations = append(violations, fmt.Sprintf("sender_email %q is not a valid address", c.SenderEmail))
	}

	total, err := s.recipients.CountByCampaign(ctx, id)
	switch {
	case err != nil:
		violations = append(violations, "unable to verify recipient count")
	case total == 0:
		violations = append(violations, "campaign has no recipients")
	}

	if len(violations) > 0 {
		return nil, &domain.ValidationError{Violations: violations}
	}

	if err := s.campaigns.MarkReady(ctx, id, total); err != nil {
		return nil, fmt.Errorf("mark ready: %w", err)
	}
	c.Status = domain.StatusReady
	c.TotalRecipients = total
	s.logger.Info("campaign prepared",
		zap.String("campaign_id", id), zap.Int("total_recipients", total))
	return c, nil
}

// Start fans a READY campaign out into one job per recipient. Individual
// enqueue failures are skipped, not fatal; the campaign only moves to QUEUED
// when at least one job made it onto the queue.
func (s *CampaignService) Start(ctx context.Context, userID, id string) (*StartResult, error) {
	c, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := domain.EnsureTransition(c.Status, domain.ActionStart); err != nil {
		return nil, err
	}

	sender, err := s.senders.GetByEmailAndUser(ctx, c.SenderEmail, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, &domain.PreconditionError{Reason: fmt.Sprintf("sender %q is not registered", c.SenderEmail)}
	}
	if err != nil {
		return nil, fmt.Errorf("look up sender: %w", err)
	}
	if !sender.IsActive {
		return nil, &domain.PreconditionError{Reason: fmt.Sprintf("sender %q is not active", c.SenderEmail)}
	}

	recipients, err := s.recipients.ListByCampaign(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	if len(recipients) == 0 {
		return nil, &domain.PreconditionError{Reason: "campaign has no recipients"}
	}

	traceID := tracing.TraceID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
	}

	result := &StartResult{CampaignID: id, Total: len(recipients)}
	for _, r := range recipients {
		job := domain.Job{
			JobID:       uuid.New().String(),
			CampaignID:  id,
			RecipientID: r.ID,
			To:          r.Email,
			Subject:     c.Subject,
			HTML:        c.BodyHTML,
			TraceID:     traceID,
			Sender: domain.JobSender{
				Email: sender.FromEmail,
				Name:  sender.Name,
				SMTP: domain.SMTPConfig{
					Host:              sender.SMTPHost,
					Port:              sender.SMTPPort,
					Secure:            sender.SMTPPort == 465,
					Username:          sender.SMTPUser,
					PasswordEncrypted: sender.SMTPPassword,
				},
			},
		}
		if _, err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("enqueue failed, skipping recipient",
				zap.String("campaign_id", id),
				zap.String("recipient", r.Email),
				zap.Error(err))
			result.Skipped++
			continue
		}
		result.Enqueued++
	}

	if result.Enqueued == 0 {
		// Nothing made it onto the queue; leave the campaign READY so the
		// caller can retry once there is capacity.
		return nil, domain.ErrQueueFull
	}

	if err := s.campaigns.UpdateStatus(ctx, id, domain.StatusQueued); err != nil {
		return nil, fmt.Errorf("mark queued: %w", err)
	}
	s.logger.Info("campaign started",
		zap.String("campaign_id", id),
		zap.String("trace_id", traceID),
		zap.Int("enqueued", result.Enqueued),
		zap.Int("skipped", result.Skipped))
	return result, nil
}

// Status returns the campaign together with live send log statistics.
func (s *CampaignService) Status(ctx context.Context, userID, id string) (*domain.Campaign, domain.SendStats, error) {
	c, err := s.getOwned(ctx, userID, id)
	if err != nil {
		return nil, domain.SendStats{}, err
	}
	stats, err := s.sendLogs.Stats(ctx, id)
	if err != nil {
		return nil, domain.SendStats{}, err
	}
	return c, stats, nil
}

// getOwned hides other users' campaigns behind ErrNotFound.
func (s *CampaignService) getOwned(ctx context.Context, userID, id string) (*domain.Campaign, error) {
	c, err := s.campaigns.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func validEmail(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}
