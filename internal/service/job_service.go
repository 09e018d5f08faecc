package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/domain"
	"github.com/notifyhub/hermes-dispatch/internal/repository"
)

const (
	maxBatchSize = 1000

	// SeqPlaceholder is replaced by the row number in fill patterns.
	SeqPlaceholder = "{seq}"

	fillSubject = "Hello Hermes Mailing"
	fillBody    = "Hey! Thank you for using Hermes Mailing application."
)

// FillRequest describes a run of fixture mails.
type FillRequest struct {
	Quantity       int
	From           string
	To             string
	AssignedServer *int
}

// JobService puts mails on the queue and reports on it. Sending is the
// dispatcher's job; this service never claims rows.
type JobService struct {
	repo   repository.JobRepository
	logger *zap.Logger
}

func NewJobService(repo repository.JobRepository, logger *zap.Logger) *JobService {
	return &JobService{repo: repo, logger: logger}
}

// Enqueue validates and persists a single mail.
func (s *JobService) Enqueue(ctx context.Context, req domain.EnqueueRequest) (*domain.Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job, err := buildJob(req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, []*domain.Job{job}); err != nil {
		return nil, fmt.Errorf("persist mail: %w", err)
	}
	return job, nil
}

// EnqueueBatch validates and persists up to 1000 mails in a single
// transaction.
func (s *JobService) EnqueueBatch(ctx context.Context, requests []domain.EnqueueRequest) ([]*domain.Job, error) {
	if len(requests) == 0 {
		return nil, domain.ErrBatchEmpty
	}
	if len(requests) > maxBatchSize {
		return nil, domain.ErrBatchTooLarge
	}

	jobs := make([]*domain.Job, len(requests))
	for i, req := range requests {
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		job, err := buildJob(req)
		if err != nil {
			return nil, err
		}
		jobs[i] = job
	}

	if err := s.repo.Insert(ctx, jobs); err != nil {
		return nil, fmt.Errorf("persist batch: %w", err)
	}
	return jobs, nil
}

// Fill inserts req.Quantity fixture mails in one transaction. Every
// "{seq}" in the From and To patterns becomes the row number.
func (s *JobService) Fill(ctx context.Context, req FillRequest) (int, error) {
	if req.Quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	if req.AssignedServer != nil && *req.AssignedServer < 0 {
		return 0, domain.ErrInvalidServer
	}

	jobs := make([]*domain.Job, req.Quantity)
	for i := range jobs {
		seq := strconv.Itoa(i)
		from := strings.ReplaceAll(req.From, SeqPlaceholder, seq)
		job, err := buildJob(domain.EnqueueRequest{
			To:             strings.ReplaceAll(req.To, SeqPlaceholder, seq),
			From:           from,
			FromName:       from,
			ReplyTo:        from,
			Subject:        fillSubject,
			Body:           fillBody,
			AssignedServer: req.AssignedServer,
		})
		if err != nil {
			return 0, err
		}
		jobs[i] = job
	}

	if err := s.repo.Insert(ctx, jobs); err != nil {
		return 0, fmt.Errorf("persist fixtures: %w", err)
	}
	s.logger.Info("mails inserted", zap.Int("quantity", len(jobs)))
	return len(jobs), nil
}

func (s *JobService) Stats(ctx context.Context) (domain.Stats, error) {
	return s.repo.Stats(ctx)
}

// buildJob maps a request onto the installed table's payload columns.
// Ids are UUIDv7 so claim order follows insertion order.
func buildJob(req domain.EnqueueRequest) (*domain.Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate id: %w", err)
	}

	payload := map[string]string{
		"to":      req.To,
		"from":    req.From,
		"subject": req.Subject,
		"body":    req.Body,
	}
	if req.FromName != "" {
		payload["from_name"] = req.FromName
	}
	if req.ReplyTo != "" {
		payload["reply_to"] = req.ReplyTo
	}
	if req.IsHTML != nil {
		payload["is_html"] = "0"
		if *req.IsHTML {
			payload["is_html"] = "1"
		}
	}

	return &domain.Job{
		ID:             id.String(),
		Status:         domain.StatusNever,
		AssignedServer: req.AssignedServer,
		Payload:        payload,
	}, nil
}
