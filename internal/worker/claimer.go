package worker

import (
	"context"
	"fmt"

	"github.com/notifyhub/hermes-dispatch/internal/domain"
	"github.com/notifyhub/hermes-dispatch/internal/repository"
)

// Claimer signs batches of unclaimed rows for one server.
type Claimer struct {
	repo              repository.JobRepository
	serverID          int
	limit             int
	includeUnassigned bool
}

func NewClaimer(repo repository.JobRepository, serverID, limit int, includeUnassigned bool) *Claimer {
	return &Claimer{
		repo:              repo,
		serverID:          serverID,
		limit:             limit,
		includeUnassigned: includeUnassigned,
	}
}

// Claim signs up to the configured number of rows with signature.
// It returns domain.ErrAffinityUnsupported without touching storage when
// server-only claiming is requested on a table with no affinity column.
func (c *Claimer) Claim(ctx context.Context, signature string) (domain.ClaimBatch, error) {
	batch := domain.ClaimBatch{Limit: c.limit, Signature: signature}
	if !c.includeUnassigned && !c.repo.Schema().HasAffinity {
		return batch, domain.ErrAffinityUnsupported
	}

	n, err := c.repo.Claim(ctx, domain.ClaimRequest{
		ServerID:          c.serverID,
		Signature:         signature,
		Limit:             c.limit,
		IncludeUnassigned: c.includeUnassigned,
	})
	if err != nil {
		return batch, fmt.Errorf("claim batch: %w", err)
	}
	batch.Claimed = n
	return batch, nil
}
