package repository

import (
	"context"

	"github.com/notifyhub/hermes-dispatch/internal/domain"
)

// JobRepository defines all persistence operations on the mail queue table.
// The pgx implementation is in pg_job_repo.go, the database/sql one (MySQL
// and SQLite) in sql_job_repo.go.
// Tests use a hand-written mock (mock_job_repo.go).
type JobRepository interface {
	// Schema reports the optional columns found when the repository was opened.
	Schema() domain.Schema

	// Claim signs up to req.Limit unsigned rows with req.Signature in one
	// atomic conditional update and returns how many rows it changed.
	// Rows signed by a concurrent caller are never re-signed.
	Claim(ctx context.Context, req domain.ClaimRequest) (int, error)

	// FetchSigned returns up to limit rows carrying signature whose status
	// is never or retry, ordered by id.
	FetchSigned(ctx context.Context, signature string, limit int) ([]*domain.Job, error)

	// SaveStatus persists the job's status and, when the schema has the
	// columns, its retry count and sent-by stamps.
	SaveStatus(ctx context.Context, job *domain.Job) error

	Insert(ctx context.Context, jobs []*domain.Job) error
	Stats(ctx context.Context) (domain.Stats, error)
}
