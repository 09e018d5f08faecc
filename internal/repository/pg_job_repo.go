package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifyhub/hermes-dispatch/internal/config"
	"github.com/notifyhub/hermes-dispatch/internal/domain"
)

type pgJobRepository struct {
	pool *pgxpool.Pool
	q    *queries
}

// NewPgJobRepository returns a JobRepository backed by PostgreSQL. It reads
// the table's column list once to resolve the optional capabilities.
// payload names the columns copied into Job.Payload.
func NewPgJobRepository(ctx context.Context, pool *pgxpool.Pool, fields config.Fields, payload []string) (JobRepository, error) {
	query, args := postgresDialect.columnsQuery(fields.Table)
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}

	q, err := newQueries(postgresDialect, fields, columns, payload)
	if err != nil {
		return nil, err
	}
	return &pgJobRepository{pool: pool, q: q}, nil
}

func (r *pgJobRepository) Schema() domain.Schema {
	return r.q.schema
}

func (r *pgJobRepository) Claim(ctx context.Context, req domain.ClaimRequest) (int, error) {
	query, args, err := r.q.claim(req)
	if err != nil {
		return 0, err
	}
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("claim rows: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *pgJobRepository) FetchSigned(ctx context.Context, signature string, limit int) ([]*domain.Job, error) {
	query, args := r.q.fetch(signature, limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch signed rows: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := r.q.scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		job.Signature = signature
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (r *pgJobRepository) SaveStatus(ctx context.Context, job *domain.Job) error {
	query, args := r.q.save(job)
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save status of %s: %w", job.ID, err)
	}
	return nil
}

func (r *pgJobRepository) Insert(ctx context.Context, jobs []*domain.Job) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, job := range jobs {
		query, args := r.q.insert(job)
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func (r *pgJobRepository) Stats(ctx context.Context) (domain.Stats, error) {
	s, err := scanStats(r.pool.QueryRow(ctx, r.q.stats()).Scan)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count jobs: %w", err)
	}
	return s, nil
}
