package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/notifyhub/hermes-dispatch/internal/config"
	"github.com/notifyhub/hermes-dispatch/internal/domain"
)

type sqlJobRepository struct {
	db *sql.DB
	q  *queries
}

// NewSQLJobRepository returns a JobRepository backed by database/sql for the
// mysql and sqlite3 drivers. SQLite handles must be opened with
// _txlock=immediate (see db.OpenSQL) so claims serialize on the write lock.
func NewSQLJobRepository(ctx context.Context, db *sql.DB, driver string, fields config.Fields, payload []string) (JobRepository, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if d.driver == config.DriverPostgres {
		return nil, fmt.Errorf("repository: use NewPgJobRepository for %s", driver)
	}

	query, args := d.columnsQuery(fields.Table)
	rows, err := db.QueryContext(ctx, query, args...)
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

	q, err := newQueries(d, fields, columns, payload)
	if err != nil {
		return nil, err
	}
	return &sqlJobRepository{db: db, q: q}, nil
}

func (r *sqlJobRepository) Schema() domain.Schema {
	return r.q.schema
}

// Claim runs the conditional update in its own transaction. On SQLite the
// transaction starts with BEGIN IMMEDIATE, so the select and the update
// happen under the database write lock.
func (r *sqlJobRepository) Claim(ctx context.Context, req domain.ClaimRequest) (int, error) {
	query, args, err := r.q.claim(req)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin claim: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("claim rows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("claim rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit claim: %w", err)
	}
	return int(n), nil
}

func (r *sqlJobRepository) FetchSigned(ctx context.Context, signature string, limit int) ([]*domain.Job, error) {
	query, args := r.q.fetch(signature, limit)
	rows, err := r.db.QueryContext(ctx, query, args...)
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

func (r *sqlJobRepository) SaveStatus(ctx context.Context, job *domain.Job) error {
	query, args := r.q.save(job)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save status of %s: %w", job.ID, err)
	}
	return nil
}

func (r *sqlJobRepository) Insert(ctx context.Context, jobs []*domain.Job) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, job := range jobs {
		query, args := r.q.insert(job)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func (r *sqlJobRepository) Stats(ctx context.Context) (domain.Stats, error) {
	s, err := scanStats(r.db.QueryRowContext(ctx, r.q.stats()).Scan)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count jobs: %w", err)
	}
	return s, nil
}
