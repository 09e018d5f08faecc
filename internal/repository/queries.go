package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/notifyhub/hermes-dispatch/internal/config"
	"github.com/notifyhub/hermes-dispatch/internal/domain"
)

const idColumn = "id"

type claimStyle int

const (
	// UPDATE ... WHERE id IN (SELECT ... FOR UPDATE SKIP LOCKED)
	claimSkipLocked claimStyle = iota
	// single-table UPDATE ... ORDER BY id LIMIT n
	claimOrderLimit
	// UPDATE ... WHERE id IN (SELECT ... LIMIT n) under BEGIN IMMEDIATE
	claimSubquery
)

// dialect captures what differs between the supported SQL backends.
type dialect struct {
	driver string
	quote  func(parts ...string) string
	bind   func(n int) string
	asText func(expr string) string
	claim  claimStyle
}

var postgresDialect = dialect{
	driver: config.DriverPostgres,
	quote:  func(parts ...string) string { return pgx.Identifier(parts).Sanitize() },
	bind:   func(n int) string { return "$" + strconv.Itoa(n) },
	asText: func(expr string) string { return expr + "::text" },
	claim:  claimSkipLocked,
}

var mysqlDialect = dialect{
	driver: config.DriverMySQL,
	quote:  quoteWith("`"),
	bind:   func(int) string { return "?" },
	asText: func(expr string) string { return "CAST(" + expr + " AS CHAR)" },
	claim:  claimOrderLimit,
}

var sqliteDialect = dialect{
	driver: config.DriverSQLite,
	quote:  quoteWith(`"`),
	bind:   func(int) string { return "?" },
	asText: func(expr string) string { return "CAST(" + expr + " AS TEXT)" },
	claim:  claimSubquery,
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case config.DriverPostgres:
		return postgresDialect, nil
	case config.DriverMySQL:
		return mysqlDialect, nil
	case config.DriverSQLite:
		return sqliteDialect, nil
	}
	return dialect{}, fmt.Errorf("repository: unsupported driver %q", driver)
}

func quoteWith(q string) func(parts ...string) string {
	return func(parts ...string) string {
		quoted := make([]string, len(parts))
		for i, p := range parts {
			quoted[i] = q + strings.ReplaceAll(p, q, q+q) + q
		}
		return strings.Join(quoted, ".")
	}
}

// columnsQuery lists the live columns of table.
func (d dialect) columnsQuery(table string) (string, []any) {
	schemaName, name, qualified := strings.Cut(table, ".")
	if !qualified {
		name = schemaName
	}
	switch d.driver {
	case config.DriverPostgres:
		if qualified {
			return `SELECT column_name FROM information_schema.columns
				WHERE table_schema = $1 AND table_name = $2`, []any{schemaName, name}
		}
		return `SELECT column_name FROM information_schema.columns
			WHERE table_schema = current_schema() AND table_name = $1`, []any{name}
	case config.DriverMySQL:
		if qualified {
			return `SELECT COLUMN_NAME FROM information_schema.COLUMNS
				WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`, []any{schemaName, name}
		}
		return `SELECT COLUMN_NAME FROM information_schema.COLUMNS
			WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?`, []any{name}
	default:
		if qualified {
			return `SELECT name FROM pragma_table_info(?, ?)`, []any{name, schemaName}
		}
		return `SELECT name FROM pragma_table_info(?)`, []any{name}
	}
}

// argList collects bind arguments and hands out the matching placeholders.
type argList struct {
	d    dialect
	args []any
}

func (a *argList) add(v any) string {
	a.args = append(a.args, v)
	return a.d.bind(len(a.args))
}

// queries holds the quoted identifiers of one table and renders every
// statement the repositories run.
type queries struct {
	d       dialect
	schema  domain.Schema
	payload []string

	table, id, sig, status, retry, affinity, sentBy, lastSent string
}

func newQueries(d dialect, fields config.Fields, columns []string, payload []string) (*queries, error) {
	schema, present, err := resolveSchema(columns, fields, payload)
	if err != nil {
		return nil, err
	}
	return &queries{
		d:        d,
		schema:   schema,
		payload:  present,
		table:    d.quote(strings.Split(fields.Table, ".")...),
		id:       d.quote(idColumn),
		sig:      d.quote(fields.Signature),
		status:   d.quote(fields.Status),
		retry:    d.quote(fields.Retry),
		affinity: d.quote(fields.Affinity),
		sentBy:   d.quote(fields.SentBy),
		lastSent: d.quote(fields.LastSent),
	}, nil
}

// resolveSchema maps the live column list onto the configured field roles.
// Payload columns the table lacks are dropped.
func resolveSchema(columns []string, fields config.Fields, payload []string) (domain.Schema, []string, error) {
	if len(columns) == 0 {
		return domain.Schema{}, nil, fmt.Errorf("%w: table %s not found", domain.ErrSchemaMismatch, fields.Table)
	}
	live := make(map[string]bool, len(columns))
	for _, c := range columns {
		live[strings.ToLower(c)] = true
	}
	has := func(c string) bool { return live[strings.ToLower(c)] }

	for _, c := range []string{idColumn, fields.Signature, fields.Status} {
		if !has(c) {
			return domain.Schema{}, nil, fmt.Errorf("%w: %s has no column %s", domain.ErrSchemaMismatch, fields.Table, c)
		}
	}

	present := make([]string, 0, len(payload))
	for _, c := range payload {
		if has(c) {
			present = append(present, c)
		}
	}

	return domain.Schema{
		HasRetry:    has(fields.Retry),
		HasAffinity: has(fields.Affinity),
		HasSentBy:   has(fields.SentBy),
		HasLastSent: has(fields.LastSent),
	}, present, nil
}

func (q *queries) args() *argList {
	return &argList{d: q.d}
}

func (q *queries) unsigned() string {
	return fmt.Sprintf("(%s IS NULL OR %s = '')", q.sig, q.sig)
}

// claim renders the atomic claim for req.
func (q *queries) claim(req domain.ClaimRequest) (string, []any, error) {
	a := q.args()
	sig := a.add(req.Signature)

	cond := q.unsigned()
	switch {
	case q.schema.HasAffinity && req.IncludeUnassigned:
		cond += fmt.Sprintf(" AND (%s = %s OR %s IS NULL)", q.affinity, a.add(req.ServerID), q.affinity)
	case q.schema.HasAffinity:
		cond += fmt.Sprintf(" AND %s = %s", q.affinity, a.add(req.ServerID))
	case !req.IncludeUnassigned:
		return "", nil, domain.ErrAffinityUnsupported
	}
	limit := a.add(req.Limit)

	var query string
	switch q.d.claim {
	case claimSkipLocked:
		query = fmt.Sprintf(`UPDATE %[1]s SET %[2]s = %[3]s
			WHERE %[4]s IN (
				SELECT %[4]s FROM %[1]s WHERE %[5]s
				ORDER BY %[4]s LIMIT %[6]s
				FOR UPDATE SKIP LOCKED
			) AND %[7]s`, q.table, q.sig, sig, q.id, cond, limit, q.unsigned())
	case claimOrderLimit:
		query = fmt.Sprintf(`UPDATE %s SET %s = %s WHERE %s ORDER BY %s LIMIT %s`,
			q.table, q.sig, sig, cond, q.id, limit)
	default:
		query = fmt.Sprintf(`UPDATE %[1]s SET %[2]s = %[3]s
			WHERE %[4]s IN (
				SELECT %[4]s FROM %[1]s WHERE %[5]s
				ORDER BY %[4]s LIMIT %[6]s
			)`, q.table, q.sig, sig, q.id, cond, limit)
	}
	return query, a.args, nil
}

// fetch selects one page of pending rows carrying signature.
func (q *queries) fetch(signature string, limit int) (string, []any) {
	a := q.args()
	cols := []string{q.id, fmt.Sprintf("COALESCE(%s, '')", q.status)}
	if q.schema.HasRetry {
		cols = append(cols, fmt.Sprintf("COALESCE(%s, 0)", q.retry))
	}
	if q.schema.HasAffinity {
		cols = append(cols, q.affinity)
	}
	for _, c := range q.payload {
		cols = append(cols, q.d.asText(q.d.quote(c)))
	}

	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE %s = %s AND (%s IS NULL OR %s = '' OR %s = %s)
		ORDER BY %s LIMIT %s`,
		strings.Join(cols, ", "), q.table,
		q.sig, a.add(signature), q.status, q.status, q.status, a.add(string(domain.StatusRetry)),
		q.id, a.add(limit))
	return query, a.args
}

// scanJob reads one row produced by fetch.
func (q *queries) scanJob(scan func(dest ...any) error) (*domain.Job, error) {
	job := &domain.Job{Payload: make(map[string]string, len(q.payload))}
	var status string
	dest := []any{&job.ID, &status}
	if q.schema.HasRetry {
		dest = append(dest, &job.RetryCount)
	}
	if q.schema.HasAffinity {
		dest = append(dest, &job.AssignedServer)
	}
	values := make([]*string, len(q.payload))
	for i := range values {
		dest = append(dest, &values[i])
	}
	if err := scan(dest...); err != nil {
		return nil, err
	}
	job.Status = domain.Status(status)
	for i, v := range values {
		if v != nil {
			job.Payload[q.payload[i]] = *v
		}
	}
	return job, nil
}

// save renders the status write for job. It only touches rows still
// carrying the job's signature.
func (q *queries) save(job *domain.Job) (string, []any) {
	a := q.args()
	set := []string{q.status + " = " + a.add(nullableStatus(job.Status))}
	if q.schema.HasRetry {
		set = append(set, q.retry+" = "+a.add(job.RetryCount))
	}
	if q.schema.HasSentBy && job.SentBy != nil {
		set = append(set, q.sentBy+" = "+a.add(*job.SentBy))
	}
	if q.schema.HasLastSent && job.LastSent != nil {
		set = append(set, q.lastSent+" = "+a.add(job.LastSent.UTC()))
	}

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = %s`,
		q.table, strings.Join(set, ", "), q.id, a.add(job.ID))
	if job.Signature != "" {
		query += fmt.Sprintf(" AND %s = %s", q.sig, a.add(job.Signature))
	}
	return query, a.args
}

// insert renders an INSERT of job's id, known payload columns and roles.
func (q *queries) insert(job *domain.Job) (string, []any) {
	a := q.args()
	cols := []string{q.id}
	vals := []string{a.add(job.ID)}
	for _, c := range q.payload {
		if v, ok := job.Payload[c]; ok {
			cols = append(cols, q.d.quote(c))
			vals = append(vals, a.add(v))
		}
	}
	if job.Status != domain.StatusNever {
		cols = append(cols, q.status)
		vals = append(vals, a.add(string(job.Status)))
	}
	if q.schema.HasRetry {
		cols = append(cols, q.retry)
		vals = append(vals, a.add(job.RetryCount))
	}
	if q.schema.HasAffinity && job.AssignedServer != nil {
		cols = append(cols, q.affinity)
		vals = append(vals, a.add(*job.AssignedServer))
	}
	return fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
		q.table, strings.Join(cols, ", "), strings.Join(vals, ", ")), a.args
}

// stats counts rows by claim state and status.
func (q *queries) stats() string {
	count := func(cond string) string {
		return fmt.Sprintf("COALESCE(SUM(CASE WHEN %s THEN 1 ELSE 0 END), 0)", cond)
	}
	return fmt.Sprintf(`SELECT COUNT(*), %s, %s, %s, %s, %s FROM %s`,
		count(q.unsigned()),
		count(fmt.Sprintf("%s IS NULL OR %s = ''", q.status, q.status)),
		count(fmt.Sprintf("%s = '%s'", q.status, domain.StatusRetry)),
		count(fmt.Sprintf("%s = '%s'", q.status, domain.StatusSucceed)),
		count(fmt.Sprintf("%s = '%s'", q.status, domain.StatusFailed)),
		q.table)
}

func scanStats(scan func(dest ...any) error) (domain.Stats, error) {
	var s domain.Stats
	err := scan(&s.Total, &s.Unclaimed, &s.Never, &s.Retry, &s.Succeed, &s.Failed)
	return s, err
}

func nullableStatus(s domain.Status) any {
	if s == domain.StatusNever {
		return nil
	}
	return string(s)
}
