package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/notifyhub/hermes-dispatch/internal/config"
)

// SQLiteBusyTimeoutMillis bounds how long a writer waits for the database
// lock before giving up.
const SQLiteBusyTimeoutMillis = 10000

// OpenSQL opens a database/sql handle for the mysql and sqlite3 drivers and
// verifies connectivity.
func OpenSQL(ctx context.Context, cfg config.Database) (*sql.DB, error) {
	var dsn string
	switch cfg.Driver {
	case config.DriverMySQL:
		normalized, err := mysqlDSN(cfg.DSN)
		if err != nil {
			return nil, err
		}
		dsn = normalized
	case config.DriverSQLite:
		dsn = sqliteDSN(cfg.DSN)
	default:
		return nil, fmt.Errorf("open sql: unsupported driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MaxConns))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// mysqlDSN turns on parseTime so DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// sqliteDSN makes every transaction take the write lock up front
// (BEGIN IMMEDIATE) and waits on a busy database instead of failing.
func sqliteDSN(dsn string) string {
	var params []string
	if !strings.Contains(dsn, "_txlock=") {
		params = append(params, "_txlock=immediate")
	}
	if !strings.Contains(dsn, "_busy_timeout=") && !strings.Contains(dsn, "_timeout=") {
		params = append(params, fmt.Sprintf("_busy_timeout=%d", SQLiteBusyTimeoutMillis))
	}
	if !strings.Contains(dsn, "_journal") {
		params = append(params, "_journal_mode=WAL")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}
