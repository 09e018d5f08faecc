package config

import (
	"errors"
	"fmt"
	"time"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

// Database selects and tunes the backing store.
type Database struct {
	Driver   string `help:"Database driver (postgres, mysql, sqlite3)." enum:"postgres,mysql,sqlite3" default:"postgres" env:"HERMES_DB_DRIVER"`
	DSN      string `help:"Database connection string." env:"HERMES_DATABASE_URL,DATABASE_URL"`
	MaxConns int32  `help:"Maximum open connections." default:"5" env:"HERMES_DB_MAX_CONNS"`
	MinConns int32  `help:"Minimum idle connections (postgres only)." default:"1" env:"HERMES_DB_MIN_CONNS"`
}

func (d Database) Validate() error {
	switch d.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return fmt.Errorf("unsupported database driver %q", d.Driver)
	}
	if d.DSN == "" {
		return errors.New("database DSN is required")
	}
	if d.MaxConns <= 0 {
		return errors.New("max conns must be positive")
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		return errors.New("min conns must be between 0 and max conns")
	}
	return nil
}

// Fields names the table and the columns that play a role in dispatch.
// Retry, Affinity, SentBy and LastSent are optional: a column missing from
// the live table turns its feature off.
type Fields struct {
	Table     string `help:"Mail queue table." default:"hermes_mail" env:"HERMES_TABLE"`
	Signature string `help:"Column holding the claim token." default:"signature" env:"HERMES_SIGNATURE_FIELD"`
	Status    string `help:"Column holding the send status." default:"status" env:"HERMES_STATUS_FIELD"`
	Retry     string `help:"Column holding the retry count." default:"retry_times" env:"HERMES_RETRY_FIELD"`
	Affinity  string `help:"Column assigning a row to a server." default:"assigned_to_svr" env:"HERMES_AFFINITY_FIELD"`
	SentBy    string `help:"Column recording the sending server." default:"sent_by" env:"HERMES_SENT_BY_FIELD"`
	LastSent  string `help:"Column recording the last send time." default:"last_sent" env:"HERMES_LAST_SENT_FIELD"`
}

func (f Fields) Validate() error {
	if _, err := SanitizeTable(f.Table); err != nil {
		return err
	}
	for _, col := range []string{f.Signature, f.Status, f.Retry, f.Affinity, f.SentBy, f.LastSent} {
		if err := SanitizeColumn(col); err != nil {
			return err
		}
	}
	return nil
}

// Queue holds the run-queue options.
type Queue struct {
	TestMode       bool      `help:"Send through the random simulator instead of the real transport." env:"HERMES_TEST_MODE"`
	Seed           int64     `help:"Seed for the test-mode simulator (0 picks one from the clock)." env:"HERMES_TEST_SEED"`
	ServerID       int       `help:"Identity of this server; rows assigned to it are claimed." default:"0" env:"HERMES_SERVER_ID"`
	MaxSent        int       `help:"Stop after the claim batch that brings the sent counter to this value (0 = no limit)." env:"HERMES_MAX_SENT"`
	SignSize       int       `help:"Rows claimed per claim call." default:"100" env:"HERMES_SIGN_SIZE"`
	PageSize       int       `help:"Claimed rows loaded per page." default:"50" env:"HERMES_PAGE_SIZE"`
	RetryTimes     int       `help:"Resend attempts after a first failure (needs the retry column)." default:"0" env:"HERMES_RETRY_TIMES"`
	SignUnassigned bool      `help:"Also claim rows assigned to no server." default:"true" negatable:"" env:"HERMES_SIGN_UNASSIGNED"`
	RenewSignature bool      `help:"Use a fresh signature for every claim call." env:"HERMES_RENEW_SIGNATURE"`
	SpamRules      SpamRules `help:"Pause rules as sent=seconds pairs, e.g. 500=10,1000=30." env:"HERMES_SPAM_RULES"`
	LiteThrottle   bool      `help:"Use the scanning throttle instead of the cached next-stop one." env:"HERMES_LITE_THROTTLE"`
	DryThrottle    bool      `help:"Report throttle pauses without sleeping." env:"HERMES_DRY_THROTTLE"`
	RecordSentBy   bool      `help:"Stamp the sending server and time when the columns exist." env:"HERMES_RECORD_SENT_BY"`
	Workers        int       `help:"Independent dispatchers to run in this process." default:"1" env:"HERMES_WORKERS"`
	SendRate       float64   `help:"Maximum sends per second per dispatcher (0 = unlimited)." env:"HERMES_SEND_RATE"`
}

func (q Queue) Validate() error {
	if q.ServerID < 0 {
		return errors.New("server id must be non-negative")
	}
	if q.MaxSent < 0 {
		return errors.New("max sent must be non-negative")
	}
	if q.SignSize <= 0 {
		return errors.New("sign size must be positive")
	}
	if q.PageSize <= 0 {
		return errors.New("page size must be positive")
	}
	if q.RetryTimes < 0 {
		return errors.New("retry times must be non-negative")
	}
	if q.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	if q.SendRate < 0 {
		return errors.New("send rate must be non-negative")
	}
	return nil
}

// Provider configures the real transport.
type Provider struct {
	BaseURL string        `help:"Webhook URL mails are posted to." default:"http://localhost:8025/api/v1/send" env:"HERMES_PROVIDER_URL"`
	Timeout time.Duration `help:"Transport timeout per mail." default:"10s" env:"HERMES_PROVIDER_TIMEOUT"`
}

func (p Provider) Validate() error {
	if p.BaseURL == "" {
		return errors.New("provider URL is required")
	}
	if p.Timeout <= 0 {
		return errors.New("provider timeout must be positive")
	}
	return nil
}

// HTTP configures the optional API / metrics listener.
type HTTP struct {
	Addr            string        `help:"Listen address for the HTTP API (empty disables it)." env:"HERMES_HTTP_ADDR"`
	ReadTimeout     time.Duration `help:"HTTP read timeout." default:"5s" env:"HERMES_HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `help:"HTTP write timeout." default:"10s" env:"HERMES_HTTP_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `help:"Grace period for in-flight requests." default:"30s" env:"HERMES_SHUTDOWN_TIMEOUT"`
	StatsInterval   time.Duration `help:"How often the queue gauges are refreshed." default:"15s" env:"HERMES_STATS_INTERVAL"`
}

func (h HTTP) Validate() error {
	if h.Addr == "" {
		return nil
	}
	if h.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if h.StatsInterval <= 0 {
		return errors.New("stats interval must be positive")
	}
	return nil
}
