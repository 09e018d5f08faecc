package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/notifyhub/hermes-dispatch/internal/config"
)

func TestSpamRules_UnmarshalText(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    config.SpamRules
		wantErr bool
	}{
		{"pairs", "500=10,1000=30", config.SpamRules{500: 10, 1000: 30}, false},
		{"colon and spaces", " 500:10 , 1000 = 30 ", config.SpamRules{500: 10, 1000: 30}, false},
		{"empty", "", config.SpamRules{}, false},
		{"zero threshold kept", "0=5", config.SpamRules{0: 5}, false},
		{"missing separator", "500", nil, true},
		{"not a number", "abc=1", nil, true},
		{"negative", "500=-1", nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var got config.SpamRules
			err := got.UnmarshalText([]byte(tc.in))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("expected %v, got %v", tc.want, got)
				}
			}
		})
	}
}

func TestSpamRules_String(t *testing.T) {
	r := config.SpamRules{1000: 30, 500: 10}
	if got := r.String(); got != "500=10,1000=30" {
		t.Fatalf("unexpected text form %q", got)
	}
}

func TestQueue_Validate(t *testing.T) {
	valid := config.Queue{SignSize: 100, PageSize: 50, Workers: 1}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid queue config, got %v", err)
	}

	mutations := map[string]func(q *config.Queue){
		"negative server":  func(q *config.Queue) { q.ServerID = -1 },
		"negative max":     func(q *config.Queue) { q.MaxSent = -1 },
		"zero sign size":   func(q *config.Queue) { q.SignSize = 0 },
		"zero page size":   func(q *config.Queue) { q.PageSize = 0 },
		"negative retries": func(q *config.Queue) { q.RetryTimes = -1 },
		"zero workers":     func(q *config.Queue) { q.Workers = 0 },
		"negative rate":    func(q *config.Queue) { q.SendRate = -1 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			q := valid
			mutate(&q)
			if err := q.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestDatabase_Validate(t *testing.T) {
	db := config.Database{Driver: config.DriverSQLite, DSN: "file.db", MaxConns: 2, MinConns: 1}
	if err := db.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	db.Driver = "oracle"
	if err := db.Validate(); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestFields_Validate(t *testing.T) {
	f := config.Fields{
		Table: "mail.hermes_mail", Signature: "signature", Status: "status",
		Retry: "retry_times", Affinity: "assigned_to_svr", SentBy: "sent_by", LastSent: "last_sent",
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f.Status = "status; DROP TABLE hermes_mail"
	if err := f.Validate(); !errors.Is(err, config.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier, got %v", err)
	}

	if _, err := config.SanitizeTable("a..b"); !errors.Is(err, config.ErrInvalidIdentifier) {
		t.Fatalf("expected ErrInvalidIdentifier for empty segment, got %v", err)
	}
}

func TestHTTP_Validate(t *testing.T) {
	if err := (config.HTTP{}).Validate(); err != nil {
		t.Fatalf("disabled listener needs no timeouts: %v", err)
	}
	h := config.HTTP{Addr: ":8080", ShutdownTimeout: time.Second, StatsInterval: time.Second}
	if err := h.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	h.StatsInterval = 0
	if err := h.Validate(); err == nil {
		t.Fatal("expected stats interval error")
	}
}
