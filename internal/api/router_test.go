package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/api"
	"github.com/notifyhub/hermes-dispatch/internal/api/handler"
	"github.com/notifyhub/hermes-dispatch/internal/domain"
	"github.com/notifyhub/hermes-dispatch/internal/metrics"
	"github.com/notifyhub/hermes-dispatch/internal/repository"
	"github.com/notifyhub/hermes-dispatch/internal/service"
)

func newServer(t *testing.T, ping handler.Pinger) (*httptest.Server, *repository.MockJobRepository) {
	t.Helper()
	repo := repository.NewMockJobRepository()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	router := api.NewRouter(service.NewJobService(repo, zap.NewNop()), m, reg, ping, zap.NewNop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, repo
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEnqueue(t *testing.T) {
	srv, repo := newServer(t, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"created", `{"to":"a@example.com","from":"b@example.com","subject":"hi","body":"hello"}`, http.StatusCreated},
		{"missing recipient", `{"from":"b@example.com","body":"hello"}`, http.StatusUnprocessableEntity},
		{"subject too long", `{"to":"a","from":"b","body":"c","subject":"` + strings.Repeat("x", 101) + `"}`, http.StatusUnprocessableEntity},
		{"malformed", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/api/v1/jobs", tt.body)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
			if resp.Header.Get("X-Correlation-ID") == "" {
				t.Error("expected a correlation id header")
			}
		})
	}

	if n := len(repo.All()); n != 1 {
		t.Fatalf("expected 1 stored mail, got %d", n)
	}
}

func TestEnqueueBatch(t *testing.T) {
	srv, repo := newServer(t, nil)

	resp := post(t, srv.URL+"/api/v1/jobs/batch",
		`{"mails":[{"to":"a","from":"b","body":"c"},{"to":"d","from":"e","body":"f"}]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var out struct {
		Count int      `json:"count"`
		IDs   []string `json:"ids"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Count != 2 || len(out.IDs) != 2 || len(repo.All()) != 2 {
		t.Fatalf("unexpected batch response %+v", out)
	}

	resp = post(t, srv.URL+"/api/v1/jobs/batch", `{"mails":[]}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("empty batch status = %d, want 422", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	srv, repo := newServer(t, nil)
	if err := repo.Insert(context.Background(), []*domain.Job{
		{ID: "1"}, {ID: "2", Status: domain.StatusSucceed, Signature: "s"},
	}); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/api/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var s domain.Stats
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		t.Fatal(err)
	}
	want := domain.Stats{Total: 2, Unclaimed: 1, Never: 1, Succeed: 1}
	if s != want {
		t.Fatalf("stats = %+v, want %+v", s, want)
	}

	repo.StatsErr = errors.New("db down")
	resp2, err := http.Get(srv.URL + "/api/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp2.StatusCode)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv, _ := newServer(t, func(context.Context) error { return nil })
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("database down", func(t *testing.T) {
		srv, _ := newServer(t, func(context.Context) error { return errors.New("refused") })
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", resp.StatusCode)
		}
	})

	t.Run("prometheus scrape", func(t *testing.T) {
		srv, _ := newServer(t, nil)
		// Populate the queue gauges first.
		r, err := http.Get(srv.URL + "/api/v1/stats")
		if err != nil {
			t.Fatal(err)
		}
		r.Body.Close()

		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(body), "hermes_queue_rows") {
			t.Fatalf("expected queue gauges in scrape output")
		}
	})
}
