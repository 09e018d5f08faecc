package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/config"
	"github.com/notifyhub/hermes-dispatch/internal/domain"
	"github.com/notifyhub/hermes-dispatch/internal/provider"
	"github.com/notifyhub/hermes-dispatch/internal/repository"
	"github.com/notifyhub/hermes-dispatch/internal/worker"
)

// scriptedSender returns outcome(msg) and counts sends per job id.
type scriptedSender struct {
	mu      sync.Mutex
	outcome func(msg provider.Message) bool
	calls   map[string]int
}

func newSender(outcome func(provider.Message) bool) *scriptedSender {
	return &scriptedSender{outcome: outcome, calls: make(map[string]int)}
}

func always(v bool) *scriptedSender {
	return newSender(func(provider.Message) bool { return v })
}

func (s *scriptedSender) Send(_ context.Context, msg provider.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[msg.JobID]++
	return s.outcome(msg)
}

func (s *scriptedSender) attempts(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[id]
}

func queueConfig() config.Queue {
	return config.Queue{
		SignSize:       100,
		PageSize:       50,
		SignUnassigned: true,
		DryThrottle:    true,
		Workers:        1,
	}
}

func fill(t *testing.T, repo *repository.MockJobRepository, n int, assigned *int) {
	t.Helper()
	jobs := make([]*domain.Job, n)
	for i := range jobs {
		jobs[i] = &domain.Job{
			ID:             fmt.Sprintf("job-%04d", i),
			AssignedServer: assigned,
			Payload:        map[string]string{"to": fmt.Sprintf("to_%d@example.com", i), "subject": "hi"},
		}
	}
	require.NoError(t, repo.Insert(context.Background(), jobs))
}

func run(t *testing.T, cfg config.Queue, repo repository.JobRepository, sender provider.Sender) (worker.Result, error) {
	t.Helper()
	d := worker.NewDispatcher(0, cfg, repo, sender, provider.MustDefaultFieldMap(), zap.NewNop(), worker.MetricHooks{})
	return d.Run(context.Background())
}

func TestDispatcher_DrainsQueue(t *testing.T) {
	repo := repository.NewMockJobRepository()
	fill(t, repo, 30, nil)

	res, err := run(t, queueConfig(), repo, always(true))
	require.NoError(t, err)
	require.Equal(t, worker.StopDrained, res.Reason)
	require.Equal(t, 30, res.Claimed)
	require.Equal(t, 30, res.Sent)
	require.Equal(t, 30, res.Succeeded)

	for _, j := range repo.All() {
		require.Equal(t, domain.StatusSucceed, j.Status, j.ID)
		require.NotEmpty(t, j.Signature)
	}
}

func TestDispatcher_RetryExhaustion(t *testing.T) {
	const limit = 3
	repo := repository.NewMockJobRepository()
	fill(t, repo, 2, nil)
	sender := always(false)

	cfg := queueConfig()
	cfg.RetryTimes = limit
	res, err := run(t, cfg, repo, sender)
	require.NoError(t, err)
	require.Equal(t, 2*(limit+1), res.Sent)
	require.Equal(t, 2, res.Failed)

	for _, j := range repo.All() {
		require.Equal(t, limit+1, sender.attempts(j.ID), "attempts for %s", j.ID)
		require.Equal(t, domain.StatusFailed, j.Status)
		require.Equal(t, limit, j.RetryCount)
	}
}

func TestDispatcher_RetryThenSucceed(t *testing.T) {
	repo := repository.NewMockJobRepository()
	fill(t, repo, 1, nil)
	calls := 0
	sender := newSender(func(provider.Message) bool {
		calls++
		return calls == 3
	})

	cfg := queueConfig()
	cfg.RetryTimes = 5
	res, err := run(t, cfg, repo, sender)
	require.NoError(t, err)
	require.Equal(t, 3, res.Sent)

	j, ok := repo.Get("job-0000")
	require.True(t, ok)
	require.Equal(t, domain.StatusSucceed, j.Status)
	require.Equal(t, 2, j.RetryCount)
}

func TestDispatcher_RetryDisabled(t *testing.T) {
	tests := []struct {
		name       string
		schema     domain.Schema
		retryTimes int
	}{
		{"zero retry limit", domain.Schema{HasRetry: true, HasAffinity: true}, 0},
		{"no retry column", domain.Schema{HasAffinity: true}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMockJobRepositoryWithSchema(tt.schema)
			fill(t, repo, 10, nil)
			sender := newSender(func(msg provider.Message) bool { return msg.JobID < "job-0005" })

			cfg := queueConfig()
			cfg.RetryTimes = tt.retryTimes
			res, err := run(t, cfg, repo, sender)
			require.NoError(t, err)
			require.Equal(t, 10, res.Sent)
			require.Equal(t, 5, res.Succeeded)
			require.Equal(t, 5, res.Failed)
			require.Zero(t, res.Retried)

			for _, j := range repo.All() {
				require.Equal(t, 1, sender.attempts(j.ID))
				require.True(t, j.Status.IsAbsorbing())
			}
		})
	}
}

func TestDispatcher_CeilingOvershootBound(t *testing.T) {
	repo := repository.NewMockJobRepository()
	fill(t, repo, 1000, nil)

	cfg := queueConfig()
	cfg.MaxSent = 150
	cfg.SignSize = 100
	cfg.PageSize = 50
	res, err := run(t, cfg, repo, always(true))
	require.NoError(t, err)
	require.Equal(t, worker.StopMaxSent, res.Reason)
	require.GreaterOrEqual(t, res.Sent, cfg.MaxSent)
	require.LessOrEqual(t, res.Sent, cfg.MaxSent+cfg.PageSize)
	require.Equal(t, res.Claimed, res.Sent, "a claim batch is always finished before stopping")

	s, err := repo.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1000-res.Claimed, s.Unclaimed)
}

func TestDispatcher_AffinityUnsupported(t *testing.T) {
	repo := repository.NewMockJobRepositoryWithSchema(domain.Schema{HasRetry: true})
	fill(t, repo, 5, nil)
	sender := always(true)

	cfg := queueConfig()
	cfg.SignUnassigned = false
	res, err := run(t, cfg, repo, sender)
	require.NoError(t, err, "configuration mismatch is not a storage error")
	require.Equal(t, worker.StopAffinityUnsupported, res.Reason)
	require.Zero(t, res.Sent)

	s, err := repo.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, s.Unclaimed)
}

func TestDispatcher_AffinityLeavesOtherServersAlone(t *testing.T) {
	repo := repository.NewMockJobRepository()
	mine, theirs := 1, 2
	require.NoError(t, repo.Insert(context.Background(), []*domain.Job{
		{ID: "a", AssignedServer: &mine},
		{ID: "b", AssignedServer: &theirs},
		{ID: "c"},
	}))

	cfg := queueConfig()
	cfg.ServerID = mine
	cfg.SignUnassigned = false
	res, err := run(t, cfg, repo, always(true))
	require.NoError(t, err)
	require.Equal(t, 1, res.Sent)

	b, _ := repo.Get("b")
	c, _ := repo.Get("c")
	require.False(t, b.IsClaimed())
	require.False(t, c.IsClaimed())
}

func TestDispatcher_StorageErrorsAreFatal(t *testing.T) {
	boom := errors.New("connection reset")
	tests := []struct {
		name   string
		inject func(*repository.MockJobRepository)
	}{
		{"claim", func(r *repository.MockJobRepository) { r.ClaimErr = boom }},
		{"fetch", func(r *repository.MockJobRepository) { r.FetchErr = boom }},
		{"persist", func(r *repository.MockJobRepository) { r.SaveErr = boom }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMockJobRepository()
			fill(t, repo, 3, nil)
			tt.inject(repo)

			_, err := run(t, queueConfig(), repo, always(true))
			require.ErrorIs(t, err, boom)
		})
	}
}

func TestDispatcher_DryRunThrottleReportsPauses(t *testing.T) {
	repo := repository.NewMockJobRepository()
	fill(t, repo, 25, nil)

	cfg := queueConfig()
	cfg.SpamRules = config.SpamRules{10: 3600}
	cfg.DryThrottle = true

	start := time.Now()
	res, err := run(t, cfg, repo, always(true))
	require.NoError(t, err)
	require.Equal(t, 2, res.Pauses)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestDispatcher_ThrottleStrategiesAgree(t *testing.T) {
	for _, lite := range []bool{false, true} {
		t.Run(fmt.Sprintf("lite=%v", lite), func(t *testing.T) {
			repo := repository.NewMockJobRepository()
			fill(t, repo, 120, nil)

			var pauses []time.Duration
			hooks := worker.MetricHooks{OnPause: func(d time.Duration) { pauses = append(pauses, d) }}
			cfg := queueConfig()
			cfg.SpamRules = config.SpamRules{25: 1, 50: 2}
			cfg.LiteThrottle = lite

			d := worker.NewDispatcher(0, cfg, repo, always(true), provider.MustDefaultFieldMap(), zap.NewNop(), hooks)
			_, err := d.Run(context.Background())
			require.NoError(t, err)
			require.Equal(t, []time.Duration{time.Second, 2 * time.Second, time.Second, 2 * time.Second}, pauses)
		})
	}
}

func TestDispatcher_RecordSentBy(t *testing.T) {
	repo := repository.NewMockJobRepository()
	fill(t, repo, 1, nil)

	cfg := queueConfig()
	cfg.ServerID = 4
	cfg.RecordSentBy = true
	_, err := run(t, cfg, repo, always(true))
	require.NoError(t, err)

	j, _ := repo.Get("job-0000")
	require.NotNil(t, j.SentBy)
	require.Equal(t, 4, *j.SentBy)
	require.NotNil(t, j.LastSent)

	repo = repository.NewMockJobRepository()
	fill(t, repo, 1, nil)
	cfg.RecordSentBy = false
	_, err = run(t, cfg, repo, always(true))
	require.NoError(t, err)
	j, _ = repo.Get("job-0000")
	require.Nil(t, j.SentBy)
}

func TestDispatcher_CancelledContext(t *testing.T) {
	repo := repository.NewMockJobRepository()
	fill(t, repo, 5, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := worker.NewDispatcher(0, queueConfig(), repo, always(true), provider.MustDefaultFieldMap(), zap.NewNop(), worker.MetricHooks{})
	res, err := d.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, worker.StopCancelled, res.Reason)
	require.Zero(t, res.Sent)
}

func TestClaimer(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewMockJobRepository()
	fill(t, repo, 7, nil)

	c := worker.NewClaimer(repo, 0, 5, true)
	batch, err := c.Claim(ctx, "sig-1")
	require.NoError(t, err)
	require.Equal(t, domain.ClaimBatch{Limit: 5, Claimed: 5, Signature: "sig-1"}, batch)

	batch, err = c.Claim(ctx, "sig-2")
	require.NoError(t, err)
	require.Equal(t, 2, batch.Claimed)

	noAffinity := repository.NewMockJobRepositoryWithSchema(domain.Schema{})
	_, err = worker.NewClaimer(noAffinity, 0, 5, false).Claim(ctx, "sig")
	require.ErrorIs(t, err, domain.ErrAffinityUnsupported)
}
