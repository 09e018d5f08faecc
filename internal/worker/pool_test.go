package worker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/provider"
	"github.com/notifyhub/hermes-dispatch/internal/repository"
	"github.com/notifyhub/hermes-dispatch/internal/worker"
)

func TestPool_EveryJobSentOnce(t *testing.T) {
	repo := repository.NewMockJobRepository()
	fill(t, repo, 300, nil)
	sender := always(true)

	cfg := queueConfig()
	cfg.Workers = 4
	cfg.SignSize = 13
	cfg.PageSize = 5

	pool := worker.NewPool(cfg, repo, sender, provider.MustDefaultFieldMap(), zap.NewNop(), worker.MetricHooks{})
	pool.Start(context.Background())
	results, err := pool.Wait()
	require.NoError(t, err)
	require.Len(t, results, 4)

	total := worker.Total(results)
	require.Equal(t, 300, total.Sent)
	require.Equal(t, 300, total.Claimed)
	for _, j := range repo.All() {
		require.Equal(t, 1, sender.attempts(j.ID), j.ID)
	}
}

func TestPool_StorageErrorStopsAll(t *testing.T) {
	repo := repository.NewMockJobRepository()
	fill(t, repo, 50, nil)
	repo.SaveErr = errors.New("disk full")

	cfg := queueConfig()
	cfg.Workers = 3
	pool := worker.NewPool(cfg, repo, always(true), provider.MustDefaultFieldMap(), zap.NewNop(), worker.MetricHooks{})
	pool.Start(context.Background())
	_, err := pool.Wait()
	require.ErrorIs(t, err, repo.SaveErr)
}
