package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/config"
	"github.com/notifyhub/hermes-dispatch/internal/domain"
	"github.com/notifyhub/hermes-dispatch/internal/provider"
	"github.com/notifyhub/hermes-dispatch/internal/repository"
)

// MetricHooks carries the metric callback functions injected by main.
// Using a struct keeps the pool constructor signature clean.
type MetricHooks struct {
	OnClaimed func(rows int)
	OnAttempt func(status domain.Status, latency time.Duration)
	OnPause   func(pause time.Duration)
}

func (h MetricHooks) withDefaults() MetricHooks {
	if h.OnClaimed == nil {
		h.OnClaimed = func(int) {}
	}
	if h.OnAttempt == nil {
		h.OnAttempt = func(domain.Status, time.Duration) {}
	}
	if h.OnPause == nil {
		h.OnPause = func(time.Duration) {}
	}
	return h
}

// Pool runs cfg.Workers independent dispatchers. Each has its own
// signature, throttle state and send limiter; they only coordinate through
// the repository's atomic claim.
type Pool struct {
	dispatchers []*Dispatcher
	logger      *zap.Logger

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	mu      sync.Mutex
	results []Result
	errs    []error
}

func NewPool(
	cfg config.Queue,
	repo repository.JobRepository,
	sender provider.Sender,
	fields *provider.FieldMap,
	logger *zap.Logger,
	hooks MetricHooks,
) *Pool {
	dispatchers := make([]*Dispatcher, cfg.Workers)
	for i := range dispatchers {
		dispatchers[i] = NewDispatcher(
			i, cfg, repo, sender, fields,
			logger.With(zap.Int("worker_id", i)),
			hooks,
		)
	}
	return &Pool{
		dispatchers: dispatchers,
		logger:      logger,
		results:     make([]Result, len(dispatchers)),
		errs:        make([]error, len(dispatchers)),
	}
}

// Start launches all dispatchers as goroutines. A storage error in one of
// them cancels the others.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i, d := range p.dispatchers {
		p.wg.Add(1)
		go func(i int, d *Dispatcher) {
			defer p.wg.Done()
			res, err := d.Run(ctx)
			p.mu.Lock()
			p.results[i], p.errs[i] = res, err
			p.mu.Unlock()
			if err != nil {
				p.logger.Error("dispatcher failed", zap.Int("worker_id", i), zap.Error(err))
				p.cancel()
			}
		}(i, d)
	}
}

// Wait blocks until every dispatcher has returned and reports their
// results along with any storage errors.
func (p *Pool) Wait() ([]Result, error) {
	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Result(nil), p.results...), errors.Join(p.errs...)
}

// Total sums the counters of several results.
func Total(results []Result) Result {
	var t Result
	for _, r := range results {
		t.Claimed += r.Claimed
		t.Sent += r.Sent
		t.Succeeded += r.Succeeded
		t.Failed += r.Failed
		t.Retried += r.Retried
		t.Pauses += r.Pauses
	}
	return t
}
