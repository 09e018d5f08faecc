package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/config"
	"github.com/notifyhub/hermes-dispatch/internal/domain"
	"github.com/notifyhub/hermes-dispatch/internal/provider"
	"github.com/notifyhub/hermes-dispatch/internal/ratelimiter"
	"github.com/notifyhub/hermes-dispatch/internal/repository"
	"github.com/notifyhub/hermes-dispatch/internal/signature"
	"github.com/notifyhub/hermes-dispatch/internal/status"
	"github.com/notifyhub/hermes-dispatch/internal/throttle"
)

// StopReason tells why a dispatcher returned.
type StopReason string

const (
	StopDrained             StopReason = "drained"
	StopMaxSent             StopReason = "max_sent"
	StopAffinityUnsupported StopReason = "affinity_unsupported"
	StopCancelled           StopReason = "cancelled"
)

// Result summarises one dispatcher run.
type Result struct {
	Reason    StopReason
	Claimed   int
	Sent      int
	Succeeded int
	Failed    int
	Retried   int
	Pauses    int
}

// Dispatcher claims rows and sends them one at a time until no eligible
// row is left or the sent ceiling is reached. It is not safe for
// concurrent use; run one per goroutine.
type Dispatcher struct {
	id       int
	cfg      config.Queue
	repo     repository.JobRepository
	claimer  *Claimer
	signer   *signature.Generator
	sender   provider.Sender
	fields   *provider.FieldMap
	policy   domain.RetryPolicy
	strategy throttle.Strategy
	pauser   throttle.Pauser
	limiter  *ratelimiter.SendLimiter
	logger   *zap.Logger
	hooks    MetricHooks
	now      func() time.Time
}

// NewDispatcher wires a dispatcher from the run-queue options. Hooks left
// nil are no-ops.
func NewDispatcher(
	id int,
	cfg config.Queue,
	repo repository.JobRepository,
	sender provider.Sender,
	fields *provider.FieldMap,
	logger *zap.Logger,
	hooks MetricHooks,
) *Dispatcher {
	return &Dispatcher{
		id:       id,
		cfg:      cfg,
		repo:     repo,
		claimer:  NewClaimer(repo, cfg.ServerID, cfg.SignSize, cfg.SignUnassigned),
		signer:   signature.New(cfg.ServerID),
		sender:   sender,
		fields:   fields,
		policy:   domain.NewRetryPolicy(repo.Schema(), cfg.RetryTimes),
		strategy: throttle.NewStrategy(throttle.NewRules(cfg.SpamRules), cfg.LiteThrottle),
		pauser:   throttle.NewPauser(cfg.DryThrottle),
		limiter:  ratelimiter.New(cfg.SendRate),
		logger:   logger,
		hooks:    hooks.withDefaults(),
		now:      time.Now,
	}
}

// Run blocks until a stop condition is met. Storage errors are returned
// as is; every other stop, including a cancelled ctx, ends with a nil error.
func (d *Dispatcher) Run(ctx context.Context) (Result, error) {
	var (
		res   Result
		state throttle.State
	)
	d.logger.Info("dispatcher started",
		zap.Int("server_id", d.cfg.ServerID),
		zap.String("throttle", d.strategy.Name()),
		zap.Bool("retry", d.retryEnabled()),
	)
	defer func() {
		d.logger.Info("dispatcher stopped",
			zap.String("reason", string(res.Reason)),
			zap.Int("claimed", res.Claimed),
			zap.Int("sent", res.Sent),
		)
	}()

	for {
		if ctx.Err() != nil {
			res.Reason = StopCancelled
			return res, nil
		}

		sig := d.signer.Signature(d.cfg.RenewSignature)
		batch, err := d.claimer.Claim(ctx, sig)
		switch {
		case errors.Is(err, domain.ErrAffinityUnsupported):
			d.logger.Warn("server-only claiming requested but the table has no affinity column; nothing claimed",
				zap.Int("server_id", d.cfg.ServerID))
			res.Reason = StopAffinityUnsupported
			return res, nil
		case err != nil:
			if ctx.Err() != nil {
				res.Reason = StopCancelled
				return res, nil
			}
			return res, err
		}

		d.hooks.OnClaimed(batch.Claimed)
		if batch.Claimed == 0 {
			d.logger.Info("no entries left to sign")
			res.Reason = StopDrained
			return res, nil
		}
		res.Claimed += batch.Claimed
		d.logger.Info("signed entries",
			zap.Int("claimed", batch.Claimed),
			zap.String("signature", sig),
		)

		if err := d.drain(ctx, sig, &state, &res); err != nil {
			if ctx.Err() != nil {
				res.Reason = StopCancelled
				return res, nil
			}
			return res, err
		}

		if d.cfg.MaxSent > 0 && res.Sent >= d.cfg.MaxSent {
			d.logger.Info("max sent limit reached",
				zap.Int("sent", res.Sent),
				zap.Int("max_sent", d.cfg.MaxSent),
			)
			res.Reason = StopMaxSent
			return res, nil
		}
	}
}

// drain sends every pending row carrying sig, page by page, until a fetch
// comes back empty. Rows put back into retry are picked up again.
func (d *Dispatcher) drain(ctx context.Context, sig string, state *throttle.State, res *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		jobs, err := d.repo.FetchSigned(ctx, sig, d.cfg.PageSize)
		if err != nil {
			return fmt.Errorf("fetch page: %w", err)
		}
		if len(jobs) == 0 {
			return nil
		}
		for _, job := range jobs {
			if err := d.dispatch(ctx, job, state, res); err != nil {
				return err
			}
		}
		d.logger.Debug("page processed", zap.Int("processed", len(jobs)), zap.Int("sent", res.Sent))
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, job *domain.Job, state *throttle.State, res *Result) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	start := d.now()
	sent := d.sender.Send(ctx, d.fields.Message(job))
	latency := d.now().Sub(start)
	// A send cut short by shutdown leaves the row as it was.
	if !sent && ctx.Err() != nil {
		return ctx.Err()
	}

	from := job.Status
	job.Status, job.RetryCount = status.Resolve(job.Status, job.RetryCount, d.policy, sent)
	if d.cfg.RecordSentBy {
		serverID, at := d.cfg.ServerID, start.UTC()
		job.SentBy, job.LastSent = &serverID, &at
	}

	// Persist even if ctx was cancelled during the send.
	if err := d.repo.SaveStatus(context.WithoutCancel(ctx), job); err != nil {
		return fmt.Errorf("persist status: %w", err)
	}

	res.Sent++
	switch job.Status {
	case domain.StatusSucceed:
		res.Succeeded++
	case domain.StatusFailed:
		res.Failed++
	case domain.StatusRetry:
		res.Retried++
	}
	d.hooks.OnAttempt(job.Status, latency)
	d.logger.Debug("mail processed",
		zap.String("job_id", job.ID),
		zap.Bool("sent", sent),
		zap.Stringer("from", from),
		zap.Stringer("status", job.Status),
		zap.Int("retry_count", job.RetryCount),
	)

	var decision throttle.Decision
	*state, decision = d.strategy.Next(*state, res.Sent)
	if !decision.Fired {
		return nil
	}
	res.Pauses++
	d.hooks.OnPause(decision.Rule.Pause)
	d.logger.Info("apply spam rule",
		zap.Int("sent", res.Sent),
		zap.Int("threshold", decision.Rule.Threshold),
		zap.Duration("pause", decision.Rule.Pause),
		zap.Bool("dry_run", d.cfg.DryThrottle),
	)
	return d.pauser.Pause(ctx, decision.Rule.Pause)
}

func (d *Dispatcher) retryEnabled() bool {
	_, ok := d.policy.(domain.WithRetry)
	return ok
}
