package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/api"
	"github.com/notifyhub/hermes-dispatch/internal/api/handler"
	"github.com/notifyhub/hermes-dispatch/internal/config"
	"github.com/notifyhub/hermes-dispatch/internal/db"
	"github.com/notifyhub/hermes-dispatch/internal/metrics"
	"github.com/notifyhub/hermes-dispatch/internal/repository"
	"github.com/notifyhub/hermes-dispatch/internal/service"
	"github.com/notifyhub/hermes-dispatch/internal/worker"
)

// store is an open repository plus the handles needed to probe and close
// the connection behind it.
type store struct {
	repo  repository.JobRepository
	ping  handler.Pinger
	close func()
}

// openStore connects with the configured driver and detects the table's
// optional columns. payload lists the message columns to load.
func (a *app) openStore(ctx context.Context, payload []string) (*store, error) {
	dbCfg, fields := a.cli.Database, a.cli.Fields
	if err := dbCfg.Validate(); err != nil {
		return nil, err
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	if dbCfg.Driver == config.DriverPostgres {
		pool, err := db.Connect(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		repo, err := repository.NewPgJobRepository(ctx, pool, fields, payload)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &store{repo: repo, ping: pool.Ping, close: pool.Close}, nil
	}

	conn, err := db.OpenSQL(ctx, dbCfg)
	if err != nil {
		return nil, err
	}
	repo, err := repository.NewSQLJobRepository(ctx, conn, dbCfg.Driver, fields, payload)
	if err != nil {
		conn.Close()
		return nil, err
	}
	closeConn := func() {
		if err := conn.Close(); err != nil {
			a.logger.Warn("close database", zap.Error(err))
		}
	}
	return &store{repo: repo, ping: conn.PingContext, close: closeConn}, nil
}

// apiServer is the HTTP surface shared by run-queue and serve.
type apiServer struct {
	srv    *http.Server
	stats  *worker.StatsWorker
	cfg    config.HTTP
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

func newAPIServer(
	cfg config.HTTP,
	st *store,
	m *metrics.Metrics,
	reg *prometheus.Registry,
	logger *zap.Logger,
) *apiServer {
	svc := service.NewJobService(st.repo, logger)
	router := api.NewRouter(svc, m, reg, st.ping, logger)
	return &apiServer{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      router,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		stats:  worker.NewStatsWorker(st.repo, m.ObserveStats, cfg.StatsInterval, logger),
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start serves in the background and keeps the queue gauges fresh until
// Shutdown is called.
func (s *apiServer) Start(ctx context.Context) {
	var statsCtx context.Context
	statsCtx, s.cancel = context.WithCancel(ctx)
	go func() {
		defer close(s.done)
		s.stats.Run(statsCtx)
	}()

	go func() {
		s.logger.Info("server starting", zap.String("addr", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Fatal("server error", zap.Error(err))
		}
	}()
}

// Shutdown stops accepting requests, waits for in-flight ones up to the
// grace period, then stops the stats poller.
func (s *apiServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func logResult(logger *zap.Logger, started time.Time, results []worker.Result) {
	total := worker.Total(results)
	reasons := make([]string, len(results))
	for i, r := range results {
		reasons[i] = string(r.Reason)
	}
	logger.Info("process stopped",
		zap.Strings("reasons", reasons),
		zap.Int("claimed", total.Claimed),
		zap.Int("sent", total.Sent),
		zap.Int("succeeded", total.Succeeded),
		zap.Int("failed", total.Failed),
		zap.Int("retried", total.Retried),
		zap.Int("pauses", total.Pauses),
		zap.Duration("elapsed", time.Since(started)),
	)
}
