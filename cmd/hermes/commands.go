package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/config"
	"github.com/notifyhub/hermes-dispatch/internal/db"
	"github.com/notifyhub/hermes-dispatch/internal/metrics"
	"github.com/notifyhub/hermes-dispatch/internal/provider"
	"github.com/notifyhub/hermes-dispatch/internal/service"
	"github.com/notifyhub/hermes-dispatch/internal/worker"
)

const migrationsTable = "hermes_mail"

// RunQueueCmd claims and sends mails until the queue is drained, the
// max-sent ceiling is reached, or a signal arrives.
type RunQueueCmd struct {
	Queue    config.Queue    `embed:""`
	Provider config.Provider `embed:"" prefix:"provider-"`
	HTTP     config.HTTP     `embed:"" prefix:"http-"`
}

func (c *RunQueueCmd) Run(a *app) error {
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	if !c.Queue.TestMode {
		if err := c.Provider.Validate(); err != nil {
			return err
		}
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fields := provider.MustDefaultFieldMap()
	st, err := a.openStore(ctx, fields.Columns())
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if c.HTTP.Addr != "" {
		srv := newAPIServer(c.HTTP, st, m, reg, a.logger)
		srv.Start(ctx)
		defer srv.Shutdown()
	}

	onClaimed, onAttempt, onPause := m.WorkerHooks()
	pool := worker.NewPool(c.Queue, st.repo, provider.New(c.Queue, c.Provider, a.logger), fields, a.logger, worker.MetricHooks{
		OnClaimed: onClaimed,
		OnAttempt: onAttempt,
		OnPause:   onPause,
	})

	started := time.Now()
	a.logger.Info("process started",
		zap.Int("server_id", c.Queue.ServerID),
		zap.Int("workers", c.Queue.Workers),
		zap.Bool("test_mode", c.Queue.TestMode),
		zap.Stringer("spam_rules", c.Queue.SpamRules),
	)
	pool.Start(ctx)
	results, err := pool.Wait()
	logResult(a.logger, started, results)
	return err
}

// InstallCmd applies the schema migrations.
type InstallCmd struct{}

func (c *InstallCmd) Run(a *app) error {
	if err := a.cli.Database.Validate(); err != nil {
		return err
	}
	warnCustomTable(a)
	if err := db.Migrate(a.cli.Database); err != nil {
		return err
	}
	a.logger.Info("queue table installed", zap.String("table", migrationsTable))
	return nil
}

// UninstallCmd rolls every schema migration back.
type UninstallCmd struct{}

func (c *UninstallCmd) Run(a *app) error {
	if err := a.cli.Database.Validate(); err != nil {
		return err
	}
	warnCustomTable(a)
	if err := db.Rollback(a.cli.Database); err != nil {
		return err
	}
	a.logger.Info("queue table removed", zap.String("table", migrationsTable))
	return nil
}

func warnCustomTable(a *app) {
	if a.cli.Fields.Table != migrationsTable {
		a.logger.Warn("migrations manage the default table only",
			zap.String("table", migrationsTable),
			zap.String("configured", a.cli.Fields.Table),
		)
	}
}

// Fill4TestCmd inserts fixture mails in one transaction.
type Fill4TestCmd struct {
	Quantity       int    `help:"Mails to insert." default:"10000"`
	From           string `help:"Sender pattern; {seq} becomes the row number." default:"from_{seq}@example.com"`
	To             string `help:"Recipient pattern; {seq} becomes the row number." default:"to_{seq}@example.com"`
	AssignedServer int    `help:"Server the mails are assigned to (-1 leaves them unassigned)." default:"-1"`
}

func (c *Fill4TestCmd) Run(a *app) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := a.openStore(ctx, provider.MustDefaultFieldMap().Columns())
	if err != nil {
		return err
	}
	defer st.close()

	req := service.FillRequest{Quantity: c.Quantity, From: c.From, To: c.To}
	if c.AssignedServer >= 0 {
		server := c.AssignedServer
		req.AssignedServer = &server
	}

	started := time.Now()
	n, err := service.NewJobService(st.repo, a.logger).Fill(ctx, req)
	if err != nil {
		return fmt.Errorf("fill4test: %w", err)
	}
	a.logger.Info("fixtures ready", zap.Int("quantity", n), zap.Duration("elapsed", time.Since(started)))
	return nil
}

// ServeCmd runs the HTTP API until a signal arrives.
type ServeCmd struct {
	HTTP config.HTTP `embed:"" prefix:"http-"`
}

func (c *ServeCmd) Run(a *app) error {
	if c.HTTP.Addr == "" {
		return errors.New("serve: --http-addr is required")
	}
	if err := c.HTTP.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	st, err := a.openStore(ctx, provider.MustDefaultFieldMap().Columns())
	if err != nil {
		return err
	}
	defer st.close()

	reg := prometheus.NewRegistry()
	srv := newAPIServer(c.HTTP, st, metrics.New(reg), reg, a.logger)
	srv.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	a.logger.Info("shutdown signal received")
	srv.Shutdown()
	a.logger.Info("server stopped cleanly")
	return nil
}
