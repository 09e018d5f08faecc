package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/notifyhub/hermes-dispatch/internal/config"
)

// CLI is the root command line. Database and field flags are global so every
// command talks to the same table.
type CLI struct {
	Debug    bool            `help:"Human readable debug logging." env:"HERMES_DEBUG"`
	Database config.Database `embed:"" prefix:"db-"`
	Fields   config.Fields   `embed:"" prefix:"field-"`

	RunQueue  RunQueueCmd  `cmd:"" name:"run-queue" help:"Claim and send queued mails until none are left."`
	Install   InstallCmd   `cmd:"" help:"Create the mail queue table."`
	Uninstall UninstallCmd `cmd:"" help:"Drop the mail queue table."`
	Fill4Test Fill4TestCmd `cmd:"" name:"fill4test" help:"Insert fixture mails for load tests."`
	Serve     ServeCmd     `cmd:"" help:"Serve the HTTP API without dispatching."`
}

// app is bound into every command's Run method.
type app struct {
	cli    *CLI
	logger *zap.Logger
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("hermes"),
		kong.Description("Multi-process mail queue dispatcher."),
		kong.UsageOnError(),
	)

	logger, err := newLogger(cli.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hermes: build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := kctx.Run(&app{cli: &cli, logger: logger}); err != nil {
		logger.Fatal("command failed", zap.String("command", kctx.Command()), zap.Error(err))
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
