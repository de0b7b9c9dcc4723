package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/himanishpuri/quadracalc/pkg/logger"
	"github.com/himanishpuri/quadracalc/pkg/quadracalc"
)

func main() {
	cmd := &cli.Command{
		Name:    "quadracalc",
		Usage:   "BPM and delay-time calculator with tap tempo and MIDI clock sync",
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "quadracalc.sqlite3",
				Usage:   "path to the SQLite database",
				Sources: cli.EnvVars("QUADRA_DB_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if level, ok := logger.ParseLevel(c.String("log-level")); ok {
				logger.SetLevel(level)
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			calcCommand(),
			bpmCommand(),
			tapCommand(),
			syncCommand(),
			portsCommand(),
			presetCommand(),
			subdivisionCommand(),
			settingsCommand(),
			historyCommand(),
			exportCommand(),
			clicktrackCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Run(ctx, os.Args)
	stop()
	logger.GetLogger().Sync()

	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s\n", quadracalc.UserMessage(err))
		logger.Debugf("Command failed: %v", err)
		os.Exit(exitCode(err))
	}
}

// openService creates the service from the global flags.
func openService(c *cli.Command, opts ...quadracalc.Option) (*quadracalc.Service, error) {
	base := []quadracalc.Option{
		quadracalc.WithDBPath(c.String("db")),
		quadracalc.WithLogger(logger.GetLogger()),
	}
	svc, err := quadracalc.NewService(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", c.String("db"), err)
	}
	return svc, nil
}

// exitCode maps error kinds onto the same numeric codes the browser build
// reports.
func exitCode(err error) int {
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	switch quadracalc.Kind(err) {
	case quadracalc.KindInvalidInput:
		return 1
	case quadracalc.KindInsufficientData:
		return 2
	case quadracalc.KindStorageFailure:
		return 3
	case quadracalc.KindCapabilityAbsent:
		return 4
	case quadracalc.KindNotFound:
		return 5
	case quadracalc.KindAlreadyExists:
		return 6
	case quadracalc.KindCancelled:
		return 130
	default:
		return 1
	}
}
