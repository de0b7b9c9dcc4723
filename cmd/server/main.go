//go:build !js && !wasm

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/himanishpuri/quadracalc/pkg/logger"
	"github.com/himanishpuri/quadracalc/pkg/quadracalc"
)

func main() {
	cmd := &cli.Command{
		Name:  "quadracalc-server",
		Usage: "HTTP API for the quadra.calc delay-time calculator",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("QUADRA_PORT"),
			},
			&cli.StringFlag{
				Name:    "db",
				Value:   "quadracalc.sqlite3",
				Usage:   "path to the SQLite database",
				Sources: cli.EnvVars("QUADRA_DB_PATH"),
			},
			&cli.StringFlag{
				Name:    "origins",
				Value:   "*",
				Usage:   "comma-separated list of allowed CORS origins (use * for all)",
				Sources: cli.EnvVars("QUADRA_ORIGINS"),
			},
			&cli.StringFlag{
				Name:    "static",
				Usage:   "directory with the web app to serve at /",
				Sources: cli.EnvVars("QUADRA_STATIC_DIR"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.BoolFlag{
				Name:  "access-log",
				Usage: "log every request",
			},
		},
		Action: run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	log := logger.GetLogger()
	if level, ok := logger.ParseLevel(c.String("log-level")); ok {
		log.SetLevel(level)
	}
	defer log.Sync()

	service, err := quadracalc.NewService(
		quadracalc.WithDBPath(c.String("db")),
		quadracalc.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           c.Int("port"),
		DBPath:         c.String("db"),
		StaticDir:      c.String("static"),
		AllowedOrigins: parseOrigins(c.String("origins")),
		AccessLog:      c.Bool("access-log"),
	}

	server := NewServer(service, config)
	return server.Start(ctx)
}

func parseOrigins(raw string) []string {
	if raw == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
