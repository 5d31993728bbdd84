package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/enesyesil/hostsim/internal/config"
)

var version = "dev"

func App() *cli.Command {
	return &cli.Command{
		Name:    "hostsim",
		Version: version,
		Usage:   "Simulate a dispatcher routing prioritized tasks to preemptive worker hosts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("HOSTSIM_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (trace, debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			runCmd(),
			generateCmd(),
		},
	}
}

// loadConfig reads the config file named by --config and applies the
// global --log-level override.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Logging.Level = v
	}
	return cfg, nil
}

func setupLogger(cfg config.LoggingConfig) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	if strings.EqualFold(cfg.Format, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}
