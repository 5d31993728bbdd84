package main

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func generateCmd() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Write a random scenario as YAML",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file, stdout when empty",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Number of tasks",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed",
			},
			&cli.StringFlag{
				Name:  "name",
				Value: "generated",
				Usage: "Scenario name",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := setupLogger(cfg.Logging); err != nil {
				return err
			}
			if v := cmd.Int("count"); v > 0 {
				cfg.Workload.Count = int(v)
			}
			if cmd.IsSet("seed") {
				cfg.Workload.Seed = cmd.Uint64("seed")
			}

			sc := generatorFrom(cfg.Workload).Scenario(cmd.String("name"))
			out := cmd.String("out")
			if out == "" {
				return sc.Encode(os.Stdout)
			}
			if err := sc.Save(out); err != nil {
				return err
			}
			log.Info().Str("out", out).Int("tasks", len(sc.Tasks)).Dur("total_work", sc.TotalWork()).Msg("scenario written")
			return nil
		},
	}
}
