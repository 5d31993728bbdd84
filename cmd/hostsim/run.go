package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/enesyesil/hostsim/internal/config"
	"github.com/enesyesil/hostsim/internal/core"
	"github.com/enesyesil/hostsim/internal/dispatch"
	"github.com/enesyesil/hostsim/internal/metrics"
	"github.com/enesyesil/hostsim/internal/workload"
)

const drainTimeout = 10 * time.Second

func runCmd() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Replay a scenario (or a generated workload) through the dispatcher",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "policy",
				Aliases: []string{"p"},
				Usage:   "Dispatch policy (rr, sq, sita, lwl, p2c)",
				Sources: cli.EnvVars("HOSTSIM_DISPATCHER_POLICY"),
			},
			&cli.IntFlag{
				Name:  "hosts",
				Usage: "Number of worker hosts",
			},
			&cli.StringFlag{
				Name:    "scenario",
				Aliases: []string{"s"},
				Usage:   "YAML scenario file; a workload is generated when empty",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve /metrics and /stats on this address while running",
			},
			&cli.DurationFlag{
				Name:  "linger",
				Usage: "Keep the metrics server up this long after the run",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if v := cmd.String("policy"); v != "" {
				cfg.Dispatcher.Policy = v
			}
			if v := cmd.Int("hosts"); v > 0 {
				cfg.Dispatcher.Hosts = int(v)
			}
			if v := cmd.String("scenario"); v != "" {
				cfg.Workload.Scenario = v
			}
			if v := cmd.String("metrics-addr"); v != "" {
				cfg.Server.MetricsAddr = v
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := setupLogger(cfg.Logging); err != nil {
				return err
			}
			return simulate(ctx, cfg, cmd.Duration("linger"))
		},
	}
}

func simulate(ctx context.Context, cfg *config.Config, linger time.Duration) error {
	policy, err := core.ParsePolicy(cfg.Dispatcher.Policy)
	if err != nil {
		return err
	}

	stats := core.NewStats(cfg.Server.StatsWindow)
	reg := core.NewCluster(cfg.Dispatcher.Hosts,
		core.WithLogger(log.Logger),
		core.WithObserver(metrics.HostObserver{}),
		core.WithObserver(stats),
	).WithLogger(log.Logger)

	d, err := dispatch.New(policy, reg, dispatch.WithLogger(log.Logger))
	if err != nil {
		return err
	}

	var srv *http.Server
	if cfg.Server.MetricsAddr != "" {
		promReg := prometheus.NewRegistry()
		for _, c := range metrics.Collectors() {
			promReg.MustRegister(c)
		}
		srv = newServer(cfg.Server.MetricsAddr, d, stats, promReg)
		go func() {
			log.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	started := time.Now()
	reg.Start(ctx)

	if err := feed(ctx, cfg.Workload, d); err != nil && !errors.Is(err, context.Canceled) {
		if derr := drain(ctx, reg, drainTimeout); derr != nil {
			log.Warn().Err(derr).Msg("hosts did not drain")
		}
		stopServer(srv)
		return err
	}

	log.Info().Msg("all tasks released, draining hosts")
	reg.Shutdown()
	waitErr := reg.Wait(ctx)
	elapsed := time.Since(started)

	report(d, stats, elapsed)

	if srv != nil {
		if linger > 0 {
			select {
			case <-time.After(linger):
			case <-ctx.Done():
			}
		}
		stopServer(srv)
	}
	if waitErr != nil && !errors.Is(waitErr, context.Canceled) {
		return waitErr
	}
	return nil
}

// drain stops every host once its queued work is done and waits at most
// timeout for the loops to return.
func drain(ctx context.Context, reg *core.Registry, timeout time.Duration) error {
	reg.Shutdown()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return reg.Wait(waitCtx)
}

func stopServer(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}
}

// feed pushes the configured workload into the dispatcher.
func feed(ctx context.Context, w config.WorkloadConfig, d *dispatch.Dispatcher) error {
	if w.Scenario != "" {
		sc, err := workload.LoadScenario(w.Scenario)
		if err != nil {
			return err
		}
		log.Info().
			Str("scenario", w.Scenario).
			Int("tasks", len(sc.Tasks)).
			Dur("total_work", sc.TotalWork()).
			Msg("replaying scenario")

		res, err := workload.NewPlayer(0, d.AddTask, log.Logger).Play(ctx, sc.Build())
		if res.Rejected > 0 {
			log.Warn().Int("rejected", res.Rejected).Err(errors.Join(res.Errors...)).Msg("some tasks were not placed")
		}
		return err
	}

	g := generatorFrom(w)
	log.Info().Int("tasks", g.Count).Float64("rate", g.Rate).Uint64("seed", g.Seed).Msg("generating workload")
	return g.Stream(ctx, d.AddTask)
}

func generatorFrom(w config.WorkloadConfig) workload.Generator {
	return workload.Generator{
		Count:            w.Count,
		Rate:             w.Rate,
		Burst:            w.Burst,
		Seed:             w.Seed,
		MaxPriority:      w.MaxPriority,
		PreemptibleRatio: w.PreemptibleRatio,
		Durations: map[core.SizeClass]workload.Range{
			core.SizeShort:  {Min: w.Short.Min, Max: w.Short.Max},
			core.SizeMedium: {Min: w.Medium.Min, Max: w.Medium.Max},
			core.SizeLong:   {Min: w.Long.Min, Max: w.Long.Max},
		},
	}
}

func report(d *dispatch.Dispatcher, stats *core.Stats, elapsed time.Duration) {
	snap := stats.Snapshot(time.Now())
	log.Info().
		Str("policy", string(d.Policy())).
		Uint64("dispatched", d.Dispatched()).
		Uint64("rejected", d.Rejected()).
		Int("finished", snap.Total).
		Dur("elapsed", elapsed).
		Dur("p50", snap.P50).
		Dur("p95", snap.P95).
		Dur("max", snap.Max).
		Msgf("run complete (%d hosts)", d.Registry().Len())

	for _, h := range d.Registry().Snapshot() {
		log.Info().
			Str("host", h.Name).
			Int("finished", h.Finished).
			Int("preemptions", h.Preemptions).
			Dur("executed", h.Executed).
			Msg("host summary")
	}
}
