package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"dispatcher.policy": "round_robin",
		"dispatcher.hosts":  4,

		"workload.count":             200,
		"workload.rate":              50.0,
		"workload.burst":             1,
		"workload.seed":              1,
		"workload.max_priority":      5,
		"workload.preemptible_ratio": 0.5,
		"workload.short.min":         "10ms",
		"workload.short.max":         "50ms",
		"workload.medium.min":        "50ms",
		"workload.medium.max":        "200ms",
		"workload.long.min":          "200ms",
		"workload.long.max":          "800ms",

		"server.metrics_addr": "",
		"server.stats_window": "10s",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}
