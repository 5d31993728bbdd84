package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/enesyesil/hostsim/internal/core"
)

const envPrefix = "HOSTSIM_"

type Config struct {
	Dispatcher DispatcherConfig `koanf:"dispatcher"`
	Workload   WorkloadConfig   `koanf:"workload"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

type DispatcherConfig struct {
	Policy string `koanf:"policy"`
	Hosts  int    `koanf:"hosts"`
}

type WorkloadConfig struct {
	// Scenario is a YAML task list; when empty tasks are generated.
	Scenario string `koanf:"scenario"`

	Count            int           `koanf:"count"`
	Rate             float64       `koanf:"rate"`
	Burst            int           `koanf:"burst"`
	Seed             uint64        `koanf:"seed"`
	MaxPriority      int           `koanf:"max_priority"`
	PreemptibleRatio float64       `koanf:"preemptible_ratio"`
	Short            DurationRange `koanf:"short"`
	Medium           DurationRange `koanf:"medium"`
	Long             DurationRange `koanf:"long"`
}

type DurationRange struct {
	Min time.Duration `koanf:"min"`
	Max time.Duration `koanf:"max"`
}

type ServerConfig struct {
	// MetricsAddr serves /metrics and /stats; empty disables the listener.
	MetricsAddr string        `koanf:"metrics_addr"`
	StatsWindow time.Duration `koanf:"stats_window"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Load reads defaults, then the TOML file if configPath is set, then
// HOSTSIM_ env vars (HOSTSIM_DISPATCHER_POLICY -> dispatcher.policy).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps HOSTSIM_WORKLOAD_MAX_PRIORITY to workload.max_priority: the
// first underscore separates the section, the rest belong to the key.
// Empty values are skipped so they do not mask file settings.
func envKey(key, value string) (string, any) {
	if value == "" {
		return "", nil
	}
	name := strings.ToLower(strings.TrimPrefix(key, envPrefix))
	section, rest, ok := strings.Cut(name, "_")
	if !ok {
		return name, value
	}
	for _, nested := range []string{"short_", "medium_", "long_"} {
		if strings.HasPrefix(rest, nested) {
			return section + "." + strings.TrimSuffix(nested, "_") + "." + strings.TrimPrefix(rest, nested), value
		}
	}
	return section + "." + rest, value
}

func (c *Config) Validate() error {
	var errs []error
	if _, err := core.ParsePolicy(c.Dispatcher.Policy); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher.policy: %w", err))
	}
	if c.Dispatcher.Hosts <= 0 {
		errs = append(errs, fmt.Errorf("dispatcher.hosts must be positive, got %d", c.Dispatcher.Hosts))
	}
	w := c.Workload
	if w.Scenario == "" && w.Count <= 0 {
		errs = append(errs, fmt.Errorf("workload.count must be positive without a scenario, got %d", w.Count))
	}
	if w.Rate < 0 {
		errs = append(errs, fmt.Errorf("workload.rate must not be negative, got %v", w.Rate))
	}
	if w.PreemptibleRatio < 0 || w.PreemptibleRatio > 1 {
		errs = append(errs, fmt.Errorf("workload.preemptible_ratio must be within [0,1], got %v", w.PreemptibleRatio))
	}
	if w.MaxPriority < 0 {
		errs = append(errs, fmt.Errorf("workload.max_priority must not be negative, got %d", w.MaxPriority))
	}
	for name, r := range map[string]DurationRange{"short": w.Short, "medium": w.Medium, "long": w.Long} {
		if r.Min < 0 || r.Max < r.Min {
			errs = append(errs, fmt.Errorf("workload.%s: invalid range [%s, %s]", name, r.Min, r.Max))
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "pretty", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be pretty or json, got %q", c.Logging.Format))
	}
	return errors.Join(errs...)
}
