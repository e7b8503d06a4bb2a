// Package config loads nexus-master and nexus-slave configuration from
// flags, environment variables, and an optional config file, grounded on
// the teacher's cmd/determined-master/init.go viper+pflag+cobra merge
// idiom (simplified to spec.md section 6's much smaller key set: no
// nested backwards-compatibility schema migration is needed here).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the full set of spec.md section 6 configuration keys, shared
// by both binaries; each only reads the subset relevant to it.
type Config struct {
	Allocator     string `mapstructure:"allocator"`
	Port          int    `mapstructure:"port"`
	FaultTolerant string `mapstructure:"fault-tolerant"`
	WorkDir       string `mapstructure:"work-dir"`
	Isolation     string `mapstructure:"isolation"`
	Quiet         bool   `mapstructure:"quiet"`

	// MasterAddr is slave-only: the master (or, in fault-tolerant mode, any
	// seed) address to dial.
	MasterAddr string `mapstructure:"master-addr"`
}

// Default returns the zero-config baseline: simple allocator, port 7070,
// no fault tolerance (single-master mode), work-dir /var/lib/nexus, the
// process isolation backend, and a master address of 127.0.0.1:7070.
func Default() Config {
	return Config{
		Allocator:     "simple",
		Port:          7070,
		FaultTolerant: "",
		WorkDir:       "/var/lib/nexus",
		Isolation:     "process",
		Quiet:         false,
		MasterAddr:    "127.0.0.1:7070",
	}
}

// envPrefix namespaces environment variable overrides, e.g.
// NEXUS_WORK_DIR for work-dir.
const envPrefix = "NEXUS"

// Load merges defaults, an optional config file (if configFile is
// non-empty), environment variables, and already-parsed flags (in
// increasing priority) and validates the result.
func Load(flags *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	defaults := Default()
	v.SetDefault("allocator", defaults.Allocator)
	v.SetDefault("port", defaults.Port)
	v.SetDefault("fault-tolerant", defaults.FaultTolerant)
	v.SetDefault("work-dir", defaults.WorkDir)
	v.SetDefault("isolation", defaults.Isolation)
	v.SetDefault("quiet", defaults.Quiet)
	v.SetDefault("master-addr", defaults.MasterAddr)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("config: binding flags: %w", err)
		}
	}

	cfg := Config{
		Allocator:     v.GetString("allocator"),
		Port:          v.GetInt("port"),
		FaultTolerant: v.GetString("fault-tolerant"),
		WorkDir:       v.GetString("work-dir"),
		Isolation:     v.GetString("isolation"),
		Quiet:         v.GetBool("quiet"),
		MasterAddr:    v.GetString("master-addr"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the enumerated values spec.md section 6 constrains.
func (c Config) Validate() error {
	switch c.Allocator {
	case "simple", "priority":
	default:
		return fmt.Errorf("config: unknown allocator %q", c.Allocator)
	}
	switch c.Isolation {
	case "process", "noop", "docker":
	default:
		return fmt.Errorf("config: unknown isolation backend %q", c.Isolation)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	return nil
}
