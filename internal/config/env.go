// Package config handles environment-based configuration loading and the
// declarative topology file format.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvConfig holds every environment-variable-driven setting consulted
// once, during start().
type EnvConfig struct {
	// Consulted by Server-kind hosts that expose external sockets; the
	// core treats these as opaque strings/ints, never parsing them itself.
	ServerIP         string
	ServerPort       int
	ServerPublicPath string

	// Simulator tuning, not part of the topology file itself.
	DiscoverySchedule string   // robfig/cron "@every" expression for drones' periodic discovery
	NodeJoinDeadline  Duration // stop()'s per-node task join deadline
	HistoryDir        string   // directory timestamped topology snapshots are written to
}

// LoadEnvConfig reads environment variables and returns a validated
// EnvConfig. Returns an error describing every violation found, not just
// the first.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	var errs []string

	cfg.ServerIP = envStr("SERVER_IP", "0.0.0.0")
	cfg.ServerPort = envInt("SERVER_PORT", 8080, &errs)
	cfg.ServerPublicPath = envStr("SERVER_PUBLIC_PATH", "/")

	cfg.DiscoverySchedule = envStr("MESHSIM_DISCOVERY_SCHEDULE", "@every 30s")
	cfg.NodeJoinDeadline = Duration(envDuration("MESHSIM_NODE_JOIN_DEADLINE", 2*time.Second, &errs))
	cfg.HistoryDir = envStr("MESHSIM_HISTORY_DIR", "./history")

	validatePort("SERVER_PORT", cfg.ServerPort, &errs)
	if cfg.HistoryDir == "" {
		errs = append(errs, "MESHSIM_HISTORY_DIR must not be empty")
	}

	if len(errs) > 0 {
		msg := "invalid environment configuration:"
		for _, e := range errs {
			msg += "\n  - " + e
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return cfg, nil
}

func envStr(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid integer %q", key, v))
		return defaultVal
	}
	return n
}

func envDuration(key string, defaultVal time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: invalid duration %q", key, v))
		return defaultVal
	}
	return d
}

func validatePort(name string, value int, errs *[]string) {
	if value < 1 || value > 65535 {
		*errs = append(*errs, fmt.Sprintf("%s: port must be 1-65535, got %d", name, value))
	}
}
