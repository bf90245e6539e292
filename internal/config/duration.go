package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration to provide TOML marshal/unmarshal as a Go
// duration string (e.g. "5m", "500ms", "@every 30s" is left to the
// simulator's own cron-expression fields; this type is for plain
// durations like repeated-send intervals and join deadlines).
type Duration time.Duration

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(parsed)
	return nil
}
