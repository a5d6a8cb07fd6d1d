package config

import (
	"fmt"
	"time"
)

// Duration is a wrapper around time.Duration that supports YAML/JSON
// marshaling. It enables human-readable duration strings (e.g., "30s",
// "5m", "1h30m") in configuration files while preserving type safety in
// Go code. Bare integers are interpreted as seconds.
//
// Supported formats:
//   - "300ms"  → 300 milliseconds
//   - "30s"    → 30 seconds
//   - "1h30m"  → 1 hour and 30 minutes
//   - 30       → 30 seconds
//
// An empty string or JSON null unmarshals to zero duration.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}
	return d.fromValue(raw)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	s := string(b)
	// Remove quotes if present
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*d = 0
		return nil
	}
	return d.fromString(s)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// fromValue converts a decoded YAML scalar into a Duration.
func (d *Duration) fromValue(raw interface{}) error {
	switch v := raw.(type) {
	case string:
		if v == "" {
			*d = 0
			return nil
		}
		return d.fromString(v)
	case int:
		*d = Duration(time.Duration(v) * time.Second)
		return nil
	case float64:
		*d = Duration(time.Duration(v * float64(time.Second)))
		return nil
	default:
		return fmt.Errorf("cannot parse %v (%T) as duration", raw, raw)
	}
}

// fromString parses a duration string, accepting bare integers as seconds.
func (d *Duration) fromString(s string) error {
	duration, err := time.ParseDuration(s)
	if err != nil {
		var secs int64
		if _, scanErr := fmt.Sscanf(s, "%d", &secs); scanErr == nil && fmt.Sprintf("%d", secs) == s {
			*d = Duration(time.Duration(secs) * time.Second)
			return nil
		}
		return err
	}
	*d = Duration(duration)
	return nil
}

// Duration returns the time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
