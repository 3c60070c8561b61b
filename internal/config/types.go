package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration is a time.Duration that unmarshals from "30s"-style strings,
// so timeouts read naturally in YAML and environment variables.
type Duration time.Duration

// UnmarshalText parses a Go duration string. Negative durations are
// rejected; no timeout in this service means anything when negative.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if parsed < 0 {
		return fmt.Errorf("duration cannot be negative: %s", text)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText renders the duration back to its string form.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration().String()), nil
}

// MarshalJSON renders the duration as a JSON string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Duration().String())
}

// Duration unwraps to the standard type.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Secret holds values like the analyzer API key that must never appear
// in logs, JSON responses or error messages. Every marshal/format path
// emits a redaction marker; only Value returns the raw string.
type Secret string

// String returns the redaction marker, never the value.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GoString keeps %#v output redacted as well.
func (s Secret) GoString() string {
	return "Secret([REDACTED])"
}

// Value returns the raw secret. Call it only at the point of use, such
// as setting an Authorization header.
func (s Secret) Value() string {
	return string(s)
}

// IsSet reports whether a value was configured.
func (s Secret) IsSet() bool {
	return s != ""
}

// MarshalJSON emits the redaction marker instead of the value.
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("[REDACTED]")
}

// MarshalText emits the redaction marker instead of the value.
func (s Secret) MarshalText() ([]byte, error) {
	if s == "" {
		return []byte(""), nil
	}
	return []byte("[REDACTED]"), nil
}

// UnmarshalText accepts the raw value from config sources.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
