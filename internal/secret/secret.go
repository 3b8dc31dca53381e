// Package secret contains a type to hold sensitive values, such as
// client secrets or access tokens, without leaking them in logs.
package secret

import (
	"encoding/json"
	"log/slog"
)

const redacted = "[redacted]"

// Secret holds a sensitive string. Its zero value is an empty secret.
// Printing, logging, or JSON encoding a Secret never reveals its value;
// Get must be called explicitly.
type Secret struct {
	value string
}

// New returns a Secret holding v.
func New(v string) Secret {
	return Secret{value: v}
}

// Get returns the plain value of the secret.
func (s Secret) Get() string {
	return s.value
}

// IsEmpty returns true if the secret holds an empty string.
func (s Secret) IsEmpty() bool {
	return s.value == ""
}

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return redacted
}

// LogValue implements slog.LogValuer.
func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// MarshalJSON implements json.Marshaler.
func (s Secret) MarshalJSON() ([]byte, error) {
	return json.Marshal(redacted)
}

// UnmarshalText implements encoding.TextUnmarshaler. It's used when
// parsing the environment.
func (s *Secret) UnmarshalText(text []byte) error {
	s.value = string(text)
	return nil
}
