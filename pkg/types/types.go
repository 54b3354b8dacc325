package types

import (
	"fmt"
	"time"
)

// Command represents the operations the dispatcher understands
type Command string

const (
	CommandExtract Command = "extract"
	CommandInfo    Command = "info"
)

// Valid reports whether the command is one of the recognized operations
func (c Command) Valid() bool {
	return c == CommandExtract || c == CommandInfo
}

// BackendKind represents the three backend execution variants
type BackendKind string

const (
	BackendSubprocess BackendKind = "subprocess"
	BackendEmbedded   BackendKind = "embedded"
	BackendRemote     BackendKind = "remote"
)

// Valid reports whether the kind is a known backend variant
func (k BackendKind) Valid() bool {
	switch k {
	case BackendSubprocess, BackendEmbedded, BackendRemote:
		return true
	}
	return false
}

// BackendDescriptor identifies one configured backend. Descriptors are built
// once at startup and immutable afterwards; the selector holds them in
// operator-declared priority order.
type BackendDescriptor struct {
	Kind      BackendKind `json:"kind" yaml:"kind"`
	Endpoint  string      `json:"endpoint" yaml:"endpoint"`
	TimeoutMs int         `json:"timeout_ms" yaml:"timeout_ms"`
}

// Timeout returns the descriptor timeout as a duration
func (d BackendDescriptor) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// String returns a short identifier used in logs and error messages
func (d BackendDescriptor) String() string {
	return fmt.Sprintf("%s(%s)", d.Kind, d.Endpoint)
}
