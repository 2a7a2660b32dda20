package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session key cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrCapabilityNotFound is returned when a responder id is not registered.
var ErrCapabilityNotFound = errors.New("capability not found")

// ErrUnknownProfile is returned when a turn names an SLA profile that is not configured.
var ErrUnknownProfile = errors.New("unknown sla profile")

// ErrRoutingAnomaly marks an empty routing decision, which the floor rule should make impossible.
var ErrRoutingAnomaly = errors.New("routing anomaly")

// ErrInvalidTransition is returned when a turn is moved to a phase its current phase cannot reach.
var ErrInvalidTransition = errors.New("invalid phase transition")

// Gateway failures. Adapters wrap their underlying errors with one of these.
var (
	ErrGatewayTimeout     = errors.New("gateway timeout")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrInvalidResponse    = errors.New("gateway returned an invalid response")
)

// ConfigError reports a malformed capability catalogue.
// It is the only error that prevents the engine from starting.
type ConfigError struct {
	Source string // catalogue name (file path, directory, "embedded")
	Index  int    // position of the offending record, -1 when not record-specific
	ID     string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	where := e.Source
	if e.Index >= 0 {
		where = fmt.Sprintf("%s[%d]", e.Source, e.Index)
	}
	if e.ID != "" {
		where = fmt.Sprintf("%s (%s)", where, e.ID)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error in %s: %s: %v", where, e.Reason, e.Err)
	}
	return fmt.Sprintf("config error in %s: %s", where, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// StoreError wraps a session store failure. The orchestrator logs it and carries on.
type StoreError struct {
	Op  string // "get", "merge", "delete", "list"
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("session store %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
