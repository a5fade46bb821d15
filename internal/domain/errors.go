package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for broad classification.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidIndicator   = errors.New("invalid indicator")
	ErrNetwork            = errors.New("network failure")
	ErrIdentityConflict   = errors.New("identity conflict")
	ErrInvalidObservation = errors.New("invalid observation")
)

// ErrorKind is a coarse-grained categorization for errors.
type ErrorKind string

const (
	KindNotFound           ErrorKind = "not_found"
	KindConfiguration      ErrorKind = "configuration"
	KindNetwork            ErrorKind = "network"
	KindIdentityConflict   ErrorKind = "identity_conflict"
	KindInvalidObservation ErrorKind = "invalid_observation"
)

// OpError wraps an underlying error with operation context and a kind.
type OpError struct {
	Op      string
	Kind    ErrorKind
	Subject string // indicator name, host or identity key
	Err     error
}

func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}
	base := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Subject != "" {
		base += fmt.Sprintf(" (%s)", e.Subject)
	}
	if e.Err != nil {
		base += fmt.Sprintf(": %v", e.Err)
	}
	return base
}

func (e *OpError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind helps callers classify errors without depending on infra packages.
func IsKind(err error, kind ErrorKind) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Kind == kind
	}
	return false
}

// ConfigurationError reports a malformed indicator.
func ConfigurationError(op, indicator string, err error) error {
	return &OpError{Op: op, Kind: KindConfiguration, Subject: indicator, Err: err}
}

// NetworkFailure reports a failed probe or fetch. Always non-fatal.
func NetworkFailure(op, target string, err error) error {
	return &OpError{Op: op, Kind: KindNetwork, Subject: target, Err: err}
}

// IdentityConflict reports two base domains resolving to the same identity key.
func IdentityConflict(key, kept, incoming string) error {
	return &OpError{Op: "merge", Kind: KindIdentityConflict, Subject: key,
		Err: fmt.Errorf("%w: %s vs %s", ErrIdentityConflict, kept, incoming)}
}

// InvalidObservation rejects one observation; other observations proceed.
func InvalidObservation(op, reason string) error {
	return &OpError{Op: op, Kind: KindInvalidObservation, Err: fmt.Errorf("%w: %s", ErrInvalidObservation, reason)}
}

// NotFound reports an unknown lead key or indicator name.
func NotFound(op, subject string) error {
	return &OpError{Op: op, Kind: KindNotFound, Subject: subject, Err: ErrNotFound}
}
