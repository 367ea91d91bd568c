package domain

import "github.com/pkg/errors"

// Error taxonomy shared across the broadcast, rpc and cache layers.
// Wrapped with pkg/errors at call sites; match with errors.Is.
var (
	// ErrPeerUnavailable: a broadcast target process has exited. Fatal,
	// triggers full-topology teardown.
	ErrPeerUnavailable = errors.New("broadcast peer unavailable")

	// ErrRPCTimeout: no correlated response arrived within the budget.
	// Surfaced to the caller, never retried by the rpc layer itself.
	ErrRPCTimeout = errors.New("rpc request timed out")

	// ErrValidationFailed: a DTO or candle batch failed validation.
	// Logged and skipped, not a crash.
	ErrValidationFailed = errors.New("validation failed")

	// ErrUpstreamExhausted: every fetch attempt against the exchange
	// failed; the last attempt's error is attached as the cause.
	ErrUpstreamExhausted = errors.New("upstream fetch attempts exhausted")
)
