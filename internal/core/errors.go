package core

import "errors"

// The engine's failure taxonomy. Everything is surfaced synchronously to
// the caller of the triggering operation; nothing is retried or swallowed.
var (
	// ErrUnknownCapability: no component declares the requested
	// capability for the message type.
	ErrUnknownCapability = errors.New("unknown capability")

	// ErrAmbiguousCapability: more than one component declared the same
	// capability for the same message type. Caught at PrepareToRun,
	// never resolved at dispatch time.
	ErrAmbiguousCapability = errors.New("ambiguous capability registration")

	// ErrInstanceInvalid: operation on a shut-down or unknown instance.
	ErrInstanceInvalid = errors.New("invalid or inactive core instance")

	// ErrSpinupDivergence: spin-up failed to stabilize within its step
	// budget.
	ErrSpinupDivergence = errors.New("spinup did not converge")

	// ErrUnsupportedReset: the reset target state is not reconstructable
	// from retained checkpoints.
	ErrUnsupportedReset = errors.New("reset target not reconstructable")
)
