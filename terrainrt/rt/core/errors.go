package core

import "errors"

var (
	// ErrCapacityExceeded marks an append that did not fit into a bounded patch buffer.
	// Kernels never return it; the dropped entry count is kept in CounterDropped.
	ErrCapacityExceeded = errors.New("subd: patch buffer capacity exceeded")
	// ErrInvalidDepth reports a key or configuration outside [MinDepth, MaxSupportedDepth].
	ErrInvalidDepth = errors.New("subd: invalid subdivision depth")
	// ErrMissingHeightField is returned when a pipeline is created without height input.
	ErrMissingHeightField = errors.New("subd: height field is missing")
)
