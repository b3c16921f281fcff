package model

import "errors"

// Validation failures: the request never reaches the matching path.
var (
	ErrUnknownInstrument = errors.New("unknown instrument")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrInvalidPrice      = errors.New("limit price must be positive")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// ErrInternal marks a broken engine invariant (crossed book observed
// between operations, duplicate order id). It is never caused by bad
// input and means the process state cannot be trusted.
var ErrInternal = errors.New("internal invariant violation")
