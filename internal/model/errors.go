package model

import "errors"

var (
	// ErrInputOutOfBounds is returned when a user-supplied amount is empty,
	// negative or otherwise outside the valid numeric domain.
	ErrInputOutOfBounds = errors.New("input out of bounds")
	// ErrTokenMismatch is returned when a token is not a member of the pool.
	ErrTokenMismatch = errors.New("token mismatch")
	// ErrMissingDecimals is returned when a token has no decimals.
	ErrMissingDecimals = errors.New("missing decimals")
	// ErrMissingAmp is returned when a stable-family pool has no amplification parameter.
	ErrMissingAmp = errors.New("missing amplification parameter")
	// ErrMissingPriceRate is returned when a pool that requires price rates lacks one.
	ErrMissingPriceRate = errors.New("missing price rate")
	// ErrMissingSwapFee is returned when a pool has no swap fee.
	ErrMissingSwapFee = errors.New("missing swap fee")
	// ErrMissingWeight is returned when a weighted pool token has no weight.
	ErrMissingWeight = errors.New("missing weight")
	// ErrInputLengthMismatch is returned when parallel lists differ in length.
	ErrInputLengthMismatch = errors.New("input length mismatch")
	// ErrArithmetic is returned on division by zero or an invalid numeric domain value.
	ErrArithmetic = errors.New("arithmetic error")
	// ErrInvariantDidNotConverge is returned when the stable invariant iteration does not converge.
	ErrInvariantDidNotConverge = errors.New("stable invariant did not converge")
	// ErrUnsupportedPoolType is returned when a pool type does not implement an operation.
	ErrUnsupportedPoolType = errors.New("unsupported pool type")
)
