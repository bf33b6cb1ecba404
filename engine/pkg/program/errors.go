package program

import "errors"

var (
	ErrUnknownInstruction   = errors.New("unknown instruction tag")
	ErrMalformedInstruction = errors.New("malformed instruction data")

	ErrWrongAccountCount     = errors.New("wrong number of accounts")
	ErrMissingSigner         = errors.New("required signer is missing")
	ErrAccountNotWritable    = errors.New("required account is not writable")
	ErrConfigAddressMismatch = errors.New("config account does not match derived address")
	ErrTreasuryMismatch      = errors.New("treasury token account does not match config")
	ErrTokenProgramMismatch  = errors.New("token program account mismatch")
	ErrClockSysvarMismatch   = errors.New("clock sysvar account mismatch")
)
