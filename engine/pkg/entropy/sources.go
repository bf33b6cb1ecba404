package entropy

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrMissingSignature is returned when the invocation carries no
	// transaction signature to draw entropy from.
	ErrMissingSignature = errors.New("transaction signature entropy source is missing")

	// ErrMissingClock is returned when no clock reading is available.
	ErrMissingClock = errors.New("clock entropy source is missing")

	// ErrMissingBlockhash is returned when the chain-state sample is empty.
	ErrMissingBlockhash = errors.New("recent blockhash entropy source is missing")
)

// Sources holds the independent raw entropy inputs gathered for one request.
//
// Slot and RecentBlockhash are consensus-verified chain state the requester
// cannot write. Signature is the requester's signature over the current
// transaction, unique per request and unforgeable without the private key.
// UnixTimeNs is the clock reference reading at execution time.
type Sources struct {
	Slot            uint64
	UnixTimeNs      int64
	RecentBlockhash solana.Hash
	Signature       solana.Signature
}

// Validate checks that every entropy source is present. A request with a
// missing source must fail before any payment is taken.
func (s *Sources) Validate() error {
	if s.Signature == (solana.Signature{}) {
		return ErrMissingSignature
	}
	if s.UnixTimeNs == 0 {
		return ErrMissingClock
	}
	if s.RecentBlockhash == (solana.Hash{}) {
		return ErrMissingBlockhash
	}
	return nil
}
