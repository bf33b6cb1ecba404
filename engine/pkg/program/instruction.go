package program

import (
	"github.com/gagliardetto/solana-go"
)

// InstructionTag is the single-byte discriminator selecting which operation
// a request performs. The set is closed: dispatch matches it exhaustively
// and unknown values are rejected before any side effect.
type InstructionTag uint8

const (
	TagInitializeProgram     InstructionTag = 0
	TagGenerateRandomU64     InstructionTag = 1
	TagGenerateRandomDouble  InstructionTag = 2
	TagGenerateRandomBoolean InstructionTag = 3
)

func (t InstructionTag) String() string {
	switch t {
	case TagInitializeProgram:
		return "initialize_program"
	case TagGenerateRandomU64:
		return "generate_random_u64"
	case TagGenerateRandomDouble:
		return "generate_random_double"
	case TagGenerateRandomBoolean:
		return "generate_random_boolean"
	default:
		return "unknown"
	}
}

// IsGenerate reports whether the tag is one of the paid generation
// instructions.
func (t InstructionTag) IsGenerate() bool {
	switch t {
	case TagGenerateRandomU64, TagGenerateRandomDouble, TagGenerateRandomBoolean:
		return true
	default:
		return false
	}
}

// ParseInstruction decodes the instruction payload: exactly one tag byte,
// no further arguments.
func ParseInstruction(data []byte) (InstructionTag, error) {
	if len(data) != 1 {
		return 0, ErrMalformedInstruction
	}
	tag := InstructionTag(data[0])
	switch tag {
	case TagInitializeProgram, TagGenerateRandomU64, TagGenerateRandomDouble, TagGenerateRandomBoolean:
		return tag, nil
	default:
		return 0, ErrUnknownInstruction
	}
}

// AccountMeta is one entry of an invocation's positionally fixed account
// set.
type AccountMeta struct {
	Pubkey     solana.PublicKey
	IsSigner   bool
	IsWritable bool
}

// Invocation is one signed request against the program, carrying the
// instruction payload, the account set, and the chain context the entropy
// sources sample from.
type Invocation struct {
	Data            []byte
	Accounts        []AccountMeta
	Signature       solana.Signature
	Slot            uint64
	RecentBlockhash solana.Hash
}

// Positional account schema for INITIALIZE_PROGRAM.
const (
	initAccountInitializer = 0
	initAccountConfig      = 1
	initAccountCount       = 2
)

// Positional account schema for GENERATE_*.
const (
	genAccountRequester      = 0
	genAccountRequesterToken = 1
	genAccountTreasuryToken  = 2
	genAccountTokenProgram   = 3
	genAccountConfig         = 4
	genAccountClock          = 5
	genAccountCount          = 6
)
