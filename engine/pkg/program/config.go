package program

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ConfigSeed is the fixed seed string the config PDA is derived from,
// together with the program's own address.
const ConfigSeed = "token_qrng_config"

// TokenDecimals is the decimal precision of the payment token.
const TokenDecimals = 9

// DefaultPricePerRequest is 1.0 token in base units.
const DefaultPricePerRequest uint64 = 1_000_000_000

// ConfigAddress derives the program's singleton config address.
func ConfigAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	address, bump, err := solana.FindProgramAddress([][]byte{[]byte(ConfigSeed)}, programID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("failed to derive config address: %w", err)
	}
	return address, bump, nil
}
