package ledger

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func testPK(n int) solana.PublicKey {
	bytes := make([]byte, 32)
	for i := range bytes {
		bytes[i] = byte(n + i)
	}
	return solana.PublicKeyFromBytes(bytes)
}

func testSig(n uint64) solana.Signature {
	var sig solana.Signature
	binary.LittleEndian.PutUint64(sig[:8], n)
	sig[63] = 0x5a
	return sig
}

func TestQRNG_Ledger_Config_Validate(t *testing.T) {
	t.Parallel()

	valid := Config{
		TreasuryTokenAccount: testPK(1),
		TokenMint:            testPK(2),
		PricePerRequest:      1_000_000_000,
	}
	require.NoError(t, valid.Validate())

	t.Run("missing treasury", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.TreasuryTokenAccount = solana.PublicKey{}
		require.Error(t, cfg.Validate())
	})

	t.Run("missing mint", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.TokenMint = solana.PublicKey{}
		require.Error(t, cfg.Validate())
	})

	t.Run("zero price", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.PricePerRequest = 0
		require.Error(t, cfg.Validate())
	})
}

func TestQRNG_Ledger_Config_Borsh(t *testing.T) {
	t.Parallel()

	cfg := Config{
		TreasuryTokenAccount: testPK(10),
		TokenMint:            testPK(20),
		PricePerRequest:      1_000_000_000,
	}

	data, err := cfg.MarshalBorsh()
	require.NoError(t, err)
	// 32 + 32 + 8 bytes, price little-endian at the tail.
	require.Len(t, data, 72)
	require.Equal(t, uint64(1_000_000_000), binary.LittleEndian.Uint64(data[64:]))

	decoded, err := ConfigFromBorsh(data)
	require.NoError(t, err)
	require.Equal(t, cfg, decoded)
}
