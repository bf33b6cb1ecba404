package program

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestQRNG_Program_ConfigAddress(t *testing.T) {
	t.Parallel()

	programID := testPK(90)

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		a, bumpA, err := ConfigAddress(programID)
		require.NoError(t, err)
		b, bumpB, err := ConfigAddress(programID)
		require.NoError(t, err)
		require.Equal(t, a, b)
		require.Equal(t, bumpA, bumpB)
	})

	t.Run("matches the documented seed derivation", func(t *testing.T) {
		t.Parallel()
		expected, _, err := solana.FindProgramAddress([][]byte{[]byte("token_qrng_config")}, programID)
		require.NoError(t, err)
		got, _, err := ConfigAddress(programID)
		require.NoError(t, err)
		require.Equal(t, expected, got)
	})

	t.Run("distinct per program", func(t *testing.T) {
		t.Parallel()
		a, _, err := ConfigAddress(testPK(90))
		require.NoError(t, err)
		b, _, err := ConfigAddress(testPK(91))
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	})
}

func TestQRNG_Program_ParseInstruction(t *testing.T) {
	t.Parallel()

	t.Run("valid tags", func(t *testing.T) {
		t.Parallel()
		for _, tc := range []struct {
			data []byte
			tag  InstructionTag
		}{
			{[]byte{0}, TagInitializeProgram},
			{[]byte{1}, TagGenerateRandomU64},
			{[]byte{2}, TagGenerateRandomDouble},
			{[]byte{3}, TagGenerateRandomBoolean},
		} {
			tag, err := ParseInstruction(tc.data)
			require.NoError(t, err)
			require.Equal(t, tc.tag, tag)
		}
	})

	t.Run("unknown tag", func(t *testing.T) {
		t.Parallel()
		_, err := ParseInstruction([]byte{4})
		require.ErrorIs(t, err, ErrUnknownInstruction)
		_, err = ParseInstruction([]byte{255})
		require.ErrorIs(t, err, ErrUnknownInstruction)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()
		_, err := ParseInstruction(nil)
		require.ErrorIs(t, err, ErrMalformedInstruction)
		_, err = ParseInstruction([]byte{})
		require.ErrorIs(t, err, ErrMalformedInstruction)
		_, err = ParseInstruction([]byte{1, 0})
		require.ErrorIs(t, err, ErrMalformedInstruction)
	})

	t.Run("generate classification", func(t *testing.T) {
		t.Parallel()
		require.False(t, TagInitializeProgram.IsGenerate())
		require.True(t, TagGenerateRandomU64.IsGenerate())
		require.True(t, TagGenerateRandomDouble.IsGenerate())
		require.True(t, TagGenerateRandomBoolean.IsGenerate())
	})
}
