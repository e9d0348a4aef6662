package fixedpoint

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownscaleTruncation(t *testing.T) {
	_, err := Default.Downscale(uint256.MustFromDecimal("1000000000000000001"))
	assert.ErrorIs(t, err, ErrDecimalTruncate)

	got, err := Default.Downscale(uint256.MustFromDecimal("1000000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, uint64(100), got)

	got, err = Default.Downscale(uint256.MustFromDecimal("10000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got)
}

func TestDownscaleOverflow(t *testing.T) {
	s := Scale{From: 18, To: 18}
	_, err := s.Downscale(uint256.MustFromDecimal("18446744073709551616"))
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestUpscale(t *testing.T) {
	s := Scale{From: 18, To: 0}
	got, err := s.Upscale(22)
	require.NoError(t, err)
	assert.Equal(t, "22000000000000000000", got.Dec())

	back, err := s.Downscale(got)
	require.NoError(t, err)
	assert.Equal(t, uint64(22), back)
}

func TestBadScale(t *testing.T) {
	_, err := Scale{From: 2, To: 18}.Downscale(uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrBadScale)
}
