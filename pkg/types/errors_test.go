package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineError_IsMatchesByCode(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "venue-failure-matches-sentinel",
			err:    NewVenueFetchFailure("raydium:abc", errors.New("timeout")),
			target: ErrVenueFetchFailure,
			want:   true,
		},
		{
			name:   "wrapped-insufficient-quotes",
			err:    fmt.Errorf("scan: %w", NewInsufficientQuotes(1)),
			target: ErrInsufficientQuotes,
			want:   true,
		},
		{
			name:   "different-codes-do-not-match",
			err:    NewUnsupportedVenueFormat("orca:def", "missing price", nil),
			target: ErrVenueFetchFailure,
			want:   false,
		},
		{
			name:   "plain-error-does-not-match",
			err:    errors.New("boom"),
			target: ErrInternal,
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestEngineError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewVenueFetchFailure("raydium:abc", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "raydium:abc")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestEngineError_Warning(t *testing.T) {
	err := NewUnsupportedVenueFormat("orca:def", "missing priceUsd", nil)

	w := err.Warning()
	assert.Equal(t, "orca:def", w.Venue)
	assert.Equal(t, CodeUnsupportedVenueFormat, w.Code)
	assert.Equal(t, "missing priceUsd", w.Message)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeInsufficientQuotes, CodeOf(fmt.Errorf("wrap: %w", NewInsufficientQuotes(0))))
	assert.Equal(t, CodeInvalidRequest, CodeOf(NewInvalidRequest("bad %s", "input")))
	assert.Equal(t, CodeInternalError, CodeOf(errors.New("unexpected")))
}

func TestNewLowLiquidity(t *testing.T) {
	w := NewLowLiquidity("uniswap:0xdust", "2500.00", "10000.00").Warning()

	assert.Equal(t, CodeLowLiquidity, w.Code)
	assert.Equal(t, "uniswap:0xdust", w.Venue)
	assert.Equal(t, "liquidity $2500.00 below minimum $10000.00", w.Message)
}
