package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteFare(t *testing.T) {
	quote := QuoteFare(400, 2)

	assert.Equal(t, int64(400), quote.PricePerSeat)
	assert.Equal(t, 2, quote.Seats)
	assert.Equal(t, int64(800), quote.Subtotal)
	assert.Equal(t, int64(80), quote.PlatformFee)
	assert.Equal(t, int64(880), quote.Total)
}

func TestQuoteFareSingleSeat(t *testing.T) {
	quote := QuoteFare(1000, 1)

	assert.Equal(t, int64(1000), quote.Subtotal)
	assert.Equal(t, int64(100), quote.PlatformFee)
	assert.Equal(t, int64(1100), quote.Total)
}

func TestQuoteFareFeeRoundsDown(t *testing.T) {
	// 15 * 1 = 15, 10% of 15 is 1.5, integer division keeps 1
	quote := QuoteFare(15, 1)

	assert.Equal(t, int64(1), quote.PlatformFee)
	assert.Equal(t, int64(16), quote.Total)
}
