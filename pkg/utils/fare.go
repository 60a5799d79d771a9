package utils

// FareQuote contains the computed booking price and its breakdown. All
// amounts are integer currency units.
type FareQuote struct {
	PricePerSeat int64 `json:"pricePerSeat"`
	Seats        int   `json:"seats"`
	Subtotal     int64 `json:"subtotal"`
	PlatformFee  int64 `json:"platformFee"`
	Total        int64 `json:"total"`
}

const (
	// PlatformFeeBasisPoints is the marketplace fee charged on top of the
	// driver's price, in basis points (1000 = 10%).
	PlatformFeeBasisPoints = 1000
)

// QuoteFare computes the total a passenger pays for a number of seats at the
// ride's published per-seat price. The price always comes from the ride row;
// client-supplied amounts are never part of the calculation.
func QuoteFare(pricePerSeat int64, seats int) FareQuote {
	subtotal := pricePerSeat * int64(seats)
	fee := subtotal * PlatformFeeBasisPoints / 10000

	return FareQuote{
		PricePerSeat: pricePerSeat,
		Seats:        seats,
		Subtotal:     subtotal,
		PlatformFee:  fee,
		Total:        subtotal + fee,
	}
}
