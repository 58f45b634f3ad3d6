package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Offer is a single price level: a price and the aggregate quantity resting at
// it. Prices and quantities are exact decimals; a quantity of zero is the
// exchange's sentinel for "remove this price level".
type Offer struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func (o Offer) IsRemoval() bool {
	return o.Quantity.IsZero()
}

// DecodeOffers parses wire-encoded [price, quantity] string pairs.
func DecodeOffers(levels [][]string) ([]Offer, error) {
	offers := make([]Offer, 0, len(levels))

	for _, level := range levels {
		if len(level) < 2 {
			return nil, fmt.Errorf("malformed price level: %v", level)
		}

		price, err := decimal.NewFromString(level[0])
		if err != nil {
			return nil, fmt.Errorf("invalid price %q: %w", level[0], err)
		}

		quantity, err := decimal.NewFromString(level[1])
		if err != nil {
			return nil, fmt.Errorf("invalid quantity %q: %w", level[1], err)
		}

		offers = append(offers, Offer{Price: price, Quantity: quantity})
	}

	return offers, nil
}
