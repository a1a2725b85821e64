package broker

import (
	"context"
	"fmt"
	"math"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
)

type portfolioItem struct {
	ISIN                    string  `json:"isin"`
	BuyVolume               float64 `json:"buyVolume"`
	SellVolume              float64 `json:"sellVolume"`
	NetWorthBalance         float64 `json:"netWorthBalance"`
	OptionMarginBlockAmount float64 `json:"optionMarginBlockAmount"`
	AveragePrice            float64 `json:"averagePrice"`
}

// Positions returns every option position held by the account.
func (c *Client) Positions(ctx context.Context) ([]models.Position, error) {
	var items []portfolioItem
	if err := c.get(ctx, "account", c.cfg.BaseURL+"/positions/options/Portfolio", nil, &items); err != nil {
		return nil, err
	}
	out := make([]models.Position, 0, len(items))
	for _, it := range items {
		out = append(out, it.position())
	}
	return out, nil
}

// Position returns the position in instrument, or a flat position when none is held.
func (c *Client) Position(ctx context.Context, instrument string) (models.Position, error) {
	all, err := c.Positions(ctx)
	if err != nil {
		return models.Position{}, fmt.Errorf("position %s: %w", instrument, err)
	}
	for _, p := range all {
		if p.Instrument == instrument {
			return p, nil
		}
	}
	return models.Position{Instrument: instrument}, nil
}

func (it portfolioItem) position() models.Position {
	net := it.BuyVolume - it.SellVolume
	value := it.worth()
	avg := it.AveragePrice
	if avg == 0 && net != 0 {
		avg = math.Abs(value) / math.Abs(net)
	}
	return models.Position{
		Instrument:   it.ISIN,
		NetExposure:  net,
		AveragePrice: avg,
		Realized:     value,
	}
}

// worth is the position value; short positions are valued at the blocked margin.
func (it portfolioItem) worth() float64 {
	switch {
	case it.OptionMarginBlockAmount == 0 && it.NetWorthBalance > 0:
		return it.NetWorthBalance
	case it.OptionMarginBlockAmount != 0 && it.NetWorthBalance < 0:
		return -it.OptionMarginBlockAmount
	default:
		return 0
	}
}

var _ domrepo.AccountState = (*Client)(nil)
