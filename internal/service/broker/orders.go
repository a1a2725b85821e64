package broker

import (
	"context"
	"fmt"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
	applogger "OptArb/pkg/logger"
)

const (
	validityDay     = 1
	accountTypeMain = 1
)

type orderRequest struct {
	Validity     int     `json:"validity"`
	ValidityDate *string `json:"validityDate"`
	Price        float64 `json:"price"`
	Volume       int64   `json:"volume"`
	Side         int     `json:"side"`
	ISIN         string  `json:"isin"`
	AccountType  int     `json:"accountType"`
	SerialNumber int64   `json:"serialNumber,omitempty"`
}

// OpenOrder is a resting order as reported by the broker.
type OpenOrder struct {
	ISIN           string  `json:"isin"`
	OrderSide      int     `json:"orderSide"`
	RemainedVolume int64   `json:"remainedVolume"`
	Price          float64 `json:"price"`
	SerialNumber   int64   `json:"serialNumber"`
}

type cancelRequest struct {
	SerialNumbers []int64 `json:"serialNumbers"`
}

// OpenOrders lists the account's resting orders.
func (c *Client) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	var orders []OpenOrder
	if err := c.get(ctx, "orders", c.cfg.BaseURL+"/orders/GetOpenOrders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// PlaceOrModify makes the broker hold exactly one order on side at price and size.
// An existing order on that side is amended when it differs and left alone when it matches.
func (c *Client) PlaceOrModify(ctx context.Context, instrument string, side models.Side, price float64, size int64) error {
	open, err := c.OpenOrders(ctx)
	if err != nil {
		return err
	}

	req := orderRequest{
		Validity:    validityDay,
		Price:       price,
		Volume:      size,
		Side:        int(side),
		ISIN:        instrument,
		AccountType: accountTypeMain,
	}

	for _, o := range open {
		if o.ISIN != instrument || o.OrderSide != int(side) {
			continue
		}
		if o.Price == price && o.RemainedVolume == size {
			c.log.Debug("order already resting",
				applogger.String("instrument", instrument),
				applogger.String("side", side.String()),
				applogger.Int64("serial", o.SerialNumber),
			)
			return nil
		}
		req.SerialNumber = o.SerialNumber
		if err := c.post(ctx, c.cfg.BaseURL+"/orders/EditOrder", req, nil); err != nil {
			return fmt.Errorf("edit order %d: %w", o.SerialNumber, err)
		}
		c.log.Info("order modified",
			applogger.String("instrument", instrument),
			applogger.String("side", side.String()),
			applogger.Float64("price", price),
			applogger.Int64("size", size),
			applogger.Int64("serial", o.SerialNumber),
		)
		return nil
	}

	if err := c.post(ctx, c.cfg.BaseURL+"/orders/NewOrder", req, nil); err != nil {
		return fmt.Errorf("new order: %w", err)
	}
	c.log.Info("order placed",
		applogger.String("instrument", instrument),
		applogger.String("side", side.String()),
		applogger.Float64("price", price),
		applogger.Int64("size", size),
	)
	return nil
}

// CancelAll cancels every resting order for instrument. No open orders is success.
func (c *Client) CancelAll(ctx context.Context, instrument string) error {
	open, err := c.OpenOrders(ctx)
	if err != nil {
		return err
	}
	var serials []int64
	for _, o := range open {
		if o.ISIN == instrument {
			serials = append(serials, o.SerialNumber)
		}
	}
	if len(serials) == 0 {
		return nil
	}
	if err := c.post(ctx, c.cfg.BaseURL+"/orders/CancelOrders", cancelRequest{SerialNumbers: serials}, nil); err != nil {
		return fmt.Errorf("cancel orders: %w", err)
	}
	c.log.Info("orders cancelled",
		applogger.String("instrument", instrument),
		applogger.Int("count", len(serials)),
	)
	return nil
}

var _ domrepo.OrderEntry = (*Client)(nil)
