package broker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
	"OptArb/internal/service/ratelimit"
	pkghttp "OptArb/pkg/http"
	applogger "OptArb/pkg/logger"
)

// ErrNoBook is returned when the order book has no level on either side.
var ErrNoBook = errors.New("broker: empty order book")

// Config holds the broker endpoints and client behaviour.
type Config struct {
	BaseURL    string
	MarketURL  string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	RatePerSec float64
	Burst      int
}

// Client talks to the brokerage REST API. It serves quotes, traded volume,
// order entry and account positions.
type Client struct {
	cfg     Config
	http    *pkghttp.Client
	limiter *ratelimit.Limiter
	log     *applogger.Logger
}

// New creates a broker client.
func New(cfg Config, log *applogger.Logger, opts ...pkghttp.ClientOption) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if log == nil {
		log = applogger.Nop()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.MarketURL = strings.TrimRight(cfg.MarketURL, "/")

	httpOpts := []pkghttp.ClientOption{pkghttp.WithTimeout(cfg.Timeout)}
	if cfg.Token != "" {
		httpOpts = append(httpOpts, pkghttp.WithHeader("Authorization", "Bearer "+cfg.Token))
	}
	httpOpts = append(httpOpts, opts...)

	return &Client{
		cfg:     cfg,
		http:    pkghttp.NewClient(httpOpts...),
		limiter: ratelimit.New(cfg.RatePerSec, cfg.Burst),
		log:     log.Component("broker"),
	}
}

// get retries idempotent reads on transport errors and temporary statuses.
func (c *Client) get(ctx context.Context, family, rawURL string, query url.Values, dest interface{}) error {
	var err error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if err = c.limiter.Wait(ctx, family); err != nil {
			return err
		}
		err = c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
			Method:      pkghttp.MethodGet,
			URL:         rawURL,
			QueryParams: query,
		}, dest)
		if err == nil || !retryable(err) || attempt == c.cfg.MaxRetries {
			break
		}
		c.log.Warn("broker read failed, retrying",
			applogger.String("url", rawURL),
			applogger.Int("attempt", attempt),
			applogger.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.cfg.RetryDelay):
		}
	}
	if err != nil {
		return fmt.Errorf("GET %s: %w", rawURL, err)
	}
	return nil
}

// post is sent once; callers own retry policy for writes.
func (c *Client) post(ctx context.Context, rawURL string, body, dest interface{}) error {
	if err := c.limiter.Wait(ctx, "orders"); err != nil {
		return err
	}
	if err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodPost,
		URL:    rawURL,
		Body:   body,
	}, dest); err != nil {
		return fmt.Errorf("POST %s: %w", rawURL, err)
	}
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *pkghttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

type bookLevel struct {
	Price  float64 `json:"p"`
	Volume float64 `json:"v"`
}

type bookResponse struct {
	Buy  []bookLevel `json:"buy"`
	Sell []bookLevel `json:"sell"`
}

// Quote returns the top of book. A one-sided book is mirrored onto the empty side.
func (c *Client) Quote(ctx context.Context, instrument string) (models.Quote, error) {
	var book bookResponse
	if err := c.get(ctx, "market", c.cfg.MarketURL+"/Queue/BestLimitWithSize", url.Values{"isin": {instrument}}, &book); err != nil {
		return models.Quote{}, err
	}
	return quoteFromBook(book, instrument)
}

func quoteFromBook(book bookResponse, instrument string) (models.Quote, error) {
	switch {
	case len(book.Buy) > 0 && len(book.Sell) > 0:
		b, s := book.Buy[0], book.Sell[0]
		return models.Quote{SellSize: s.Volume, SellPrice: s.Price, BuyPrice: b.Price, BuySize: b.Volume}, nil
	case len(book.Sell) > 0:
		s := book.Sell[0]
		return models.Quote{SellSize: s.Volume, SellPrice: s.Price, BuyPrice: s.Price, BuySize: s.Volume}, nil
	case len(book.Buy) > 0:
		b := book.Buy[0]
		return models.Quote{SellSize: b.Volume, SellPrice: b.Price, BuyPrice: b.Price, BuySize: b.Volume}, nil
	default:
		return models.Quote{}, fmt.Errorf("%s: %w", instrument, ErrNoBook)
	}
}

type summaryResponse struct {
	TradedVolume float64 `json:"tradedVolume"`
}

// TradedVolume returns the instrument's total traded volume for the session.
func (c *Client) TradedVolume(ctx context.Context, instrument string) (float64, error) {
	var s summaryResponse
	if err := c.get(ctx, "market", c.cfg.MarketURL+"/Instrument/Summary", url.Values{"isin": {instrument}}, &s); err != nil {
		return 0, err
	}
	return s.TradedVolume, nil
}

var _ domrepo.QuoteSource = (*Client)(nil)
