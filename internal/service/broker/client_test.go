package broker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptArb/internal/domain/models"
)

const isin = "IRO9ABCD0001"

type fakeBroker struct {
	mu       sync.Mutex
	book     string
	open     []OpenOrder
	posts    map[string][]map[string]interface{}
	failGets atomic.Int32
	auth     string
}

func newFakeBroker(t *testing.T) (*fakeBroker, *Client) {
	t.Helper()
	fb := &fakeBroker{posts: make(map[string][]map[string]interface{})}
	srv := httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(srv.Close)
	c := New(Config{
		BaseURL:    srv.URL,
		MarketURL:  srv.URL + "/market",
		Token:      "secret",
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}, nil)
	return fb, c
}

func (fb *fakeBroker) serve(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.auth = r.Header.Get("Authorization")

	if r.Method == http.MethodGet && fb.failGets.Load() > 0 {
		fb.failGets.Add(-1)
		http.Error(w, "busy", http.StatusServiceUnavailable)
		return
	}

	switch r.URL.Path {
	case "/market/Queue/BestLimitWithSize":
		if r.URL.Query().Get("isin") != isin {
			http.Error(w, "unknown", http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(fb.book))
	case "/market/Instrument/Summary":
		_, _ = w.Write([]byte(`{"tradedVolume": 41000}`))
	case "/orders/GetOpenOrders":
		_ = json.NewEncoder(w).Encode(fb.open)
	case "/positions/options/Portfolio":
		_, _ = w.Write([]byte(`[
			{"isin":"IRO9ABCD0001","buyVolume":10,"sellVolume":4,"netWorthBalance":6000,"optionMarginBlockAmount":0},
			{"isin":"IRO9ABCD0002","buyVolume":0,"sellVolume":5,"netWorthBalance":-1,"optionMarginBlockAmount":2500,"averagePrice":480}
		]`))
	case "/orders/NewOrder", "/orders/EditOrder", "/orders/CancelOrders":
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		fb.posts[r.URL.Path] = append(fb.posts[r.URL.Path], body)
		_, _ = w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func (fb *fakeBroker) postsTo(path string) []map[string]interface{} {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.posts[path]
}

func TestQuoteTwoSided(t *testing.T) {
	fb, c := newFakeBroker(t)
	fb.book = `{"buy":[{"p":990,"v":12}],"sell":[{"p":1010,"v":7}]}`

	q, err := c.Quote(context.Background(), isin)
	require.NoError(t, err)
	assert.Equal(t, models.Quote{SellSize: 7, SellPrice: 1010, BuyPrice: 990, BuySize: 12}, q)
	assert.Equal(t, "Bearer secret", fb.auth)
}

func TestQuoteOneSidedIsMirrored(t *testing.T) {
	fb, c := newFakeBroker(t)
	fb.book = `{"buy":[],"sell":[{"p":1010,"v":7}]}`

	q, err := c.Quote(context.Background(), isin)
	require.NoError(t, err)
	assert.Equal(t, 1010.0, q.BuyPrice)
	assert.Equal(t, 7.0, q.BuySize)
	assert.True(t, q.Valid())
}

func TestQuoteEmptyBook(t *testing.T) {
	fb, c := newFakeBroker(t)
	fb.book = `{"buy":[],"sell":[]}`

	_, err := c.Quote(context.Background(), isin)
	assert.ErrorIs(t, err, ErrNoBook)
}

func TestReadsRetryTemporaryFailures(t *testing.T) {
	fb, c := newFakeBroker(t)
	fb.failGets.Store(2)

	v, err := c.TradedVolume(context.Background(), isin)
	require.NoError(t, err)
	assert.Equal(t, 41000.0, v)
}

func TestReadsGiveUpAfterMaxRetries(t *testing.T) {
	fb, c := newFakeBroker(t)
	fb.failGets.Store(5)

	_, err := c.TradedVolume(context.Background(), isin)
	require.Error(t, err)
}

func TestReadsDoNotRetryClientErrors(t *testing.T) {
	fb, c := newFakeBroker(t)
	fb.book = `{}`

	_, err := c.Quote(context.Background(), "UNKNOWN")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoBook))
}

func TestPlaceOrModifyPlacesWhenNoRestingOrder(t *testing.T) {
	fb, c := newFakeBroker(t)

	require.NoError(t, c.PlaceOrModify(context.Background(), isin, models.SideBuy, 999, 1001))

	placed := fb.postsTo("/orders/NewOrder")
	require.Len(t, placed, 1)
	assert.Equal(t, 999.0, placed[0]["price"])
	assert.Equal(t, 1001.0, placed[0]["volume"])
	assert.Equal(t, 1.0, placed[0]["side"])
	assert.Equal(t, isin, placed[0]["isin"])
	assert.Equal(t, 1.0, placed[0]["validity"])
	assert.Nil(t, placed[0]["validityDate"])
	assert.NotContains(t, placed[0], "serialNumber")
}

func TestPlaceOrModifyAmendsDifferingOrder(t *testing.T) {
	fb, c := newFakeBroker(t)
	fb.open = []OpenOrder{
		{ISIN: isin, OrderSide: 2, RemainedVolume: 900, Price: 1011, SerialNumber: 77},
		{ISIN: "OTHER", OrderSide: 2, RemainedVolume: 1, Price: 1, SerialNumber: 5},
	}

	require.NoError(t, c.PlaceOrModify(context.Background(), isin, models.SideSell, 1012, 988))

	assert.Empty(t, fb.postsTo("/orders/NewOrder"))
	edits := fb.postsTo("/orders/EditOrder")
	require.Len(t, edits, 1)
	assert.Equal(t, 77.0, edits[0]["serialNumber"])
	assert.Equal(t, 2.0, edits[0]["side"])
}

func TestPlaceOrModifyLeavesMatchingOrder(t *testing.T) {
	fb, c := newFakeBroker(t)
	fb.open = []OpenOrder{{ISIN: isin, OrderSide: 1, RemainedVolume: 1001, Price: 999, SerialNumber: 9}}

	require.NoError(t, c.PlaceOrModify(context.Background(), isin, models.SideBuy, 999, 1001))

	assert.Empty(t, fb.postsTo("/orders/NewOrder"))
	assert.Empty(t, fb.postsTo("/orders/EditOrder"))
}

func TestCancelAllOnlyTouchesInstrument(t *testing.T) {
	fb, c := newFakeBroker(t)
	fb.open = []OpenOrder{
		{ISIN: isin, OrderSide: 1, SerialNumber: 1},
		{ISIN: "OTHER", OrderSide: 1, SerialNumber: 2},
		{ISIN: isin, OrderSide: 2, SerialNumber: 3},
	}

	require.NoError(t, c.CancelAll(context.Background(), isin))

	cancels := fb.postsTo("/orders/CancelOrders")
	require.Len(t, cancels, 1)
	assert.Equal(t, []interface{}{1.0, 3.0}, cancels[0]["serialNumbers"])
}

func TestCancelAllWithoutOrdersIsNoop(t *testing.T) {
	fb, c := newFakeBroker(t)
	require.NoError(t, c.CancelAll(context.Background(), isin))
	assert.Empty(t, fb.postsTo("/orders/CancelOrders"))
}

func TestPositions(t *testing.T) {
	_, c := newFakeBroker(t)

	long, err := c.Position(context.Background(), "IRO9ABCD0001")
	require.NoError(t, err)
	assert.Equal(t, 6.0, long.NetExposure)
	assert.Equal(t, 1000.0, long.AveragePrice)

	short, err := c.Position(context.Background(), "IRO9ABCD0002")
	require.NoError(t, err)
	assert.Equal(t, -5.0, short.NetExposure)
	assert.Equal(t, 480.0, short.AveragePrice)
	assert.Equal(t, -2500.0, short.Realized)

	flat, err := c.Position(context.Background(), "IRO9NONE0001")
	require.NoError(t, err)
	assert.Zero(t, flat.NetExposure)
}
