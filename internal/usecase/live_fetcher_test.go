package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptArb/internal/domain/models"
	mid "OptArb/internal/middleware"
	"OptArb/pkg/logger"
)

const underlying = "IRO1ABCD0001"

func (f *fakeQuotes) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func newTestFetcher(quotes *fakeQuotes, interval time.Duration) (*LiveFetcher, *mid.ObservationBuffer, *models.Counters) {
	buf := mid.NewObservationBuffer(8)
	counters := &models.Counters{}
	return NewLiveFetcher(quotes, buf, underlying, opt, interval, counters, nil, logger.Nop()), buf, counters
}

func TestLiveFetcherSkipsTickWhenBothQuotesFail(t *testing.T) {
	quotes := &fakeQuotes{err: errors.New("timeout")}
	f, buf, counters := newTestFetcher(quotes, time.Second)

	assert.False(t, f.Tick(context.Background()))
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, int64(1), counters.FetchFailure.Load())
}

func TestLiveFetcherPushesWhenOneQuoteFails(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set(underlying, book(10000, 10010))
	f, buf, counters := newTestFetcher(quotes, time.Second)

	require.True(t, f.Tick(context.Background()))
	require.Equal(t, 1, buf.Len())
	assert.Equal(t, int64(1), counters.FetchFailure.Load())

	o := buf.Snapshot()[0]
	assert.Equal(t, models.SourceLive, o.Source)
	assert.True(t, o.Underlying.Valid())
	// the missing leg stays zero and is dropped downstream as null data
	assert.False(t, o.Option.Valid())
}

func TestLiveFetcherRecoversAfterFailures(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set(underlying, book(10000, 10010))
	quotes.set(opt, book(1000, 1010))
	f, buf, counters := newTestFetcher(quotes, time.Second)
	ctx := context.Background()

	quotes.fail(errors.New("timeout"))
	assert.False(t, f.Tick(ctx))
	assert.False(t, f.Tick(ctx))
	quotes.fail(nil)
	require.True(t, f.Tick(ctx))

	assert.Equal(t, 1, buf.Len())
	assert.Equal(t, int64(2), counters.FetchFailure.Load())
	o := buf.Snapshot()[0]
	assert.True(t, o.Underlying.Valid())
	assert.True(t, o.Option.Valid())
}

func TestLiveFetcherRunKeepsGoingThroughErrors(t *testing.T) {
	quotes := &fakeQuotes{err: errors.New("timeout")}
	quotes.set(underlying, book(10000, 10010))
	quotes.set(opt, book(1000, 1010))
	f, buf, counters := newTestFetcher(quotes, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	require.Eventually(t, func() bool { return counters.FetchFailure.Load() >= 2 }, time.Second, time.Millisecond)
	assert.Equal(t, 0, buf.Len())

	quotes.fail(nil)
	require.Eventually(t, func() bool { return buf.Len() > 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("fetcher did not stop")
	}
}
