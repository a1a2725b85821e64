package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"OptArb/internal/domain/models"
	"OptArb/internal/repository"
	"OptArb/pkg/cache"
)

type fakePipeline struct{}

func (fakePipeline) State() models.LiveState {
	return models.LiveState{NetExposure: 3, HedgeBias: 0.2, SameDirectionAllowed: true}
}
func (fakePipeline) Counters() models.CounterSnapshot { return models.CounterSnapshot{NullData: 8} }
func (fakePipeline) Ready() bool { return true }

type fakeGroups []models.GroupDelta

func (g fakeGroups) Groups() []models.GroupDelta { return g }

type fakeResults struct {
	rows       []*models.Result
	err        error
	from, to   time.Time
	instrument string
	limit      int
}

func (f *fakeResults) Init(context.Context) error { return nil }
func (f *fakeResults) Store(context.Context, *models.Result) error { return nil }
func (f *fakeResults) StoreBatch(context.Context, []*models.Result) error { return nil }
func (f *fakeResults) Health(context.Context) error { return nil }
func (f *fakeResults) Close() error { return nil }
func (f *fakeResults) Query(_ context.Context, instrument string, from, to time.Time, limit int) ([]*models.Result, error) {
	f.instrument, f.from, f.to, f.limit = instrument, from, to, limit
	return f.rows, f.err
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func serve(t *testing.T, h *StatusHandler, target string) (int, envelope) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestStatus(t *testing.T) {
	h := NewStatusHandler(nil, "IRO9ABCD0001", fakePipeline{}, nil, nil, nil)
	code, env := serve(t, h, "/api/status")
	require.Equal(t, http.StatusOK, code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "IRO9ABCD0001", body.Instrument)
	assert.True(t, body.Ready)
	assert.Equal(t, 3.0, body.State.NetExposure)
	assert.Equal(t, int64(8), body.Counters.NullData)
}

func TestStatusWithoutPipeline(t *testing.T) {
	h := NewStatusHandler(nil, "", nil, nil, nil, nil)
	code, _ := serve(t, h, "/api/status")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestResultsDefaultsAndValidation(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeResults{rows: []*models.Result{{ID: "a", Instrument: "IRO9ABCD0001", Signal: models.SignalBuy}}}
	h := NewStatusHandler(nil, "", nil, nil, store, nil)
	h.now = func() time.Time { return now }

	code, env := serve(t, h, "/api/results?instrument=IRO9ABCD0001")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 200, store.limit)
	assert.True(t, store.to.Equal(now))
	assert.True(t, store.from.Equal(now.Add(-24*time.Hour)))

	var list struct {
		Rows  []models.Result `json:"rows"`
		Total int64           `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(1), list.Total)
	assert.Equal(t, models.SignalBuy, list.Rows[0].Signal)

	code, _ = serve(t, h, "/api/results")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = serve(t, h, "/api/results?instrument=IRO9ABCD0001&limit=100000")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = serve(t, h, "/api/results?instrument=IRO9ABCD0001&from=2025-01-16T00:00:00Z&to=2025-01-15T00:00:00Z")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestResultsCache(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	store := &fakeResults{rows: []*models.Result{{ID: "a", Instrument: "IRO9ABCD0001"}}}
	h := NewStatusHandler(nil, "", nil, nil, store, nil, WithResultsCache(mc, time.Minute))
	target := "/api/results?instrument=IRO9ABCD0001&from=2025-01-14T00:00:00Z&to=2025-01-15T00:00:00Z"

	code, _ := serve(t, h, target)
	require.Equal(t, http.StatusOK, code)

	// a cached page is served without touching storage
	store.err = errors.New("down")
	code, env := serve(t, h, target)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"id":"a"`)

	code, _ = serve(t, h, target+"&limit=5")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestResultsStorageFailure(t *testing.T) {
	h := NewStatusHandler(nil, "", nil, nil, &fakeResults{err: errors.New("down")}, nil)
	code, _ := serve(t, h, "/api/results?instrument=IRO9ABCD0001")
	assert.Equal(t, http.StatusInternalServerError, code)
}

func TestHedge(t *testing.T) {
	mc := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mc.Close()
	store := repository.NewRedisRiskStore(mc, 0)
	require.NoError(t, store.PublishHedge(context.Background(), []models.HedgeBias{
		{Instrument: "IRO9ABCD0001", Group: "IRO9ABCD", Bias: 0.3},
	}))
	h := NewStatusHandler(nil, "", nil, nil, nil, store)

	code, env := serve(t, h, "/api/hedge?instrument=IRO9ABCD0001")
	require.Equal(t, http.StatusOK, code)
	var b models.HedgeBias
	require.NoError(t, json.Unmarshal(env.Data, &b))
	assert.Equal(t, 0.3, b.Bias)

	code, _ = serve(t, h, "/api/hedge?instrument=IRO9ABCD0009")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGroups(t *testing.T) {
	h := NewStatusHandler(nil, "", nil, fakeGroups{{Group: "IRO9ABCD", Members: []string{"IRO9ABCD0001"}, Delta: 0.15}}, nil, nil)
	code, env := serve(t, h, "/api/groups")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"weighted_average_delta":0.15`)
}
