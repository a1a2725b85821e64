package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"OptArb/internal/domain/models"
	domrepo "OptArb/internal/domain/repository"
	"OptArb/pkg/cache"
	xhttp "OptArb/pkg/http"
	xlogger "OptArb/pkg/logger"
	"OptArb/pkg/util"
)

// PipelineStatus is the read side of a running instrument pipeline.
type PipelineStatus interface {
	State() models.LiveState
	Counters() models.CounterSnapshot
	Ready() bool
}

// GroupSource exposes the risk engine's latest cycle.
type GroupSource interface {
	Groups() []models.GroupDelta
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Instrument string                 `json:"instrument"`
	Ready      bool                   `json:"ready"`
	State      models.LiveState       `json:"state"`
	Counters   models.CounterSnapshot `json:"counters"`
}

// StatusHandler serves read-only views of pipeline state, stored results,
// published hedge biases and risk groups. Any source may be nil when the role
// does not have it; its routes then answer 503.
type StatusHandler struct {
	logger     *xlogger.Logger
	instrument string
	pipeline   PipelineStatus
	groups     GroupSource
	results    domrepo.ResultStorage
	risk       domrepo.RiskStore
	cache      cache.Service
	cacheTTL   time.Duration
	now        func() time.Time
}

// StatusOption configures a StatusHandler.
type StatusOption func(*StatusHandler)

// WithResultsCache keeps /api/results pages in c for ttl.
func WithResultsCache(c cache.Service, ttl time.Duration) StatusOption {
	return func(h *StatusHandler) {
		if c != nil && ttl > 0 {
			h.cache = c
			h.cacheTTL = ttl
		}
	}
}

func NewStatusHandler(logger *xlogger.Logger, instrument string, pipeline PipelineStatus, groups GroupSource, results domrepo.ResultStorage, risk domrepo.RiskStore, opts ...StatusOption) *StatusHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &StatusHandler{
		logger:     logger.Component("api"),
		instrument: instrument,
		pipeline:   pipeline,
		groups:     groups,
		results:    results,
		risk:       risk,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/status", h.Status)
	g.GET("/results", h.Results)
	g.GET("/hedge", h.Hedge)
	g.GET("/groups", h.Groups)
}

func (h *StatusHandler) Status(c echo.Context) error {
	if h.pipeline == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("no pipeline in this process"))
	}
	return xhttp.SuccessResponse(c, StatusResponse{
		Instrument: h.instrument,
		Ready:      h.pipeline.Ready(),
		State:      h.pipeline.State(),
		Counters:   h.pipeline.Counters(),
	})
}

func (h *StatusHandler) Results(c echo.Context) error {
	req := &models.ResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.results == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("result storage not configured"))
	}

	to := util.ParseTimeDefault(req.To, h.now())
	from := util.ParseTimeDefault(req.From, to.Add(-24*time.Hour))
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from", "from must not be after to"))
	}

	ctx := c.Request().Context()
	key := cache.Key("results", fmt.Sprintf("%s:%d:%d:%d", req.Instrument, from.Unix(), to.Unix(), req.Limit))
	if h.cache != nil {
		var cached []*models.Result
		if err := h.cache.Get(ctx, key, &cached); err == nil {
			return xhttp.ListResponse(c, cached, int64(len(cached)))
		}
	}

	rows, err := h.results.Query(ctx, req.Instrument, from, to, req.Limit)
	if err != nil {
		h.logger.Error("results query error", xlogger.String("instrument", req.Instrument), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("results query failed").WithError(err))
	}
	if rows == nil {
		rows = []*models.Result{}
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, rows, h.cacheTTL); err != nil {
			h.logger.Debug("results cache write failed", xlogger.Error(err))
		}
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *StatusHandler) Hedge(c echo.Context) error {
	req := &models.HedgeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.risk == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("risk store not configured"))
	}

	b, err := h.risk.LoadHedge(c.Request().Context(), req.Instrument)
	if err != nil {
		if errors.Is(err, domrepo.ErrNotFound) {
			return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no hedge bias published for %s", req.Instrument))
		}
		h.logger.Error("hedge load error", xlogger.String("instrument", req.Instrument), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("hedge load failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, b)
}

func (h *StatusHandler) Groups(c echo.Context) error {
	if h.groups == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("no risk engine in this process"))
	}
	groups := h.groups.Groups()
	if groups == nil {
		groups = []models.GroupDelta{}
	}
	return xhttp.ListResponse(c, groups, int64(len(groups)))
}
