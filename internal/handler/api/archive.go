package api

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"FinCapture/internal/domain/models"
	drepo "FinCapture/internal/domain/repository"
	"FinCapture/internal/usecase"
	xhttp "FinCapture/pkg/http"
	xlogger "FinCapture/pkg/logger"
	"FinCapture/pkg/queue"
)

// StatusSource reports the capture loops.
type StatusSource interface {
	Status() []usecase.LoopStatus
}

// HealthChecker is a dependency probed by /healthz.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// ArchiveHandler serves archived observations, merge triggers and scheduler
// status.
type ArchiveHandler struct {
	logger    *xlogger.Logger
	archives  drepo.ArchiveStore
	archiver  *usecase.Archiver
	scheduler StatusSource
	queue     queue.Publisher
	checks    map[string]HealthChecker
}

// NewArchiveHandler builds the handler. q may be nil, in which case async
// merge requests are refused.
func NewArchiveHandler(
	logger *xlogger.Logger,
	archives drepo.ArchiveStore,
	archiver *usecase.Archiver,
	scheduler StatusSource,
	q queue.Publisher,
	checks map[string]HealthChecker,
) *ArchiveHandler {
	return &ArchiveHandler{
		logger:    logger.With(xlogger.String("component", "archive_api")),
		archives:  archives,
		archiver:  archiver,
		scheduler: scheduler,
		queue:     q,
		checks:    checks,
	}
}

func (h *ArchiveHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/scheduler", h.SchedulerStatus)
	g.GET("/archive/:category", h.ListArchived)
	g.GET("/archive/:category/:symbol", h.Archive)
	g.POST("/archive/merge", h.Merge)
}

func (h *ArchiveHandler) Health(c echo.Context) error {
	status := map[string]string{}
	healthy := true
	for name, chk := range h.checks {
		if err := chk.Health(c.Request().Context()); err != nil {
			status[name] = err.Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	if !healthy {
		h.logger.Warn("health check failed", xlogger.Any("checks", status))
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("dependency unhealthy").WithParam("checks", status))
	}
	return xhttp.SuccessResponse(c, status)
}

func (h *ArchiveHandler) SchedulerStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.scheduler.Status())
}

type listArchivedRequest struct {
	Category string `param:"category" validate:"required"`
}

func (h *ArchiveHandler) ListArchived(c echo.Context) error {
	req := &listArchivedRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	cat, err := models.ParseCategory(req.Category)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}

	syms, err := h.archives.ListArchived(c.Request().Context(), cat)
	if err != nil {
		h.logger.Error("list archived", xlogger.String("category", cat.String()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("list archives failed").WithError(err))
	}
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = s.String()
	}
	return xhttp.ListResponse(c, names, int64(len(names)))
}

// Archive returns a symbol's archive, optionally restricted to observation
// keys in [from, to]. A to bound matches any key it prefixes, so a date
// includes that whole day.
func (h *ArchiveHandler) Archive(c echo.Context) error {
	req := &models.ArchiveQuery{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	cat, err := models.ParseCategory(req.Category)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	sym, err := models.ParseSymbol(req.Symbol)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("symbol: %v", err))
	}

	entries, err := h.archives.ReadArchive(c.Request().Context(), cat, sym)
	if err != nil {
		h.logger.Error("read archive", xlogger.String("symbol", sym.String()), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("read archive failed").WithError(err))
	}
	if entries == nil {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("no %s archive for %s", cat, sym))
	}

	rows := make([]models.ArchiveEntry, 0, min(len(entries), req.Limit))
	var total int64
	for _, e := range entries {
		if !inRange(e.ObservationKey, req.From, req.To) {
			continue
		}
		total++
		if len(rows) < req.Limit {
			rows = append(rows, e)
		}
	}
	return xhttp.ListResponse(c, rows, total)
}

func inRange(key, from, to string) bool {
	if from != "" && key < from {
		return false
	}
	if to != "" && key > to && !strings.HasPrefix(key, to) {
		return false
	}
	return true
}

// Merge runs a merge now, or enqueues it when async is requested.
func (h *ArchiveHandler) Merge(c echo.Context) error {
	req := &models.MergeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.ValidationErrorResponse(c, verr)
	}
	cat, err := models.ParseCategory(req.Category)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	syms, err := usecase.ParseSymbols(req.Symbols)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}

	if req.Async {
		if h.queue == nil {
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("merge queue is not configured"))
		}
		if err := h.queue.Enqueue(c.Request().Context(), usecase.MergeJobType, req); err != nil {
			h.logger.Error("enqueue merge", xlogger.Error(err))
			return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("enqueue merge failed").WithError(err))
		}
		return xhttp.AcceptedResponse(c, models.MergeResponse{RunID: uuid.NewString(), Category: cat.String(), Queued: true})
	}

	resp, err := h.archiver.RunAll(c.Request().Context(), cat, syms)
	if err != nil {
		h.logger.Error("merge run", xlogger.String("category", cat.String()), xlogger.Error(err))
		var se *models.StoreError
		if errors.As(err, &se) {
			return xhttp.AppErrorResponse(c, xhttp.InternalError("capture store unavailable").WithError(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, resp)
}
