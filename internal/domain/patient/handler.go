package patient

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/platform/auth"
	"github.com/careflow/careflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:hn", h.GetPatient)
	api.POST("/patients/:hn/status", h.UpdateStatus)
	api.GET("/patients/:hn/history", h.GetHistory)
}

type updateStatusRequest struct {
	Status  Status  `json:"status"`
	History *string `json:"history,omitempty"`
	Date    *string `json:"date,omitempty"`
	Time    *string `json:"time,omitempty"`
}

// UpdateStatus applies a workflow transition. The audit entry is attributed
// to the authenticated caller, never to request fields.
func (h *Handler) UpdateStatus(c echo.Context) error {
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var extra *TransitionExtra
	if req.History != nil || req.Date != nil || req.Time != nil {
		extra = &TransitionExtra{History: req.History, Date: req.Date, Time: req.Time}
	}

	actor := auth.ActorFromContext(c.Request().Context())
	entry, err := h.svc.ApplyTransition(c.Request().Context(), c.Param("hn"), req.Status, actor.Name, actor.Role, extra)
	switch {
	case err == nil:
	case IsNotFound(err):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case IsPersistence(err):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "could not persist transition")
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"entry":   entry,
	})
}

func (h *Handler) GetPatient(c echo.Context) error {
	rec, err := h.svc.GetRecord(c.Request().Context(), c.Param("hn"))
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) GetHistory(c echo.Context) error {
	entries, err := h.svc.ListHistory(c.Request().Context(), c.Param("hn"))
	if err != nil {
		if IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if entries == nil {
		entries = []*HistoryEntry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var rec Record
	if err := c.Bind(&rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateRecord(c.Request().Context(), &rec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRecords(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	resp := pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithLinks(c.Request().URL.Path, pg)
	return c.JSON(http.StatusOK, resp)
}
