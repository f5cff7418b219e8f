package timeline

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/careflow/careflow/internal/domain/patient"
)

type Handler struct {
	patients *patient.Service
}

func NewHandler(patients *patient.Service) *Handler {
	return &Handler{patients: patients}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:hn/timeline", h.GetTimeline)
}

func (h *Handler) GetTimeline(c echo.Context) error {
	ctx := c.Request().Context()
	hn := c.Param("hn")

	rec, err := h.patients.GetRecord(ctx, hn)
	if err != nil {
		if patient.IsNotFound(err) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	history, err := h.patients.ListHistory(ctx, hn)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, Project(rec.Status, history))
}
