package audit

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dosecalc/dosecalc/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/audit", h.ListRecords)
	api.GET("/audit/export", h.ExportAll)
	api.GET("/audit/:id/export", h.ExportOne)
	api.DELETE("/audit", h.ClearLedger)
}

func (h *Handler) ListRecords(c echo.Context) error {
	pg := pagination.FromContext(c)

	var records []Record
	if calc := c.QueryParam("calculator"); calc != "" {
		records = h.svc.Ledger(c.Request().Context(), calc).List()
	} else {
		records = h.svc.ListAll(c.Request().Context())
	}

	total := len(records)
	start := pg.Offset
	if start > total {
		start = total
	}
	end := start + pg.Limit
	if end > total {
		end = total
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(records[start:end], total, pg.Limit, pg.Offset))
}

func (h *Handler) ExportOne(c echo.Context) error {
	rec, ok := h.svc.FindRecord(c.Request().Context(), c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "audit record not found")
	}
	doc, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="audit-`+rec.ID+`.json"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, doc)
}

func (h *Handler) ExportAll(c echo.Context) error {
	var (
		doc []byte
		err error
	)
	if calc := c.QueryParam("calculator"); calc != "" {
		doc, err = h.svc.Ledger(c.Request().Context(), calc).ExportAll()
	} else {
		doc, err = json.MarshalIndent(h.svc.ListAll(c.Request().Context()), "", "  ")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="audit-ledger.json"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, doc)
}

func (h *Handler) ClearLedger(c echo.Context) error {
	calc := c.QueryParam("calculator")
	if calc == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "calculator query parameter is required")
	}
	confirm := c.QueryParam("confirm") == "true"
	err := h.svc.Ledger(c.Request().Context(), calc).Clear(c.Request().Context(), confirm)
	if errors.Is(err, ErrConfirmationRequired) {
		return echo.NewHTTPError(http.StatusPreconditionRequired, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
