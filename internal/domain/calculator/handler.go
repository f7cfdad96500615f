package calculator

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/dosecalc/dosecalc/internal/domain/history"
	"github.com/dosecalc/dosecalc/internal/domain/prefs"
	"github.com/dosecalc/dosecalc/internal/domain/report"
	"github.com/dosecalc/dosecalc/internal/domain/units"
	"github.com/dosecalc/dosecalc/internal/platform/capability"
	"github.com/dosecalc/dosecalc/internal/platform/export"
)

type Handler struct {
	svc   *Service
	prefs *prefs.Service
	caps  *capability.Registry
}

func NewHandler(svc *Service, prefsSvc *prefs.Service, caps *capability.Registry) *Handler {
	return &Handler{svc: svc, prefs: prefsSvc, caps: caps}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/calculators", h.ListCalculators)
	api.GET("/calculators/:name", h.GetCalculator)
	api.POST("/calculators/:name/compute", h.Compute)
	api.POST("/calculators/:name/reset", h.Reset)
	api.GET("/calculators/:name/result", h.GetResult)
	api.POST("/calculators/:name/units/:field/toggle", h.ToggleUnit)
	api.GET("/calculators/:name/convert", h.Convert)
	api.GET("/calculators/:name/history", h.ListHistory)
	api.POST("/calculators/:name/history/:index/load", h.LoadHistory)
	api.DELETE("/calculators/:name/history", h.ClearHistory)
	api.GET("/calculators/:name/report/text", h.ExportText)
	api.GET("/calculators/:name/report/pdf", h.ExportPDF)
}

func (h *Handler) session(c echo.Context) (*Session, error) {
	sess, err := h.svc.Session(c.Request().Context(), c.Param("name"))
	if errors.Is(err, ErrUnknownCalculator) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "unknown calculator")
	}
	return sess, err
}

// calculatorSummary is the list-view projection of a config.
type calculatorSummary struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Breadcrumbs []string `json:"breadcrumbs"`
}

func (h *Handler) ListCalculators(c echo.Context) error {
	configs := h.svc.Registry().List()
	out := make([]calculatorSummary, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, calculatorSummary{Name: cfg.Name, Title: cfg.Title, Breadcrumbs: cfg.Breadcrumbs})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) GetCalculator(c echo.Context) error {
	cfg, ok := h.svc.Registry().Get(c.Param("name"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown calculator")
	}
	return c.JSON(http.StatusOK, cfg)
}

func (h *Handler) Compute(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}

	var req ComputeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	resp, err := sess.Compute(c.Request().Context(), req)
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{
			"message":  "one or more values are outside the allowed range",
			"outcomes": vErr.Outcomes,
		})
	}
	var confErr *ConfirmationError
	if errors.As(err, &confErr) {
		return c.JSON(http.StatusConflict, echo.Map{
			"message":  "warning-level values require confirmation; repeat with confirm_warnings=true",
			"outcomes": confErr.Outcomes,
		})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Reset(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	sess.Reset(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) GetResult(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	bundle := sess.Bundle()
	if bundle.IsEmpty() {
		return echo.NewHTTPError(http.StatusNotFound, "no result computed")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"bundle":        bundle,
		"panel_visible": sess.Visible(),
	})
}

func (h *Handler) ToggleUnit(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	field := c.Param("field")
	unit, err := sess.ToggleUnit(field)
	if errors.Is(err, ErrUnknownField) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := echo.Map{"field": field, "unit": unit}
	// When the client sends the currently displayed value, convert it so
	// the form can swap value and unit together.
	if raw := c.QueryParam("value"); raw != "" {
		v, perr := strconv.ParseFloat(raw, 64)
		if perr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "value is not a number")
		}
		f, _ := sess.Config().Find(field)
		from := units.Alternate(f.Kind)
		if unit == from {
			from = units.Default(f.Kind)
		}
		converted, cerr := sess.Convert(field, v, from, unit)
		if cerr != nil {
			return echo.NewHTTPError(http.StatusBadRequest, cerr.Error())
		}
		resp["value"] = converted
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Convert(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	field := c.QueryParam("field")
	raw := c.QueryParam("value")
	v, perr := strconv.ParseFloat(raw, 64)
	if perr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "value is not a number")
	}
	f, ok := sess.Config().Find(field)
	if !ok || f.Kind == "" {
		return echo.NewHTTPError(http.StatusNotFound, "field is not convertible")
	}
	from := units.Unit(c.QueryParam("from"))
	if from == "" {
		from = units.Default(f.Kind)
	}
	to := units.Unit(c.QueryParam("to"))
	if to == "" {
		to = units.Alternate(f.Kind)
		if from == to {
			to = units.Default(f.Kind)
		}
	}
	converted, err := sess.Convert(field, v, from, to)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, echo.Map{
		"field": field,
		"from":  from,
		"to":    to,
		"value": converted,
	})
}

func (h *Handler) ListHistory(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.History().Entries())
}

// LoadHistory returns the raw inputs of one entry for form re-population.
// It never recomputes; the client re-triggers compute explicitly.
func (h *Handler) LoadHistory(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	index, perr := strconv.Atoi(c.Param("index"))
	if perr != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "index must be an integer")
	}
	entry, err := sess.History().Load(index)
	if errors.Is(err, history.ErrIndexOutOfRange) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, entry)
}

func (h *Handler) ClearHistory(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	confirm := c.QueryParam("confirm") == "true"
	err = sess.History().Clear(c.Request().Context(), confirm)
	if errors.Is(err, history.ErrConfirmationRequired) {
		return echo.NewHTTPError(http.StatusPreconditionRequired, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) reportInput(c echo.Context, sess *Session) (report.Input, error) {
	p, err := h.prefs.Get(c.Request().Context())
	if err != nil {
		return report.Input{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	cfg := sess.Config()
	return report.Input{
		Bundle: sess.Bundle(),
		Prefs:  p,
		Meta: report.Meta{
			CalculatorName:  cfg.Name,
			CalculatorTitle: cfg.Title,
			Filename:        cfg.ExportFilename,
		},
		AuditRecord: sess.LastRecord(),
	}, nil
}

// ExportText composes the clipboard summary and, when a text sink is
// registered, forwards it there. A sink failure returns an error without
// touching any stored state.
func (h *Handler) ExportText(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	in, err := h.reportInput(c, sess)
	if err != nil {
		return err
	}
	text, err := report.ComposeText(in)
	if errors.Is(err, report.ErrNoResult) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if sink, ok := export.SinkFrom(h.caps); ok {
		if err := sink.Write(c.Request().Context(), sess.Config().Name, text); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "text sink rejected the export")
		}
	}
	return c.String(http.StatusOK, text)
}

// ExportPDF renders the report through the registered PDF capability. A
// missing renderer disables the feature with 503 rather than failing later.
func (h *Handler) ExportPDF(c echo.Context) error {
	sess, err := h.session(c)
	if err != nil {
		return err
	}
	renderer, ok := export.RendererFrom(h.caps)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, export.ErrUnavailable.Error())
	}
	in, err := h.reportInput(c, sess)
	if err != nil {
		return err
	}
	doc, err := report.ComposeDocument(in)
	if errors.Is(err, report.ErrNoResult) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	blob, err := renderer.Render(doc)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+doc.Filename+`"`)
	return c.Blob(http.StatusOK, "application/pdf", blob)
}
