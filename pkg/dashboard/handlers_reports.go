package dashboard

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/voiceiq/viq-cli/pkg/export"
	"github.com/voiceiq/viq-cli/pkg/reports"
)

// filterParamPrefix marks per-column filter query parameters, e.g. filter.caller_name=ann.
const filterParamPrefix = "filter."

// ReportDetailResponse is a single report with display defaults applied.
type ReportDetailResponse struct {
	Detail  export.DetailView    `json:"detail"`
	Outline export.ReportOutline `json:"outline"`
}

// ReportsHandler serves the report table.
type ReportsHandler struct {
	table   *reports.Table
	details DetailSource
	now     func() time.Time
}

// NewReportsHandler creates a reports handler.
func NewReportsHandler(table *reports.Table, details DetailSource, now func() time.Time) *ReportsHandler {
	return &ReportsHandler{table: table, details: details, now: now}
}

// HandleList applies the filter state in the query string to the current
// page and returns the view. The first call loads the first page.
func (h *ReportsHandler) HandleList(c echo.Context) error {
	fs, apiErr := parseFilterState(c)
	if apiErr != nil {
		return apiErr
	}
	if fs.Key() != h.table.Filters().Key() {
		if err := h.table.SetFilters(fs); err != nil {
			return NewValidationError("date_range", err)
		}
	}

	if err := h.ensureLoaded(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.table.View())
}

// ensureLoaded fetches the first page if nothing has been loaded yet.
func (h *ReportsHandler) ensureLoaded(c echo.Context) error {
	if h.table.View().Loaded {
		return nil
	}
	if err := h.table.Refresh(c.Request().Context()); err != nil && !errors.Is(err, reports.ErrStaleResponse) {
		return FromDomainError("failed to load reports", err)
	}
	return nil
}

func parseFilterState(c echo.Context) (reports.FilterState, *APIError) {
	var fs reports.FilterState
	fs.GlobalSearch = strings.TrimSpace(c.QueryParam("search"))
	fs.DateRange = reports.DateRange{From: c.QueryParam("from"), To: c.QueryParam("to")}

	if sortParam := c.QueryParam("sort"); sortParam != "" {
		col, err := reports.ParseColumn(sortParam)
		if err != nil {
			return fs, NewValidationError("sort", err)
		}
		dir := reports.SortAsc
		switch strings.ToLower(c.QueryParam("dir")) {
		case "", "asc":
		case "desc":
			dir = reports.SortDesc
		default:
			return fs, NewValidationError("dir", errors.New("must be asc or desc"))
		}
		fs.Sort = reports.SortKey{Column: col, Direction: dir}
	}

	for key, values := range c.QueryParams() {
		if !strings.HasPrefix(key, filterParamPrefix) || len(values) == 0 || values[0] == "" {
			continue
		}
		col, err := reports.ParseColumn(strings.TrimPrefix(key, filterParamPrefix))
		if err != nil {
			return fs, NewValidationError(key, err)
		}
		if fs.ColumnFilters == nil {
			fs.ColumnFilters = make(map[reports.Column]string)
		}
		fs.ColumnFilters[col] = values[0]
	}
	return fs, nil
}

// HandleClearFilters drops every filter and returns the unfiltered view.
func (h *ReportsHandler) HandleClearFilters(c echo.Context) error {
	h.table.ClearFilters()
	if err := h.ensureLoaded(c); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.table.View())
}

// HandleNext fetches the next server page.
func (h *ReportsHandler) HandleNext(c echo.Context) error {
	if err := h.ensureLoaded(c); err != nil {
		return err
	}
	if err := h.table.Next(c.Request().Context()); err != nil {
		return pageError(err)
	}
	return c.JSON(http.StatusOK, h.table.View())
}

// HandlePrev fetches the previous server page.
func (h *ReportsHandler) HandlePrev(c echo.Context) error {
	if err := h.ensureLoaded(c); err != nil {
		return err
	}
	if err := h.table.Prev(c.Request().Context()); err != nil {
		return pageError(err)
	}
	return c.JSON(http.StatusOK, h.table.View())
}

// HandleRefresh refetches the current server page.
func (h *ReportsHandler) HandleRefresh(c echo.Context) error {
	if err := h.table.Refresh(c.Request().Context()); err != nil {
		return pageError(err)
	}
	return c.JSON(http.StatusOK, h.table.View())
}

func pageError(err error) error {
	switch {
	case errors.Is(err, reports.ErrNoMorePages):
		return NewConflictError("already on the last page")
	case errors.Is(err, reports.ErrFirstPage):
		return NewConflictError("already on the first page")
	case errors.Is(err, reports.ErrStaleResponse):
		return NewConflictError("superseded by a newer request")
	}
	return FromDomainError("failed to load reports", err)
}

// HandleGet returns one report with display defaults and its outline.
func (h *ReportsHandler) HandleGet(c echo.Context) error {
	id := c.Param("id")
	d, err := h.details.GetLog(c.Request().Context(), id)
	if err != nil {
		return FromDomainError("failed to load report", err)
	}
	view := export.NewDetailView(d, h.now())
	return c.JSON(http.StatusOK, ReportDetailResponse{
		Detail:  view,
		Outline: export.Outline(view.Report, view.Caller),
	})
}

// HandleDelete deletes a report and returns the refreshed view. A backend
// validation failure stays a 422.
func (h *ReportsHandler) HandleDelete(c echo.Context) error {
	if err := h.table.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return FromDomainError("failed to delete report", err)
	}
	return c.JSON(http.StatusOK, h.table.View())
}
