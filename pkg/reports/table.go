package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/observability"
)

// DefaultPageSize is the number of reports requested per page.
const DefaultPageSize = 20

var (
	// ErrNoMorePages is returned by Next on the last page. No request is made.
	ErrNoMorePages = errors.New("no more pages")
	// ErrFirstPage is returned by Prev on the first page. No request is made.
	ErrFirstPage = errors.New("already on the first page")
	// ErrStaleResponse is returned to a fetch superseded by a newer one.
	// The table state is left as the newer fetch sets it.
	ErrStaleResponse = errors.New("stale response discarded")
)

// PageRangeError reports a page that starts at or past the last record.
// It matches ErrNoMorePages.
type PageRangeError struct {
	Offset int
	Limit  int
	Total  int
}

func (e *PageRangeError) Error() string {
	return fmt.Sprintf("page %d is past the last page (%d)", e.Page(), e.LastPage())
}

func (e *PageRangeError) Unwrap() error { return ErrNoMorePages }

// Page is the 1-based page that was requested.
func (e *PageRangeError) Page() int {
	if e.Limit <= 0 {
		return 1
	}
	return e.Offset/e.Limit + 1
}

// LastPage is the 1-based number of the last page holding records.
func (e *PageRangeError) LastPage() int {
	if e.Limit <= 0 || e.Total <= 0 {
		return 1
	}
	return (e.Total + e.Limit - 1) / e.Limit
}

// Backend is the remote report store.
type Backend interface {
	ListLogs(ctx context.Context, limit, offset int) (*Page, error)
	DeleteLog(ctx context.Context, id string) error
}

// TableConfig configures a Table.
type TableConfig struct {
	PageSize int
	Logger   logging.Logger
	Metrics  *observability.ReportMetrics
	Tracer   *observability.Tracer
}

// Table is the report list view state: the current server page plus the
// client-side filter state. Filter changes never fetch; paging does.
type Table struct {
	backend Backend
	logger  logging.Logger
	metrics *observability.ReportMetrics
	tracer  *observability.Tracer

	mu          sync.Mutex
	limit       int
	offset      int
	total       int
	records     []Record
	gen         uint64
	loaded      bool
	currentPage int
	filters     FilterState
	seq         uint64
	memo        Memo
}

// NewTable creates a table over backend.
func NewTable(backend Backend, cfg TableConfig) *Table {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NewTracer()
	}
	return &Table{
		backend:     backend,
		logger:      cfg.Logger.With(logging.F("component", "report_table")),
		metrics:     cfg.Metrics,
		tracer:      cfg.Tracer,
		limit:       cfg.PageSize,
		currentPage: 1,
	}
}

// Refresh refetches the current page.
func (t *Table) Refresh(ctx context.Context) error {
	t.mu.Lock()
	offset := t.offset
	t.mu.Unlock()
	return t.fetch(ctx, offset)
}

// GoTo fetches the page starting at offset (clamped to >= 0). Once the
// total is known, an offset at or past it is rejected without a request.
func (t *Table) GoTo(ctx context.Context, offset int) error {
	if offset < 0 {
		offset = 0
	}
	t.mu.Lock()
	if t.loaded && offset > 0 && offset >= t.total {
		err := &PageRangeError{Offset: offset, Limit: t.limit, Total: t.total}
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()
	return t.fetch(ctx, offset)
}

// Next fetches the following page, or returns ErrNoMorePages without a request.
func (t *Table) Next(ctx context.Context) error {
	t.mu.Lock()
	if t.offset+t.limit >= t.total {
		t.mu.Unlock()
		return ErrNoMorePages
	}
	offset := t.offset + t.limit
	t.mu.Unlock()
	return t.fetch(ctx, offset)
}

// Prev fetches the preceding page, or returns ErrFirstPage without a request.
func (t *Table) Prev(ctx context.Context) error {
	t.mu.Lock()
	if t.offset <= 0 {
		t.mu.Unlock()
		return ErrFirstPage
	}
	offset := t.offset - t.limit
	if offset < 0 {
		offset = 0
	}
	t.mu.Unlock()
	return t.fetch(ctx, offset)
}

// fetch requests one page. Each call takes a sequence number; only the
// response to the most recently issued request is applied.
func (t *Table) fetch(ctx context.Context, offset int) error {
	t.mu.Lock()
	t.seq++
	seq := t.seq
	limit := t.limit
	t.mu.Unlock()

	ctx, span := t.tracer.StartPageSpan(ctx, offset, limit)
	page, err := t.backend.ListLogs(ctx, limit, offset)
	observability.EndSpan(span, err)

	t.mu.Lock()
	defer t.mu.Unlock()

	if seq != t.seq {
		t.metrics.RecordFetch("stale")
		t.logger.Debug("Discarding superseded page response",
			logging.F("offset", offset), logging.F("seq", int64(seq)), logging.F("latest", int64(t.seq)))
		return ErrStaleResponse
	}
	if err != nil {
		t.metrics.RecordFetch("error")
		return fmt.Errorf("loading reports: %w", err)
	}

	pageOffset := page.Offset
	if pageOffset < 0 {
		pageOffset = 0
	}
	pageLimit := t.limit
	if page.Limit > 0 {
		pageLimit = page.Limit
	}
	if pageOffset > 0 && pageOffset >= page.Total {
		t.metrics.RecordFetch("out_of_range")
		return &PageRangeError{Offset: pageOffset, Limit: pageLimit, Total: page.Total}
	}
	t.metrics.RecordFetch("ok")

	t.records = page.Records
	t.limit = pageLimit
	t.offset = pageOffset
	t.total = page.Total
	t.gen++
	t.loaded = true
	t.currentPage = t.offset/t.limit + 1

	t.logger.Debug("Loaded report page",
		logging.F("offset", t.offset), logging.F("limit", t.limit),
		logging.F("total", t.total), logging.F("records", len(t.records)))
	return nil
}

// Delete removes a report on the backend and then refetches the current
// page once. If that page no longer exists the last page is loaded instead.
// On failure local records are left unchanged.
func (t *Table) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("delete report: %w: empty id", viqerrors.ErrValidation)
	}

	if err := t.backend.DeleteLog(ctx, id); err != nil {
		if viqerrors.IsValidation(err) {
			t.metrics.RecordDelete("validation")
		} else {
			t.metrics.RecordDelete("error")
		}
		t.logger.Warn("Delete failed", logging.F("report_id", id), logging.Err(err))
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	t.metrics.RecordDelete("ok")
	t.logger.Info("Report deleted", logging.F("report_id", id))

	err := t.Refresh(ctx)
	var rangeErr *PageRangeError
	switch {
	case err == nil, errors.Is(err, ErrStaleResponse):
		return nil
	case errors.As(err, &rangeErr):
		// The deleted record was the only one on the last page.
		err = t.fetch(ctx, (rangeErr.LastPage()-1)*rangeErr.Limit)
		if err == nil || errors.Is(err, ErrStaleResponse) {
			return nil
		}
	}
	return fmt.Errorf("refreshing after delete: %w", err)
}

// SetColumnFilter sets a case-insensitive substring filter; "" removes it.
func (t *Table) SetColumnFilter(col Column, value string) {
	t.mutateFilters(func(f *FilterState) {
		if value == "" {
			delete(f.ColumnFilters, col)
			return
		}
		if f.ColumnFilters == nil {
			f.ColumnFilters = make(map[Column]string)
		}
		f.ColumnFilters[col] = value
	})
}

// SetSearch sets the caller name search term.
func (t *Table) SetSearch(term string) {
	t.mutateFilters(func(f *FilterState) { f.GlobalSearch = term })
}

// SetDateRange sets the inclusive call date range.
func (t *Table) SetDateRange(r DateRange) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("%w: %v", viqerrors.ErrValidation, err)
	}
	t.mutateFilters(func(f *FilterState) { f.DateRange = r })
	return nil
}

// SetSort sets the sort key directly.
func (t *Table) SetSort(key SortKey) {
	t.mutateFilters(func(f *FilterState) { f.Sort = key })
}

// ToggleSort advances col through asc, desc and unsorted.
func (t *Table) ToggleSort(col Column) SortKey {
	var next SortKey
	t.mutateFilters(func(f *FilterState) {
		f.Sort = ToggleSort(f.Sort, col)
		next = f.Sort
	})
	return next
}

// ClearFilters drops every filter, the search term, the date range and the sort.
func (t *Table) ClearFilters() {
	t.mutateFilters(func(f *FilterState) { *f = FilterState{} })
}

// SetFilters replaces the whole filter state.
func (t *Table) SetFilters(fs FilterState) error {
	if err := fs.DateRange.Validate(); err != nil {
		return fmt.Errorf("%w: %v", viqerrors.ErrValidation, err)
	}
	t.mutateFilters(func(f *FilterState) { *f = fs.Clone() })
	return nil
}

// mutateFilters applies fn and moves the page indicator back to 1.
func (t *Table) mutateFilters(fn func(*FilterState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fs := t.filters.Clone()
	fn(&fs)
	t.filters = fs
	t.currentPage = 1
}

// Filters returns a copy of the current filter state.
func (t *Table) Filters() FilterState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.filters.Clone()
}

// Find returns the record with id from the current page.
func (t *Table) Find(id string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		if string(r.ID) == id {
			return r, true
		}
	}
	return Record{}, false
}

// View is a rendered snapshot of the table.
type View struct {
	Records     []Record    `json:"records"`
	PageRecords int         `json:"page_records"`
	Limit       int         `json:"limit"`
	Offset      int         `json:"offset"`
	Total       int         `json:"total"`
	StartIndex  int         `json:"start_index"`
	EndIndex    int         `json:"end_index"`
	CurrentPage int         `json:"current_page"`
	HasNext     bool        `json:"has_next"`
	HasPrev     bool        `json:"has_prev"`
	Loaded      bool        `json:"loaded"`
	Filters     FilterState `json:"filters"`
}

// View runs the pipeline over the current page.
func (t *Table) View() View {
	t.mu.Lock()
	records, gen, fs := t.records, t.gen, t.filters.Clone()
	v := View{
		PageRecords: len(t.records),
		Limit:       t.limit,
		Offset:      t.offset,
		Total:       t.total,
		CurrentPage: t.currentPage,
		HasNext:     t.offset+t.limit < t.total,
		HasPrev:     t.offset > 0,
		Loaded:      t.loaded,
		Filters:     fs,
	}
	t.mu.Unlock()

	if v.Offset < v.Total {
		v.StartIndex = v.Offset + 1
		v.EndIndex = v.Offset + v.Limit
		if v.EndIndex > v.Total {
			v.EndIndex = v.Total
		}
	}

	filtered := t.memo.Apply(gen, records, fs)
	v.Records = make([]Record, len(filtered))
	copy(v.Records, filtered)
	return v
}
