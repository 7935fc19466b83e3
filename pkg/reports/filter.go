package reports

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"
)

// SortDirection is the order of a sorted column.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortKey selects the single sorted column. The zero value means unsorted,
// which the pipeline renders as call_date descending.
type SortKey struct {
	Column    Column        `json:"column,omitempty"`
	Direction SortDirection `json:"direction,omitempty"`
}

// IsZero reports whether no explicit sort is set.
func (k SortKey) IsZero() bool {
	return k.Column == ""
}

// DefaultSort is applied when no explicit sort is chosen.
var DefaultSort = SortKey{Column: ColCallDate, Direction: SortDesc}

// ToggleSort cycles col through asc, desc and unsorted. Choosing a different
// column starts it at asc and drops the previous one.
func ToggleSort(current SortKey, col Column) SortKey {
	if current.Column != col {
		return SortKey{Column: col, Direction: SortAsc}
	}
	switch current.Direction {
	case SortAsc:
		return SortKey{Column: col, Direction: SortDesc}
	default:
		return SortKey{}
	}
}

// DateLayout is the format of date range bounds.
const DateLayout = "2006-01-02"

// DateRange is an inclusive calendar-day range. Empty bounds are open.
type DateRange struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Active reports whether either bound is set.
func (d DateRange) Active() bool {
	return d.From != "" || d.To != ""
}

// Validate checks bound formats and order.
func (d DateRange) Validate() error {
	var from, to time.Time
	var err error
	if d.From != "" {
		if from, err = time.Parse(DateLayout, d.From); err != nil {
			return fmt.Errorf("invalid from date %q: want YYYY-MM-DD", d.From)
		}
	}
	if d.To != "" {
		if to, err = time.Parse(DateLayout, d.To); err != nil {
			return fmt.Errorf("invalid to date %q: want YYYY-MM-DD", d.To)
		}
	}
	if d.From != "" && d.To != "" && to.Before(from) {
		return fmt.Errorf("date range is reversed: %s is after %s", d.From, d.To)
	}
	return nil
}

// bounds resolves the range to [from 00:00, to 23:59:59.999999999] in loc.
// Unparseable bounds are treated as open.
func (d DateRange) bounds(loc *time.Location) (from, to time.Time) {
	if d.From != "" {
		if t, err := time.ParseInLocation(DateLayout, d.From, loc); err == nil {
			from = t
		}
	}
	if d.To != "" {
		if t, err := time.ParseInLocation(DateLayout, d.To, loc); err == nil {
			to = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
	}
	return from, to
}

// callDateLayouts are the call_date shapes the backend has been seen to send.
var callDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	DateLayout,
	"01/02/2006",
}

// ParseCallDate parses a call_date value; layouts without a zone use loc.
func ParseCallDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range callDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FilterState is the complete client-side view configuration.
type FilterState struct {
	ColumnFilters map[Column]string `json:"column_filters,omitempty"`
	Sort          SortKey           `json:"sort"`
	DateRange     DateRange         `json:"date_range"`
	GlobalSearch  string            `json:"search,omitempty"`
}

// Clone returns a deep copy.
func (f FilterState) Clone() FilterState {
	out := f
	if f.ColumnFilters != nil {
		out.ColumnFilters = make(map[Column]string, len(f.ColumnFilters))
		for k, v := range f.ColumnFilters {
			out.ColumnFilters[k] = v
		}
	}
	return out
}

// Key is a canonical string form, equal for equivalent states.
func (f FilterState) Key() string {
	var b strings.Builder
	cols := make([]string, 0, len(f.ColumnFilters))
	for c, v := range f.ColumnFilters {
		if v != "" {
			cols = append(cols, string(c))
		}
	}
	sort.Strings(cols)
	for _, c := range cols {
		fmt.Fprintf(&b, "f:%s=%q;", c, f.ColumnFilters[Column(c)])
	}
	fmt.Fprintf(&b, "s:%s,%s;d:%s..%s;q:%q", f.Sort.Column, f.Sort.Direction, f.DateRange.From, f.DateRange.To, f.GlobalSearch)
	return b.String()
}

// ApplyFilters runs the view pipeline over records and returns a new slice:
// stable sort, column filters, global search on caller_name, date range.
// Absent fields pass column filters and search. The input is not modified.
func ApplyFilters(records []Record, f FilterState) []Record {
	return applyFilters(records, f, time.Local)
}

func applyFilters(records []Record, f FilterState, loc *time.Location) []Record {
	sorted := make([]Record, len(records))
	copy(sorted, records)

	key := f.Sort
	if key.IsZero() {
		key = DefaultSort
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Value(key.Column), sorted[j].Value(key.Column)
		if key.Direction == SortDesc {
			return a > b
		}
		return a < b
	})

	// A Caser is stateful; one per call keeps ApplyFilters safe for concurrent use.
	fold := cases.Fold()
	var needles []columnNeedle
	for col, v := range f.ColumnFilters {
		if v != "" {
			needles = append(needles, columnNeedle{col: col, text: fold.String(v)})
		}
	}
	search := fold.String(f.GlobalSearch)

	var from, to time.Time
	rangeActive := f.DateRange.Active()
	if rangeActive {
		from, to = f.DateRange.bounds(loc)
	}

	out := make([]Record, 0, len(sorted))
	for _, r := range sorted {
		if !matchColumns(r, needles, fold) {
			continue
		}
		if search != "" {
			if name, ok := r.Field(ColCallerName); ok && !strings.Contains(fold.String(name), search) {
				continue
			}
		}
		if rangeActive && !inRange(r, from, to, loc) {
			continue
		}
		out = append(out, r)
	}
	return out
}

type columnNeedle struct {
	col  Column
	text string // case-folded
}

func matchColumns(r Record, needles []columnNeedle, fold cases.Caser) bool {
	for _, n := range needles {
		v, ok := r.Field(n.col)
		if !ok {
			continue
		}
		if !strings.Contains(fold.String(v), n.text) {
			return false
		}
	}
	return true
}

func inRange(r Record, from, to time.Time, loc *time.Location) bool {
	raw, ok := r.Field(ColCallDate)
	if !ok || strings.TrimSpace(raw) == "" {
		return true
	}
	t, ok := ParseCallDate(raw, loc)
	if !ok {
		return false
	}
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

// Memo caches the last ApplyFilters result. The cache is keyed on the
// records generation and the canonical filter key.
type Memo struct {
	mu    sync.Mutex
	valid bool
	gen   uint64
	key   string
	out   []Record
}

// Apply returns ApplyFilters(records, f), reusing the cached result when
// neither gen nor the filter key changed since the last call.
func (m *Memo) Apply(gen uint64, records []Record, f FilterState) []Record {
	key := f.Key()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.valid && m.gen == gen && m.key == key {
		return m.out
	}
	m.out = ApplyFilters(records, f)
	m.gen, m.key, m.valid = gen, key, true
	return m.out
}
