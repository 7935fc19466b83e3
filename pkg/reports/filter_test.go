package reports

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, date, caller string) Record {
	r := Record{ID: ID(id)}
	if date != "" {
		r.CallDate = Str(date)
	}
	if caller != "" {
		r.CallerName = Str(caller)
	}
	return r
}

func ids(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = string(r.ID)
	}
	return out
}

func TestToggleSort(t *testing.T) {
	k := ToggleSort(SortKey{}, ColCallerName)
	assert.Equal(t, SortKey{Column: ColCallerName, Direction: SortAsc}, k)

	k = ToggleSort(k, ColCallerName)
	assert.Equal(t, SortKey{Column: ColCallerName, Direction: SortDesc}, k)

	k = ToggleSort(k, ColCallerName)
	assert.True(t, k.IsZero())

	k = ToggleSort(SortKey{Column: ColStatus, Direction: SortDesc}, ColCallerName)
	assert.Equal(t, SortKey{Column: ColCallerName, Direction: SortAsc}, k, "switching columns starts at asc")
}

func TestDateRange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       DateRange
		wantErr bool
	}{
		{"empty", DateRange{}, false},
		{"from only", DateRange{From: "2024-01-01"}, false},
		{"to only", DateRange{To: "2024-01-01"}, false},
		{"same day", DateRange{From: "2024-01-01", To: "2024-01-01"}, false},
		{"bad from", DateRange{From: "01/01/2024"}, true},
		{"bad to", DateRange{To: "2024-13-01"}, true},
		{"reversed", DateRange{From: "2024-02-01", To: "2024-01-01"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApplyFilters_DefaultSortIsCallDateDesc(t *testing.T) {
	records := []Record{
		rec("a", "2024-01-01", "Ann"),
		rec("b", "2024-03-01", "Bob"),
		rec("c", "2024-02-01", "Cy"),
	}
	out := ApplyFilters(records, FilterState{})
	assert.Equal(t, []string{"b", "c", "a"}, ids(out))
	assert.Equal(t, []string{"a", "b", "c"}, ids(records), "input must not be reordered")
}

func TestApplyFilters_SortIsStable(t *testing.T) {
	records := []Record{
		rec("1", "2024-01-01", "Same"),
		rec("2", "2024-01-02", "Same"),
		rec("3", "2024-01-03", "Same"),
	}
	out := ApplyFilters(records, FilterState{Sort: SortKey{Column: ColCallerName, Direction: SortAsc}})
	assert.Equal(t, []string{"1", "2", "3"}, ids(out))

	out = ApplyFilters(records, FilterState{Sort: SortKey{Column: ColCallerName, Direction: SortDesc}})
	assert.Equal(t, []string{"1", "2", "3"}, ids(out))
}

func TestApplyFilters_AbsentSortsAsEmpty(t *testing.T) {
	records := []Record{
		rec("a", "", "Zed"),
		rec("b", "", ""),
		{ID: "c", CallerName: Str("null")},
		rec("d", "", "Amy"),
	}
	out := ApplyFilters(records, FilterState{Sort: SortKey{Column: ColCallerName, Direction: SortAsc}})
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(out))
}

func TestApplyFilters_ColumnFilterCaseInsensitive(t *testing.T) {
	records := []Record{
		{ID: "1", Status: Str("Completed")},
		{ID: "2", Status: Str("pending")},
		{ID: "3", Status: Str("COMPLETED")},
		{ID: "4"},
		{ID: "5", Status: Str("null")},
	}
	out := ApplyFilters(records, FilterState{
		ColumnFilters: map[Column]string{ColStatus: "complete"},
		Sort:          SortKey{Column: ColStatus, Direction: SortAsc},
	})
	assert.ElementsMatch(t, []string{"1", "3", "4", "5"}, ids(out), "absent fields pass vacuously")
}

func TestApplyFilters_MultipleColumnFiltersAreConjunctive(t *testing.T) {
	records := []Record{
		{ID: "1", Status: Str("done"), CallType: Str("in")},
		{ID: "2", Status: Str("done"), CallType: Str("external")},
		{ID: "3", Status: Str("queued"), CallType: Str("in")},
	}
	out := ApplyFilters(records, FilterState{ColumnFilters: map[Column]string{
		ColStatus:   "DONE",
		ColCallType: "in",
		ColFilename: "",
	}})
	assert.Equal(t, []string{"1"}, ids(out))
}

func TestApplyFilters_GlobalSearchOnCallerName(t *testing.T) {
	records := []Record{
		rec("1", "2024-01-01", "Maria Lopez"),
		rec("2", "2024-01-02", "John Smith"),
		rec("3", "2024-01-03", ""),
	}
	out := ApplyFilters(records, FilterState{GlobalSearch: "LOPEZ"})
	assert.ElementsMatch(t, []string{"1", "3"}, ids(out))
}

func TestApplyFilters_DateRange(t *testing.T) {
	records := []Record{
		rec("before", "2024-01-31T23:59:59", "a"),
		rec("start", "2024-02-01T00:00:00", "b"),
		rec("end", "2024-02-10 23:59:00", "c"),
		rec("after", "2024-02-11", "d"),
		rec("nodate", "", "e"),
		rec("garbage", "yesterday", "f"),
	}
	f := FilterState{DateRange: DateRange{From: "2024-02-01", To: "2024-02-10"}}
	out := applyFilters(records, f, time.UTC)
	assert.ElementsMatch(t, []string{"start", "end", "nodate"}, ids(out))

	f = FilterState{DateRange: DateRange{From: "2024-02-05"}}
	out = applyFilters(records, f, time.UTC)
	assert.ElementsMatch(t, []string{"end", "after", "nodate"}, ids(out))

	f = FilterState{DateRange: DateRange{To: "2024-01-31"}}
	out = applyFilters(records, f, time.UTC)
	assert.ElementsMatch(t, []string{"before", "nodate"}, ids(out))
}

func TestApplyFilters_EmptyInput(t *testing.T) {
	out := ApplyFilters(nil, FilterState{GlobalSearch: "x"})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestParseCallDate(t *testing.T) {
	for _, s := range []string{
		"2024-05-06T10:11:12Z",
		"2024-05-06T10:11:12.123+02:00",
		"2024-05-06T10:11:12",
		"2024-05-06 10:11:12",
		"2024-05-06T10:11",
		"2024-05-06",
		"05/06/2024",
	} {
		got, ok := ParseCallDate(s, time.UTC)
		require.True(t, ok, s)
		assert.Equal(t, 2024, got.Year(), s)
	}

	_, ok := ParseCallDate("not a date", time.UTC)
	assert.False(t, ok)
}

func TestFilterState_Key(t *testing.T) {
	a := FilterState{ColumnFilters: map[Column]string{ColStatus: "x", ColCallType: "y", ColFilename: ""}}
	b := FilterState{ColumnFilters: map[Column]string{ColCallType: "y", ColStatus: "x"}}
	assert.Equal(t, a.Key(), b.Key())

	c := b.Clone()
	c.GlobalSearch = "q"
	assert.NotEqual(t, b.Key(), c.Key())

	c.ColumnFilters[ColStatus] = "changed"
	assert.Equal(t, "x", b.ColumnFilters[ColStatus], "clone must not share the map")
}

func TestMemo(t *testing.T) {
	records := []Record{rec("1", "2024-01-01", "Ann"), rec("2", "2024-01-02", "Bob")}
	var m Memo

	first := m.Apply(1, records, FilterState{GlobalSearch: "ann"})
	require.Len(t, first, 1)

	again := m.Apply(1, records, FilterState{GlobalSearch: "ann"})
	assert.Same(t, &first[0], &again[0], "same generation and key reuses the result")

	other := m.Apply(1, records, FilterState{GlobalSearch: "bob"})
	assert.Equal(t, []string{"2"}, ids(other))

	records2 := []Record{rec("3", "2024-01-03", "Bob")}
	next := m.Apply(2, records2, FilterState{GlobalSearch: "bob"})
	assert.Equal(t, []string{"3"}, ids(next))
}

func TestID_UnmarshalJSON(t *testing.T) {
	var page Page
	data := `{"data":[{"id":"abc-123"},{"id":42},{"id":null}],"limit":20,"offset":0,"total":3}`
	require.NoError(t, json.Unmarshal([]byte(data), &page))
	require.Len(t, page.Records, 3)
	assert.Equal(t, ID("abc-123"), page.Records[0].ID)
	assert.Equal(t, ID("42"), page.Records[1].ID)
	assert.Equal(t, ID(""), page.Records[2].ID)

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &id))
}

func TestID_Short(t *testing.T) {
	assert.Equal(t, "12345678", ID("1234567890").Short())
	assert.Equal(t, "abc", ID("abc").Short())
}

func TestParseColumn(t *testing.T) {
	c, err := ParseColumn(" Caller_Name ")
	require.NoError(t, err)
	assert.Equal(t, ColCallerName, c)

	_, err = ParseColumn("transcription")
	assert.Error(t, err)
}

func TestRecord_FieldNullSentinel(t *testing.T) {
	r := Record{CallerName: Str("null"), Status: Str("")}
	_, ok := r.Field(ColCallerName)
	assert.False(t, ok)
	v, ok := r.Field(ColStatus)
	assert.True(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, "", Text(nil))
}
