package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
	"github.com/voiceiq/viq-cli/pkg/reports"
)

func TestReportsListText(t *testing.T) {
	te := newTestEnv(t)

	out, err := execute(NewReportsCommand(te.deps), "list", "--limit", "10")
	require.NoError(t, err)
	assert.Contains(t, out, "CALLER NAME")
	assert.Contains(t, out, "Caller 01")
	assert.Contains(t, out, "Caller 10")
	assert.NotContains(t, out, "Caller 11")
	assert.Contains(t, out, "Inbound")
	assert.Contains(t, out, "Showing 1 to 10 of 25 results (page 1)")
	assert.Contains(t, te.backend.authHdrs, "Bearer test-token")
}

func TestReportsListPage(t *testing.T) {
	te := newTestEnv(t)

	out, err := execute(NewReportsCommand(te.deps), "list", "--limit", "10", "--page", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Caller 25")
	assert.Contains(t, out, "Showing 21 to 25 of 25 results (page 3)")
}

func TestReportsListPagePastEnd(t *testing.T) {
	te := newTestEnv(t)

	out, err := execute(NewReportsCommand(te.deps), "list", "--limit", "10", "--page", "99")
	require.Error(t, err)
	assert.EqualError(t, err, "page 99 is past the last page (3)")
	assert.ErrorIs(t, err, reports.ErrNoMorePages)
	assert.NotContains(t, out, "Showing")
}

func TestReportsListFiltersJSON(t *testing.T) {
	te := newTestEnv(t)

	out, err := execute(NewReportsCommand(te.deps), "list",
		"--limit", "10", "--search", "caller 0", "--from", "2024-07-03", "--to", "2024-07-05",
		"--sort", "caller_name", "--desc", "-o", "json")
	require.NoError(t, err)

	var view reports.View
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	require.Len(t, view.Records, 3)
	assert.Equal(t, reports.ID("r05"), view.Records[0].ID)
	assert.Equal(t, reports.ID("r03"), view.Records[2].ID)
	assert.Equal(t, 10, view.PageRecords)
	assert.Equal(t, 25, view.Total)
	assert.Equal(t, reports.SortKey{Column: reports.ColCallerName, Direction: reports.SortDesc}, view.Filters.Sort)
}

func TestReportsListColumnFilter(t *testing.T) {
	te := newTestEnv(t)

	out, err := execute(NewReportsCommand(te.deps), "list", "--limit", "10", "--filter", "filename=call-07")
	require.NoError(t, err)
	assert.Contains(t, out, "Caller 07")
	assert.NotContains(t, out, "Caller 08")
	assert.Contains(t, out, "1 of 10 records on this page match the filters")
}

func TestReportsListInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad filter", []string{"--filter", "status"}, "expected col=value"},
		{"unknown filter column", []string{"--filter", "color=red"}, "unknown column"},
		{"unknown sort column", []string{"--sort", "color"}, "unknown column"},
		{"bad page", []string{"--page", "0"}, "invalid page"},
		{"bad limit", []string{"--limit", "501"}, "invalid limit"},
		{"bad output", []string{"-o", "xml"}, "invalid output format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := newTestEnv(t)
			_, err := execute(NewReportsCommand(te.deps), append([]string{"list"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReportsListInvalidDateRange(t *testing.T) {
	te := newTestEnv(t)

	_, err := execute(NewReportsCommand(te.deps), "list", "--from", "2024-07-10", "--to", "2024-07-01")
	require.Error(t, err)
	assert.True(t, viqerrors.IsValidation(err))
}

func TestReportsShow(t *testing.T) {
	te := newTestEnv(t)

	out, err := execute(NewReportsCommand(te.deps), "show", "r04")
	require.NoError(t, err)
	assert.Contains(t, out, "Caller 04")
	assert.Contains(t, out, "Inbound")
	assert.Contains(t, out, "Billing dispute")
	assert.Contains(t, out, "Agent")
	assert.Contains(t, out, "My bill is wrong.")
	assert.Contains(t, out, "Billing call")
	assert.Contains(t, out, "Customer disputes a charge")
}

func TestReportsShowJSON(t *testing.T) {
	te := newTestEnv(t)

	out, err := execute(NewReportsCommand(te.deps), "show", "r04", "-o", "json")
	require.NoError(t, err)

	var resp ReportShowResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "r04", resp.Detail.ID)
	assert.Equal(t, "Caller 04", resp.Detail.Caller)
	assert.Equal(t, "Billing call", resp.Outline.Title)
	assert.Equal(t, "N/A", resp.Detail.CustomerNumber)
}

func TestReportsShowNotFound(t *testing.T) {
	te := newTestEnv(t)

	_, err := execute(NewReportsCommand(te.deps), "show", "missing")
	require.Error(t, err)
	assert.True(t, viqerrors.IsNotFound(err))
}

func TestReportsDelete(t *testing.T) {
	te := newTestEnv(t)

	_, err := execute(NewReportsCommand(te.deps), "delete", "r02")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--confirm")
	assert.Empty(t, te.backend.deleted)

	out, err := execute(NewReportsCommand(te.deps), "delete", "r02", "--confirm")
	require.NoError(t, err)
	assert.Contains(t, out, "Report r02 deleted.")
	assert.Equal(t, []string{"r02"}, te.backend.deleted)
}

func TestReportsDeleteValidationFailure(t *testing.T) {
	te := newTestEnv(t)

	_, err := execute(NewReportsCommand(te.deps), "delete", lockedReportID, "--confirm")
	require.Error(t, err)
	assert.True(t, viqerrors.IsValidation(err))
}

func TestReportsExport(t *testing.T) {
	te := newTestEnv(t)

	out, err := execute(NewReportsCommand(te.deps), "export", "r04")
	require.NoError(t, err)

	path := filepath.Join(te.dir, "Caller 04-r04.txt")
	assert.Contains(t, out, path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "VoiceIQ REPORT - Caller 04-r04")
	assert.Contains(t, string(data), "Customer disputes a charge")
}

func TestReportsExportKinds(t *testing.T) {
	te := newTestEnv(t)
	dir := t.TempDir()

	_, err := execute(NewReportsCommand(te.deps), "export", "r04", "--kind", "transcription", "--dir", dir)
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "transcription-r04.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "Hello, I have a billing question.")

	_, err = execute(NewReportsCommand(te.deps), "export", "r04", "--kind", "audio")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown export kind")
}
