package export

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voiceiq/viq-cli/pkg/reports"
)

func TestDisplay(t *testing.T) {
	assert.Equal(t, "x", Display("x", "N/A"))
	assert.Equal(t, "N/A", Display("", "N/A"))
	assert.Equal(t, "N/A", Display("   ", "N/A"))
	assert.Equal(t, "N/A", Display("null", "N/A"))
	assert.Equal(t, "-", Field(nil, "-"))
}

func TestCallDirection(t *testing.T) {
	assert.Equal(t, "Inbound", CallDirection("in"))
	assert.Equal(t, "Outbound", CallDirection("External"))
	assert.Equal(t, "transfer", CallDirection("transfer"))
	assert.Equal(t, Unknown, CallDirection(""))
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, ProcessingMarker, StatusLabel("processing"))
	assert.Equal(t, "Completed", StatusLabel("completed"))
	assert.Equal(t, Dash, StatusLabel(""))
	assert.Equal(t, Dash, StatusLabel("null"))
}

func TestCell(t *testing.T) {
	r := reports.Record{
		ID:         "1",
		CallType:   reports.Str("in"),
		Status:     reports.Str("processing"),
		CallerName: reports.Str("null"),
		Filename:   reports.Str("call.wav"),
	}
	assert.Equal(t, "Inbound", Cell(r, reports.ColCallType))
	assert.Equal(t, ProcessingMarker, Cell(r, reports.ColStatus))
	assert.Equal(t, Dash, Cell(r, reports.ColCallerName))
	assert.Equal(t, Dash, Cell(r, reports.ColCustomerNumber))
	assert.Equal(t, "call.wav", Cell(r, reports.ColFilename))
}

func TestNewDetailView_Defaults(t *testing.T) {
	v := NewDetailView(&reports.Detail{Record: reports.Record{ID: "9"}}, fixedNow)

	assert.Equal(t, "9", v.ID)
	assert.Equal(t, "2024-07-04", v.CallDate)
	assert.Equal(t, Unknown, v.Filename)
	assert.Equal(t, UnknownCaller, v.Caller)
	assert.Equal(t, Unknown, v.Responder)
	assert.Equal(t, Unknown, v.CallType)
	assert.Equal(t, NotAvailable, v.TollFreeDID)
	assert.Equal(t, NotAvailable, v.CustomerNumber)
	assert.Equal(t, NotAvailable, v.CallStartTime)
	assert.Equal(t, NotAvailable, v.CallID)
	assert.Equal(t, NoIssueSummary, v.IssueSummary)
	assert.Equal(t, NoTranscription, v.Transcription)
	assert.Equal(t, NoCallLog, v.CallLog)
}

func TestNewDetailView_Values(t *testing.T) {
	d := &reports.Detail{
		Record: reports.Record{
			ID:         "9",
			CallDate:   reports.Str("2024-01-02"),
			CallerName: reports.Str("Ana"),
			CallType:   reports.Str("external"),
		},
		ResponderName: reports.Str("Sam"),
		CallID:        reports.Str("c-1"),
	}
	v := NewDetailView(d, fixedNow)
	assert.Equal(t, "2024-01-02", v.CallDate)
	assert.Equal(t, "Ana", v.Caller)
	assert.Equal(t, "Outbound", v.CallType)
	assert.Equal(t, "Sam", v.Responder)
	assert.Equal(t, "c-1", v.CallID)
}
