package export

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/voiceiq/viq-cli/pkg/reports"
)

// Fallbacks for missing report fields.
const (
	Unknown       = "Unknown"
	UnknownCaller = "Unknown caller"
	NotAvailable  = "N/A"
	Dash          = "-"

	NoIssueSummary  = "No issue details available"
	NoTranscription = "No transcription available"
	NoCallLog       = "No call log available"

	ProcessingMarker = "Processing"
)

// Display returns value, or fallback when it is empty or the "null" sentinel.
func Display(value, fallback string) string {
	if strings.TrimSpace(value) == "" || value == "null" {
		return fallback
	}
	return value
}

// Field returns a present optional field or fallback.
func Field(p *string, fallback string) string {
	return Display(reports.Text(p), fallback)
}

// CallDirection maps the backend call_type to a label: in is Inbound,
// external is Outbound, anything else is shown as sent.
func CallDirection(callType string) string {
	switch strings.ToLower(strings.TrimSpace(callType)) {
	case "in":
		return "Inbound"
	case "external":
		return "Outbound"
	default:
		return Display(callType, Unknown)
	}
}

// StatusLabel renders a status; processing reports get the marker.
func StatusLabel(status string) string {
	if status == "processing" {
		return ProcessingMarker
	}
	if status == "" || status == "null" {
		return Dash
	}
	return cases.Title(language.English).String(status)
}

// Cell renders a record column for the list table.
func Cell(r reports.Record, col reports.Column) string {
	v, ok := r.Field(col)
	if !ok || v == "" {
		return Dash
	}
	switch col {
	case reports.ColStatus:
		return StatusLabel(v)
	case reports.ColCallType:
		return CallDirection(v)
	}
	return v
}

// DetailView is a report with every field resolved for display.
type DetailView struct {
	ID             string `json:"id" yaml:"id"`
	CallDate       string `json:"call_date" yaml:"call_date"`
	Filename       string `json:"filename" yaml:"filename"`
	Caller         string `json:"caller" yaml:"caller"`
	Responder      string `json:"responder" yaml:"responder"`
	CallType       string `json:"call_type" yaml:"call_type"`
	TollFreeDID    string `json:"toll_free_did" yaml:"toll_free_did"`
	CustomerNumber string `json:"customer_number" yaml:"customer_number"`
	CallStartTime  string `json:"call_start_time" yaml:"call_start_time"`
	CallID         string `json:"call_id" yaml:"call_id"`
	Status         string `json:"status" yaml:"status"`
	Sentiment      string `json:"sentiment" yaml:"sentiment"`
	IssueSummary   string `json:"issue_summary" yaml:"issue_summary"`
	Transcription  string `json:"transcription" yaml:"transcription"`
	CallLog        string `json:"call_log" yaml:"call_log"`
	Report         string `json:"report" yaml:"report"`
}

// NewDetailView applies display defaults to d. A missing call date shows
// as today's date.
func NewDetailView(d *reports.Detail, now time.Time) DetailView {
	return DetailView{
		ID:             string(d.ID),
		CallDate:       Field(d.CallDate, now.Format(reports.DateLayout)),
		Filename:       Field(d.Filename, Unknown),
		Caller:         Field(d.CallerName, UnknownCaller),
		Responder:      Field(d.ResponderName, Unknown),
		CallType:       CallDirection(reports.Text(d.CallType)),
		TollFreeDID:    Field(d.TollFreeDID, NotAvailable),
		CustomerNumber: Field(d.CustomerNumber, NotAvailable),
		CallStartTime:  Field(d.CallStartTime, NotAvailable),
		CallID:         Field(d.CallID, NotAvailable),
		Status:         StatusLabel(reports.Text(d.Status)),
		Sentiment:      Field(d.CallerSentiment, Dash),
		IssueSummary:   Field(d.IssueSummary, NoIssueSummary),
		Transcription:  Field(d.Transcription, NoTranscription),
		CallLog:        Field(d.CallLog, NoCallLog),
		Report:         reports.Text(d.ReportGenerated),
	}
}
