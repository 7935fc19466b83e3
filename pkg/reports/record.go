// Package reports holds the call report model and the client-side table
// pipeline: filtering, sorting, date ranges and server-side pagination.
package reports

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Column names a filterable, sortable report field. Values match the backend JSON keys.
type Column string

const (
	ColCallDate        Column = "call_date"
	ColCallerName      Column = "caller_name"
	ColCallType        Column = "call_type"
	ColTollFreeDID     Column = "toll_free_did"
	ColCustomerNumber  Column = "customer_number"
	ColStatus          Column = "status"
	ColRequestType     Column = "request_type"
	ColCallerSentiment Column = "caller_sentiment"
	ColFilename        Column = "filename"
	ColCreatedAt       Column = "created_at"
)

// Columns lists every column in display order.
var Columns = []Column{
	ColCallDate,
	ColCallerName,
	ColCallType,
	ColTollFreeDID,
	ColCustomerNumber,
	ColStatus,
	ColRequestType,
	ColCallerSentiment,
	ColFilename,
	ColCreatedAt,
}

// ParseColumn validates a column name.
func ParseColumn(s string) (Column, error) {
	c := Column(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Columns {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown column %q", s)
}

// ID is a report identifier. The backend sends it as a string or a number.
type ID string

// UnmarshalJSON accepts both JSON strings and numbers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("report id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// Short returns the first 8 characters of the id.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// Record is one row of the reports list. Nil pointers are absent fields.
type Record struct {
	ID              ID      `json:"id"`
	CallDate        *string `json:"call_date,omitempty"`
	CallerName      *string `json:"caller_name,omitempty"`
	CallType        *string `json:"call_type,omitempty"`
	TollFreeDID     *string `json:"toll_free_did,omitempty"`
	CustomerNumber  *string `json:"customer_number,omitempty"`
	Status          *string `json:"status,omitempty"`
	RequestType     *string `json:"request_type,omitempty"`
	CallerSentiment *string `json:"caller_sentiment,omitempty"`
	Filename        *string `json:"filename,omitempty"`
	CreatedAt       *string `json:"created_at,omitempty"`
}

// nullSentinel is the literal some backend rows carry instead of JSON null.
const nullSentinel = "null"

// present normalizes an optional field: nil and "null" are absent.
func present(p *string) (string, bool) {
	if p == nil || *p == nullSentinel {
		return "", false
	}
	return *p, true
}

// Field returns the value of col and whether it is present.
func (r Record) Field(col Column) (string, bool) {
	switch col {
	case ColCallDate:
		return present(r.CallDate)
	case ColCallerName:
		return present(r.CallerName)
	case ColCallType:
		return present(r.CallType)
	case ColTollFreeDID:
		return present(r.TollFreeDID)
	case ColCustomerNumber:
		return present(r.CustomerNumber)
	case ColStatus:
		return present(r.Status)
	case ColRequestType:
		return present(r.RequestType)
	case ColCallerSentiment:
		return present(r.CallerSentiment)
	case ColFilename:
		return present(r.Filename)
	case ColCreatedAt:
		return present(r.CreatedAt)
	default:
		return "", false
	}
}

// Value returns the field value, or "" when absent.
func (r Record) Value(col Column) string {
	v, _ := r.Field(col)
	return v
}

// Detail is the full report returned by GET /logs/{id}.
type Detail struct {
	Record
	Transcription   *string `json:"transcription,omitempty"`
	CallLog         *string `json:"call_log,omitempty"`
	ReportGenerated *string `json:"report_generated,omitempty"`
	IssueSummary    *string `json:"issue_summary,omitempty"`
	ResponderName   *string `json:"responder_name,omitempty"`
	CallStartTime   *string `json:"call_start_time,omitempty"`
	CallID          *string `json:"call_id,omitempty"`
}

// Text returns an optional detail field, or "" when absent.
func Text(p *string) string {
	v, _ := present(p)
	return v
}

// Page is one server-side page of records.
type Page struct {
	Records []Record `json:"data"`
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	Total   int      `json:"total"`
}

// Str returns a pointer to s, for building records in code and tests.
func Str(s string) *string {
	return &s
}
