package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
	"github.com/voiceiq/viq-cli/pkg/reports"
)

// Endpoint labels used for spans and metrics.
const (
	EndpointListLogs  = "list_logs"
	EndpointGetLog    = "get_log"
	EndpointDeleteLog = "delete_log"
	EndpointCreateLog = "create_log"
	EndpointChat      = "chat"
	EndpointVoiceChat = "voice_chat"
	EndpointLogin     = "login"
)

// ListLogs fetches one page of reports.
func (c *Client) ListLogs(ctx context.Context, limit, offset int) (*reports.Page, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive: %w", viqerrors.ErrValidation)
	}
	if offset < 0 {
		offset = 0
	}

	var page reports.Page
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/logs/all",
		endpoint: EndpointListLogs,
		query: url.Values{
			"limit":  {strconv.Itoa(limit)},
			"offset": {strconv.Itoa(offset)},
		},
	}, &page)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	if page.Limit <= 0 {
		page.Limit = limit
	}
	return &page, nil
}

// detailResponse wraps GET /logs/{id}; the report is the first element.
type detailResponse struct {
	Data []reports.Detail `json:"data"`
}

// GetLog fetches one full report.
func (c *Client) GetLog(ctx context.Context, id string) (*reports.Detail, error) {
	if id == "" {
		return nil, fmt.Errorf("report id is required: %w", viqerrors.ErrValidation)
	}

	var resp detailResponse
	err := c.do(ctx, call{
		method:   http.MethodGet,
		path:     "/logs/" + url.PathEscape(id),
		endpoint: EndpointGetLog,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("getting report %s: %w", id, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("report %s: %w", id, viqerrors.ErrNotFound)
	}

	d := resp.Data[0]
	if d.ID == "" {
		d.ID = reports.ID(id)
	}
	return &d, nil
}

// DeleteLog deletes a report. A 422 unwraps to ErrValidation.
func (c *Client) DeleteLog(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("report id is required: %w", viqerrors.ErrValidation)
	}

	err := c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/delete_log",
		endpoint:    EndpointDeleteLog,
		query:       url.Values{"id": {id}},
		contentType: "application/json",
	}, nil)
	if err != nil {
		return fmt.Errorf("deleting report %s: %w", id, err)
	}
	return nil
}
