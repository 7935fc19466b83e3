// Package export renders call reports for people: display defaults,
// speaker-labelled call logs, outlines of the generated report, and the
// plain-text export files.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/voiceiq/viq-cli/pkg/reports"
)

// Brand heads every exported file.
const Brand = "VoiceIQ"

// TimestampLayout is the "Generated on" format.
const TimestampLayout = "2006-01-02 15:04:05"

const rule = "========================================"

// Text writes body under the report banner.
func Text(w io.Writer, title, body string, now time.Time) error {
	_, err := fmt.Fprintf(w, "\n%s\n%s REPORT - %s\nGenerated on: %s\n%s\n\n%s\n",
		rule, Brand, title, now.Format(TimestampLayout), rule, body)
	return err
}

// ToFile writes Text to <dir>/<name>.txt and returns the path.
func ToFile(dir, name, body string, now time.Time) (string, error) {
	name = SafeName(name)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	path := filepath.Join(dir, name+".txt")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Text(f, name, body, now); err != nil {
		f.Close()
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}
	return path, nil
}

// SafeName replaces path separators so a caller name cannot escape the
// export directory.
func SafeName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.NewReplacer("/", "_", "\\", "_", "\x00", "").Replace(name)
	if name == "" || name == "." || name == ".." {
		return "report"
	}
	return name
}

// ReportFilename is "<caller or report>-<first 8 of id>".
func ReportFilename(r reports.Record) string {
	caller, ok := r.Field(reports.ColCallerName)
	if !ok || caller == "" {
		caller = "report"
	}
	return caller + "-" + r.ID.Short()
}

// TranscriptionFilename names the transcript export of a report.
func TranscriptionFilename(id reports.ID) string {
	return "transcription-" + string(id)
}

// IssueSummaryFilename names the issue summary export of a report.
func IssueSummaryFilename(id reports.ID) string {
	return "issue-summary-" + string(id)
}

// Kind selects which part of a report to export.
type Kind string

const (
	KindReport        Kind = "report"
	KindTranscription Kind = "transcription"
	KindIssueSummary  Kind = "issue-summary"
	KindCallLog       Kind = "call-log"
)

// ParseKind validates an export kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindReport, KindTranscription, KindIssueSummary, KindCallLog:
		return k, nil
	case "":
		return KindReport, nil
	default:
		return "", fmt.Errorf("unknown export kind %q (want report, transcription, issue-summary or call-log)", s)
	}
}

// Content returns the file name and body for one export of d.
func Content(d *reports.Detail, kind Kind) (name, body string) {
	v := NewDetailView(d, time.Now())
	switch kind {
	case KindTranscription:
		return TranscriptionFilename(d.ID), v.Transcription
	case KindIssueSummary:
		return IssueSummaryFilename(d.ID), v.IssueSummary
	case KindCallLog:
		return "call-log-" + string(d.ID), RenderCallLog(FormatCallLog(reports.Text(d.CallLog)))
	default:
		return ReportFilename(d.Record), Outline(reports.Text(d.ReportGenerated), v.Caller).String()
	}
}
