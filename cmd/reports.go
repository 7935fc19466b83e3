package cmd

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voiceiq/viq-cli/config"
	"github.com/voiceiq/viq-cli/pkg/export"
	"github.com/voiceiq/viq-cli/pkg/logging"
	"github.com/voiceiq/viq-cli/pkg/reports"
)

// listColumns are the columns shown by `viq reports list`.
var listColumns = []reports.Column{
	reports.ColCallDate,
	reports.ColCallerName,
	reports.ColCallType,
	reports.ColStatus,
	reports.ColCallerSentiment,
	reports.ColFilename,
}

// NewReportsCommand creates the reports command group.
func NewReportsCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report", "logs"},
		Short:   "Browse, export and delete call reports",
		Long: `Browse the call reports generated from uploaded recordings.

Reports are fetched one server page at a time. Search, column filters, the
date range and sorting apply to the records of the fetched page only.`,
	}

	cmd.AddCommand(newReportsListCommand(deps))
	cmd.AddCommand(newReportsShowCommand(deps))
	cmd.AddCommand(newReportsDeleteCommand(deps))
	cmd.AddCommand(newReportsExportCommand(deps))
	return cmd
}

type reportsListOptions struct {
	page    int
	limit   int
	search  string
	filters []string
	sort    string
	desc    bool
	from    string
	to      string
	output  string
}

func newReportsListCommand(deps *Deps) *cobra.Command {
	var opts reportsListOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List call reports",
		Long: `List one page of call reports.

Filters run over the fetched page:
  --search     case-insensitive substring of the caller name
  --filter     col=value substring match on one column (repeatable)
  --from/--to  inclusive call date range (YYYY-MM-DD)
  --sort       column to sort by, ascending unless --desc

Columns: ` + columnNames() + `

Examples:
  viq reports list
  viq reports list --page 2 --limit 50
  viq reports list --search smith --filter status=completed
  viq reports list --from 2024-07-01 --to 2024-07-31 --sort caller_name
  viq reports list -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportsList(cmd, deps, opts)
		},
	}

	cmd.Flags().IntVar(&opts.page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "Reports per page (default from config)")
	cmd.Flags().StringVar(&opts.search, "search", "", "Search caller names")
	cmd.Flags().StringArrayVar(&opts.filters, "filter", nil, "Column filter as col=value (repeatable)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "Sort column")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "Sort descending")
	cmd.Flags().StringVar(&opts.from, "from", "", "Earliest call date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.to, "to", "", "Latest call date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func columnNames() string {
	names := make([]string, len(reports.Columns))
	for i, c := range reports.Columns {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

// filterState turns the list flags into a FilterState.
func (o reportsListOptions) filterState() (reports.FilterState, error) {
	fs := reports.FilterState{
		GlobalSearch: strings.TrimSpace(o.search),
		DateRange:    reports.DateRange{From: o.from, To: o.to},
	}
	for _, raw := range o.filters {
		name, value, ok := strings.Cut(raw, "=")
		if !ok {
			return fs, fmt.Errorf("invalid filter %q: expected col=value", raw)
		}
		col, err := reports.ParseColumn(name)
		if err != nil {
			return fs, err
		}
		if fs.ColumnFilters == nil {
			fs.ColumnFilters = make(map[reports.Column]string)
		}
		fs.ColumnFilters[col] = value
	}
	if o.sort != "" {
		col, err := reports.ParseColumn(o.sort)
		if err != nil {
			return fs, err
		}
		dir := reports.SortAsc
		if o.desc {
			dir = reports.SortDesc
		}
		fs.Sort = reports.SortKey{Column: col, Direction: dir}
	}
	return fs, nil
}

func runReportsList(cmd *cobra.Command, deps *Deps, opts reportsListOptions) error {
	e, err := deps.setup(cmd)
	if err != nil {
		return err
	}
	format, err := resolveFormat(opts.output, e.cfg)
	if err != nil {
		return err
	}
	if opts.page < 1 {
		return fmt.Errorf("invalid page: %d (must be >= 1)", opts.page)
	}
	limit := e.cfg.PageSize
	if opts.limit != 0 {
		if opts.limit < 1 || opts.limit > config.MaxPageSize {
			return fmt.Errorf("invalid limit: %d (must be 1-%d)", opts.limit, config.MaxPageSize)
		}
		limit = opts.limit
	}
	fs, err := opts.filterState()
	if err != nil {
		return err
	}

	c, err := deps.client(e)
	if err != nil {
		return err
	}
	table := reports.NewTable(c, reports.TableConfig{
		PageSize: limit,
		Logger:   e.logger,
		Metrics:  deps.metrics.reports,
		Tracer:   deps.tracer,
	})
	if err := table.SetFilters(fs); err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, e.cfg.Timeout)
	defer cancel()
	if err := table.GoTo(ctx, (opts.page-1)*limit); err != nil {
		var rangeErr *reports.PageRangeError
		if errors.As(err, &rangeErr) {
			return rangeErr
		}
		return fmt.Errorf("fetching reports: %w", err)
	}

	view := table.View()
	return render(e.out, format, view, func() error {
		return outputReportsText(e, view)
	})
}

func outputReportsText(e *env, view reports.View) error {
	if view.Total == 0 {
		fmt.Fprintln(e.out, "No reports found.")
		return nil
	}

	if len(view.Records) == 0 {
		fmt.Fprintln(e.out, "No reports on this page match the filters.")
	} else {
		w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
		header := []string{"ID"}
		underline := []string{"--"}
		for _, col := range listColumns {
			header = append(header, strings.ToUpper(strings.ReplaceAll(string(col), "_", " ")))
			underline = append(underline, "--")
		}
		fmt.Fprintln(w, strings.Join(header, "\t"))
		fmt.Fprintln(w, strings.Join(underline, "\t"))
		for _, r := range view.Records {
			row := []string{r.ID.Short()}
			for _, col := range listColumns {
				row = append(row, truncate(export.Cell(r, col), 30))
			}
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(e.out, "\nShowing %d to %d of %d results (page %d)\n",
		view.StartIndex, view.EndIndex, view.Total, view.CurrentPage)
	if len(view.Records) != view.PageRecords {
		fmt.Fprintf(e.out, "%d of %d records on this page match the filters\n", len(view.Records), view.PageRecords)
	}
	return nil
}

// ReportShowResponse is the structured output of `viq reports show`.
type ReportShowResponse struct {
	Detail  export.DetailView    `json:"detail" yaml:"detail"`
	Outline export.ReportOutline `json:"outline" yaml:"outline"`
}

func newReportsShowCommand(deps *Deps) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a call report",
		Long: `Show the details of a call report: call metadata, issue summary, the
speaker-labelled call log, the transcription and the generated report.

Examples:
  viq reports show 42
  viq reports show 42 -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportsShow(cmd, deps, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output format: text, json, yaml")
	return cmd
}

func runReportsShow(cmd *cobra.Command, deps *Deps, id, output string) error {
	e, err := deps.setup(cmd)
	if err != nil {
		return err
	}
	format, err := resolveFormat(output, e.cfg)
	if err != nil {
		return err
	}
	c, err := deps.client(e)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, e.cfg.Timeout)
	defer cancel()
	detail, err := c.GetLog(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching report %s: %w", id, err)
	}

	view := export.NewDetailView(detail, deps.Now())
	resp := ReportShowResponse{Detail: view, Outline: export.Outline(view.Report, view.Caller)}
	return render(e.out, format, resp, func() error {
		return outputReportText(e, resp, detail)
	})
}

func outputReportText(e *env, resp ReportShowResponse, detail *reports.Detail) error {
	v := resp.Detail
	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID:\t%s\n", v.ID)
	fmt.Fprintf(w, "Caller:\t%s\n", v.Caller)
	fmt.Fprintf(w, "Call date:\t%s\n", v.CallDate)
	fmt.Fprintf(w, "Call start:\t%s\n", v.CallStartTime)
	fmt.Fprintf(w, "Direction:\t%s\n", v.CallType)
	fmt.Fprintf(w, "Responder:\t%s\n", v.Responder)
	fmt.Fprintf(w, "Toll-free DID:\t%s\n", v.TollFreeDID)
	fmt.Fprintf(w, "Customer number:\t%s\n", v.CustomerNumber)
	fmt.Fprintf(w, "Call ID:\t%s\n", v.CallID)
	fmt.Fprintf(w, "File:\t%s\n", v.Filename)
	fmt.Fprintf(w, "Status:\t%s\n", v.Status)
	fmt.Fprintf(w, "Sentiment:\t%s\n", v.Sentiment)
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "\nIssue summary\n-------------\n%s\n", v.IssueSummary)

	fmt.Fprintln(e.out, "\nCall log\n--------")
	if lines := export.FormatCallLog(reports.Text(detail.CallLog)); len(lines) > 0 {
		fmt.Fprintln(e.out, export.RenderCallLog(lines))
	} else {
		fmt.Fprintln(e.out, v.CallLog)
	}

	fmt.Fprintf(e.out, "\nTranscription\n-------------\n%s\n", v.Transcription)

	if v.Report != "" {
		fmt.Fprintf(e.out, "\n%s\n", resp.Outline.String())
	}
	return nil
}

func newReportsDeleteCommand(deps *Deps) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a call report",
		Long: `Delete a call report from the backend.

This cannot be undone. Pass --confirm to proceed.

Examples:
  viq reports delete 42 --confirm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportsDelete(cmd, deps, args[0], confirm)
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm deletion")
	return cmd
}

func runReportsDelete(cmd *cobra.Command, deps *Deps, id string, confirm bool) error {
	if !confirm {
		return fmt.Errorf("deleting report %s cannot be undone; re-run with --confirm", id)
	}
	e, err := deps.setup(cmd)
	if err != nil {
		return err
	}
	c, err := deps.client(e)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd, e.cfg.Timeout)
	defer cancel()
	if err := c.DeleteLog(ctx, id); err != nil {
		e.logger.Warn("Report delete failed", logging.F("id", id), logging.Err(err))
		return fmt.Errorf("deleting report %s: %w", id, err)
	}

	fmt.Fprintf(e.out, "Report %s deleted.\n", id)
	return nil
}

func newReportsExportCommand(deps *Deps) *cobra.Command {
	var (
		kind string
		dir  string
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a call report as a text file",
		Long: `Write part of a call report to a text file.

Kinds:
  report         the generated report (default), named <caller>-<id prefix>.txt
  transcription  the raw transcription
  issue-summary  the issue summary
  call-log       the speaker-labelled call log

Files are written to --dir, or export_dir from the config.

Examples:
  viq reports export 42
  viq reports export 42 --kind transcription --dir ~/exports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReportsExport(cmd, deps, args[0], kind, dir)
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(export.KindReport), "What to export: report, transcription, issue-summary, call-log")
	cmd.Flags().StringVar(&dir, "dir", "", "Output directory (default from config)")
	return cmd
}

func runReportsExport(cmd *cobra.Command, deps *Deps, id, kindName, dir string) error {
	kind, err := export.ParseKind(kindName)
	if err != nil {
		return err
	}
	e, err := deps.setup(cmd)
	if err != nil {
		return err
	}
	if dir == "" {
		dir = e.cfg.ExportDir
	}
	dir, err = config.ExpandPath(dir)
	if err != nil {
		return err
	}

	c, err := deps.client(e)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd, e.cfg.Timeout)
	defer cancel()
	detail, err := c.GetLog(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching report %s: %w", id, err)
	}

	name, body := export.Content(detail, kind)
	if strings.TrimSpace(body) == "" {
		return fmt.Errorf("nothing to export: report %s has no %s", id, kind)
	}
	path, err := export.ToFile(dir, name, body, deps.Now())
	if err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Exported %s to %s\n", kind, path)
	return nil
}
