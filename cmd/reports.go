package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/haral/audit-reports/internal/export"
	"github.com/haral/audit-reports/internal/model"
	"github.com/haral/audit-reports/internal/service"
	"github.com/haral/audit-reports/internal/store"
)

const listPageSize = 500

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Manage audit reports",
	Long:  "Commands for listing, inspecting, rendering and exporting audit reports.",
}

// -- reports list --

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reports, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}
		reports, err := env.Service.ListReports(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "reports list")
		}
		if len(reports) == 0 {
			fmt.Fprintln(os.Stderr, "No reports found.")
			return nil
		}
		formatReportsList(os.Stdout, reports)
		return nil
	},
}

// -- reports show --

var reportsShowCmd = &cobra.Command{
	Use:   "show <report-id>",
	Short: "Show a report with derived metrics as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		r, err := env.Service.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "reports show")
		}
		return writeJSON(os.Stdout, r)
	},
}

// -- reports status --

var reportsStatusCmd = &cobra.Command{
	Use:   "status <report-id> <draft|completed|archived>",
	Short: "Change a report's status",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		r, err := env.Service.SetStatus(ctx, args[0], model.ReportStatus(args[1]))
		if err != nil {
			return eris.Wrap(err, "reports status")
		}
		if r.DocumentPath != "" {
			fmt.Fprintln(os.Stdout, r.DocumentPath)
		}
		return nil
	},
}

// -- reports duplicate --

var reportsDuplicateCmd = &cobra.Command{
	Use:   "duplicate <report-id>",
	Short: "Copy a report into a new draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		dup, err := env.Service.DuplicateReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "reports duplicate")
		}
		fmt.Fprintf(os.Stdout, "%s\t%s\n", dup.ID, dup.AuditNumber)
		return nil
	},
}

// -- reports delete --

var reportsDeleteCmd = &cobra.Command{
	Use:   "delete <report-id>",
	Short: "Delete a report and its generated document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		return eris.Wrap(env.Service.DeleteReport(ctx, args[0]), "reports delete")
	},
}

// -- reports stats --

var reportsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show report counts and average savings",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Service.Statistics(ctx)
		if err != nil {
			return eris.Wrap(err, "reports stats")
		}
		formatStats(os.Stdout, stats)
		return nil
	},
}

// -- reports render --

var reportsRenderCmd = &cobra.Command{
	Use:   "render [report-id...]",
	Short: "Render report documents into the output directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) > 0) {
			return eris.New("pass report IDs or --all")
		}

		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if all {
			reports, err := listAllReports(ctx, env.Service, store.ReportFilter{})
			if err != nil {
				return err
			}
			ids = make([]string, len(reports))
			for i := range reports {
				ids[i] = reports[i].ID
			}
		}

		rendered, err := renderReports(ctx, env.Service, ids, cfg.Render.Concurrency)
		zap.L().Info("render complete",
			zap.Int("rendered", rendered),
			zap.Int("requested", len(ids)),
		)
		return err
	},
}

// -- reports export --

var reportsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export reports with derived metrics to XLSX",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		out, _ := cmd.Flags().GetString("out")

		env, err := initApp(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		filter, err := filterFromFlags(cmd)
		if err != nil {
			return err
		}

		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "reports export: create file")
		}
		defer f.Close() //nolint:errcheck

		n, err := exportReports(ctx, env.Service, filter, f)
		if err != nil {
			return err
		}
		zap.L().Info("export complete", zap.Int("reports", n), zap.String("path", out))
		return eris.Wrap(f.Close(), "reports export: close file")
	},
}

func filterFromFlags(cmd *cobra.Command) (store.ReportFilter, error) {
	status, _ := cmd.Flags().GetString("status")
	customer, _ := cmd.Flags().GetString("customer")
	query, _ := cmd.Flags().GetString("query")
	limit, _ := cmd.Flags().GetInt("limit")

	s := model.ReportStatus(status)
	if s != "" && !s.Valid() {
		return store.ReportFilter{}, eris.Errorf("unknown status %q", status)
	}
	return store.ReportFilter{Status: s, CustomerID: customer, Query: query, Limit: limit}, nil
}

// listAllReports pages through every report matching filter. A positive
// filter.Limit caps the total.
func listAllReports(ctx context.Context, svc *service.Service, filter store.ReportFilter) ([]model.Report, error) {
	total := filter.Limit
	var out []model.Report
	for offset := 0; ; offset += listPageSize {
		page := store.ReportFilter{
			Query: filter.Query, Status: filter.Status, CustomerID: filter.CustomerID,
			Limit: listPageSize, Offset: offset,
		}
		reports, err := svc.ListReports(ctx, page)
		if err != nil {
			return nil, eris.Wrap(err, "list reports")
		}
		out = append(out, reports...)
		if total > 0 && len(out) >= total {
			return out[:total], nil
		}
		if len(reports) < listPageSize {
			return out, nil
		}
	}
}

// renderReports generates documents for ids with at most limit renders in
// flight. Failures are logged and do not stop the remaining renders.
func renderReports(ctx context.Context, svc *service.Service, ids []string, limit int) (int, error) {
	var rendered, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for _, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			path, err := svc.GenerateDocument(gctx, id)
			if err != nil {
				failed.Add(1)
				zap.L().Error("render failed", zap.String("report_id", id), zap.Error(err))
				return nil
			}
			rendered.Add(1)
			zap.L().Debug("rendered", zap.String("report_id", id), zap.String("path", path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(rendered.Load()), eris.Wrap(err, "render reports")
	}
	if n := failed.Load(); n > 0 {
		return int(rendered.Load()), eris.Errorf("%d of %d documents failed", n, len(ids))
	}
	return int(rendered.Load()), nil
}

func exportReports(ctx context.Context, svc *service.Service, filter store.ReportFilter, w io.Writer) (int, error) {
	reports, err := listAllReports(ctx, svc, filter)
	if err != nil {
		return 0, err
	}
	customers, err := svc.ListCustomers(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "list customers")
	}
	byID := make(map[string]model.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}
	stats, err := svc.Statistics(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "statistics")
	}

	if err := export.WriteXLSX(w, export.Workbook{Reports: reports, Customers: byID, Stats: stats}); err != nil {
		return 0, err
	}
	return len(reports), nil
}

func formatReportsList(out io.Writer, reports []model.Report) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tAUDIT\tTITLE\tAUTHOR\tSTATUS\tSAVINGS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t-----\t-----\t------\t------\t-------\t-------")
	for _, r := range reports {
		savings := "-"
		if r.Derived.MaterialSavings != nil {
			savings = fmt.Sprintf("%.1f%%", *r.Derived.MaterialSavings)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.AuditNumber,
			truncate(r.Title, 30),
			r.Author,
			r.Status,
			savings,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func formatStats(out io.Writer, stats *store.ReportStats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total reports:\t%d\n", stats.Total)
	for _, s := range model.ReportStatuses {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", s, stats.ByStatus[s])
	}
	_, _ = fmt.Fprintf(w, "Avg material savings:\t%.1f%%\n", stats.AvgMaterialSavings)
	_, _ = fmt.Fprintf(w, "Avg cost reduction:\t%.1f%%\n", stats.AvgCostReduction)
	_, _ = fmt.Fprintf(w, "Avg CO2 reduction:\t%.1f%%\n", stats.AvgCO2Reduction)
	_ = w.Flush()
}

func init() {
	for _, c := range []*cobra.Command{reportsListCmd, reportsExportCmd} {
		c.Flags().String("status", "", "filter by status (draft, completed, archived)")
		c.Flags().String("customer", "", "filter by customer ID")
		c.Flags().String("query", "", "match title, audit number or author")
	}
	reportsListCmd.Flags().Int("limit", 50, "max reports to show")
	reportsExportCmd.Flags().Int("limit", 0, "max reports to export (0 = all)")
	reportsExportCmd.Flags().String("out", "reports.xlsx", "output XLSX path")
	reportsRenderCmd.Flags().Bool("all", false, "render every report")

	reportsCmd.AddCommand(
		reportsListCmd,
		reportsShowCmd,
		reportsStatusCmd,
		reportsDuplicateCmd,
		reportsDeleteCmd,
		reportsStatsCmd,
		reportsRenderCmd,
		reportsExportCmd,
	)
	rootCmd.AddCommand(reportsCmd)
}
