package cmd

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/metrics"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/output"
	"github.com/joescharf/board/internal/store"
)

var (
	reportFormat string
	exportType   string
)

var exportCmd = &cobra.Command{
	Use:   "export <project-key>",
	Short: "Export data as JSON, CSV, or Markdown",
	Long:  "Export items, sprints, or sprint KPIs in various formats.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return exportRun(args[0])
	},
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Sprint analytics reports",
	Long: `Reports reconstruct sprint history from the changelog: burndown,
cumulative flow, KPIs, and velocity.`,
}

var reportBurndownCmd = &cobra.Command{
	Use:   "burndown <project-key> <sprint-key>",
	Short: "Daily burndown for a sprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportBurndownRun(args[0], args[1])
	},
}

var reportCFDCmd = &cobra.Command{
	Use:   "cfd <project-key> <sprint-key>",
	Short: "Cumulative flow diagram for a sprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportCFDRun(args[0], args[1])
	},
}

var reportKPIsCmd = &cobra.Command{
	Use:   "kpis <project-key> [sprint-key]",
	Short: "Sprint KPIs (one sprint, or every sprint in the project)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sprintKey := ""
		if len(args) > 1 {
			sprintKey = args[1]
		}
		return reportKPIsRun(args[0], sprintKey)
	},
}

var reportVelocityCmd = &cobra.Command{
	Use:   "velocity <project-key>",
	Short: "Velocity history and forecast from completed sprints",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reportVelocityRun(args[0])
	},
}

func init() {
	exportCmd.Flags().StringVar(&reportFormat, "format", "json", "Output format: json, csv, markdown")
	exportCmd.Flags().StringVar(&exportType, "type", "items", "Data type: items, sprints, kpis")
	rootCmd.AddCommand(exportCmd)

	reportCmd.AddCommand(reportBurndownCmd)
	reportCmd.AddCommand(reportCFDCmd)
	reportCmd.AddCommand(reportKPIsCmd)
	reportCmd.AddCommand(reportVelocityCmd)
	rootCmd.AddCommand(reportCmd)
}

func exportRun(projectKey string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := s.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return err
	}

	switch exportType {
	case "items":
		return exportItems(ctx, s, p)
	case "sprints":
		return exportSprints(ctx, s, p)
	case "kpis":
		return exportKPIs(ctx, p)
	default:
		return fmt.Errorf("unknown export type: %s (use: items, sprints, kpis)", exportType)
	}
}

func exportItems(ctx context.Context, s store.Store, p *models.Project) error {
	items, err := s.ListItems(ctx, store.ItemListFilter{ProjectID: p.ID})
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"Key", "Title", "Type", "Status", "Priority", "Points", "Assignee", "Created"})
		for _, it := range items {
			w.Write([]string{
				it.Key, it.Title, string(it.Type), string(it.Status), string(it.Priority),
				fmt.Sprintf("%g", it.StoryPoints), it.Assignee, it.CreatedAt.Format("2006-01-02"),
			})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintf(ui.Out, "# %s items\n\n", p.Key)
		fmt.Fprintln(ui.Out, "| Key | Title | Type | Status | Points |")
		fmt.Fprintln(ui.Out, "|-----|-------|------|--------|--------|")
		for _, it := range items {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s | %g |\n",
				it.Key, it.Title, it.Type, it.Status, it.StoryPoints)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func exportSprints(ctx context.Context, s store.Store, p *models.Project) error {
	sprints, err := s.ListSprints(ctx, p.ID)
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(sprints)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"Key", "Name", "Status", "Start", "End"})
		for _, sp := range sprints {
			w.Write([]string{
				sp.Key, sp.Name, string(sp.Status),
				sp.StartDate.Format("2006-01-02"), sp.EndDate.Format("2006-01-02"),
			})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintf(ui.Out, "# %s sprints\n\n", p.Key)
		fmt.Fprintln(ui.Out, "| Key | Name | Status | Start | End |")
		fmt.Fprintln(ui.Out, "|-----|------|--------|-------|-----|")
		for _, sp := range sprints {
			fmt.Fprintf(ui.Out, "| %s | %s | %s | %s | %s |\n",
				sp.Key, sp.Name, sp.Status,
				sp.StartDate.Format("2006-01-02"), sp.EndDate.Format("2006-01-02"))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func exportKPIs(ctx context.Context, p *models.Project) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	kpis, err := e.ProjectKPIs(ctx, p.ID, metrics.SprintFilter{}, metrics.ItemFilter{})
	if err != nil {
		return err
	}

	switch reportFormat {
	case "json":
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(kpis)
	case "csv":
		w := csv.NewWriter(ui.Out)
		w.Write([]string{"Sprint", "Committed", "Completed", "Added", "Removed", "Spillover", "Throughput", "Reliability", "CycleDays", "LeadDays"})
		for _, k := range kpis {
			w.Write([]string{
				k.SprintKey,
				fmt.Sprintf("%g", k.CommittedPoints),
				fmt.Sprintf("%g", k.CompletedPoints),
				fmt.Sprintf("%g", k.AddedPoints),
				fmt.Sprintf("%g", k.RemovedPoints),
				fmt.Sprintf("%g", k.SpilloverPoints),
				fmt.Sprintf("%d", k.ThroughputItems),
				fmt.Sprintf("%.2f", k.CommitmentReliability),
				fmt.Sprintf("%.1f", k.CycleTimeDays),
				fmt.Sprintf("%.1f", k.LeadTimeDays),
			})
		}
		w.Flush()
		return w.Error()
	case "markdown":
		fmt.Fprintf(ui.Out, "# %s sprint KPIs\n\n", p.Key)
		fmt.Fprintln(ui.Out, "| Sprint | Committed | Completed | Reliability | Throughput |")
		fmt.Fprintln(ui.Out, "|--------|-----------|-----------|-------------|------------|")
		for _, k := range kpis {
			fmt.Fprintf(ui.Out, "| %s | %g | %g | %.0f%% | %d |\n",
				k.SprintKey, k.CommittedPoints, k.CompletedPoints,
				k.CommitmentReliability*100, k.ThroughputItems)
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", reportFormat)
	}
}

func resolveSprint(ctx context.Context, projectKey, sprintKey string) (*models.Sprint, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	p, err := s.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	return s.GetSprintByKey(ctx, p.ID, sprintKey)
}

func reportBurndownRun(projectKey, sprintKey string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := resolveSprint(ctx, projectKey, sprintKey)
	if err != nil {
		return err
	}
	points, err := e.Burndown(ctx, sp.ID, metrics.ItemFilter{})
	if err != nil {
		return err
	}

	ui.Info("Burndown for %s (%s)", output.Cyan(sp.Key), sp.Name)
	table := ui.Table([]string{"Date", "Ideal", "Actual"})
	for _, pt := range points {
		_ = table.Append([]string{
			pt.Date.Format("2006-01-02"),
			fmt.Sprintf("%.1f", pt.Ideal),
			fmt.Sprintf("%.1f", pt.Actual),
		})
	}
	return table.Render()
}

func reportCFDRun(projectKey, sprintKey string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	sp, err := resolveSprint(ctx, projectKey, sprintKey)
	if err != nil {
		return err
	}
	points, err := e.CFD(ctx, sp.ID, metrics.ItemFilter{})
	if err != nil {
		return err
	}

	ui.Info("Cumulative flow for %s (%s)", output.Cyan(sp.Key), sp.Name)
	table := ui.Table([]string{"Date", "Todo", "In Progress", "Review", "Done"})
	for _, pt := range points {
		_ = table.Append([]string{
			pt.Date.Format("2006-01-02"),
			fmt.Sprintf("%.1f", pt.Todo),
			fmt.Sprintf("%.1f", pt.InProgress),
			fmt.Sprintf("%.1f", pt.Review),
			fmt.Sprintf("%.1f", pt.Done),
		})
	}
	return table.Render()
}

func reportKPIsRun(projectKey, sprintKey string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	p, err := s.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return err
	}

	var kpis []metrics.SprintKPIs
	if sprintKey != "" {
		sp, err := s.GetSprintByKey(ctx, p.ID, sprintKey)
		if err != nil {
			return err
		}
		k, err := e.SprintKPIs(ctx, sp.ID, metrics.ItemFilter{})
		if err != nil {
			return err
		}
		kpis = []metrics.SprintKPIs{k}
	} else {
		if kpis, err = e.ProjectKPIs(ctx, p.ID, metrics.SprintFilter{}, metrics.ItemFilter{}); err != nil {
			return err
		}
	}
	if len(kpis) == 0 {
		ui.Info("No sprints to report on.")
		return nil
	}

	table := ui.Table([]string{"Sprint", "Committed", "Completed", "Added", "Spillover", "Items", "Reliability", "Cycle", "Lead"})
	for _, k := range kpis {
		_ = table.Append([]string{
			output.Cyan(k.SprintKey),
			fmt.Sprintf("%g", k.CommittedPoints),
			fmt.Sprintf("%g", k.CompletedPoints),
			fmt.Sprintf("%g", k.AddedPoints),
			fmt.Sprintf("%g", k.SpilloverPoints),
			fmt.Sprintf("%d", k.ThroughputItems),
			fmt.Sprintf("%.0f%%", k.CommitmentReliability*100),
			fmt.Sprintf("%.1fd", k.CycleTimeDays),
			fmt.Sprintf("%.1fd", k.LeadTimeDays),
		})
	}
	return table.Render()
}

func reportVelocityRun(projectKey string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	p, err := s.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return err
	}
	report, err := e.Velocity(ctx, p.ID)
	if err != nil {
		return err
	}
	if len(report.Series) == 0 {
		ui.Info("No completed sprints yet; velocity needs at least one.")
		return nil
	}

	ui.Info("Velocity over %d completed sprint(s)", len(report.Series))
	for i, v := range report.Series {
		ui.Info("  sprint %d: %g pts", i+1, v)
	}
	ui.Info("Average: %.1f  Median: %.1f  Last-5 avg: %.1f  Last-5 median: %.1f",
		report.Stats.Avg, report.Stats.Median, report.Stats.Last5Avg, report.Stats.Last5Median)
	ui.Success("Forecast for next sprint: %s pts", output.Green(fmt.Sprintf("%.1f", report.Stats.Forecast)))
	return nil
}
