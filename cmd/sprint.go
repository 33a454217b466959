package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/output"
)

var (
	sprintGoal  string
	sprintStart string
	sprintEnd   string
)

var sprintCmd = &cobra.Command{
	Use:   "sprint",
	Short: "Manage sprints",
	Long:  "Create, start, and complete sprints. Sprint keys are project-scoped (e.g. S1).",
}

var sprintCreateCmd = &cobra.Command{
	Use:   "create <project-key> <sprint-key> <name>",
	Short: "Create a sprint",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintCreateRun(args[0], args[1], args[2])
	},
}

var sprintListCmd = &cobra.Command{
	Use:     "list <project-key>",
	Aliases: []string{"ls"},
	Short:   "List sprints",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintListRun(args[0])
	},
}

var sprintShowCmd = &cobra.Command{
	Use:   "show <project-key> <sprint-key>",
	Short: "Show a sprint and its items",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintShowRun(args[0], args[1])
	},
}

var sprintStartCmd = &cobra.Command{
	Use:   "start <project-key> <sprint-key>",
	Short: "Start a planned sprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintTransitionRun(args[0], args[1], true)
	},
}

var sprintCompleteCmd = &cobra.Command{
	Use:   "complete <project-key> <sprint-key>",
	Short: "Complete an active sprint",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sprintTransitionRun(args[0], args[1], false)
	},
}

func init() {
	sprintCreateCmd.Flags().StringVar(&sprintGoal, "goal", "", "Sprint goal")
	sprintCreateCmd.Flags().StringVar(&sprintStart, "start", "", "Start date (YYYY-MM-DD, default today)")
	sprintCreateCmd.Flags().StringVar(&sprintEnd, "end", "", "End date (YYYY-MM-DD, default start+13d)")

	sprintCmd.AddCommand(sprintCreateCmd)
	sprintCmd.AddCommand(sprintListCmd)
	sprintCmd.AddCommand(sprintShowCmd)
	sprintCmd.AddCommand(sprintStartCmd)
	sprintCmd.AddCommand(sprintCompleteCmd)
	rootCmd.AddCommand(sprintCmd)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t, nil
}

func sprintCreateRun(projectKey, key, name string) error {
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

	start := time.Now().Truncate(24 * time.Hour)
	if sprintStart != "" {
		if start, err = parseDate(sprintStart); err != nil {
			return err
		}
	}
	end := start.AddDate(0, 0, 13)
	if sprintEnd != "" {
		if end, err = parseDate(sprintEnd); err != nil {
			return err
		}
	}

	sp, err := e.CreateSprint(ctx, p.ID, key, name, sprintGoal, start, end)
	if err != nil {
		return err
	}
	ui.Success("Created sprint %s (%s, %s to %s)",
		output.Cyan(sp.Key), sp.Name,
		sp.StartDate.Format("2006-01-02"), sp.EndDate.Format("2006-01-02"))
	return nil
}

func sprintListRun(projectKey string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := s.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return err
	}
	sprints, err := s.ListSprints(ctx, p.ID)
	if err != nil {
		return err
	}
	if len(sprints) == 0 {
		ui.Info("No sprints yet. Create one with: board sprint create %s S1 <name>", p.Key)
		return nil
	}

	table := ui.Table([]string{"Key", "Name", "Status", "Start", "End", "Days"})
	for _, sp := range sprints {
		_ = table.Append([]string{
			output.Cyan(sp.Key),
			sp.Name,
			output.StatusColor(string(sp.Status)),
			sp.StartDate.Format("2006-01-02"),
			sp.EndDate.Format("2006-01-02"),
			fmt.Sprintf("%d", sp.Days()),
		})
	}
	return table.Render()
}

func sprintShowRun(projectKey, key string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := s.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return err
	}
	sp, err := s.GetSprintByKey(ctx, p.ID, key)
	if err != nil {
		return err
	}

	ui.Info("%s — %s (%s)", output.Cyan(sp.Key), sp.Name, output.StatusColor(string(sp.Status)))
	if sp.Goal != "" {
		ui.Info("Goal: %s", sp.Goal)
	}
	ui.Info("Window: %s to %s (%d days)",
		sp.StartDate.Format("2006-01-02"), sp.EndDate.Format("2006-01-02"), sp.Days())

	items, err := s.ListSprintItems(ctx, sp.ID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		ui.Info("No items have been part of this sprint.")
		return nil
	}

	table := ui.Table([]string{"Key", "Title", "Status", "Pts", "Member"})
	for _, it := range items {
		member := "yes"
		if it.SprintID != sp.ID {
			member = "removed"
		}
		_ = table.Append([]string{
			output.Cyan(it.Key),
			it.Title,
			output.StatusColor(string(it.Status)),
			fmt.Sprintf("%.0f", it.StoryPoints),
			member,
		})
	}
	return table.Render()
}

func sprintTransitionRun(projectKey, key string, start bool) error {
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
	sp, err := s.GetSprintByKey(ctx, p.ID, key)
	if err != nil {
		return err
	}

	var updated *models.Sprint
	if start {
		updated, err = e.StartSprint(ctx, sp.ID)
	} else {
		updated, err = e.CompleteSprint(ctx, sp.ID)
	}
	if err != nil {
		return err
	}
	ui.Success("Sprint %s is now %s", output.Cyan(updated.Key), output.StatusColor(string(updated.Status)))
	return nil
}
