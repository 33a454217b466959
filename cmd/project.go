package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/output"
	"github.com/joescharf/board/internal/store"
)

var projectDescription string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	Long:  "Create, list, and show projects. A project's key prefixes its item keys (PROJ -> PROJ-1).",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <key> <name>",
	Short: "Create a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectCreateRun(args[0], args[1])
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun()
	},
}

var projectShowCmd = &cobra.Command{
	Use:   "show <key>",
	Short: "Show a project and its board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectShowRun(args[0])
	},
}

func init() {
	projectCreateCmd.Flags().StringVar(&projectDescription, "description", "", "Project description")
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectShowCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectCreateRun(key, name string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}

	p, err := e.CreateProject(context.Background(), key, name, projectDescription)
	if err != nil {
		return err
	}
	ui.Success("Created project %s (%s)", output.Cyan(p.Key), p.Name)
	return nil
}

func projectListRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	projects, err := s.ListProjects(context.Background())
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		ui.Info("No projects yet. Create one with: board project create <KEY> <name>")
		return nil
	}

	table := ui.Table([]string{"Key", "Name", "Items", "Description"})
	for _, p := range projects {
		_ = table.Append([]string{
			output.Cyan(p.Key),
			p.Name,
			fmt.Sprintf("%d", p.NextItemNum),
			p.Description,
		})
	}
	return table.Render()
}

func projectShowRun(key string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := s.GetProjectByKey(ctx, key)
	if err != nil {
		return err
	}

	ui.Info("%s — %s", output.Cyan(p.Key), p.Name)
	if p.Description != "" {
		ui.Info("%s", p.Description)
	}

	items, err := s.ListItems(ctx, store.ItemListFilter{ProjectID: p.ID})
	if err != nil {
		return err
	}

	counts := map[models.ItemStatus]int{}
	for _, it := range items {
		counts[it.Status]++
	}
	ui.Info("Items: %d backlog, %d todo, %d in progress, %d done",
		counts[models.StatusBacklog], counts[models.StatusTodo],
		counts[models.StatusInProgress], counts[models.StatusDone])

	if len(items) == 0 {
		return nil
	}

	table := ui.Table([]string{"Key", "Title", "Type", "Status", "Pts", "Assignee"})
	for _, it := range items {
		_ = table.Append([]string{
			output.Cyan(it.Key),
			it.Title,
			string(it.Type),
			output.StatusColor(string(it.Status)),
			fmt.Sprintf("%.0f", it.StoryPoints),
			it.Assignee,
		})
	}
	return table.Render()
}
