package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/board/internal/board"
	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/output"
	"github.com/joescharf/board/internal/store"
)

var (
	itemType     string
	itemPriority string
	itemPoints   float64
	itemSummary  string
	itemAssignee string
	itemLabels   []string
	itemSprint   string
	itemStatus   string
	itemAfter    string
	itemBefore   string

	importDryRun bool
)

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage work items",
	Long:  "Create, list, move, and inspect work items. Item keys look like PROJ-12.",
}

var itemCreateCmd = &cobra.Command{
	Use:   "create <project-key> <title>",
	Short: "Create a work item",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemCreateRun(args[0], strings.Join(args[1:], " "))
	},
}

var itemListCmd = &cobra.Command{
	Use:     "list <project-key>",
	Aliases: []string{"ls"},
	Short:   "List work items in board order",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemListRun(args[0])
	},
}

var itemShowCmd = &cobra.Command{
	Use:   "show <item-key>",
	Short: "Show a work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemShowRun(args[0])
	},
}

var itemLogCmd = &cobra.Command{
	Use:   "log <item-key>",
	Short: "Show an item's changelog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemLogRun(args[0])
	},
}

var itemMoveCmd = &cobra.Command{
	Use:   "move <item-key>",
	Short: "Move an item to a column and position",
	Long: `Move an item. --status picks the target column; --after/--before
position it relative to neighbor items (by key). With no position the
item lands at the tail of the column.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemMoveRun(args[0])
	},
}

var itemSprintCmd = &cobra.Command{
	Use:   "sprint <item-key> [sprint-key]",
	Short: "Assign an item to a sprint (omit sprint-key to remove)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sprintKey := ""
		if len(args) > 1 {
			sprintKey = args[1]
		}
		return itemSprintRun(args[0], sprintKey)
	},
}

var itemEpicCmd = &cobra.Command{
	Use:   "epic <item-key> [epic-key]",
	Short: "Assign an item to an epic (omit epic-key to clear)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		epicKey := ""
		if len(args) > 1 {
			epicKey = args[1]
		}
		return itemEpicRun(args[0], epicKey)
	},
}

var itemParentCmd = &cobra.Command{
	Use:   "parent <item-key> [parent-key]",
	Short: "Set an item's parent (omit parent-key to clear)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parentKey := ""
		if len(args) > 1 {
			parentKey = args[1]
		}
		return itemParentRun(args[0], parentKey)
	},
}

var itemLinkCmd = &cobra.Command{
	Use:   "link <item-key> <other-key>",
	Short: "Link two items",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemLinkRun(args[0], args[1], false)
	},
}

var itemUnlinkCmd = &cobra.Command{
	Use:   "unlink <item-key> <other-key>",
	Short: "Remove a link between two items",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemLinkRun(args[0], args[1], true)
	},
}

var itemDeleteCmd = &cobra.Command{
	Use:     "delete <item-key>",
	Aliases: []string{"rm"},
	Short:   "Delete a work item (soft delete; history is kept)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemDeleteRun(args[0])
	},
}

var itemImportCmd = &cobra.Command{
	Use:   "import <project-key> <file>",
	Short: "Import work items from a YAML backlog file",
	Long: `Import items from a YAML file:

  items:
    - title: Payment form
      type: story
      priority: high
      points: 5
      assignee: alice
      labels: [checkout]

Every imported item is created through the normal lifecycle, so keys,
ranks, and changelog entries are allocated as usual.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return itemImportRun(args[0], args[1])
	},
}

func init() {
	itemCreateCmd.Flags().StringVar(&itemType, "type", "task", "Item type: task, bug, story, epic, subtask")
	itemCreateCmd.Flags().StringVar(&itemPriority, "priority", "medium", "Priority: low, medium, high, urgent")
	itemCreateCmd.Flags().Float64Var(&itemPoints, "points", 0, "Story point estimate")
	itemCreateCmd.Flags().StringVar(&itemSummary, "summary", "", "Longer summary")
	itemCreateCmd.Flags().StringVar(&itemAssignee, "assignee", "", "Assignee id")
	itemCreateCmd.Flags().StringSliceVar(&itemLabels, "label", nil, "Label (repeatable)")
	itemCreateCmd.Flags().StringVar(&itemSprint, "sprint", "", "Sprint key to commit the item to")

	itemListCmd.Flags().StringVar(&itemStatus, "status", "", "Filter by column")
	itemListCmd.Flags().StringVar(&itemAssignee, "assignee", "", "Filter by assignee")

	itemMoveCmd.Flags().StringVar(&itemStatus, "status", "", "Target column (defaults to the current one)")
	itemMoveCmd.Flags().StringVar(&itemAfter, "after", "", "Place after this item key")
	itemMoveCmd.Flags().StringVar(&itemBefore, "before", "", "Place before this item key")

	itemImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Preview items without creating them")

	itemCmd.AddCommand(itemCreateCmd)
	itemCmd.AddCommand(itemListCmd)
	itemCmd.AddCommand(itemShowCmd)
	itemCmd.AddCommand(itemLogCmd)
	itemCmd.AddCommand(itemMoveCmd)
	itemCmd.AddCommand(itemSprintCmd)
	itemCmd.AddCommand(itemEpicCmd)
	itemCmd.AddCommand(itemParentCmd)
	itemCmd.AddCommand(itemLinkCmd)
	itemCmd.AddCommand(itemUnlinkCmd)
	itemCmd.AddCommand(itemDeleteCmd)
	itemCmd.AddCommand(itemImportCmd)
	rootCmd.AddCommand(itemCmd)
}

func itemCreateRun(projectKey, title string) error {
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

	params := board.CreateItemParams{
		ProjectID:   p.ID,
		Title:       title,
		Summary:     itemSummary,
		Type:        models.ItemType(itemType),
		Priority:    models.ItemPriority(itemPriority),
		StoryPoints: itemPoints,
		Assignee:    itemAssignee,
		Labels:      itemLabels,
		ActorID:     actorID,
	}
	if itemSprint != "" {
		sp, err := s.GetSprintByKey(ctx, p.ID, itemSprint)
		if err != nil {
			return err
		}
		params.SprintID = sp.ID
	}

	item, err := e.CreateItem(ctx, params)
	if err != nil {
		return err
	}
	ui.Success("Created %s: %s", output.Cyan(item.Key), item.Title)
	return nil
}

func itemListRun(projectKey string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	p, err := s.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return err
	}

	items, err := s.ListItems(ctx, store.ItemListFilter{
		ProjectID: p.ID,
		Status:    models.ItemStatus(itemStatus),
		Assignee:  itemAssignee,
	})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		ui.Info("No items.")
		return nil
	}

	table := ui.Table([]string{"Key", "Title", "Type", "Status", "Priority", "Pts", "Assignee"})
	for _, it := range items {
		_ = table.Append([]string{
			output.Cyan(it.Key),
			it.Title,
			string(it.Type),
			output.StatusColor(string(it.Status)),
			output.PriorityColor(string(it.Priority)),
			fmt.Sprintf("%.0f", it.StoryPoints),
			it.Assignee,
		})
	}
	return table.Render()
}

func itemShowRun(key string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	it, err := s.GetItemByKey(ctx, key)
	if err != nil {
		return err
	}

	ui.Info("%s — %s", output.Cyan(it.Key), it.Title)
	ui.Info("Type: %s  Status: %s  Priority: %s  Points: %.0f",
		it.Type, output.StatusColor(string(it.Status)),
		output.PriorityColor(string(it.Priority)), it.StoryPoints)
	if it.Summary != "" {
		ui.Info("%s", it.Summary)
	}
	if it.Assignee != "" {
		ui.Info("Assignee: %s", it.Assignee)
	}
	if len(it.Labels) > 0 {
		ui.Info("Labels: %s", strings.Join(it.Labels, ", "))
	}
	if it.Resolved() {
		ui.Info("Resolution: %s", it.Resolution)
	}
	if len(it.Links) > 0 {
		var keys []string
		for _, id := range it.Links {
			if linked, err := s.GetItem(ctx, id); err == nil {
				keys = append(keys, linked.Key)
			}
		}
		ui.Info("Linked: %s", strings.Join(keys, ", "))
	}
	return nil
}

func itemLogRun(key string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	it, err := s.GetItemByKey(ctx, key)
	if err != nil {
		return err
	}
	changes, err := s.ListChanges(ctx, it.ID)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		ui.Info("No changes recorded for %s.", it.Key)
		return nil
	}

	table := ui.Table([]string{"When", "Field", "From", "To", "Actor"})
	for _, c := range changes {
		_ = table.Append([]string{
			c.At.Format("2006-01-02 15:04"),
			c.Field,
			c.OldValue,
			c.NewValue,
			c.ActorID,
		})
	}
	return table.Render()
}

func itemMoveRun(key string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	it, err := s.GetItemByKey(ctx, key)
	if err != nil {
		return err
	}

	resolveRef := func(ref string) (string, error) {
		if ref == "" {
			return "", nil
		}
		n, err := s.GetItemByKey(ctx, ref)
		if err != nil {
			return "", err
		}
		return n.ID, nil
	}
	afterID, err := resolveRef(itemAfter)
	if err != nil {
		return err
	}
	beforeID, err := resolveRef(itemBefore)
	if err != nil {
		return err
	}

	moved, err := e.MoveItem(ctx, it.ID, board.MoveParams{
		Status:   models.ItemStatus(itemStatus),
		AfterID:  afterID,
		BeforeID: beforeID,
		ActorID:  actorID,
	})
	if err != nil {
		return err
	}
	ui.Success("Moved %s to %s", output.Cyan(moved.Key), output.StatusColor(string(moved.Status)))
	return nil
}

func itemSprintRun(key, sprintKey string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	it, err := s.GetItemByKey(ctx, key)
	if err != nil {
		return err
	}

	sprintID := ""
	if sprintKey != "" {
		sp, err := s.GetSprintByKey(ctx, it.ProjectID, sprintKey)
		if err != nil {
			return err
		}
		sprintID = sp.ID
	}

	if _, err := e.AssignSprint(ctx, it.ID, sprintID, actorID); err != nil {
		return err
	}
	if sprintKey == "" {
		ui.Success("Removed %s from its sprint", output.Cyan(it.Key))
	} else {
		ui.Success("Assigned %s to sprint %s", output.Cyan(it.Key), sprintKey)
	}
	return nil
}

func itemEpicRun(key, epicKey string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	it, err := s.GetItemByKey(ctx, key)
	if err != nil {
		return err
	}

	epicID := ""
	if epicKey != "" {
		epic, err := s.GetItemByKey(ctx, epicKey)
		if err != nil {
			return err
		}
		epicID = epic.ID
	}

	if _, err := e.SetEpic(ctx, it.ID, epicID, actorID); err != nil {
		return err
	}
	ui.Success("Updated epic for %s", output.Cyan(it.Key))
	return nil
}

func itemParentRun(key, parentKey string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	it, err := s.GetItemByKey(ctx, key)
	if err != nil {
		return err
	}

	parentID := ""
	if parentKey != "" {
		parent, err := s.GetItemByKey(ctx, parentKey)
		if err != nil {
			return err
		}
		parentID = parent.ID
	}

	if _, err := e.SetParent(ctx, it.ID, parentID, actorID); err != nil {
		return err
	}
	ui.Success("Updated parent for %s", output.Cyan(it.Key))
	return nil
}

func itemLinkRun(key, otherKey string, remove bool) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	a, err := s.GetItemByKey(ctx, key)
	if err != nil {
		return err
	}
	b, err := s.GetItemByKey(ctx, otherKey)
	if err != nil {
		return err
	}

	if remove {
		if err := e.RemoveLink(ctx, a.ID, b.ID, actorID); err != nil {
			return err
		}
		ui.Success("Unlinked %s and %s", output.Cyan(a.Key), output.Cyan(b.Key))
		return nil
	}
	if err := e.AddLink(ctx, a.ID, b.ID, actorID); err != nil {
		return err
	}
	ui.Success("Linked %s and %s", output.Cyan(a.Key), output.Cyan(b.Key))
	return nil
}

func itemDeleteRun(key string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	it, err := s.GetItemByKey(ctx, key)
	if err != nil {
		return err
	}
	if err := e.DeleteItem(ctx, it.ID); err != nil {
		return err
	}
	ui.Success("Deleted %s", output.Cyan(it.Key))
	return nil
}

// importedItem is one entry of a YAML backlog file.
type importedItem struct {
	Title    string   `yaml:"title"`
	Summary  string   `yaml:"summary"`
	Type     string   `yaml:"type"`
	Priority string   `yaml:"priority"`
	Points   float64  `yaml:"points"`
	Assignee string   `yaml:"assignee"`
	Labels   []string `yaml:"labels"`
}

type importFile struct {
	Items []importedItem `yaml:"items"`
}

func itemImportRun(projectKey, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var parsed importFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if len(parsed.Items) == 0 {
		ui.Info("No items found in %s.", file)
		return nil
	}

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

	if importDryRun {
		table := ui.Table([]string{"#", "Title", "Type", "Priority", "Pts"})
		for i, entry := range parsed.Items {
			_ = table.Append([]string{
				fmt.Sprintf("%d", i+1), entry.Title, entry.Type, entry.Priority, fmt.Sprintf("%.0f", entry.Points),
			})
		}
		if err := table.Render(); err != nil {
			return err
		}
		ui.Info("Dry run: %d item(s) would be created in %s.", len(parsed.Items), p.Key)
		return nil
	}

	created := 0
	for i, entry := range parsed.Items {
		if entry.Title == "" {
			ui.Warning("Skipping item %d: no title", i+1)
			continue
		}
		item, err := e.CreateItem(ctx, board.CreateItemParams{
			ProjectID:   p.ID,
			Title:       entry.Title,
			Summary:     entry.Summary,
			Type:        models.ItemType(entry.Type),
			Priority:    models.ItemPriority(entry.Priority),
			StoryPoints: entry.Points,
			Assignee:    entry.Assignee,
			Labels:      entry.Labels,
			ActorID:     actorID,
		})
		if err != nil {
			ui.Warning("Skipping item %d (%s): %v", i+1, entry.Title, err)
			continue
		}
		ui.VerboseLog("Created %s: %s", item.Key, item.Title)
		created++
	}
	ui.Success("Imported %d of %d item(s) into %s", created, len(parsed.Items), p.Key)
	return nil
}
