package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/board/internal/models"
	"github.com/joescharf/board/internal/output"
)

var (
	reviewApprovals int
	reviewChecklist []string
	reviewComment   string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Manage item reviews",
	Long: `Reviews gate an item's transition into the done column: while any
review on the item is pending or has changes requested, the move is
blocked.`,
}

var reviewRequestCmd = &cobra.Command{
	Use:   "request <item-key> <reviewer>...",
	Short: "Request a review on an item",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRequestRun(args[0], args[1:])
	},
}

var reviewListCmd = &cobra.Command{
	Use:     "list <item-key>",
	Aliases: []string{"ls"},
	Short:   "List reviews on an item",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewListRun(args[0])
	},
}

var reviewApproveCmd = &cobra.Command{
	Use:   "approve <review-id>",
	Short: "Approve a review as the acting user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewVerdictRun(args[0], true)
	},
}

var reviewRejectCmd = &cobra.Command{
	Use:   "request-changes <review-id>",
	Short: "Request changes on a review as the acting user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewVerdictRun(args[0], false)
	},
}

var reviewCancelCmd = &cobra.Command{
	Use:   "cancel <review-id>",
	Short: "Cancel a review",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewCancelRun(args[0])
	},
}

var reviewReviewerCmd = &cobra.Command{
	Use:   "reviewer <add|remove> <review-id> <user>",
	Short: "Add or remove a reviewer",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewReviewerRun(args[0], args[1], args[2])
	},
}

var reviewCheckCmd = &cobra.Command{
	Use:   "check <review-id> <index>",
	Short: "Toggle a checklist entry (1-based index)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewCheckRun(args[0], args[1])
	},
}

func init() {
	reviewRequestCmd.Flags().IntVar(&reviewApprovals, "approvals", 1, "Required approvals")
	reviewRequestCmd.Flags().StringSliceVar(&reviewChecklist, "check", nil, "Checklist entry (repeatable)")
	reviewApproveCmd.Flags().StringVar(&reviewComment, "comment", "", "Review comment")
	reviewRejectCmd.Flags().StringVar(&reviewComment, "comment", "", "Review comment")

	reviewCmd.AddCommand(reviewRequestCmd)
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewApproveCmd)
	reviewCmd.AddCommand(reviewRejectCmd)
	reviewCmd.AddCommand(reviewCancelCmd)
	reviewCmd.AddCommand(reviewReviewerCmd)
	reviewCmd.AddCommand(reviewCheckCmd)
	rootCmd.AddCommand(reviewCmd)
}

func requireActor() error {
	if actorID == "" {
		return fmt.Errorf("no acting user: pass --actor or set default_actor in the config")
	}
	return nil
}

func reviewRequestRun(itemKey string, reviewers []string) error {
	if err := requireActor(); err != nil {
		return err
	}
	e, err := getEngine()
	if err != nil {
		return err
	}
	s, _ := getStore()
	ctx := context.Background()

	it, err := s.GetItemByKey(ctx, itemKey)
	if err != nil {
		return err
	}

	r, err := e.RequestReview(ctx, it.ID, actorID, reviewers, reviewApprovals, reviewChecklist)
	if err != nil {
		return err
	}
	ui.Success("Requested review %s on %s (%d approval(s) required)",
		output.Cyan(r.ID), it.Key, r.RequiredApprovals)
	return nil
}

func reviewListRun(itemKey string) error {
	s, err := getStore()
	if err != nil {
		return err
	}
	ctx := context.Background()

	it, err := s.GetItemByKey(ctx, itemKey)
	if err != nil {
		return err
	}
	reviews, err := s.ListItemReviews(ctx, it.ID)
	if err != nil {
		return err
	}
	if len(reviews) == 0 {
		ui.Info("No reviews on %s.", it.Key)
		return nil
	}

	for _, r := range reviews {
		ui.Info("%s  %s  requested by %s, %d approval(s) required",
			output.Cyan(r.ID), output.StatusColor(string(r.Status)),
			r.RequestedBy, r.RequiredApprovals)
		for _, rv := range r.Reviewers {
			line := fmt.Sprintf("  %s: %s", rv.UserID, output.StatusColor(string(rv.Status)))
			if rv.Comment != "" {
				line += " — " + rv.Comment
			}
			ui.Info("%s", line)
		}
		for i, c := range r.Checklist {
			mark := "[ ]"
			if c.Done {
				mark = "[x]"
			}
			ui.Info("  %s %d. %s", mark, i+1, c.Label)
		}
	}
	return nil
}

func reviewVerdictRun(reviewID string, approve bool) error {
	if err := requireActor(); err != nil {
		return err
	}
	e, err := getEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	var r *models.Review
	if approve {
		r, err = e.ApproveReview(ctx, reviewID, actorID, reviewComment)
	} else {
		r, err = e.RequestReviewChanges(ctx, reviewID, actorID, reviewComment)
	}
	if err != nil {
		return err
	}
	ui.Success("Review %s is now %s", output.Cyan(r.ID), output.StatusColor(string(r.Status)))
	return nil
}

func reviewCancelRun(reviewID string) error {
	if err := requireActor(); err != nil {
		return err
	}
	e, err := getEngine()
	if err != nil {
		return err
	}

	r, err := e.CancelReview(context.Background(), reviewID, actorID)
	if err != nil {
		return err
	}
	ui.Success("Cancelled review %s", output.Cyan(r.ID))
	return nil
}

func reviewReviewerRun(action, reviewID, userID string) error {
	e, err := getEngine()
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch action {
	case "add":
		if _, err := e.AddReviewer(ctx, reviewID, userID); err != nil {
			return err
		}
		ui.Success("Added reviewer %s", userID)
	case "remove":
		if _, err := e.RemoveReviewer(ctx, reviewID, userID); err != nil {
			return err
		}
		ui.Success("Removed reviewer %s", userID)
	default:
		return fmt.Errorf("unknown action %q (want add or remove)", action)
	}
	return nil
}

func reviewCheckRun(reviewID, indexArg string) error {
	if err := requireActor(); err != nil {
		return err
	}
	e, err := getEngine()
	if err != nil {
		return err
	}

	idx, err := strconv.Atoi(indexArg)
	if err != nil || idx < 1 {
		return fmt.Errorf("invalid checklist index %q", indexArg)
	}

	r, err := e.ToggleChecklistItem(context.Background(), reviewID, idx-1, actorID)
	if err != nil {
		return err
	}
	item := r.Checklist[idx-1]
	state := "unchecked"
	if item.Done {
		state = "checked"
	}
	ui.Success("Checklist %d (%s) is now %s", idx, item.Label, state)
	return nil
}
