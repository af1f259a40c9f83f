package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	sr "github.com/example/reviewplanner/internal/spaced_repetition"
)

var reviewCmd = &cobra.Command{
	Use:   "review <item-id> <quality 0-5>",
	Short: "Record one review of an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		itemID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid item id: %w", err)
		}
		quality, err := sr.ParseQuality(args[1])
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.svc.Review(cmd.Context(), userID, itemID, quality)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "next review %s (interval %.2f days, ease %.2f, difficulty %.2f)\n",
			item.NextReview.In(a.planner.Location()).Format("2006-01-02 15:04"), item.IntervalDays, item.EaseFactor, item.Difficulty)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.Flags().Int64("user", 0, "user ID owning the item")
	_ = reviewCmd.MarkFlagRequired("user")
}
