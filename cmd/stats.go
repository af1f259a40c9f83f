package cmd

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/example/reviewplanner/pkg/models"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a user's collection and review statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.svc.Stats(cmd.Context(), userID)
		if err != nil {
			return err
		}
		renderStats(cmd.OutOrStdout(), *stats)
		return nil
	},
}

func renderStats(w io.Writer, stats models.ReviewStats) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	table.AppendBulk([][]string{
		{"Items", fmt.Sprint(stats.TotalItems)},
		{"Due today", fmt.Sprint(stats.DueToday)},
		{"Mastered", fmt.Sprint(stats.Mastered)},
		{"Average ease", fmt.Sprintf("%.2f", stats.AverageEaseFactor)},
		{"Reviews (7 days)", fmt.Sprint(stats.ReviewsLast7Days)},
		{"Average grade", fmt.Sprintf("%.1f", stats.AverageQuality)},
	})
	table.Render()
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().Int64("user", 0, "user ID")
	_ = statsCmd.MarkFlagRequired("user")
}
