package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/example/reviewplanner/internal/scheduler"
	"github.com/example/reviewplanner/internal/service"
	"github.com/example/reviewplanner/pkg/models"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print a user's review plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetInt64("user")
		days, _ := cmd.Flags().GetInt("days")
		maxItems, _ := cmd.Flags().GetInt("max")
		fromFlag, _ := cmd.Flags().GetString("from")
		topics, _ := cmd.Flags().GetStringSlice("topic")
		asJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		req := service.PlanRequest{UserID: userID, Days: days, MaxItemsPerDay: maxItems, Topics: topics}
		if fromFlag != "" {
			req.From, err = time.ParseInLocation(scheduler.DateLayout, fromFlag, a.planner.Location())
			if err != nil {
				return fmt.Errorf("invalid --from date: %w", err)
			}
		}

		schedule, err := a.svc.Plan(cmd.Context(), req)
		if err != nil {
			return err
		}
		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(schedule)
		}
		renderSchedule(cmd.OutOrStdout(), schedule)
		return nil
	},
}

func renderSchedule(w io.Writer, schedule models.Schedule) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Date", "Items", "New", "Review", "Minutes"})
	for _, day := range schedule.Days {
		table.Append([]string{
			day.Date,
			strconv.Itoa(day.TotalItems),
			strconv.Itoa(day.NewItemsCount),
			strconv.Itoa(day.ReviewItemsCount),
			strconv.Itoa(day.EstimatedTimeMinutes),
		})
	}
	table.SetFooter([]string{"Total", strconv.Itoa(schedule.TotalItemsDue), "", "", ""})
	table.Render()
	fmt.Fprintf(w, "overdue: %d, upcoming this week: %d\n", schedule.OverdueItemsCount, schedule.UpcomingItemsCount)
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().Int64("user", 0, "user ID")
	planCmd.Flags().Int("days", 0, "number of days (default: scheduling.plan_days)")
	planCmd.Flags().Int("max", 0, "items per day (default: the user's setting)")
	planCmd.Flags().String("from", "", "first day, YYYY-MM-DD (default: today)")
	planCmd.Flags().StringSlice("topic", nil, "only plan these topics")
	planCmd.Flags().Bool("json", false, "print JSON instead of a table")
	_ = planCmd.MarkFlagRequired("user")
}
