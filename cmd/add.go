package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/reviewplanner/internal/database"
	"github.com/example/reviewplanner/internal/service"
	"github.com/example/reviewplanner/pkg/models"
)

var addCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Add a learning item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := service.AddItemRequest{Content: args[0]}
		req.UserID, _ = cmd.Flags().GetInt64("user")
		req.Topic, _ = cmd.Flags().GetString("topic")
		req.Question, _ = cmd.Flags().GetString("question")
		req.Answer, _ = cmd.Flags().GetString("answer")
		req.Difficulty, _ = cmd.Flags().GetFloat64("difficulty")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUser(cmd, a, req.UserID); err != nil {
			return err
		}
		item, err := a.svc.AddItem(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), item.ID)
		return nil
	},
}

// ensureUser registers userID with default preferences if it is unknown.
// Items reference their owner, so the row must exist first.
func ensureUser(cmd *cobra.Command, a *app, userID int64) error {
	_, err := a.svc.User(cmd.Context(), userID)
	if !errors.Is(err, database.ErrUserNotFound) {
		return err
	}
	return a.svc.RegisterUser(cmd.Context(), &models.User{
		ID:                  userID,
		ItemsPerDay:         a.cfg.Scheduling.MaxItemsPerDay,
		NotificationHour:    models.DefaultNotificationHour,
		NotificationEnabled: true,
	})
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().Int64("user", 0, "owner user ID")
	addCmd.Flags().String("topic", "", "topic")
	addCmd.Flags().String("question", "", "optional prompt")
	addCmd.Flags().String("answer", "", "optional answer")
	addCmd.Flags().Float64("difficulty", 0.5, "difficulty between 0 and 1")
	_ = addCmd.MarkFlagRequired("user")
}
