package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/reviewplanner/internal/bot"
	"github.com/example/reviewplanner/internal/excel"
	"github.com/example/reviewplanner/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Telegram bot and the reminder job",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		importer := excel.NewImporter(a.svc, a.log)
		b, err := bot.New(a.cfg.Telegram.Token, a.cfg.Telegram.AdminIDs, a.svc, importer, a.log)
		if err != nil {
			return err
		}

		reminders, err := scheduler.NewReminders(a.cfg.Reminder, a.planner.Location(), a.users, a.svc, b, a.log)
		if err != nil {
			return err
		}
		if err := reminders.Start(ctx); err != nil {
			return fmt.Errorf("failed to start reminders: %w", err)
		}
		defer reminders.Stop()

		a.log.Info("serving, press Ctrl+C to stop")
		err = b.Run(ctx)
		if ctx.Err() != nil {
			a.log.Info("shutting down")
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

