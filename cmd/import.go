package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/reviewplanner/internal/excel"
)

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx|file.csv>",
	Short: "Import learning items from a spreadsheet",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := excel.DefaultImportConfig()
		cfg.FilePath = args[0]
		cfg.UserID, _ = cmd.Flags().GetInt64("user")
		cfg.SheetName, _ = cmd.Flags().GetString("sheet")
		cfg.StartRow, _ = cmd.Flags().GetInt("start-row")

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := ensureUser(cmd, a, cfg.UserID); err != nil {
			return err
		}
		result, err := excel.NewImporter(a.svc, a.log).Import(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "processed %d, created %d, skipped %d, errors %d\n",
			result.TotalProcessed, result.Created, result.Skipped, len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintln(out, "  "+e)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().Int64("user", 0, "owner user ID")
	importCmd.Flags().String("sheet", "", "sheet name (default: first sheet)")
	importCmd.Flags().Int("start-row", 2, "first data row, 1-based")
	_ = importCmd.MarkFlagRequired("user")
}
