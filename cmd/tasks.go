/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/josephgoksu/paperboy/models"
	"github.com/josephgoksu/paperboy/store"
)

var (
	tasksShowFailures bool
	tasksStateFilter  string
)

// tasksCmd inspects the local store from the command line.
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List stored tasks",
	Long: `Tasks prints the records in the local store, newest first. Use
--state to filter by lifecycle state and --failures to list emails
whose extraction failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		st, err := store.NewSQLiteStore(cfg.Data.File)
		if err != nil {
			return fmt.Errorf("open task store: %w", err)
		}
		defer func() { _ = st.Close() }()

		ctx := cmd.Context()

		if tasksShowFailures {
			failures, err := st.ListExtractionFailures(ctx)
			if err != nil {
				return err
			}
			if len(failures) == 0 {
				fmt.Println("No extraction failures recorded.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MESSAGE\tWHEN\tREASON")
			for _, f := range failures {
				fmt.Fprintf(w, "%s\t%s\t%s\n", f.MessageID, f.OccurredAt.Format("2006-01-02 15:04"), f.Reason)
			}
			return w.Flush()
		}

		all, err := st.ListTasks(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STATE\tPRIORITY\tDUE\tTITLE\tID")
		shown := 0
		for _, rec := range all {
			if tasksStateFilter != "" && string(rec.State) != tasksStateFilter {
				continue
			}
			due := "-"
			if rec.DueAt != nil {
				due = rec.DueAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", rec.State, rec.Priority, due, rec.Title, rec.ID)
			shown++
		}
		if err := w.Flush(); err != nil {
			return err
		}
		if shown == 0 {
			fmt.Println("No tasks found.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tasksCmd)
	tasksCmd.Flags().StringVar(&tasksStateFilter, "state", "",
		fmt.Sprintf("filter by state (%s, %s, %s)", models.StatePending, models.StatePrinted, models.StateCompleted))
	tasksCmd.Flags().BoolVar(&tasksShowFailures, "failures", false, "list emails whose extraction failed")
}
