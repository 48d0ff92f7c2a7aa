package cli

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/reminder"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Evaluate every unpaid bill once and send due reminders",
	Long: `Run a single reminder sweep: classify each unpaid bill, send the reminders
whose cadence has elapsed and record when they were sent. Useful from cron
when the long-running server is not used. Audible alerts are only raised by
'billtracker serve', so this command sends email, Telegram and webhook
reminders only.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	a, err := initApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.store.Close()

	report, err := a.scheduler.Sweep(cmd.Context())
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}

	fmt.Printf("=== Reminder sweep %s ===\n", report.ID)
	fmt.Printf("Evaluated: %d\n", report.Evaluated)
	fmt.Printf("Skipped:   %d\n", report.Skipped)
	fmt.Printf("Red: %d  Yellow: %d  Green: %d\n",
		report.ByUrgency[reminder.UrgencyRed],
		report.ByUrgency[reminder.UrgencyYellow],
		report.ByUrgency[reminder.UrgencyGreen],
	)

	names := make([]string, 0, len(report.Sent)+len(report.Failed))
	seen := make(map[string]bool)
	for _, m := range []map[string]int{report.Sent, report.Failed} {
		for name := range m {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		fmt.Println("\nNo reminders were due.")
		return nil
	}
	sort.Strings(names)

	fmt.Printf("\nBy Channel:\n")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  CHANNEL\tSENT\tFAILED\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %s\t%d\t%d\n", name, report.Sent[name], report.Failed[name])
	}
	w.Flush()

	return nil
}
