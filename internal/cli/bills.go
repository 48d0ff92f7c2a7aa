package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/model"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/reminder"
	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/storage"
)

var billsCmd = &cobra.Command{
	Use:   "bills",
	Short: "Manage bills",
}

var billsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bills with their current urgency",
	RunE:  runBillsList,
}

var billsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a bill",
	RunE:  runBillsAdd,
}

var billsPayCmd = &cobra.Command{
	Use:   "pay <id>",
	Short: "Mark a bill as paid",
	Args:  cobra.ExactArgs(1),
	RunE:  runBillsPay,
}

var billsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a bill",
	Args:  cobra.ExactArgs(1),
	RunE:  runBillsDelete,
}

var billsImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import bills from a YAML seed file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBillsImport,
}

func init() {
	rootCmd.AddCommand(billsCmd)
	billsCmd.AddCommand(billsListCmd, billsAddCmd, billsPayCmd, billsDeleteCmd, billsImportCmd)

	billsListCmd.Flags().StringP("month", "m", "", "Only bills due in this month (YYYY-MM)")
	billsListCmd.Flags().Bool("unpaid", false, "Only unpaid bills")

	billsAddCmd.Flags().StringP("title", "t", "", "Bill title")
	billsAddCmd.Flags().StringP("amount", "a", "0", "Amount due")
	billsAddCmd.Flags().StringP("due", "d", "", "Due date (YYYY-MM-DD)")
	billsAddCmd.Flags().StringP("category", "c", "", "Category")
	billsAddCmd.Flags().StringP("recurring", "r", "", "Recurring interval (monthly, every_3_months, every_6_months, yearly, every_2_years, custom)")
	billsAddCmd.Flags().String("invoice-url", "", "Link to the invoice")
	billsAddCmd.Flags().Int("sound-interval", model.DefaultSoundIntervalMinutes, "Minutes between sound alerts while urgent")
	_ = billsAddCmd.MarkFlagRequired("title")
	_ = billsAddCmd.MarkFlagRequired("due")
}

func runBillsList(cmd *cobra.Command, _ []string) error {
	store, cfg, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	month, _ := cmd.Flags().GetString("month")
	unpaidOnly, _ := cmd.Flags().GetBool("unpaid")

	var bills []model.Bill
	switch {
	case month != "":
		start, end, perr := model.ParseMonth(month, time.UTC)
		if perr != nil {
			return perr
		}
		bills, err = store.ListBillsByMonth(cmd.Context(), start, end)
	case unpaidOnly:
		bills, err = store.ListUnpaidBills(cmd.Context())
	default:
		bills, err = store.ListBills(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("list bills: %w", err)
	}

	if len(bills) == 0 {
		fmt.Println("No bills found. Use 'billtracker bills add' to create one.")
		return nil
	}

	loc, err := cfg.Reminder.Location()
	if err != nil {
		return err
	}
	now := time.Now().In(loc)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tTITLE\tAMOUNT\tDUE\tDAYS\tSTATUS\tURGENCY\tRECURRING\n")
	for _, b := range bills {
		if unpaidOnly && b.IsPaid() {
			continue
		}
		recurring := "-"
		if b.IsRecurring {
			recurring = string(b.RecurringInterval)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			b.ID, b.Title, b.Amount.StringFixed(2), b.DueDate.Format(time.DateOnly),
			model.DaysUntil(b.DueDate, now), b.Status, reminder.Classify(b, now), recurring,
		)
	}
	w.Flush()

	return nil
}

func runBillsAdd(cmd *cobra.Command, _ []string) error {
	title, _ := cmd.Flags().GetString("title")
	amountStr, _ := cmd.Flags().GetString("amount")
	dueStr, _ := cmd.Flags().GetString("due")
	category, _ := cmd.Flags().GetString("category")
	recurring, _ := cmd.Flags().GetString("recurring")
	invoiceURL, _ := cmd.Flags().GetString("invoice-url")
	soundInterval, _ := cmd.Flags().GetInt("sound-interval")

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amountStr, err)
	}
	due, err := time.Parse(time.DateOnly, dueStr)
	if err != nil {
		return fmt.Errorf("invalid due date %q: want YYYY-MM-DD", dueStr)
	}

	bill := &model.Bill{
		Title:                        title,
		Amount:                       amount,
		DueDate:                      due,
		Category:                     category,
		IsRecurring:                  recurring != "",
		RecurringInterval:            model.RecurringInterval(recurring),
		InvoiceURL:                   invoiceURL,
		ReminderSoundIntervalMinutes: soundInterval,
	}

	store, _, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.CreateBill(cmd.Context(), bill); err != nil {
		return fmt.Errorf("add bill: %w", err)
	}

	fmt.Printf("Bill added:\n")
	fmt.Printf("  ID:        %d\n", bill.ID)
	fmt.Printf("  Title:     %s\n", bill.Title)
	fmt.Printf("  Amount:    %s\n", bill.Amount.StringFixed(2))
	fmt.Printf("  Due:       %s\n", bill.DueDate.Format(time.DateOnly))
	if bill.IsRecurring {
		fmt.Printf("  Recurring: %s\n", bill.RecurringInterval)
	}

	return nil
}

func runBillsPay(cmd *cobra.Command, args []string) error {
	id, err := parseBillID(args[0])
	if err != nil {
		return err
	}

	store, _, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SetBillStatus(cmd.Context(), id, model.StatusPaid); err != nil {
		return fmt.Errorf("pay bill: %w", err)
	}
	fmt.Printf("Bill %d marked as paid.\n", id)
	return nil
}

func runBillsDelete(cmd *cobra.Command, args []string) error {
	id, err := parseBillID(args[0])
	if err != nil {
		return err
	}

	store, _, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteBill(cmd.Context(), id); err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	fmt.Printf("Bill %d deleted.\n", id)
	return nil
}

func runBillsImport(cmd *cobra.Command, args []string) error {
	bills, err := storage.LoadBills(args[0])
	if err != nil {
		return err
	}

	store, _, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := storage.ImportBills(cmd.Context(), store, bills)
	if err != nil {
		return fmt.Errorf("import bills (%d of %d imported): %w", n, len(bills), err)
	}
	fmt.Printf("Imported %d bills from %s.\n", n, args[0])
	return nil
}

func parseBillID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid bill id %q", s)
	}
	return id, nil
}
