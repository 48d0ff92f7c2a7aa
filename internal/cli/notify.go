package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itcctvonlinetif-sudo/BillTracker/pkg/channels"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Notification channel tools",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test <channel>",
	Short: "Send a test notification on one channel",
	Long:  `Send a test notification, ignoring reminder cadence. Run 'billtracker notify list' for channel names.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runNotifyTest,
}

var notifyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notification channels and whether they are enabled",
	RunE:  runNotifyList,
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd, notifyListCmd)
}

// soundChannelName is the channel only a serving process can deliver on.
const soundChannelName = "sound"

func runNotifyTest(cmd *cobra.Command, args []string) error {
	if args[0] == soundChannelName {
		return errors.New("sound alerts are played by clients of 'billtracker serve'; " +
			"test them with POST /api/v1/notifications/sound/test")
	}

	a, err := initApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.store.Close()

	ch, err := a.channels.Get(args[0])
	if err != nil {
		return err
	}
	settings, err := a.store.GetSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Reminder.SendTimeout)
	defer cancel()

	if err := ch.SendTest(ctx, *settings); err != nil {
		if errors.Is(err, channels.ErrNotConfigured) {
			return fmt.Errorf("%s: %w (see 'billtracker settings set')", ch.Name(), err)
		}
		return err
	}
	fmt.Printf("Test notification sent via %s.\n", ch.Name())
	return nil
}

func runNotifyList(cmd *cobra.Command, _ []string) error {
	a, err := initApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.store.Close()

	settings, err := a.store.GetSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}
	for _, ch := range a.channels.All() {
		state := "disabled"
		if ch.Enabled(*settings) {
			state = "enabled"
		}
		fmt.Printf("  %-10s %-8s %s\n", ch.Name(), ch.Kind(), state)
	}
	return nil
}
