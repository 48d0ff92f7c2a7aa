package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change notification settings",
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show notification settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change notification settings",
	Long:  `Change notification settings. Only the flags given are changed.`,
	RunE:  runSettingsSet,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsShowCmd, settingsSetCmd)

	f := settingsSetCmd.Flags()
	f.String("email", "", "Recipient address for email reminders")
	f.Bool("email-enabled", true, "Send email reminders")
	f.String("telegram-token", "", "Telegram bot token")
	f.String("telegram-chat-id", "", "Telegram chat id or @channel")
	f.Bool("telegram-enabled", false, "Send Telegram reminders")
	f.String("sound-url", "", "Alert sound played by the client")
	f.Bool("sound-enabled", false, "Raise audible alerts for urgent bills")
	f.Bool("muted", false, "Mute the audible alert")
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	store, _, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.GetSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	fmt.Printf("Email:\n")
	fmt.Printf("  Enabled:   %t\n", st.IsEmailEnabled)
	fmt.Printf("  Address:   %s\n", orNone(st.UserEmail))
	fmt.Printf("Telegram:\n")
	fmt.Printf("  Enabled:   %t\n", st.IsTelegramEnabled)
	fmt.Printf("  Token:     %s\n", maskSecret(st.TelegramToken))
	fmt.Printf("  Chat ID:   %s\n", orNone(st.TelegramChatID))
	fmt.Printf("Sound:\n")
	fmt.Printf("  Enabled:   %t\n", st.IsSoundEnabled)
	fmt.Printf("  Muted:     %t\n", st.IsMuted)
	fmt.Printf("  Sound URL: %s\n", orNone(st.AlertSoundURL))

	return nil
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	store, _, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	st, err := store.GetSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	f := cmd.Flags()
	changed := 0
	setString := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
			changed++
		}
	}
	setBool := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
			changed++
		}
	}
	setString("email", &st.UserEmail)
	setBool("email-enabled", &st.IsEmailEnabled)
	setString("telegram-token", &st.TelegramToken)
	setString("telegram-chat-id", &st.TelegramChatID)
	setBool("telegram-enabled", &st.IsTelegramEnabled)
	setString("sound-url", &st.AlertSoundURL)
	setBool("sound-enabled", &st.IsSoundEnabled)
	setBool("muted", &st.IsMuted)

	if changed == 0 {
		return fmt.Errorf("no settings given; see 'billtracker settings set --help'")
	}
	if err := store.UpdateSettings(cmd.Context(), st); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	fmt.Printf("Updated %d setting(s).\n", changed)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// maskSecret keeps the last four characters of a credential.
func maskSecret(s string) string {
	if s == "" {
		return "(none)"
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
