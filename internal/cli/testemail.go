package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmr-b5/powerwatch/pkg/alerts"
)

var testEmailCmd = &cobra.Command{
	Use:   "test-email",
	Short: "Send a test email to verify the Resend setup",
	Args:  cobra.NoArgs,
	RunE:  runTestEmail,
}

func init() {
	rootCmd.AddCommand(testEmailCmd)
	testEmailCmd.Flags().StringSlice("to", nil, "Recipients (default: delay job recipients)")
}

func runTestEmail(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateNotify(); err != nil {
		return err
	}

	to, _ := cmd.Flags().GetStringSlice("to")
	if len(to) == 0 {
		to = cfg.Jobs.Delay.Recipients
	}

	loc, err := alerts.LoadLocation(cfg.Email.Timezone)
	if err != nil {
		return err
	}
	alert, err := alerts.TestAlert(time.Now(), loc, to)
	if err != nil {
		return err
	}

	email, err := initEmail(cfg)
	if err != nil {
		return err
	}

	id, err := email.Send(cmd.Context(), alert)
	if err != nil {
		return fmt.Errorf("send test email: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Test email sent: %s\n", id)
	return nil
}
