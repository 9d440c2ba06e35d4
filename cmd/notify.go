package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/inovacc/pagewright/internal/notify"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Manage publish notifications",
}

var notifyTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test message to the configured Slack webhook",
	Long: `Send a test message to notify.slack_webhook. Set it in the config file or
with PAGEWRIGHT_NOTIFY_SLACK_WEBHOOK.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Notify.SlackWebhook == "" {
			return errors.New("notify.slack_webhook is not set")
		}

		if err := notify.ValidateWebhookURL(cfg.Notify.SlackWebhook); err != nil {
			return err
		}

		var opts []notify.SlackOption
		if cfg.Notify.SlackChannel != "" {
			opts = append(opts, notify.WithChannel(cfg.Notify.SlackChannel))
		}

		if err := notify.NewSlackSender(cfg.Notify.SlackWebhook, opts...).Test(cmd.Context()); err != nil {
			return err
		}

		printf("Test notification sent\n")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.AddCommand(notifyTestCmd)
}
