package cmd

import (
	"fmt"
	"os"
	"os/user"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/inovacc/pagewright/internal/publishlog"
)

var (
	publishStrategy string
	publishActor    string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Trigger a rebuild and redeploy of the live site",
	Long: `Fire the configured publish trigger once.

Strategies:
  commit    push an empty commit onto publish.branch (default)
  dispatch  send a repository_dispatch event named publish.event_type
  webhook   POST to publish.webhook_url, e.g. a Netlify build hook

The GitHub strategies read the token from publish.token, GITHUB_TOKEN or
GH_TOKEN. Running this command locally is trusted: no admin token is asked.

Examples:
  pagewright publish
  pagewright publish --strategy dispatch
  pagewright publish history --limit 5`,
	RunE: runPublish,
}

var (
	historyStatus string
	historyLimit  int
	historyJSON   bool
)

var publishHistoryCmd = &cobra.Command{
	Use:     "history",
	Short:   "List recent publish runs",
	Aliases: []string{"log"},
	RunE:    runPublishHistory,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.AddCommand(publishHistoryCmd)

	publishCmd.Flags().StringVar(&publishStrategy, "strategy", "", "Publish strategy: commit, dispatch or webhook")
	publishCmd.Flags().StringVar(&publishActor, "as", "", "Name recorded as the publisher (default: the OS user)")

	publishHistoryCmd.Flags().StringVar(&historyStatus, "status", "", "Filter by status: succeeded or failed")
	publishHistoryCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	publishHistoryCmd.Flags().BoolVar(&historyJSON, "json", false, "Output as JSON")
}

func runPublish(cmd *cobra.Command, _ []string) error {
	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	pub, history, err := newPublisher(ctx, cfg, nil)
	if err != nil {
		return err
	}

	defer func() { _ = history.Close() }()

	actor := publishActor
	if actor == "" {
		actor = "cli"
		if u, err := user.Current(); err == nil {
			actor = "cli:" + u.Username
		}
	}

	resp, err := pub.PublishAs(ctx, actor)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	printf("%s at %s\n", resp.Message, resp.Timestamp)

	if resp.CommitSHA != "" {
		printf("Commit: %s\n", resp.CommitSHA)
	}

	return nil
}

func runPublishHistory(cmd *cobra.Command, _ []string) error {
	switch historyStatus {
	case "", publishlog.StatusSucceeded, publishlog.StatusFailed:
	default:
		return fmt.Errorf("unknown status %q", historyStatus)
	}

	history, err := publishlog.Open(cfg.Publish.LogDB)
	if err != nil {
		return err
	}

	defer func() { _ = history.Close() }()

	runs, err := history.List(cmd.Context(), historyStatus, historyLimit)
	if err != nil {
		return err
	}

	if historyJSON {
		if runs == nil {
			runs = []publishlog.Run{}
		}

		return printJSON(runs)
	}

	if len(runs) == 0 {
		printf("No publish runs recorded.\n")

		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWHEN\tSTRATEGY\tTARGET\tACTOR\tSTATUS\tTOOK\tDETAIL")

	for _, r := range runs {
		detail := r.CommitSHA
		if r.Error != "" {
			detail = r.Error
		}

		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			humanize.Time(r.StartedAt),
			r.Strategy,
			r.Target,
			r.Actor,
			r.Status,
			r.Duration().Round(time.Millisecond),
			truncate(detail, 60),
		)
	}

	return w.Flush()
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}

	return string(r[:maxLen-3]) + "..."
}
