package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inovacc/pagewright/internal/admin"
	"github.com/inovacc/pagewright/internal/web"
)

var (
	serveHost          string
	servePort          int
	serveSecureCookies bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the admin panel",
	Long: `Start the admin panel and its JSON API.

Only users carrying the admin claim can sign in. Publishing from the panel
and through POST /api/publish uses the configured publish strategy; when it
is not configured the panel still edits content and publishing answers with
an error.

Examples:
  pagewright serve
  pagewright serve --port 9000
  pagewright serve --host 0.0.0.0 --secure-cookies`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Address to listen on (default from config, 127.0.0.1)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default from config, 8080)")
	serveCmd.Flags().BoolVar(&serveSecureCookies, "secure-cookies", false, "Mark the session cookie Secure (use behind TLS)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	svc, tree, err := openContent(ctx, cfg)
	if err != nil {
		return err
	}

	defer func() { _ = tree.Close() }()

	users, err := openUsers(cfg)
	if err != nil {
		return err
	}

	defer func() { _ = users.Close() }()

	deps := admin.Deps{
		Auth:     users,
		Content:  svc,
		Uploader: newUploader(cfg),
		Logger:   logger,
	}

	webDeps := web.Deps{Content: svc, Logger: logger}

	pub, history, err := newPublisher(ctx, cfg, users)
	if err != nil {
		logger.Warn("publishing disabled", "error", err)
	} else {
		defer func() { _ = history.Close() }()

		deps.Publisher = pub
		webDeps.Publisher = pub
	}

	webDeps.Controller = admin.New(deps)

	config := web.DefaultConfig()
	config.Host = cfg.Server.Host
	config.Port = cfg.Server.Port
	config.SecureCookies = serveSecureCookies

	server, err := web.New(config, webDeps)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	printf("Admin panel on http://%s\n", cfg.Server.Addr())
	printf("Press Ctrl+C to stop\n")

	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

// notifyContext is cancelled on Ctrl+C or SIGTERM.
func notifyContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
