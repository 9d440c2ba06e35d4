package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/term"

	"github.com/inovacc/pagewright/internal/auth"
	"github.com/inovacc/pagewright/internal/config"
	"github.com/inovacc/pagewright/internal/content"
	"github.com/inovacc/pagewright/internal/notify"
	"github.com/inovacc/pagewright/internal/publish"
	"github.com/inovacc/pagewright/internal/publishlog"
	"github.com/inovacc/pagewright/internal/store"
	"github.com/inovacc/pagewright/internal/upload"
)

// Environment fallbacks for secrets kept out of the config file.
const (
	envAuthSecret = "PAGEWRIGHT_AUTH_SECRET"
	envStoreToken = "PAGEWRIGHT_STORE_TOKEN"
)

var githubTokenEnv = []string{"GITHUB_TOKEN", "GH_TOKEN"}

// openTree opens the configured store backend.
func openTree(ctx context.Context, c *config.Config) (store.Tree, error) {
	switch c.Store.Backend {
	case config.BackendRTDB:
		rc := store.RTDBConfig{URL: c.Store.URL, CredentialsFile: c.Store.Credentials}

		token := c.Store.Token
		if token == "" {
			token = os.Getenv(envStoreToken)
		}

		if token != "" {
			rc.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		}

		tree, err := store.NewRTDB(ctx, rc)
		if err != nil {
			return nil, fmt.Errorf("failed to open content store: %w", err)
		}

		return tree, nil
	default:
		tree, err := store.NewBolt(c.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open content store: %w", err)
		}

		return tree, nil
	}
}

// openContent opens the store and wraps it in the content service.
func openContent(ctx context.Context, c *config.Config) (*content.Service, store.Tree, error) {
	tree, err := openTree(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	return content.NewService(store.NewClient(tree, logger), logger), tree, nil
}

// authSecret resolves the token signing secret: config, environment,
// stored file, then a freshly generated one.
func authSecret(c *config.Config) (string, error) {
	secret, err := auth.NewResolver("auth secret").
		WithValue(c.Auth.Secret).
		WithEnv(envAuthSecret).
		WithFile(c.SecretFile()).
		WithGenerated(c.SecretFile()).
		Resolve()
	if err != nil {
		return "", err
	}

	if secret.Source == auth.SourceGenerated {
		logger.Info("generated auth secret", "file", secret.Name)
	}

	return secret.Value, nil
}

// openUsers opens the local user database.
func openUsers(c *config.Config) (*auth.Local, error) {
	secret, err := authSecret(c)
	if err != nil {
		return nil, err
	}

	return auth.NewLocal(auth.LocalConfig{
		Path:   c.Auth.UsersDB,
		Secret: secret,
		TTL:    c.Auth.TokenTTL,
		Logger: logger,
	})
}

// newTrigger builds the publish trigger for the configured strategy.
func newTrigger(ctx context.Context, c *config.Config) (publish.Trigger, error) {
	p := c.Publish

	if p.Strategy == publish.StrategyWebhook {
		if p.WebhookURL == "" {
			return nil, errors.New("publish.webhook_url is required for the webhook strategy")
		}

		return &publish.WebhookTrigger{URL: p.WebhookURL, Client: &http.Client{Timeout: 30 * time.Second}}, nil
	}

	if p.Owner == "" || p.Repo == "" {
		return nil, errors.New("publish.owner and publish.repo are required")
	}

	token, err := auth.NewResolver("GitHub token").
		WithValue(p.Token).
		WithEnv(githubTokenEnv...).
		Resolve()
	if err != nil {
		return nil, err
	}

	client, err := publish.NewGitHubClient(ctx, token.Value, p.APIURL)
	if err != nil {
		return nil, err
	}

	repo := publish.Repo{Owner: p.Owner, Name: p.Repo, Branch: p.Branch}

	if p.Strategy == publish.StrategyDispatch {
		return &publish.DispatchTrigger{Client: client, Repo: repo, EventType: p.EventType}, nil
	}

	return &publish.CommitTrigger{
		Client:      client,
		Repo:        repo,
		AuthorName:  p.AuthorName,
		AuthorEmail: p.AuthorEmail,
	}, nil
}

// newPublisher wires the trigger and the publish history. The returned
// history must be closed by the caller.
func newPublisher(ctx context.Context, c *config.Config, v publish.Verifier) (*publish.Publisher, *publishlog.DB, error) {
	trigger, err := newTrigger(ctx, c)
	if err != nil {
		return nil, nil, err
	}

	history, err := publishlog.Open(c.Publish.LogDB)
	if err != nil {
		return nil, nil, err
	}

	opts := []publish.Option{publish.WithRecorder(history), publish.WithLogger(logger)}

	if d := newNotifier(c); d != nil {
		opts = append(opts, publish.WithRecorder(d))
	}

	return publish.New(v, trigger, opts...), history, nil
}

// newNotifier returns nil when no notification channel is configured.
func newNotifier(c *config.Config) *notify.Dispatcher {
	if c.Notify.SlackWebhook == "" {
		return nil
	}

	if err := notify.ValidateWebhookURL(c.Notify.SlackWebhook); err != nil {
		logger.Warn("notify: webhook does not look like a Slack hook", "error", err)
	}

	var opts []notify.SlackOption
	if c.Notify.SlackChannel != "" {
		opts = append(opts, notify.WithChannel(c.Notify.SlackChannel))
	}

	d := notify.NewDispatcher(false, logger).WithSiteURL(c.Notify.SiteURL)
	d.Register(notify.NewSlackSender(c.Notify.SlackWebhook, opts...))

	return d
}

func newUploader(c *config.Config) upload.Uploader {
	return upload.New(upload.CloudinaryConfig{
		CloudName:    c.Cloudinary.CloudName,
		UploadPreset: c.Cloudinary.UploadPreset,
		Folder:       c.Cloudinary.Folder,
		Logger:       logger,
	})
}

// parseClaimValue reads a claim from the command line: booleans, numbers
// and JSON values keep their type, anything else is a string.
func parseClaimValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}

	if t := strings.TrimSpace(s); strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") || strings.HasPrefix(t, `"`) {
		var v any
		if err := json.Unmarshal([]byte(t), &v); err == nil {
			return v
		}
	}

	return s
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// readPassword takes the password from the flag, the environment or the
// first line of stdin.
func readPassword(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}

	if v := os.Getenv("PAGEWRIGHT_PASSWORD"); v != "" {
		return v, nil
	}

	_, _ = fmt.Fprint(os.Stderr, "Password: ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		password, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(os.Stderr)

		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}

		return string(password), nil
	}

	// piped input
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return strings.TrimSpace(line), nil
}
