// Package publish asks the hosting side to rebuild and redeploy the site.
// Only callers whose token carries the admin claim get past Authorize; every
// other request is rejected before anything is sent upstream.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/inovacc/pagewright/internal/auth"
	"github.com/inovacc/pagewright/internal/publishlog"
)

// Strategies.
const (
	StrategyCommit   = "commit"
	StrategyDispatch = "dispatch"
	StrategyWebhook  = "webhook"
)

// DefaultEventType is the repository_dispatch event a publish sends.
const DefaultEventType = "publish"

const requestTimeout = 30 * time.Second

// SuccessMessage is returned to the caller of a successful publish.
const SuccessMessage = "Site published successfully"

// Trigger fires one rebuild.
type Trigger interface {
	Fire(ctx context.Context) (*Outcome, error)
	Strategy() string
	Target() string
}

// Outcome is what a trigger reports back.
type Outcome struct {
	CommitSHA string
	Message   string
}

// Verifier checks bearer tokens. auth.Provider implementations satisfy it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*auth.Identity, error)
}

// Recorder stores publish runs.
type Recorder interface {
	Record(ctx context.Context, run *publishlog.Run) error
}

// Response is the acknowledgment of a successful publish.
type Response struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	CommitSHA string `json:"commitSha,omitempty"`
}

// Publisher authorizes callers and fires the configured trigger.
type Publisher struct {
	verifier  Verifier
	trigger   Trigger
	recorders []Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithRecorder hands every authorized run to r. Recording is best effort
// and recorders are called in the order they were added.
func WithRecorder(r Recorder) Option {
	return func(p *Publisher) { p.recorders = append(p.recorders, r) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Publisher) { p.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Publisher) { p.now = now }
}

// New returns a publisher firing trigger for callers verified by v.
func New(v Verifier, trigger Trigger, opts ...Option) *Publisher {
	p := &Publisher{verifier: v, trigger: trigger, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Authorize returns the caller's identity when token is valid and carries
// the admin claim.
func (p *Publisher) Authorize(ctx context.Context, token string) (*auth.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrUnauthenticated
	}

	id, err := p.verifier.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
		}

		return nil, err
	}

	if !id.IsAdmin() {
		return nil, ErrForbidden
	}

	return id, nil
}

// Publish authorizes the caller and fires the trigger once.
func (p *Publisher) Publish(ctx context.Context, token string) (*Response, error) {
	id, err := p.Authorize(ctx, token)
	if err != nil {
		p.logger.Warn("publish rejected", "error", err)

		return nil, err
	}

	return p.fire(ctx, id.Email)
}

// PublishAs fires the trigger on behalf of an operator who is already
// trusted, such as the local CLI.
func (p *Publisher) PublishAs(ctx context.Context, actor string) (*Response, error) {
	return p.fire(ctx, actor)
}

func (p *Publisher) fire(ctx context.Context, actor string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	started := p.now()

	p.logger.Info("publishing site", "strategy", p.trigger.Strategy(), "target", p.trigger.Target(), "actor", actor)

	out, err := p.trigger.Fire(ctx)

	run := &publishlog.Run{
		Strategy:   p.trigger.Strategy(),
		Target:     p.trigger.Target(),
		Actor:      actor,
		StartedAt:  started,
		FinishedAt: p.now(),
	}

	if err != nil {
		run.Status = publishlog.StatusFailed
		run.Error = err.Error()

		var upstream *UpstreamError
		if errors.As(err, &upstream) {
			run.HTTPStatus = upstream.StatusCode
		}

		p.record(ctx, run)
		p.logger.Error("publish failed", "strategy", run.Strategy, "error", err)

		return nil, err
	}

	run.Status = publishlog.StatusSucceeded
	run.CommitSHA = out.CommitSHA
	p.record(ctx, run)

	p.logger.Info("site published", "strategy", run.Strategy, "commit", out.CommitSHA, "took", run.Duration())

	return &Response{
		Success:   true,
		Message:   SuccessMessage,
		Timestamp: started.UTC().Format(time.RFC3339),
		CommitSHA: out.CommitSHA,
	}, nil
}

func (p *Publisher) record(ctx context.Context, run *publishlog.Run) {
	if len(p.recorders) == 0 {
		return
	}

	// the trigger may have used up the deadline
	ctx = context.WithoutCancel(ctx)

	for _, r := range p.recorders {
		if err := r.Record(ctx, run); err != nil {
			p.logger.Warn("failed to record publish run", "error", err)
		}
	}
}

// WebhookTrigger posts to a build hook such as a Netlify deploy hook.
type WebhookTrigger struct {
	URL    string
	Client *http.Client
}

func (w *WebhookTrigger) Strategy() string { return StrategyWebhook }

func (w *WebhookTrigger) Target() string {
	u, err := url.Parse(w.URL)
	if err != nil {
		return "webhook"
	}

	return u.Host
}

func (w *WebhookTrigger) Fire(ctx context.Context) (*Outcome, error) {
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, http.NoBody)
	if err != nil {
		return nil, &UpstreamError{Step: "build hook", Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Step: "build hook", Err: err}
	}

	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}

		return nil, &UpstreamError{Step: "build hook", StatusCode: resp.StatusCode, Message: msg}
	}

	return &Outcome{Message: fmt.Sprintf("build hook answered %d", resp.StatusCode)}, nil
}
