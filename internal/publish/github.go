package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v67/github"
	"golang.org/x/oauth2"
)

// NewGitHubClient returns a token-authenticated GitHub client. A non-empty
// apiURL points it at another API root (GitHub Enterprise or a test server).
func NewGitHubClient(ctx context.Context, token, apiURL string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = requestTimeout

	client := github.NewClient(hc)

	if apiURL != "" {
		u, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid api url %q: %w", apiURL, err)
		}

		client.BaseURL = u
	}

	return client, nil
}

// Repo names a branch of a GitHub repository.
type Repo struct {
	Owner  string
	Name   string
	Branch string
}

func (r Repo) String() string {
	return fmt.Sprintf("%s/%s@%s", r.Owner, r.Name, r.Branch)
}

// CommitTrigger pushes an empty commit onto a branch so the repository's CI
// rebuilds and redeploys the site.
type CommitTrigger struct {
	Client      *github.Client
	Repo        Repo
	AuthorName  string
	AuthorEmail string
	Now         func() time.Time
}

// CommitMessage is the message of a trigger commit made at t.
func CommitMessage(t time.Time) string {
	return "chore: publish site " + t.UTC().Format(time.RFC3339)
}

func (c *CommitTrigger) Strategy() string { return StrategyCommit }

func (c *CommitTrigger) Target() string { return c.Repo.String() }

// Fire resolves the branch tip, creates a commit with the tip's tree and the
// tip as parent, then fast-forwards the branch to it. The first failure
// stops the sequence; a created but unreferenced commit is left behind.
func (c *CommitTrigger) Fire(ctx context.Context) (*Outcome, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}

	owner, repo := c.Repo.Owner, c.Repo.Name
	ref := "heads/" + c.Repo.Branch

	tip, resp, err := c.Client.Git.GetRef(ctx, owner, repo, ref)
	if err != nil {
		return nil, upstream("get branch ref", resp, err)
	}

	parent, resp, err := c.Client.Git.GetCommit(ctx, owner, repo, tip.GetObject().GetSHA())
	if err != nil {
		return nil, upstream("get commit", resp, err)
	}

	stamp := now()
	commit := &github.Commit{
		Message: github.String(CommitMessage(stamp)),
		Tree:    &github.Tree{SHA: parent.GetTree().SHA},
		Parents: []*github.Commit{{SHA: parent.SHA}},
	}

	if c.AuthorName != "" && c.AuthorEmail != "" {
		commit.Author = &github.CommitAuthor{
			Name:  github.String(c.AuthorName),
			Email: github.String(c.AuthorEmail),
			Date:  &github.Timestamp{Time: stamp},
		}
	}

	created, resp, err := c.Client.Git.CreateCommit(ctx, owner, repo, commit, nil)
	if err != nil {
		return nil, upstream("create commit", resp, err)
	}

	next := &github.Reference{Ref: tip.Ref, Object: &github.GitObject{SHA: created.SHA}}

	if _, resp, err := c.Client.Git.UpdateRef(ctx, owner, repo, next, false); err != nil {
		return nil, upstream("update branch ref", resp, err)
	}

	return &Outcome{CommitSHA: created.GetSHA(), Message: commit.GetMessage()}, nil
}

// DispatchTrigger sends a repository_dispatch event for a workflow that
// listens on it.
type DispatchTrigger struct {
	Client    *github.Client
	Repo      Repo
	EventType string
}

func (d *DispatchTrigger) Strategy() string { return StrategyDispatch }

func (d *DispatchTrigger) Target() string { return d.Repo.Owner + "/" + d.Repo.Name }

func (d *DispatchTrigger) Fire(ctx context.Context) (*Outcome, error) {
	event := d.EventType
	if event == "" {
		event = DefaultEventType
	}

	_, resp, err := d.Client.Repositories.Dispatch(ctx, d.Repo.Owner, d.Repo.Name, github.DispatchRequestOptions{EventType: event})
	if err != nil {
		return nil, upstream("repository dispatch", resp, err)
	}

	return &Outcome{Message: "dispatched " + event}, nil
}

func upstream(step string, resp *github.Response, err error) error {
	e := &UpstreamError{Step: step, Err: err}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		e.Message = ghErr.Message
	}

	if resp != nil && resp.Response != nil {
		e.StatusCode = resp.StatusCode
		if e.Message == "" {
			e.Message = http.StatusText(resp.StatusCode)
		}
	}

	return e
}
