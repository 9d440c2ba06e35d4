package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v67/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inovacc/pagewright/internal/auth"
	"github.com/inovacc/pagewright/internal/publishlog"
)

type fakeVerifier map[string]*auth.Identity

func (f fakeVerifier) Verify(_ context.Context, token string) (*auth.Identity, error) {
	id, ok := f[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}

	return id, nil
}

var verifier = fakeVerifier{
	"admin-token":  {Email: "admin@example.com", Claims: map[string]any{"admin": true}},
	"role-token":   {Email: "role@example.com", Claims: map[string]any{"role": "admin"}},
	"editor-token": {Email: "editor@example.com", Claims: map[string]any{"role": "editor"}},
}

// fakeGitHub records the calls a commit trigger makes.
type fakeGitHub struct {
	mu          sync.Mutex
	calls       []string
	commitBody  map[string]any
	updateBody  map[string]any
	failUpdate  bool
	dispatchEvt string
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	track := func(name string) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.calls = append(f.calls, name)
	}

	mux.HandleFunc("GET /repos/acme/site/git/ref/heads/main", func(w http.ResponseWriter, _ *http.Request) {
		track("get-ref")
		_, _ = io.WriteString(w, `{"ref":"refs/heads/main","object":{"sha":"tip123","type":"commit"}}`)
	})

	mux.HandleFunc("GET /repos/acme/site/git/commits/tip123", func(w http.ResponseWriter, _ *http.Request) {
		track("get-commit")
		_, _ = io.WriteString(w, `{"sha":"tip123","tree":{"sha":"tree456"}}`)
	})

	mux.HandleFunc("POST /repos/acme/site/git/commits", func(w http.ResponseWriter, r *http.Request) {
		track("create-commit")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.commitBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"sha":"new789"}`)
	})

	mux.HandleFunc("PATCH /repos/acme/site/git/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		track("update-ref")

		if f.failUpdate {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = io.WriteString(w, `{"message":"Update is not a fast forward"}`)

			return
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.updateBody))
		_, _ = io.WriteString(w, `{"ref":"refs/heads/main","object":{"sha":"new789"}}`)
	})

	mux.HandleFunc("POST /repos/acme/site/dispatches", func(w http.ResponseWriter, r *http.Request) {
		track("dispatch")

		var body struct {
			EventType string `json:"event_type"`
		}

		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.dispatchEvt = body.EventType
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func setupGitHub(t *testing.T) (*fakeGitHub, *github.Client) {
	t.Helper()

	fake := &fakeGitHub{}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewGitHubClient(context.Background(), "gh-token", srv.URL)
	require.NoError(t, err)

	return fake, client
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newCommitTrigger(client *github.Client) *CommitTrigger {
	return &CommitTrigger{
		Client:      client,
		Repo:        Repo{Owner: "acme", Name: "site", Branch: "main"},
		AuthorName:  "Publisher",
		AuthorEmail: "publish@example.com",
		Now:         func() time.Time { return fixedNow },
	}
}

func setupLog(t *testing.T) *publishlog.DB {
	t.Helper()

	db, err := publishlog.Open(filepath.Join(t.TempDir(), "publish.db"))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func TestPublish_CommitSequence(t *testing.T) {
	fake, client := setupGitHub(t)
	log := setupLog(t)

	p := New(verifier, newCommitTrigger(client), WithRecorder(log), WithClock(func() time.Time { return fixedNow }))

	resp, err := p.Publish(context.Background(), "admin-token")
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, SuccessMessage, resp.Message)
	assert.Equal(t, "new789", resp.CommitSHA)
	assert.Equal(t, "2026-03-04T05:06:07Z", resp.Timestamp)

	assert.Equal(t, []string{"get-ref", "get-commit", "create-commit", "update-ref"}, fake.calls)

	assert.Equal(t, "chore: publish site 2026-03-04T05:06:07Z", fake.commitBody["message"])
	assert.Equal(t, "tree456", fake.commitBody["tree"])
	assert.Equal(t, []any{"tip123"}, fake.commitBody["parents"])

	author := fake.commitBody["author"].(map[string]any)
	assert.Equal(t, "Publisher", author["name"])

	assert.Equal(t, "new789", fake.updateBody["sha"])
	assert.Equal(t, false, fake.updateBody["force"])

	runs, err := log.List(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, publishlog.StatusSucceeded, runs[0].Status)
	assert.Equal(t, "admin@example.com", runs[0].Actor)
	assert.Equal(t, "acme/site@main", runs[0].Target)
}

func TestPublish_RoleClaimIsAdmin(t *testing.T) {
	_, client := setupGitHub(t)

	_, err := New(verifier, newCommitTrigger(client)).Publish(context.Background(), "role-token")
	require.NoError(t, err)
}

func TestPublish_RejectsWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		wantErr    error
		wantStatus int
	}{
		{"no token", "", ErrUnauthenticated, http.StatusUnauthorized},
		{"blank token", "   ", ErrUnauthenticated, http.StatusUnauthorized},
		{"unknown token", "forged", ErrUnauthenticated, http.StatusUnauthorized},
		{"not admin", "editor-token", ErrForbidden, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake, client := setupGitHub(t)
			log := setupLog(t)

			p := New(verifier, newCommitTrigger(client), WithRecorder(log))

			_, err := p.Publish(context.Background(), tt.token)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantStatus, HTTPStatus(err))

			assert.Empty(t, fake.calls, "no upstream call may be made")

			runs, err := log.List(context.Background(), "", 0)
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestPublish_UpstreamFailureStopsSequence(t *testing.T) {
	fake, client := setupGitHub(t)
	fake.failUpdate = true

	log := setupLog(t)
	p := New(verifier, newCommitTrigger(client), WithRecorder(log))

	_, err := p.Publish(context.Background(), "admin-token")
	require.Error(t, err)

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "update branch ref", upstream.Step)
	assert.Equal(t, http.StatusUnprocessableEntity, upstream.StatusCode)
	assert.Equal(t, "Update is not a fast forward", upstream.Message)
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(err))

	runs, err := log.List(context.Background(), publishlog.StatusFailed, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, http.StatusUnprocessableEntity, runs[0].HTTPStatus)
}

type failingRecorder struct{ runs []*publishlog.Run }

func (f *failingRecorder) Record(_ context.Context, run *publishlog.Run) error {
	f.runs = append(f.runs, run)

	return errors.New("recorder down")
}

func TestPublish_AllRecordersSeeTheRun(t *testing.T) {
	_, client := setupGitHub(t)
	log := setupLog(t)
	first := &failingRecorder{}

	p := New(verifier, newCommitTrigger(client), WithRecorder(first), WithRecorder(log))

	_, err := p.Publish(context.Background(), "admin-token")
	require.NoError(t, err, "recording failures never fail a publish")

	require.Len(t, first.runs, 1)
	assert.Equal(t, publishlog.StatusSucceeded, first.runs[0].Status)

	runs, err := log.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestPublish_MissingBranch(t *testing.T) {
	_, client := setupGitHub(t)

	trigger := newCommitTrigger(client)
	trigger.Repo.Branch = "gone"

	_, err := New(verifier, trigger).Publish(context.Background(), "admin-token")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "get branch ref", upstream.Step)
	assert.Equal(t, http.StatusNotFound, upstream.StatusCode)
}

func TestDispatchTrigger(t *testing.T) {
	fake, client := setupGitHub(t)

	trigger := &DispatchTrigger{Client: client, Repo: Repo{Owner: "acme", Name: "site"}}

	resp, err := New(verifier, trigger).Publish(context.Background(), "admin-token")
	require.NoError(t, err)
	assert.Empty(t, resp.CommitSHA)
	assert.Equal(t, []string{"dispatch"}, fake.calls)
	assert.Equal(t, DefaultEventType, fake.dispatchEvt)
}

func TestWebhookTrigger(t *testing.T) {
	var hits int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++

		if r.URL.Path == "/fail" {
			http.Error(w, "hook disabled", http.StatusGone)

			return
		}

		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok := &WebhookTrigger{URL: srv.URL + "/hook"}

	_, err := New(verifier, ok).Publish(context.Background(), "admin-token")
	require.NoError(t, err)
	assert.Equal(t, 1, hits)

	bad := &WebhookTrigger{URL: srv.URL + "/fail"}

	_, err = New(verifier, bad).Publish(context.Background(), "admin-token")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusGone, upstream.StatusCode)
	assert.Equal(t, "hook disabled", upstream.Message)
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
