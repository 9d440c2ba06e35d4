package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inovacc/pagewright/internal/publishlog"
)

func testRun(status string) *publishlog.Run {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	return &publishlog.Run{
		Strategy:   "commit",
		Target:     "acme/site@main",
		Actor:      "admin@example.com",
		Status:     status,
		CommitSHA:  "0123456789abcdef",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}
}

func TestFromRun(t *testing.T) {
	e := FromRun(testRun(publishlog.StatusSucceeded))
	assert.Equal(t, EventPublished, e.Type)
	assert.True(t, e.Success)
	assert.Equal(t, 1500*time.Millisecond, e.Duration)
	assert.Equal(t, "0123456", e.ShortCommit())

	run := testRun(publishlog.StatusFailed)
	run.Error = "boom"
	e = FromRun(run)
	assert.Equal(t, EventPublishFailed, e.Type)
	assert.False(t, e.Success)
	assert.Equal(t, "boom", e.Error)
}

func TestFormatSlackMessage(t *testing.T) {
	tests := []struct {
		name     string
		event    *Event
		color    string
		contains string
	}{
		{
			name:     "published",
			event:    &Event{Type: EventPublished, Success: true, Actor: "a@example.com", Strategy: "commit"},
			color:    colorSuccess,
			contains: "Site published by a@example.com via commit",
		},
		{
			name:     "failed",
			event:    &Event{Type: EventPublishFailed, Strategy: "webhook", Error: "hook returned 500"},
			color:    colorFailure,
			contains: "Publishing failed (webhook): hook returned 500",
		},
		{
			name:     "test",
			event:    &Event{Type: EventTest, Success: true},
			color:    colorInfo,
			contains: "working",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatSlackMessage(tt.event, "#deploys")
			assert.Equal(t, "#deploys", msg.Channel)
			assert.Contains(t, msg.Text, tt.contains)
			require.Len(t, msg.Attachments, 1)
			assert.Equal(t, tt.color, msg.Attachments[0].Color)
			assert.NotEmpty(t, msg.Attachments[0].Blocks)
		})
	}
}

func TestFormatSlackMessage_SiteButton(t *testing.T) {
	e := FromRun(testRun(publishlog.StatusSucceeded))
	e.SiteURL = "https://example.com"

	msg := FormatSlackMessage(e, "")

	var found bool

	for _, b := range msg.Attachments[0].Blocks {
		if b.Type == "actions" {
			found = true

			assert.Equal(t, "https://example.com", b.Elements[0].URL)
		}
	}

	assert.True(t, found)
}

func TestValidateWebhookURL(t *testing.T) {
	assert.NoError(t, ValidateWebhookURL("https://hooks.slack.com/services/T000/B000/XXX"))
	assert.Error(t, ValidateWebhookURL(""))
	assert.Error(t, ValidateWebhookURL("https://example.com/hook"))
}

func TestSlackSender_Send(t *testing.T) {
	var got SlackMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s := NewSlackSender(srv.URL, WithChannel("#deploys"), WithHTTPClient(srv.Client()))
	assert.Equal(t, "slack", s.Name())
	require.NoError(t, s.Send(t.Context(), FromRun(testRun(publishlog.StatusSucceeded))))

	assert.Equal(t, "#deploys", got.Channel)
	assert.True(t, strings.HasPrefix(got.Text, "Site published"))
}

func TestSlackSender_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewSlackSender(srv.URL).Test(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "invalid_token")
}

type fakeSender struct {
	mu     sync.Mutex
	events []*Event
	err    error
	panic  bool
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(_ context.Context, e *Event) error {
	if f.panic {
		panic("sender exploded")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, e)

	return f.err
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.events)
}

func TestDispatcher_Record(t *testing.T) {
	for _, async := range []bool{false, true} {
		d := NewDispatcher(async, nil).WithSiteURL("https://example.com")
		assert.False(t, d.HasSenders())

		ok := &fakeSender{}
		failing := &fakeSender{err: errors.New("down")}
		panicking := &fakeSender{panic: true}

		d.Register(panicking)
		d.Register(failing)
		d.Register(ok)
		assert.True(t, d.HasSenders())

		require.NoError(t, d.Record(t.Context(), testRun(publishlog.StatusFailed)))
		d.Wait()

		require.Equal(t, 1, ok.count())
		assert.Equal(t, 1, failing.count())
		assert.Equal(t, EventPublishFailed, ok.events[0].Type)
		assert.Equal(t, "https://example.com", ok.events[0].SiteURL)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
