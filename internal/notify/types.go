// Package notify tells people outside the admin panel that the site was
// published, or that publishing failed.
package notify

import (
	"context"
	"time"

	"github.com/inovacc/pagewright/internal/publishlog"
)

// Event types that can trigger notifications.
const (
	EventPublished     = "published"
	EventPublishFailed = "publish-failed"
	EventTest          = "test"
)

// Event is one publish outcome with what a message needs to describe it.
type Event struct {
	Type      string
	Strategy  string
	Target    string
	Actor     string
	Commit    string
	Duration  time.Duration
	Timestamp time.Time
	Success   bool
	Error     string
	// SiteURL links to the live site when configured.
	SiteURL   string
}

// Sender delivers events to one channel.
type Sender interface {
	Send(ctx context.Context, event *Event) error
	// Name returns the sender's name for logging purposes.
	Name() string
}

// FromRun describes a recorded publish run.
func FromRun(run *publishlog.Run) *Event {
	e := &Event{
		Type:      EventPublished,
		Strategy:  run.Strategy,
		Target:    run.Target,
		Actor:     run.Actor,
		Commit:    run.CommitSHA,
		Duration:  run.Duration(),
		Timestamp: run.FinishedAt,
		Success:   run.Status == publishlog.StatusSucceeded,
		Error:     run.Error,
	}

	if !e.Success {
		e.Type = EventPublishFailed
	}

	return e
}

// ShortCommit returns the first seven characters of the commit SHA.
func (e *Event) ShortCommit() string {
	if len(e.Commit) > 7 {
		return e.Commit[:7]
	}

	return e.Commit
}
