package notify

import (
	"fmt"
	"time"
)

// SlackMessage is a webhook payload with Block Kit formatting.
type SlackMessage struct {
	Channel     string       `json:"channel,omitempty"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	UnfurlLinks bool         `json:"unfurl_links"`
	UnfurlMedia bool         `json:"unfurl_media"`
}

// Block represents a Slack Block Kit block.
type Block struct {
	Type     string       `json:"type"`
	Text     *TextObject  `json:"text,omitempty"`
	Elements []Element    `json:"elements,omitempty"`
	Fields   []TextObject `json:"fields,omitempty"`
}

// TextObject represents text content in a block.
type TextObject struct {
	Type  string `json:"type"` // "plain_text" or "mrkdwn"
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// Element represents a button.
type Element struct {
	Type string      `json:"type"`
	Text *TextObject `json:"text,omitempty"`
	URL  string      `json:"url,omitempty"`
}

// Attachment carries the color bar.
type Attachment struct {
	Color    string  `json:"color,omitempty"`
	Fallback string  `json:"fallback,omitempty"`
	Blocks   []Block `json:"blocks,omitempty"`
}

const (
	colorSuccess = "#2EB67D"
	colorFailure = "#E01E5A"
	colorInfo    = "#36C5F0"
)

// FormatSlackMessage creates a Slack message from an event.
func FormatSlackMessage(event *Event, channel string) *SlackMessage {
	text := formatText(event)

	color := colorSuccess

	switch {
	case event.Type == EventTest:
		color = colorInfo
	case !event.Success:
		color = colorFailure
	}

	return &SlackMessage{
		Channel: channel,
		Text:    text,
		Attachments: []Attachment{{
			Color:    color,
			Fallback: text,
			Blocks:   formatBlocks(event),
		}},
	}
}

func formatText(event *Event) string {
	switch event.Type {
	case EventTest:
		return "pagewright notifications are working"
	case EventPublishFailed:
		return fmt.Sprintf("Publishing failed (%s): %s", event.Strategy, event.Error)
	default:
		return fmt.Sprintf("Site published by %s via %s", event.Actor, event.Strategy)
	}
}

func formatBlocks(event *Event) []Block {
	if event.Type == EventTest {
		return []Block{{
			Type: "section",
			Text: &TextObject{Type: "mrkdwn", Text: "*Test notification*\nThis channel will hear about every publish."},
		}}
	}

	title := "*Site published*"
	if !event.Success {
		title = "*Publishing failed*"
	}

	blocks := []Block{
		{
			Type: "section",
			Text: &TextObject{Type: "mrkdwn", Text: fmt.Sprintf("%s\n`%s` via %s", title, event.Target, event.Strategy)},
		},
		{
			Type: "section",
			Fields: []TextObject{
				{Type: "mrkdwn", Text: fmt.Sprintf("*By*\n%s", orDash(event.Actor))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*Took*\n%s", event.Duration.Round(time.Millisecond))},
				{Type: "mrkdwn", Text: fmt.Sprintf("*At*\n%s", event.Timestamp.UTC().Format(time.RFC1123))},
			},
		},
	}

	if event.Commit != "" {
		blocks[1].Fields = append(blocks[1].Fields, TextObject{Type: "mrkdwn", Text: fmt.Sprintf("*Commit*\n`%s`", event.ShortCommit())})
	}

	if event.Error != "" {
		blocks = append(blocks, Block{
			Type: "section",
			Text: &TextObject{Type: "mrkdwn", Text: fmt.Sprintf("```%s```", truncate(event.Error, 500))},
		})
	}

	if event.SiteURL != "" && event.Success {
		blocks = append(blocks, Block{
			Type: "actions",
			Elements: []Element{{
				Type: "button",
				Text: &TextObject{Type: "plain_text", Text: "Open site", Emoji: true},
				URL:  event.SiteURL,
			}},
		})
	}

	return blocks
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

// truncate shortens s to maxLen runes with an ellipsis.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}

	return string(r[:maxLen-3]) + "..."
}
