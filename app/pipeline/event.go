package pipeline

import (
	"strings"
	"time"
)

// RawContentEvent is the canonical unit of content flowing into the pipeline:
// one scraped page, one chat message, or one webhook delivery. It is ephemeral
// and never persisted on its own; survivors of the pre-filter are carried into
// an extraction job.
type RawContentEvent struct {
	SourceID      string
	SourceLocator string // URL, message id, or webhook event id
	Text          string
	ObservedAt    time.Time
}

func NewPageEvent(sourceID, pageURL, text string, observedAt time.Time) RawContentEvent {
	return RawContentEvent{
		SourceID:      sourceID,
		SourceLocator: pageURL,
		Text:          CleanText(text),
		ObservedAt:    observedAt,
	}
}

func NewChatMessageEvent(sourceID, messageID, body string, sentAt time.Time) RawContentEvent {
	return RawContentEvent{
		SourceID:      sourceID,
		SourceLocator: messageID,
		Text:          CleanText(body),
		ObservedAt:    sentAt,
	}
}

func NewWebhookEvent(sourceID, eventID, body string, eventAt time.Time) RawContentEvent {
	return RawContentEvent{
		SourceID:      sourceID,
		SourceLocator: eventID,
		Text:          CleanText(body),
		ObservedAt:    eventAt,
	}
}

// CleanText collapses runs of whitespace and drops zero-width characters that
// chat clients tend to smuggle into copied announcements.
func CleanText(text string) string {
	text = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\ufeff':
			return -1
		}
		return r
	}, text)

	return strings.Join(strings.Fields(text), " ")
}
