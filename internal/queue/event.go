// Package queue fans staff notifications out through RabbitMQ.  The API
// process publishes to a durable queue; a background consumer delivers
// each message to the real notification channel.
package queue

import (
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultQueue is the durable queue notifications travel through.
const DefaultQueue = "library.notifications"

// NotificationEvent is the message body published for one notification.
// The text is already formatted for the final channel.
type NotificationEvent struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// NewNotificationEvent stamps text with a fresh id and creation time.
func NewNotificationEvent(text string, now time.Time) NotificationEvent {
	return NotificationEvent{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
}

func decodeEvent(body []byte) (NotificationEvent, error) {
	var ev NotificationEvent
	err := json.Unmarshal(body, &ev)
	return ev, err
}
