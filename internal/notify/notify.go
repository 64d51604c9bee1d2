// Package notify defines the message delivery contract the core emits
// notifications through. Delivery is best-effort and at-least-once; state
// transitions never roll back on a failed send.
package notify

import (
	"context"

	"github.com/plantops/downtime-keeper/internal/domain"
)

// Action is an optional prompt attached to a notification, rendered by the
// transport however it sees fit (inline keyboard, link, plain text).
type Action struct {
	Label string
	Data  string
}

// Message is the content of one outgoing notification.
type Message struct {
	Text     string
	MediaRef string
	ReplyTo  *domain.MessageRef
	Actions  []Action
}

// Notifier delivers and edits notifications. Both operations may fail;
// callers log and move on.
type Notifier interface {
	// Notify delivers msg to a recipient address and returns a handle the
	// delivered message can later be edited through.
	Notify(ctx context.Context, recipient string, msg Message) (domain.MessageRef, error)

	// Edit replaces the content of a previously delivered message.
	Edit(ctx context.Context, ref domain.MessageRef, msg Message) error
}
