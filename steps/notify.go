package steps

import (
	"context"
	"fmt"

	"github.com/Yosef-Ali/erpnext-workflows/stream"
)

// Notification kinds understood by the canvas UI.
const (
	NotifyInfo    = "info"
	NotifySuccess = "success"
	NotifyWarning = "warning"
	NotifyError   = "error"
)

// Notification is the transport-neutral payload handed to a Notifier.
type Notification struct {
	Subject   string
	Body      string
	Recipient string
	Kind      string
}

// Notifier delivers notifications to an external channel (ERP notification
// log, email, chat). Implementations return the created notification's id.
type Notifier interface {
	Notify(ctx context.Context, n Notification) (id string, err error)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) (string, error)

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) (string, error) {
	return f(ctx, n)
}

// Message is an in-band notification for whoever is watching the run.
type Message struct {
	Type        string
	Title       string
	Message     string
	ActionURL   string
	ActionLabel string
	Recipient   string
}

// NotifyResult reports where a notification went.
type NotifyResult struct {
	Success        bool
	NotificationID string
	Err            error
}

// Notify pushes a notification frame onto the run's event stream and
// forwards it to the notifier when one is configured. Either destination may
// be nil; with no notifier the stream frame alone counts as delivered.
func Notify(ctx context.Context, msg Message, emitter stream.Sink, notifier Notifier) NotifyResult {
	kind := msg.Type
	if kind == "" {
		kind = NotifyInfo
	}
	if emitter != nil {
		_ = emitter.Send(ctx, stream.Event{
			Type:      stream.EventNotification,
			Timestamp: stream.Now(),
			Notify: &stream.Notification{
				NotificationType: kind,
				Title:            msg.Title,
				Message:          msg.Message,
				ActionURL:        msg.ActionURL,
				ActionLabel:      msg.ActionLabel,
			},
		})
	}
	if notifier == nil {
		return NotifyResult{Success: true}
	}

	recipient := msg.Recipient
	if recipient == "" {
		recipient = DefaultEscalationRecipient
	}
	id, err := notifier.Notify(ctx, Notification{
		Subject:   msg.Title,
		Body:      msg.Message,
		Recipient: recipient,
		Kind:      kind,
	})
	if err != nil {
		return NotifyResult{Err: fmt.Errorf("failed to send notification: %w", err)}
	}
	return NotifyResult{Success: true, NotificationID: id}
}
