package itemapprove

import (
	"context"
	"errors"
	"fmt"
)

// Notification is the user-visible message for one terminal failure.
type Notification struct {
	Title       string
	Description string
	Type        string
	StatusCode  int
	RequestID   string
}

// Notifier receives one Notification per terminal, non-suppressed failure.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

func (f NotifierFunc) Notify(ctx context.Context, n Notification) {
	f(ctx, n)
}

// LogNotifier writes notifications to a Logger. It is the default sink.
type LogNotifier struct {
	Logger Logger
}

func (l LogNotifier) Notify(_ context.Context, n Notification) {
	if l.Logger == nil {
		return
	}
	l.Logger.Error(n.Title,
		"description", n.Description,
		"type", n.Type,
		"status", n.StatusCode,
		"requestID", n.RequestID,
	)
}

// NotificationFor builds the notification text for a classified error.
func NotificationFor(err *RequestError) Notification {
	n := Notification{
		Type:       err.Type,
		StatusCode: err.StatusCode,
		RequestID:  err.RequestID,
	}
	switch err.Type {
	case ErrorTypeNetwork:
		n.Title = "Network error"
		if errors.Is(err.Cause, ErrTimeout) {
			n.Description = "The request timed out. Please try again."
		} else {
			n.Description = "Unable to reach the server. Please check your network connection."
		}
	case ErrorTypeHTTPStatus:
		n.Title = fmt.Sprintf("Request error %d", err.StatusCode)
		n.Description = err.Message
	case ErrorTypeBusiness:
		n.Title = "Request failed"
		n.Description = err.Message
	default:
		n.Title = "Request error"
		n.Description = err.Message
	}
	return n
}
