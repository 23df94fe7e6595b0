// Package notify delivers user-visible success, warning and error messages.
package notify

import (
	"context"
	"time"

	"nexus/internal/websocket"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level     `json:"level"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Sink accepts notifications for a user. Delivery is best effort.
type Sink interface {
	Notify(ctx context.Context, userID uuid.UUID, n Notification)
}

// UserPublisher pushes an event to one user's open connections.
type UserPublisher interface {
	SendToUser(userID uuid.UUID, event websocket.Event)
}

// HubSink pushes notifications over the realtime hub and logs them.
type HubSink struct {
	hub UserPublisher
	log *zap.Logger
}

func NewHubSink(hub UserPublisher, log *zap.Logger) *HubSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &HubSink{hub: hub, log: log}
}

func (s *HubSink) Notify(_ context.Context, userID uuid.UUID, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now()
	}
	s.hub.SendToUser(userID, websocket.Event{Type: websocket.EventNotification, Payload: n, At: n.At})

	fields := []zap.Field{
		zap.String("user_id", userID.String()),
		zap.String("level", string(n.Level)),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	}
	if n.Level == LevelError || n.Level == LevelWarning {
		s.log.Warn("user notified", fields...)
		return
	}
	s.log.Debug("user notified", fields...)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, uuid.UUID, Notification) {}

func Success(title, message string) Notification {
	return Notification{Level: LevelSuccess, Title: title, Message: message}
}

func Warning(title, message string) Notification {
	return Notification{Level: LevelWarning, Title: title, Message: message}
}

func Error(title, message string) Notification {
	return Notification{Level: LevelError, Title: title, Message: message}
}
