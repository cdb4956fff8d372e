// Package mq publishes account lifecycle events to a message broker so other
// services (for example the task service) can react to registrations and
// deletions. The broker is optional; without one the service runs standalone.
package mq

import (
	"context"
	"encoding/json"
	"time"
)

// Event channel for account lifecycle notifications.
const AccountEventsChannel = "account-events"

// Event types.
const (
	EventAccountRegistered = "account.registered"
	EventAccountDeleted    = "account.deleted"
)

// Event describes one account lifecycle change.
type Event struct {
	Type       string    `json:"type"`
	UserID     int       `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// PublishEvent sends an account event to the account-events channel. The
// event type is duplicated into the message attributes so consumers can
// filter without decoding the body.
func (m *MQ) PublishEvent(ctx context.Context, event Event) (string, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	return m.backend.Publish(ctx, AccountEventsChannel, data, map[string]string{"type": event.Type})
}

// Subscribe consumes account events.
func (m *MQ) Subscribe(ctx context.Context, handler Handler) error {
	return m.backend.Subscribe(ctx, AccountEventsChannel, handler)
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
