package auth

import (
	"context"
	"time"
)

// EventType は認証アクティビティの種類です。
type EventType string

const (
	EventLoginSucceeded EventType = "login_succeeded"
	EventLoginFailed    EventType = "login_failed"
	EventRegistered     EventType = "registered"
	EventLoggedOut      EventType = "logged_out"
)

// Event は非同期に記録する認証アクティビティです。
type Event struct {
	Type       EventType `json:"type"`
	UserID     int64     `json:"userId,omitempty"`
	Mobile     string    `json:"mobile"`
	UserType   string    `json:"userType,omitempty"`
	ClientIP   string    `json:"clientIp,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventPublisher はイベントをキューへ送ります。失敗してもリクエストは継続します。
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher はイベントを捨てます。
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, Event) error { return nil }
