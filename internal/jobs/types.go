package jobs

import (
	"time"

	"github.com/yourusername/fishcare-api/internal/auth"
)

// Activity は携帯番号ごとの認証アクティビティの集計です。
type Activity struct {
	Mobile       string         `json:"mobile"`
	UserID       int64          `json:"userId,omitempty"`
	UserType     string         `json:"userType,omitempty"`
	LastEvent    auth.EventType `json:"lastEvent"`
	RegisteredAt time.Time      `json:"registeredAt,omitzero"`
	LastLoginAt  time.Time      `json:"lastLoginAt,omitzero"`
	LastLoginIP  string         `json:"lastLoginIp,omitempty"`
	LastLogoutAt time.Time      `json:"lastLogoutAt,omitzero"`
	LastFailedAt time.Time      `json:"lastFailedAt,omitzero"`
	FailedLogins int            `json:"failedLogins"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// apply はイベントを集計に反映します。
func (a *Activity) apply(event auth.Event) {
	a.Mobile = event.Mobile
	if event.UserID > 0 {
		a.UserID = event.UserID
	}
	if event.UserType != "" {
		a.UserType = event.UserType
	}
	a.LastEvent = event.Type

	switch event.Type {
	case auth.EventRegistered:
		a.RegisteredAt = event.OccurredAt
	case auth.EventLoginSucceeded:
		a.LastLoginAt = event.OccurredAt
		a.LastLoginIP = event.ClientIP
		a.FailedLogins = 0
	case auth.EventLoginFailed:
		a.LastFailedAt = event.OccurredAt
		a.FailedLogins++
	case auth.EventLoggedOut:
		a.LastLogoutAt = event.OccurredAt
	}
}
