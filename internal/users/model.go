// Package users はユーザーレコードの永続化（User Store）を提供します。
package users

import "time"

// Status はアカウントの状態を表します。
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// User は users テーブルの1行です。
type User struct {
	ID           int64
	UserType     string
	Name         string
	Mobile       string
	Email        string
	Division     string
	District     string
	Upazila      string
	Address      string
	PasswordHash string
	Status       Status
	CreatedAt    time.Time
}

// IsActive はログイン可能な状態かどうかを返します。
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}

// NewUser は登録時に挿入する値です。status はストア側の既定値に任せます。
type NewUser struct {
	UserType     string
	Name         string
	Mobile       string
	PasswordHash string
	Email        string
	Division     string
	District     string
	Upazila      string
	Address      string
}
