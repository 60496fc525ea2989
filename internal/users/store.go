package users

import (
	"context"
	"errors"
)

var (
	// ErrNotFound は該当するユーザーが存在しない場合に返ります。
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateMobile は携帯番号が既に登録済みの場合に返ります。
	ErrDuplicateMobile = errors.New("mobile already registered")
)

// Store はユーザーレコードへのアクセスを抽象化します。
type Store interface {
	// FindByMobileAndType は携帯番号とユーザー種別が一致するユーザーを返します。
	FindByMobileAndType(ctx context.Context, mobile, userType string) (*User, error)
	// ExistsByMobile は携帯番号が登録済みかどうかを返します（種別は問いません）。
	ExistsByMobile(ctx context.Context, mobile string) (bool, error)
	// Create はユーザーを挿入し、採番されたIDを返します。
	Create(ctx context.Context, user NewUser) (int64, error)
}
