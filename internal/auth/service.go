package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/fishcare-api/internal/users"
)

var (
	// ErrInvalidCredentials は該当ユーザーなし・パスワード不一致の両方で返ります。
	ErrInvalidCredentials = errors.New("invalid mobile or password")
	// ErrAccountInactive はアカウントが active でない場合に返ります。
	ErrAccountInactive = errors.New("account inactive")
	// ErrDuplicateMobile は携帯番号が登録済みの場合に返ります。
	ErrDuplicateMobile = users.ErrDuplicateMobile
	// ErrRegisterFailed はユーザーを作成できなかった場合に返ります。
	ErrRegisterFailed = errors.New("account could not be created")
)

// 存在しないユーザーでも bcrypt 比較を1回行うためのダミーパスワード
const dummyPassword = "fishcare-timing-equalizer"

// Service は資格情報の検証と登録を行います。
type Service struct {
	users     users.Store
	cost      int
	dummyHash []byte
}

// NewService は Service を作成します。
func NewService(store users.Store, bcryptCost int) *Service {
	s := &Service{users: store, cost: bcryptCost}
	if hash, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), bcryptCost); err == nil {
		s.dummyHash = hash
	}
	return s
}

// Authenticate は携帯番号・種別・パスワードを検証します。
// 状態チェックはパスワード検証より先に行います。
func (s *Service) Authenticate(ctx context.Context, req LoginRequest) (*users.User, error) {
	user, err := s.users.FindByMobileAndType(ctx, req.Mobile, req.UserType)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			s.burnComparison(req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !user.IsActive() {
		return nil, ErrAccountInactive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Register はユーザーを作成し、採番されたIDを返します。
func (s *Service) Register(ctx context.Context, req RegisterRequest) (int64, error) {
	exists, err := s.users.ExistsByMobile(ctx, req.Mobile)
	if err != nil {
		return 0, fmt.Errorf("check mobile: %w", err)
	}
	if exists {
		return 0, ErrDuplicateMobile
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return 0, errors.Join(ErrRegisterFailed, err)
	}

	id, err := s.users.Create(ctx, users.NewUser{
		UserType:     req.UserType,
		Name:         req.Name,
		Mobile:       req.Mobile,
		PasswordHash: string(hash),
		Email:        req.Email,
		Division:     req.Division,
		District:     req.District,
		Upazila:      req.Upazila,
		Address:      req.Address,
	})
	if err != nil {
		if errors.Is(err, users.ErrDuplicateMobile) {
			return 0, ErrDuplicateMobile
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	if id <= 0 {
		return 0, ErrRegisterFailed
	}
	return id, nil
}

func (s *Service) burnComparison(password string) {
	if s.dummyHash == nil {
		return
	}
	_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
}
