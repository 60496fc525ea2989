// Package auth は携帯番号とパスワードによるセッション認証を提供します。
package auth

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Options はセッション寿命とエラー表示の設定です。
type Options struct {
	MaxLifetime       time.Duration // 0 で無効
	IdleTimeout       time.Duration // 0 で無効
	ExposeStoreErrors bool
}

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	service   *Service
	limiter   AttemptLimiter
	publisher EventPublisher
	logger    *slog.Logger
	opts      Options
	now       func() time.Time
}

// NewManager は認証マネージャーを作成します。limiter が nil の場合はスロットリングしません。
func NewManager(service *Service, limiter AttemptLimiter, publisher EventPublisher, logger *slog.Logger, opts Options) *Manager {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		service:   service,
		limiter:   limiter,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

func (m *Manager) login(c *gin.Context) {
	req := decodeLoginRequest(c)
	if msg, ok := validate(&req, msgLoginRequired); !ok {
		respondError(c, msg)
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()
	if retryAfter := m.checkLock(ctx, ip); retryAfter > 0 {
		c.Header("Retry-After", retryAfterSeconds(retryAfter))
		respondError(c, msgTooManyTries)
		return
	}

	user, err := m.service.Authenticate(ctx, req)
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		m.recordFailure(ctx, ip)
		m.publish(ctx, Event{Type: EventLoginFailed, Mobile: req.Mobile, UserType: req.UserType, ClientIP: ip})
		respondError(c, msgBadCredentials)
		return
	case errors.Is(err, ErrAccountInactive):
		respondError(c, msgInactive)
		return
	case err != nil:
		m.respondStoreError(c, ActionLogin, err)
		return
	}

	m.resetAttempts(ctx, ip)

	identity := Identity{
		UserID:   user.ID,
		UserType: user.UserType,
		Name:     user.Name,
		Mobile:   user.Mobile,
		Division: user.Division,
		District: user.District,
		Upazila:  user.Upazila,
	}
	if err := saveIdentity(sessions.Default(c), identity, m.now()); err != nil {
		m.logger.ErrorContext(ctx, "failed to save session", "action", ActionLogin, "error", err)
		respondError(c, msgSessionError)
		return
	}

	m.publish(ctx, Event{Type: EventLoginSucceeded, UserID: user.ID, Mobile: user.Mobile, UserType: user.UserType, ClientIP: ip})
	respondSuccess(c, msgLoginSuccess, LoginData{
		ID:       user.ID,
		UserType: user.UserType,
		Name:     user.Name,
		Mobile:   user.Mobile,
		Division: user.Division,
		District: user.District,
		Upazila:  user.Upazila,
	})
}

func (m *Manager) register(c *gin.Context) {
	req := decodeRegisterRequest(c)
	if msg, ok := validate(&req, msgRegisterRequired); !ok {
		respondError(c, msg)
		return
	}

	ctx := c.Request.Context()
	id, err := m.service.Register(ctx, req)
	switch {
	case errors.Is(err, ErrDuplicateMobile):
		respondError(c, msgDuplicateMobile)
		return
	case errors.Is(err, ErrRegisterFailed):
		m.logger.WarnContext(ctx, "register failed", "error", err)
		respondError(c, msgRegisterFailed)
		return
	case err != nil:
		m.respondStoreError(c, ActionRegister, err)
		return
	}

	m.publish(ctx, Event{Type: EventRegistered, UserID: id, Mobile: req.Mobile, UserType: req.UserType, ClientIP: c.ClientIP()})
	respondSuccess(c, msgRegisterSuccess, RegisterData{UserID: id})
}

func (m *Manager) logout(c *gin.Context) {
	session := sessions.Default(c)
	identity, loggedIn := loadIdentity(session)

	if err := clearSession(session); err != nil {
		m.logger.ErrorContext(c.Request.Context(), "failed to clear session", "action", ActionLogout, "error", err)
		respondError(c, msgSessionError)
		return
	}

	if loggedIn {
		m.publish(c.Request.Context(), Event{
			Type:     EventLoggedOut,
			UserID:   identity.UserID,
			Mobile:   identity.Mobile,
			UserType: identity.UserType,
			ClientIP: c.ClientIP(),
		})
	}
	respondSuccess(c, msgLogoutSuccess, nil)
}

func (m *Manager) checkSession(c *gin.Context) {
	session := sessions.Default(c)
	identity, ok := loadIdentity(session)
	if !ok {
		respondError(c, msgNoSession)
		return
	}

	now := m.now()
	if m.expired(session, now) {
		if err := clearSession(session); err != nil {
			m.logger.WarnContext(c.Request.Context(), "failed to clear expired session", "error", err)
		}
		respondError(c, msgNoSession)
		return
	}

	session.Set(sessionKeyLastActive, now.Unix())
	if err := session.Save(); err != nil {
		m.logger.WarnContext(c.Request.Context(), "failed to refresh session activity", "error", err)
	}

	respondSuccess(c, msgSessionActive, SessionData{
		ID:       identity.UserID,
		UserType: identity.UserType,
		Name:     identity.Name,
		Mobile:   identity.Mobile,
	})
}

// expired は最大有効期間または無操作タイムアウトを超えたかを判定します。
func (m *Manager) expired(session sessions.Session, now time.Time) bool {
	if m.opts.MaxLifetime > 0 {
		issuedAt := readUnix(session.Get(sessionKeyIssuedAt))
		if issuedAt.IsZero() || now.Sub(issuedAt) > m.opts.MaxLifetime {
			return true
		}
	}
	if m.opts.IdleTimeout > 0 {
		lastActive := readUnix(session.Get(sessionKeyLastActive))
		if lastActive.IsZero() || now.Sub(lastActive) > m.opts.IdleTimeout {
			return true
		}
	}
	return false
}

func (m *Manager) respondStoreError(c *gin.Context, action Action, err error) {
	m.logger.ErrorContext(c.Request.Context(), "store failure", "action", action, "error", err)
	_ = c.Error(err)
	if m.opts.ExposeStoreErrors {
		respondError(c, msgDatabaseError+": "+err.Error())
		return
	}
	respondError(c, msgDatabaseError)
}

// Redis 障害時はスロットリングを諦めてログインを通す
func (m *Manager) checkLock(ctx context.Context, key string) time.Duration {
	if m.limiter == nil {
		return 0
	}
	retryAfter, err := m.limiter.Locked(ctx, key)
	if err != nil {
		m.logger.WarnContext(ctx, "login limiter unavailable", "error", err)
		return 0
	}
	return retryAfter
}

func (m *Manager) recordFailure(ctx context.Context, key string) {
	if m.limiter == nil {
		return
	}
	if _, err := m.limiter.Fail(ctx, key); err != nil {
		m.logger.WarnContext(ctx, "failed to record login failure", "error", err)
	}
}

func (m *Manager) resetAttempts(ctx context.Context, key string) {
	if m.limiter == nil {
		return
	}
	if err := m.limiter.Reset(ctx, key); err != nil {
		m.logger.WarnContext(ctx, "failed to reset login attempts", "error", err)
	}
}

func (m *Manager) publish(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = m.now().UTC()
	}
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "failed to publish auth event", "type", event.Type, "error", err)
	}
}

// retryAfterSeconds は残り時間を秒に切り上げます。1秒未満でも 0 にはしません。
func retryAfterSeconds(d time.Duration) string {
	return strconv.FormatInt(int64(math.Ceil(d.Seconds())), 10)
}
