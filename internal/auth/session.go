package auth

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
)

const (
	SessionCookieName = "fc_session"

	sessionKeyUserID     = "user_id"
	sessionKeyUserType   = "user_type"
	sessionKeyName       = "name"
	sessionKeyMobile     = "mobile"
	sessionKeyDivision   = "division"
	sessionKeyDistrict   = "district"
	sessionKeyUpazila    = "upazila"
	sessionKeyIssuedAt   = "issued_at"
	sessionKeyLastActive = "last_activity"
)

// Identity はログイン時にセッションへ複製するユーザー情報です。
type Identity struct {
	UserID   int64
	UserType string
	Name     string
	Mobile   string
	Division string
	District string
	Upazila  string
}

// CookieOptions はセッションクッキーの属性を返します。maxLifetime が 0 の場合はブラウザセッション限りです（redis/memory ストアでは削除扱いになるため正の値を渡すこと）。
func CookieOptions(maxLifetime time.Duration, secure bool) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   int(maxLifetime.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func saveIdentity(session sessions.Session, id Identity, now time.Time) error {
	session.Clear()
	session.Set(sessionKeyUserID, id.UserID)
	session.Set(sessionKeyUserType, id.UserType)
	session.Set(sessionKeyName, id.Name)
	session.Set(sessionKeyMobile, id.Mobile)
	session.Set(sessionKeyDivision, id.Division)
	session.Set(sessionKeyDistrict, id.District)
	session.Set(sessionKeyUpazila, id.Upazila)
	session.Set(sessionKeyIssuedAt, now.Unix())
	session.Set(sessionKeyLastActive, now.Unix())
	return session.Save()
}

func loadIdentity(session sessions.Session) (Identity, bool) {
	userID, ok := readInt64(session.Get(sessionKeyUserID))
	if !ok || userID <= 0 {
		return Identity{}, false
	}
	return Identity{
		UserID:   userID,
		UserType: readString(session.Get(sessionKeyUserType)),
		Name:     readString(session.Get(sessionKeyName)),
		Mobile:   readString(session.Get(sessionKeyMobile)),
		Division: readString(session.Get(sessionKeyDivision)),
		District: readString(session.Get(sessionKeyDistrict)),
		Upazila:  readString(session.Get(sessionKeyUpazila)),
	}, true
}

// clearSession はセッションを空にし、MaxAge=-1 でストア側のレコードも削除させます。
// cookie ストアでは発行済みクッキー自体は失効できません。
func clearSession(session sessions.Session) error {
	session.Clear()
	session.Options(sessions.Options{
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return session.Save()
}

func readString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func readInt64(v interface{}) (int64, bool) {
	switch t := v.(type) {
	case int64:
		return t, true
	case int:
		return int64(t), true
	case float64:
		return int64(t), true
	default:
		return 0, false
	}
}

func readUnix(v interface{}) time.Time {
	n, ok := readInt64(v)
	if !ok {
		return time.Time{}
	}
	return time.Unix(n, 0)
}
