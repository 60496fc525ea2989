package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/fishcare-api/internal/auth"
	"github.com/yourusername/fishcare-api/internal/config"
	"github.com/yourusername/fishcare-api/internal/logging"
	"github.com/yourusername/fishcare-api/internal/users"
)

func testConfig(store string) *config.Config {
	return &config.Config{
		GinMode:            "test",
		CORSAllowedOrigins: "http://localhost:5173",
		SessionStore:       store,
		SessionSecret:      "0123456789abcdef0123456789abcdef",
		SessionMaxLifetime: 12 * time.Hour,
		BcryptCost:         bcrypt.MinCost,
	}
}

func newTestRouter(t *testing.T, cfg *config.Config, limiter auth.AttemptLimiter) http.Handler {
	t.Helper()
	logger := logging.Discard()
	store, err := newSessionStore(cfg, logger)
	if err != nil {
		t.Fatalf("newSessionStore returned error: %v", err)
	}
	manager := auth.NewManager(auth.NewService(users.NewMemoryStore(), cfg.BcryptCost), limiter, nil, logger, auth.Options{})
	router, err := newRouter(cfg, logger, store, manager)
	if err != nil {
		t.Fatalf("newRouter returned error: %v", err)
	}
	return router
}

var karimForm = url.Values{
	"user_type": {"farmer"},
	"name":      {"Karim"},
	"mobile":    {"01712345678"},
	"password":  {"secret1"},
}

func serve(router http.Handler, method, action string, form url.Values, cookie *http.Cookie, header http.Header) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, "/api/auth?action="+action, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.SessionCookieName {
			return ck
		}
	}
	t.Fatalf("expected %s cookie in response", auth.SessionCookieName)
	return nil
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, status string) {
	t.Helper()
	if !strings.Contains(rec.Body.String(), `"status":"`+status+`"`) {
		t.Fatalf("expected %s envelope, got %s", status, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, testConfig(config.SessionStoreMemory), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %#v", body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestRouterSessionStores(t *testing.T) {
	for _, storeName := range []string{config.SessionStoreCookie, config.SessionStoreMemory} {
		t.Run(storeName, func(t *testing.T) {
			router := newTestRouter(t, testConfig(storeName), nil)

			expectStatus(t, serve(router, http.MethodPost, "register", karimForm, nil, nil), "success")
			loginRec := serve(router, http.MethodPost, "login", karimForm, nil, nil)
			expectStatus(t, loginRec, "success")

			ck := sessionCookie(t, loginRec)
			if !ck.HttpOnly || ck.SameSite != http.SameSiteLaxMode || ck.MaxAge <= 0 {
				t.Fatalf("unexpected cookie attributes: %#v", ck)
			}

			rec := serve(router, http.MethodGet, "check_session", nil, ck, nil)
			if !strings.Contains(rec.Body.String(), `"message":"Session active"`) {
				t.Fatalf("check_session failed: %s", rec.Body.String())
			}
		})
	}
}

func TestRedisSessionStore(t *testing.T) {
	tests := []struct {
		name     string
		lifetime time.Duration
		idle     time.Duration
	}{
		{name: "with lifetime", lifetime: 12 * time.Hour, idle: 30 * time.Minute},
		{name: "lifetime disabled", lifetime: 0, idle: 30 * time.Minute},
		{name: "all limits disabled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			cfg := testConfig(config.SessionStoreRedis)
			cfg.SessionRedisURL = "redis://" + mr.Addr()
			cfg.SessionMaxLifetime = tt.lifetime
			cfg.SessionIdleTimeout = tt.idle
			router := newTestRouter(t, cfg, nil)

			expectStatus(t, serve(router, http.MethodPost, "register", karimForm, nil, nil), "success")
			loginRec := serve(router, http.MethodPost, "login", karimForm, nil, nil)
			expectStatus(t, loginRec, "success")

			ck := sessionCookie(t, loginRec)
			if ck.Value == "" || ck.MaxAge <= 0 {
				t.Fatalf("login should issue a persistent session cookie, got %#v", ck)
			}
			keys := mr.Keys()
			if len(keys) != 1 || !strings.HasPrefix(keys[0], "session_") {
				t.Fatalf("expected one session key in redis, got %v", keys)
			}
			if ttl := mr.TTL(keys[0]); ttl <= 0 {
				t.Fatalf("session key should expire, ttl=%v", ttl)
			}

			rec := serve(router, http.MethodGet, "check_session", nil, ck, nil)
			if !strings.Contains(rec.Body.String(), `"message":"Session active"`) {
				t.Fatalf("check_session failed: %s", rec.Body.String())
			}

			expectStatus(t, serve(router, http.MethodPost, "logout", nil, ck, nil), "success")
			if keys := mr.Keys(); len(keys) != 0 {
				t.Fatalf("logout should delete the session from redis, got %v", keys)
			}

			// ログアウト前のクッキーを再送してもセッションは戻らない
			rec = serve(router, http.MethodGet, "check_session", nil, ck, nil)
			if !strings.Contains(rec.Body.String(), `"message":"No active session"`) {
				t.Fatalf("replayed cookie must not restore the session: %s", rec.Body.String())
			}
		})
	}
}

func TestMemorySessionReplayAfterLogout(t *testing.T) {
	router := newTestRouter(t, testConfig(config.SessionStoreMemory), nil)

	serve(router, http.MethodPost, "register", karimForm, nil, nil)
	ck := sessionCookie(t, serve(router, http.MethodPost, "login", karimForm, nil, nil))

	expectStatus(t, serve(router, http.MethodPost, "logout", nil, ck, nil), "success")

	rec := serve(router, http.MethodGet, "check_session", nil, ck, nil)
	if !strings.Contains(rec.Body.String(), `"message":"No active session"`) {
		t.Fatalf("replayed cookie must not restore the session: %s", rec.Body.String())
	}
}

func TestCookieSessionIsEncrypted(t *testing.T) {
	router := newTestRouter(t, testConfig(config.SessionStoreCookie), nil)

	serve(router, http.MethodPost, "register", karimForm, nil, nil)
	ck := sessionCookie(t, serve(router, http.MethodPost, "login", karimForm, nil, nil))

	outer, err := base64.URLEncoding.DecodeString(ck.Value)
	if err != nil {
		t.Fatalf("failed to decode cookie: %v", err)
	}
	parts := bytes.SplitN(outer, []byte("|"), 3)
	if len(parts) != 3 {
		t.Fatalf("unexpected cookie layout: %q", outer)
	}
	payload, err := base64.URLEncoding.DecodeString(string(parts[1]))
	if err != nil {
		t.Fatalf("failed to decode cookie payload: %v", err)
	}
	for _, plain := range []string{"Karim", "01712345678", "farmer"} {
		if bytes.Contains(payload, []byte(plain)) {
			t.Fatalf("cookie payload must be encrypted, found %q", plain)
		}
	}
}

func TestForwardedForIsIgnoredForThrottling(t *testing.T) {
	limiter := auth.NewMemoryLimiter(auth.LimiterPolicy{MaxAttempts: 3, Window: time.Minute, LockDuration: time.Minute})
	router := newTestRouter(t, testConfig(config.SessionStoreMemory), limiter)

	serve(router, http.MethodPost, "register", karimForm, nil, nil)

	wrong := url.Values{"mobile": {"01712345678"}, "password": {"wrong"}, "user_type": {"farmer"}}
	locked := 0
	for i := 0; i < 6; i++ {
		header := http.Header{"X-Forwarded-For": {fmt.Sprintf("10.0.0.%d", i)}}
		rec := serve(router, http.MethodPost, "login", wrong, nil, header)
		if rec.Header().Get("Retry-After") != "" {
			locked++
		}
	}
	if locked != 3 {
		t.Fatalf("expected the last 3 attempts to be locked, got %d", locked)
	}
}

func TestNewRouterRejectsInvalidTrustedProxies(t *testing.T) {
	cfg := testConfig(config.SessionStoreMemory)
	cfg.TrustedProxies = []string{"not-an-ip"}
	logger := logging.Discard()

	store, err := newSessionStore(cfg, logger)
	if err != nil {
		t.Fatalf("newSessionStore returned error: %v", err)
	}
	manager := auth.NewManager(auth.NewService(users.NewMemoryStore(), cfg.BcryptCost), nil, nil, logger, auth.Options{})
	if _, err := newRouter(cfg, logger, store, manager); err == nil {
		t.Fatal("expected error for invalid trusted proxy")
	}
}

func TestSessionMaxAge(t *testing.T) {
	tests := []struct {
		lifetime, idle, want time.Duration
	}{
		{lifetime: time.Hour, idle: time.Minute, want: time.Hour},
		{lifetime: 0, idle: 30 * time.Minute, want: 30 * time.Minute},
		{lifetime: 0, idle: 0, want: defaultSessionMaxAge},
	}
	for _, tt := range tests {
		cfg := &config.Config{SessionMaxLifetime: tt.lifetime, SessionIdleTimeout: tt.idle}
		if got := sessionMaxAge(cfg); got != tt.want {
			t.Fatalf("sessionMaxAge(%v, %v) = %v, want %v", tt.lifetime, tt.idle, got, tt.want)
		}
	}
}

func TestNewSessionStoreWithoutSecret(t *testing.T) {
	cfg := testConfig(config.SessionStoreMemory)
	cfg.SessionSecret = ""
	if _, err := newSessionStore(cfg, logging.Discard()); err != nil {
		t.Fatalf("newSessionStore returned error: %v", err)
	}
}
