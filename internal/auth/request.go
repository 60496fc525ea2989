package auth

import (
	"errors"
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// mobilePattern は国内11桁の携帯番号（01 + 9桁）です。
var mobilePattern = regexp.MustCompile(`^01[0-9]{9}$`)

var registerRulesOnce sync.Once

// LoginRequest は login のフォーム入力です。
type LoginRequest struct {
	Mobile   string `binding:"required"`
	Password string `binding:"required"`
	UserType string `binding:"required"`
}

// RegisterRequest は register のフォーム入力です。
type RegisterRequest struct {
	UserType string `binding:"required"`
	Name     string `binding:"required"`
	Mobile   string `binding:"required,bdmobile"`
	Password string `binding:"required,min=6"`
	Email    string
	Division string
	District string
	Upazila  string
	Address  string
}

func decodeLoginRequest(c *gin.Context) LoginRequest {
	return LoginRequest{
		Mobile:   sanitize(c.PostForm("mobile")),
		Password: c.PostForm("password"),
		UserType: sanitize(c.PostForm("user_type")),
	}
}

func decodeRegisterRequest(c *gin.Context) RegisterRequest {
	return RegisterRequest{
		UserType: sanitize(c.PostForm("user_type")),
		Name:     sanitize(c.PostForm("name")),
		Mobile:   sanitize(c.PostForm("mobile")),
		Password: c.PostForm("password"),
		Email:    sanitize(c.PostForm("email")),
		Division: sanitize(c.PostForm("division")),
		District: sanitize(c.PostForm("district")),
		Upazila:  sanitize(c.PostForm("upazila")),
		Address:  sanitize(c.PostForm("address")),
	}
}

// sanitize は自由入力の前後空白を除き、バックスラッシュを外し、HTML をエスケープします。
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = stripSlashes(s)
	return html.EscapeString(s)
}

func stripSlashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	escaped := false
	for _, r := range s {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}

// validate は gin の binding エンジンで構造体を検証し、失敗時は表示用メッセージを返します。
// 優先順位は 必須 → 携帯番号形式 → パスワード長。
func validate(req any, requiredMessage string) (string, bool) {
	registerRulesOnce.Do(registerRules)

	err := binding.Validator.ValidateStruct(req)
	if err == nil {
		return "", true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return requiredMessage, false
	}

	var badMobile, shortPassword bool
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			return requiredMessage, false
		case "bdmobile":
			badMobile = true
		case "min":
			shortPassword = true
		}
	}
	switch {
	case badMobile:
		return msgInvalidMobile, false
	case shortPassword:
		return msgPasswordTooShort, false
	default:
		return requiredMessage, false
	}
}

func registerRules() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	_ = v.RegisterValidation("bdmobile", func(fl validator.FieldLevel) bool {
		return mobilePattern.MatchString(fl.Field().String())
	})
}
