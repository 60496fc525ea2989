package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 応答の status 値
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope は全アクション共通のレスポンス形式です。
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// LoginData は login 成功時に返すユーザー情報です（パスワードとメールは含めない）。
type LoginData struct {
	ID       int64  `json:"id"`
	UserType string `json:"user_type"`
	Name     string `json:"name"`
	Mobile   string `json:"mobile"`
	Division string `json:"division"`
	District string `json:"district"`
	Upazila  string `json:"upazila"`
}

// SessionData は check_session で返すセッション情報です。
type SessionData struct {
	ID       int64  `json:"id"`
	UserType string `json:"user_type"`
	Name     string `json:"name"`
	Mobile   string `json:"mobile"`
}

// RegisterData は register 成功時の応答です。
type RegisterData struct {
	UserID int64 `json:"user_id"`
}

// HTTP ステータスは常に 200。結果は本文の status で表す。
func respond(c *gin.Context, status, message string, data any) {
	c.JSON(http.StatusOK, Envelope{
		Status:  status,
		Message: message,
		Data:    data,
	})
}

func respondSuccess(c *gin.Context, message string, data any) {
	respond(c, StatusSuccess, message, data)
}

func respondError(c *gin.Context, message string) {
	respond(c, StatusError, message, nil)
}
