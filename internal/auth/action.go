package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Action は action パラメーターで選択する操作です。
type Action string

const (
	ActionLogin        Action = "login"
	ActionRegister     Action = "register"
	ActionLogout       Action = "logout"
	ActionCheckSession Action = "check_session"
)

type route struct {
	postOnly bool
	handle   func(m *Manager, c *gin.Context)
}

var routes = map[Action]route{
	ActionLogin:        {postOnly: true, handle: (*Manager).login},
	ActionRegister:     {postOnly: true, handle: (*Manager).register},
	ActionLogout:       {handle: (*Manager).logout},
	ActionCheckSession: {handle: (*Manager).checkSession},
}

// ParseAction は文字列を Action に変換します。未知の値は false を返します。
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := routes[a]
	return a, ok
}

// Dispatch は /api/auth?action=... と /api/auth/:action のハンドラーです。
func (m *Manager) Dispatch(c *gin.Context) {
	name := c.Param("action")
	if name == "" {
		name = c.Query("action")
	}

	action, ok := ParseAction(name)
	if !ok {
		respondError(c, msgInvalidAction)
		return
	}

	r := routes[action]
	if r.postOnly && c.Request.Method != http.MethodPost {
		respondError(c, msgInvalidMethod)
		return
	}
	r.handle(m, c)
}

// RegisterRoutes は認証エンドポイントをグループに登録します。
func (m *Manager) RegisterRoutes(group *gin.RouterGroup) {
	group.Any("/auth", m.Dispatch)
	group.Any("/auth/:action", m.Dispatch)
}
