package middleware

import (
	"net/http"

	"showcase/internal/identity"
	"showcase/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	ResolutionKey    = "identity"
	SessionUserKey   = "user_id" // 浏览器登录后写入 session 的用户 ID
	SessionRoleKey   = "role"
	VisitorCookie    = "visitorId"
	visitorCookieAge = 5 * 365 * 24 * 60 * 60
)

type CookieOptions struct {
	Secure bool
}

// ResolveIdentity 解析当前请求的投票身份：
// Bearer token > 浏览器 session > 匿名 visitorId cookie（缺失时签发）
func ResolveIdentity(tokens *identity.Tokens, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID, role string

		if raw, ok := identity.BearerToken(c.GetHeader("Authorization")); ok {
			// 无效或过期的 token 视为未登录
			if claims, err := tokens.Verify(raw); err == nil {
				userID = claims.UserID
				role = claims.Role
			}
		}

		if userID == "" {
			session := sessions.Default(c)
			if v, ok := session.Get(SessionUserKey).(string); ok && v != "" {
				userID = v
				role, _ = session.Get(SessionRoleKey).(string)
			}
		}

		visitorID, err := c.Cookie(VisitorCookie)
		isNew := false
		if err != nil || !identity.ValidVisitorID(visitorID) {
			visitorID = identity.NewVisitorID()
			isNew = true
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(VisitorCookie, visitorID, visitorCookieAge, "/", "", opts.Secure, true)
		}

		res := identity.Resolution{Role: role, IsNewVisitor: isNew}
		if userID != "" {
			res.Identity = identity.Authenticated(userID, visitorID)
		} else {
			res.Identity = identity.Anonymous(visitorID)
		}
		c.Set(ResolutionKey, res)
		c.Next()
	}
}

// CurrentResolution 返回 ResolveIdentity 写入的身份；未经过该中间件时为零值
func CurrentResolution(c *gin.Context) identity.Resolution {
	if v, ok := c.Get(ResolutionKey); ok {
		if res, ok := v.(identity.Resolution); ok {
			return res
		}
	}
	return identity.Resolution{}
}

// AuthRequired ensures the request carries a logged-in user
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentResolution(c).Identity.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请先登录", "code": "UNAUTHORIZED"})
			return
		}
		c.Next()
	}
}

func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		res := CurrentResolution(c)
		if !res.Identity.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "请先登录", "code": "UNAUTHORIZED"})
			return
		}
		if res.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "需要管理员权限", "code": "FORBIDDEN"})
			return
		}
		c.Next()
	}
}
