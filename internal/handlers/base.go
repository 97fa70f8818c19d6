package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"showcase/internal/middleware"
	"showcase/internal/models"
	"showcase/internal/services"

	"github.com/gin-gonic/gin"
)

// Render helper to inject the resolved identity into every page
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}

	res := middleware.CurrentResolution(c)
	obj["IsLoggedIn"] = res.Identity.IsAuthenticated()
	obj["IsAdmin"] = res.Role == models.RoleAdmin
	obj["CurrentPath"] = c.Request.URL.Path

	c.HTML(code, name, obj)
}

// RenderError 简单错误页
func RenderError(c *gin.Context, code int, message string) {
	Render(c, code, "error.html", gin.H{"Error": message})
}

func isHTMX(c *gin.Context) bool {
	return c.GetHeader("HX-Request") == "true"
}

// triggerError 通过 HX-Trigger 让前端弹出错误提示
func triggerError(c *gin.Context, message string) {
	payload := map[string]interface{}{
		"show-error": map[string]string{
			"message": message,
		},
	}
	if jsonBytes, err := json.Marshal(payload); err == nil {
		c.Header("HX-Trigger", url.PathEscape(string(jsonBytes)))
	}
}

func abortJSON(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

var serviceErrors = []struct {
	err     error
	status  int
	code    string
	message string
}{
	{services.ErrProjectNotFound, http.StatusNotFound, services.CodeProjectNotFound, "项目不存在"},
	{services.ErrUserNotFound, http.StatusNotFound, services.CodeUserNotFound, "用户不存在"},
	{services.ErrBootcampNotFound, http.StatusNotFound, "BOOTCAMP_NOT_FOUND", "训练营不存在"},
	{services.ErrSubmissionClosed, http.StatusForbidden, "SUBMISSION_CLOSED", "提交已截止，无法提交作品"},
	{services.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "没有权限执行该操作"},
	{services.ErrUsernameTaken, http.StatusConflict, "USERNAME_TAKEN", "该用户名或邮箱已被注册"},
	{services.ErrBadCredentials, http.StatusUnauthorized, "BAD_CREDENTIALS", "用户名或密码错误"},
	{services.ErrWrongPassword, http.StatusUnauthorized, "WRONG_PASSWORD", "旧密码不正确"},
}

// respondError 将 service 层错误转换为 JSON 响应；未知错误记录日志并返回 500
func respondError(c *gin.Context, err error) {
	if errors.Is(err, services.ErrInvalidInput) {
		msg := strings.TrimPrefix(err.Error(), services.ErrInvalidInput.Error()+": ")
		abortJSON(c, http.StatusBadRequest, "INVALID_INPUT", msg)
		return
	}
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			abortJSON(c, se.status, se.code, se.message)
			return
		}
	}
	slog.Error("request failed", "path", c.FullPath(), "error", err)
	abortJSON(c, http.StatusInternalServerError, "INTERNAL", "服务器错误，请稍后再试")
}
