package handlers

import (
	"net/http"

	"showcase/internal/middleware"
	"showcase/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	accounts *services.AccountService
}

func NewAuthHandler(accounts *services.AccountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortJSON(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误")
		return
	}
	result, err := h.accounts.Register(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.startSession(c, result); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": result.User, "token": result.Token, "message": "注册成功"})
}

// Login 返回 bearer token，同时写入浏览器 session 供页面使用
func (h *AuthHandler) Login(c *gin.Context) {
	var in loginRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		abortJSON(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误")
		return
	}
	result, err := h.accounts.Login(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.startSession(c, result); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": result.User, "token": result.Token})
}

func (h *AuthHandler) startSession(c *gin.Context, result services.AuthResult) error {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserKey, result.User.ID)
	session.Set(middleware.SessionRoleKey, result.User.Role)
	return session.Save()
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var in changePasswordRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		abortJSON(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误")
		return
	}
	userID, _ := middleware.CurrentResolution(c).Identity.UserID()
	if err := h.accounts.ChangePassword(c.Request.Context(), userID, in.OldPassword, in.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "密码修改成功"})
}

// Me 当前登录用户
func (h *AuthHandler) Me(c *gin.Context) {
	userID, _ := middleware.CurrentResolution(c).Identity.UserID()
	user, err := h.accounts.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
