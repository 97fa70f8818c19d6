package handlers

import (
	"net/http"
	"strconv"

	"showcase/internal/middleware"
	"showcase/internal/models"
	"showcase/internal/services"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	accounts *services.AccountService
	projects *services.ProjectService
	ranking  *services.RankingService
}

func NewUserHandler(accounts *services.AccountService, projects *services.ProjectService, ranking *services.RankingService) *UserHandler {
	return &UserHandler{accounts: accounts, projects: projects, ranking: ranking}
}

// ownerOrAdmin 只允许本人或管理员访问 :id 对应的用户数据
func ownerOrAdmin(c *gin.Context) bool {
	res := middleware.CurrentResolution(c)
	uid, _ := res.Identity.UserID()
	if res.Role == models.RoleAdmin || uid == c.Param("id") {
		return true
	}
	abortJSON(c, http.StatusForbidden, "FORBIDDEN", "无权限访问")
	return false
}

// List GET /api/users (admin)
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.accounts.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// Update PUT /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var in services.UserUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		abortJSON(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误")
		return
	}
	user, err := h.accounts.UpdateUser(c.Request.Context(), c.Param("id"), in, middleware.CurrentResolution(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Projects GET /api/users/:id/projects
func (h *UserHandler) Projects(c *gin.Context) {
	if !ownerOrAdmin(c) {
		return
	}
	projects, err := h.projects.ListByAuthor(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

// Favorites GET /api/users/:id/favorites?page=&limit=
func (h *UserHandler) Favorites(c *gin.Context) {
	if !ownerOrAdmin(c) {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "6"))

	favorites, err := h.ranking.ListFavorites(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, favorites)
}
