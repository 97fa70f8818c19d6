package handlers

import (
	"net/http"

	"showcase/internal/middleware"
	"showcase/internal/models"
	"showcase/internal/services"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	projects *services.ProjectService
	ranking  *services.RankingService
}

func NewProjectHandler(projects *services.ProjectService, ranking *services.RankingService) *ProjectHandler {
	return &ProjectHandler{projects: projects, ranking: ranking}
}

// List GET /api/projects?bootcampId=&admin=true
func (h *ProjectHandler) List(c *gin.Context) {
	res := middleware.CurrentResolution(c)
	opts := services.ListOptions{BootcampID: c.Query("bootcampId")}
	if c.Query("admin") == "true" {
		if !res.Identity.IsAuthenticated() {
			abortJSON(c, http.StatusUnauthorized, "UNAUTHORIZED", "请先登录")
			return
		}
		if res.Role != models.RoleAdmin {
			abortJSON(c, http.StatusForbidden, "FORBIDDEN", "需要管理员权限")
			return
		}
		opts.IncludeUnapproved = true
	}

	views, err := h.ranking.ListRanked(c.Request.Context(), opts, res.Identity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *ProjectHandler) Detail(c *gin.Context) {
	detail, err := h.ranking.GetProject(c.Request.Context(), c.Param("id"), middleware.CurrentResolution(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// Create POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var in services.ProjectInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortJSON(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误")
		return
	}

	authorID, _ := middleware.CurrentResolution(c).Identity.UserID()
	project, err := h.projects.Create(c.Request.Context(), authorID, in)
	if err != nil {
		respondError(c, err)
		return
	}
	if project.IsApproved {
		h.ranking.Invalidate(c.Request.Context())
	}
	c.JSON(http.StatusCreated, project)
}

// Update PUT /api/projects/:id，作者本人或管理员
func (h *ProjectHandler) Update(c *gin.Context) {
	var in services.ProjectUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		abortJSON(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误")
		return
	}
	project, err := h.projects.Update(c.Request.Context(), c.Param("id"), in, middleware.CurrentResolution(c))
	if err != nil {
		respondError(c, err)
		return
	}
	h.ranking.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, project)
}

// Delete 作者或管理员删除项目
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentResolution(c)); err != nil {
		respondError(c, err)
		return
	}
	h.ranking.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "项目已删除"})
}
