package handlers

import (
	"net/http"

	"showcase/internal/middleware"
	"showcase/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler 管理后台接口，路由组已挂 AdminRequired
type AdminHandler struct {
	projects    *services.ProjectService
	ranking     *services.RankingService
	consistency *services.ConsistencyService
}

func NewAdminHandler(projects *services.ProjectService, ranking *services.RankingService, consistency *services.ConsistencyService) *AdminHandler {
	return &AdminHandler{projects: projects, ranking: ranking, consistency: consistency}
}

// UpdateProject 修改项目信息或审核状态。请求体中的 voteCount 会被忽略
func (h *AdminHandler) UpdateProject(c *gin.Context) {
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

func (h *AdminHandler) DeleteProject(c *gin.Context) {
	if err := h.projects.Delete(c.Request.Context(), c.Param("id"), middleware.CurrentResolution(c)); err != nil {
		respondError(c, err)
		return
	}
	h.ranking.Invalidate(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "项目已删除"})
}

func (h *AdminHandler) CreateBootcamp(c *gin.Context) {
	var in services.BootcampInput
	if err := c.ShouldBindJSON(&in); err != nil {
		abortJSON(c, http.StatusBadRequest, "INVALID_INPUT", "请求格式错误")
		return
	}
	bootcamp, err := h.projects.CreateBootcamp(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bootcamp)
}

// Consistency 返回最近一次核对发现的计数不一致
func (h *AdminHandler) Consistency(c *gin.Context) {
	drifts := h.consistency.Drifts()
	c.JSON(http.StatusOK, gin.H{"drifts": drifts, "count": len(drifts)})
}

// Sweep 立即全量核对
func (h *AdminHandler) Sweep(c *gin.Context) {
	drifts, err := h.consistency.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"drifts": drifts, "count": len(drifts)})
}
