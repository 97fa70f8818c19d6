package handlers

import (
	"errors"
	"net/http"
	"time"

	"showcase/internal/middleware"
	"showcase/internal/services"

	"github.com/gin-gonic/gin"
)

type PageHandler struct {
	projects *services.ProjectService
	ranking  *services.RankingService
	deadline *services.Deadline
}

func NewPageHandler(projects *services.ProjectService, ranking *services.RankingService, deadline *services.Deadline) *PageHandler {
	return &PageHandler{projects: projects, ranking: ranking, deadline: deadline}
}

// Leaderboard 首页排行榜
func (h *PageHandler) Leaderboard(c *gin.Context) {
	ctx := c.Request.Context()
	bootcampID := c.Query("bootcampId")

	views, err := h.ranking.ListRanked(ctx, services.ListOptions{BootcampID: bootcampID}, middleware.CurrentResolution(c).Identity)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "排行榜加载失败")
		return
	}
	bootcamps, err := h.projects.ListActiveBootcamps(ctx)
	if err != nil {
		RenderError(c, http.StatusInternalServerError, "训练营加载失败")
		return
	}

	Render(c, http.StatusOK, "project/list.html", gin.H{
		"Projects":   views,
		"Bootcamps":  bootcamps,
		"BootcampID": bootcampID,
		"Deadline":   h.deadline.Info(time.Now()),
	})
}

// ProjectPage 项目详情页
func (h *PageHandler) ProjectPage(c *gin.Context) {
	detail, err := h.ranking.GetProject(c.Request.Context(), c.Param("id"), middleware.CurrentResolution(c))
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			RenderError(c, http.StatusNotFound, "项目不存在")
			return
		}
		RenderError(c, http.StatusInternalServerError, "项目加载失败")
		return
	}
	Render(c, http.StatusOK, "project/detail.html", gin.H{"Project": detail})
}
