package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"showcase/internal/middleware"
	"showcase/internal/services"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	engine   *services.VoteEngine
	ranking  *services.RankingService
	deadline *services.Deadline
	now      func() time.Time
}

func NewVoteHandler(engine *services.VoteEngine, ranking *services.RankingService, deadline *services.Deadline) *VoteHandler {
	return &VoteHandler{engine: engine, ranking: ranking, deadline: deadline, now: time.Now}
}

// Toggle 投票/取消投票。HTMX 请求返回按钮片段，其余返回 JSON
func (h *VoteHandler) Toggle(c *gin.Context) {
	projectID := c.Param("id")

	if h.deadline != nil && h.deadline.VotingClosed(h.now()) {
		h.fail(c, projectID, services.ErrVotingClosed)
		return
	}

	res := middleware.CurrentResolution(c)
	result, err := h.engine.ToggleVote(c.Request.Context(), projectID, res.Identity)
	if err != nil {
		h.fail(c, projectID, err)
		return
	}

	// 主动失效排行榜缓存
	h.ranking.Invalidate(c.Request.Context())

	if isHTMX(c) {
		c.HTML(http.StatusOK, "vote_button.html", gin.H{
			"ID":        projectID,
			"HasVoted":  result.Voted,
			"VoteCount": result.VoteCount,
		})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *VoteHandler) fail(c *gin.Context, projectID string, err error) {
	status, message := services.VoteErrorStatus(err)
	code := services.VoteErrorCode(err)
	if status >= http.StatusInternalServerError {
		slog.Error("vote failed", "project_id", projectID, "error", err)
	}

	if isHTMX(c) {
		triggerError(c, message)
		c.String(status, "")
		return
	}
	abortJSON(c, status, code, message)
}
