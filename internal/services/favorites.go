package services

import (
	"context"
	"fmt"
	"time"

	"showcase/internal/models"
)

const (
	defaultFavoritesLimit = 6
	maxFavoritesLimit     = 50
)

// FavoriteProject 用户投过票的作品，LikedAt 为投票时间
type FavoriteProject struct {
	models.Project
	LikedAt time.Time `json:"likedAt"`
}

type FavoritesPage struct {
	Projects    []FavoriteProject `json:"projects"`
	TotalCount  int64             `json:"totalCount"`
	TotalPages  int               `json:"totalPages"`
	CurrentPage int               `json:"currentPage"`
	HasMore     bool              `json:"hasMore"`
}

// ListFavorites 分页列出 userID 投过票的作品，按投票时间倒序。
// 只看 voter_id，匿名浏览器投的票不计入。
func (s *RankingService) ListFavorites(ctx context.Context, userID string, page, limit int) (FavoritesPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultFavoritesLimit
	}
	if limit > maxFavoritesLimit {
		limit = maxFavoritesLimit
	}
	offset := (page - 1) * limit

	out := FavoritesPage{Projects: []FavoriteProject{}, CurrentPage: page}
	if err := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("voter_id = ?", userID).
		Count(&out.TotalCount).Error; err != nil {
		return FavoritesPage{}, fmt.Errorf("failed to count favorites: %w", err)
	}
	out.TotalPages = int((out.TotalCount + int64(limit) - 1) / int64(limit))
	out.HasMore = int64(offset+limit) < out.TotalCount

	var votes []models.Vote
	if err := s.db.WithContext(ctx).
		Where("voter_id = ?", userID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&votes).Error; err != nil {
		return FavoritesPage{}, fmt.Errorf("failed to list favorites: %w", err)
	}
	if len(votes) == 0 {
		return out, nil
	}

	ids := make([]string, len(votes))
	for i, v := range votes {
		ids[i] = v.ProjectID
	}
	var projects []models.Project
	if err := s.db.WithContext(ctx).
		Preload("Author", publicAuthor).
		Preload("Bootcamp").
		Where("id IN ?", ids).
		Find(&projects).Error; err != nil {
		return FavoritesPage{}, fmt.Errorf("failed to load favorite projects: %w", err)
	}
	byID := make(map[string]models.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	for _, v := range votes {
		if p, ok := byID[v.ProjectID]; ok {
			out.Projects = append(out.Projects, FavoriteProject{Project: p, LikedAt: v.CreatedAt})
		}
	}
	return out, nil
}
