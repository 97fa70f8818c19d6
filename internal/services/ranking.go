package services

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"sync"
	"time"

	"showcase/internal/identity"
	"showcase/internal/models"
	"showcase/internal/utils"

	"gorm.io/gorm"
)

const rankingCachePrefix = "ranking:"

// 排序：票数降序，同票按提交时间先后，再按 id 保证稳定
const rankingOrder = "vote_count DESC, created_at ASC, id ASC"

// ProjectView 排行榜中的项目，附带当前身份是否已投票
type ProjectView struct {
	models.Project
	Summary  string `json:"summary"`
	HasVoted bool   `json:"hasVoted"`
}

type ProjectDetail struct {
	ProjectView
	DescriptionHTML template.HTML `json:"descriptionHtml"`
}

type ListOptions struct {
	BootcampID        string
	IncludeUnapproved bool
}

func (o ListOptions) cacheKey() string {
	scope := "all"
	if o.BootcampID != "" {
		scope = o.BootcampID
	}
	if o.IncludeUnapproved {
		return rankingCachePrefix + scope + ":admin"
	}
	return rankingCachePrefix + scope
}

// rankedEntry 缓存的是与身份无关的部分，hasVoted 每次请求单独计算
type rankedEntry struct {
	models.Project
	Summary string `json:"summary"`
}

// RankingService 排行榜读路径，只读不写
type RankingService struct {
	db    *gorm.DB
	cache utils.Cache
	ttl   time.Duration

	// generation 每次 Invalidate 加一；查询开始后发生过失效的结果不回写缓存
	mu         sync.Mutex
	generation uint64
}

func NewRankingService(db *gorm.DB, cache utils.Cache, ttl time.Duration) *RankingService {
	return &RankingService{db: db, cache: cache, ttl: ttl}
}

func publicAuthor(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "nickname", "avatar", "role")
}

// ListRanked returns projects ordered by votes, annotated for id.
func (s *RankingService) ListRanked(ctx context.Context, opts ListOptions, id identity.Identity) ([]ProjectView, error) {
	entries, err := s.ranked(ctx, opts)
	if err != nil {
		return nil, err
	}

	projects := make([]models.Project, len(entries))
	for i := range entries {
		projects[i] = entries[i].Project
	}
	views, err := s.AnnotateHasVoted(ctx, projects, id)
	if err != nil {
		return nil, err
	}
	for i := range views {
		views[i].Summary = entries[i].Summary
	}
	return views, nil
}

func (s *RankingService) ranked(ctx context.Context, opts ListOptions) ([]rankedEntry, error) {
	key := opts.cacheKey()
	gen := s.currentGeneration()
	var entries []rankedEntry
	if s.cache != nil {
		ok, err := s.cache.Get(ctx, key, &entries)
		if err != nil {
			slog.Warn("ranking cache read failed", "key", key, "error", err)
		} else if ok {
			return entries, nil
		}
	}

	q := s.db.WithContext(ctx).Model(&models.Project{}).
		Preload("Author", publicAuthor).
		Preload("Bootcamp")
	if !opts.IncludeUnapproved {
		q = q.Where("is_approved = ?", true)
	}
	if opts.BootcampID != "" {
		q = q.Where("bootcamp_id = ?", opts.BootcampID)
	}

	var projects []models.Project
	if err := q.Order(rankingOrder).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	entries = make([]rankedEntry, len(projects))
	for i, p := range projects {
		entries[i] = rankedEntry{
			Project: p,
			Summary: utils.Excerpt(string(utils.RenderMarkdown(p.Description)), 120),
		}
	}

	s.store(ctx, key, gen, entries)
	return entries, nil
}

func (s *RankingService) currentGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// store 仅当读取期间没有发生失效时写入缓存，避免旧快照覆盖已清除的缓存
func (s *RankingService) store(ctx context.Context, key string, gen uint64, entries []rankedEntry) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		slog.Debug("ranking cache write skipped, invalidated during read", "key", key)
		return
	}
	if err := s.cache.Set(ctx, key, entries, s.ttl); err != nil {
		slog.Warn("ranking cache write failed", "key", key, "error", err)
	}
}

// AnnotateHasVoted 用一次查询标记当前身份投过票的项目，不改变顺序
func (s *RankingService) AnnotateHasVoted(ctx context.Context, projects []models.Project, id identity.Identity) ([]ProjectView, error) {
	views := make([]ProjectView, len(projects))
	for i := range projects {
		views[i] = ProjectView{Project: projects[i]}
	}
	if len(projects) == 0 {
		return views, nil
	}

	userID, _ := id.UserID()
	visitorID := id.VisitorID()
	if userID == "" && visitorID == "" {
		return views, nil
	}

	ids := make([]string, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	q := s.db.WithContext(ctx).Model(&models.Vote{}).Where("project_id IN ?", ids)
	switch {
	case userID != "" && visitorID != "":
		q = q.Where("(visitor_id = ? OR voter_id = ?)", visitorID, userID)
	case userID != "":
		q = q.Where("voter_id = ?", userID)
	default:
		q = q.Where("visitor_id = ?", visitorID)
	}

	var voted []string
	if err := q.Pluck("project_id", &voted).Error; err != nil {
		return nil, fmt.Errorf("failed to load votes: %w", err)
	}
	set := make(map[string]struct{}, len(voted))
	for _, pid := range voted {
		set[pid] = struct{}{}
	}
	for i := range views {
		_, views[i].HasVoted = set[views[i].ID]
	}
	return views, nil
}

// GetProject 项目详情。未审核项目只对作者和管理员可见
func (s *RankingService) GetProject(ctx context.Context, projectID string, viewer identity.Resolution) (ProjectDetail, error) {
	var p models.Project
	err := s.db.WithContext(ctx).
		Preload("Author", publicAuthor).
		Preload("Bootcamp").
		Where("id = ?", projectID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProjectDetail{}, ErrProjectNotFound
	}
	if err != nil {
		return ProjectDetail{}, fmt.Errorf("failed to load project: %w", err)
	}

	if !p.IsApproved {
		uid, _ := viewer.Identity.UserID()
		if viewer.Role != models.RoleAdmin && uid != p.AuthorID {
			return ProjectDetail{}, ErrProjectNotFound
		}
	}

	views, err := s.AnnotateHasVoted(ctx, []models.Project{p}, viewer.Identity)
	if err != nil {
		return ProjectDetail{}, err
	}
	html := utils.RenderMarkdown(p.Description)
	views[0].Summary = utils.Excerpt(string(html), 120)
	return ProjectDetail{ProjectView: views[0], DescriptionHTML: html}, nil
}

// Invalidate 清除所有排行榜缓存，投票和管理操作后调用
func (s *RankingService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	if err := s.cache.DeletePrefix(ctx, rankingCachePrefix); err != nil {
		slog.Warn("ranking cache invalidation failed", "error", err)
	}
}
