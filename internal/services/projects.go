package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"showcase/internal/identity"
	"showcase/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProjectInput struct {
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Type        models.ProjectType `json:"type"`
	HTMLFile    string             `json:"htmlFile"`
	ProjectURL  string             `json:"projectUrl"`
	CoverImage  string             `json:"coverImage"`
	BootcampID  string             `json:"bootcampId"`
}

// ProjectUpdate 可修改的字段，nil 表示不修改。不包含 voteCount；isApproved 只有管理员可改
type ProjectUpdate struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Type        *models.ProjectType `json:"type"`
	HTMLFile    *string             `json:"htmlFile"`
	ProjectURL  *string             `json:"projectUrl"`
	CoverImage  *string             `json:"coverImage"`
	BootcampID  *string             `json:"bootcampId"`
	IsApproved  *bool               `json:"isApproved"`
}

// ProjectService 项目提交与管理，不触碰 vote_count
type ProjectService struct {
	db          *gorm.DB
	deadline    *Deadline
	autoApprove bool
	now         func() time.Time
}

func NewProjectService(db *gorm.DB, deadline *Deadline, autoApprove bool) *ProjectService {
	if deadline == nil {
		deadline = &Deadline{}
	}
	return &ProjectService{db: db, deadline: deadline, autoApprove: autoApprove, now: time.Now}
}

func (in ProjectInput) validate() error {
	if strings.TrimSpace(in.Title) == "" || in.Type == "" || in.BootcampID == "" {
		return fmt.Errorf("%w: 缺少必需字段：title, type, bootcampId", ErrInvalidInput)
	}
	if in.CoverImage == "" {
		return fmt.Errorf("%w: 封面图片是必需的", ErrInvalidInput)
	}
	switch in.Type {
	case models.ProjectTypeHTMLFile:
		if in.HTMLFile == "" {
			return fmt.Errorf("%w: HTML 文件不能为空", ErrInvalidInput)
		}
	case models.ProjectTypeLink:
		if in.ProjectURL == "" {
			return fmt.Errorf("%w: 项目链接不能为空", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: 未知的项目类型 %q", ErrInvalidInput, in.Type)
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Create 提交作品。截止后拒绝；是否自动审核由配置决定
func (s *ProjectService) Create(ctx context.Context, authorID string, in ProjectInput) (models.Project, error) {
	if s.deadline.IsAfter(s.now()) {
		return models.Project{}, ErrSubmissionClosed
	}
	if err := in.validate(); err != nil {
		return models.Project{}, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Bootcamp{}).Where("id = ?", in.BootcampID).Count(&count).Error; err != nil {
		return models.Project{}, fmt.Errorf("failed to check bootcamp: %w", err)
	}
	if count == 0 {
		return models.Project{}, ErrBootcampNotFound
	}

	p := models.Project{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Type:        in.Type,
		HTMLFile:    optional(in.HTMLFile),
		ProjectURL:  optional(in.ProjectURL),
		CoverImage:  in.CoverImage,
		IsApproved:  s.autoApprove,
		BootcampID:  in.BootcampID,
		AuthorID:    authorID,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&p).Error; err != nil {
		return models.Project{}, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

func (in ProjectUpdate) columns(admin bool) (map[string]interface{}, error) {
	updates := map[string]interface{}{}
	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return nil, fmt.Errorf("%w: 标题不能为空", ErrInvalidInput)
		}
		updates["title"] = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Type != nil {
		switch *in.Type {
		case models.ProjectTypeHTMLFile, models.ProjectTypeLink:
			updates["type"] = *in.Type
		default:
			return nil, fmt.Errorf("%w: 未知的项目类型 %q", ErrInvalidInput, *in.Type)
		}
	}
	if in.HTMLFile != nil {
		updates["html_file"] = optional(*in.HTMLFile)
	}
	if in.ProjectURL != nil {
		updates["project_url"] = optional(*in.ProjectURL)
	}
	if in.CoverImage != nil {
		if *in.CoverImage == "" {
			return nil, fmt.Errorf("%w: 封面图片是必需的", ErrInvalidInput)
		}
		updates["cover_image"] = *in.CoverImage
	}
	if in.BootcampID != nil {
		updates["bootcamp_id"] = *in.BootcampID
	}
	// 非管理员提交的审核状态直接忽略
	if in.IsApproved != nil && admin {
		updates["is_approved"] = *in.IsApproved
	}
	return updates, nil
}

// Update 作者修改自己的项目，管理员可修改任意项目及审核状态。vote_count 只由投票事务维护
func (s *ProjectService) Update(ctx context.Context, projectID string, in ProjectUpdate, actor identity.Resolution) (models.Project, error) {
	admin := actor.Role == models.RoleAdmin
	updates, err := in.columns(admin)
	if err != nil {
		return models.Project{}, err
	}

	var p models.Project
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", projectID).
			Take(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		uid, _ := actor.Identity.UserID()
		if !admin && (uid == "" || uid != p.AuthorID) {
			return ErrForbidden
		}
		if len(updates) == 0 {
			return nil
		}

		if bootcampID, ok := updates["bootcamp_id"].(string); ok {
			var count int64
			if err := tx.Model(&models.Bootcamp{}).Where("id = ?", bootcampID).Count(&count).Error; err != nil {
				return fmt.Errorf("failed to check bootcamp: %w", err)
			}
			if count == 0 {
				return ErrBootcampNotFound
			}
		}

		if err := tx.Model(&models.Project{}).Where("id = ?", projectID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update project: %w", err)
		}
		return tx.Where("id = ?", projectID).Take(&p).Error
	})
	if err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// ListByAuthor 用户自己提交的全部作品（含未审核），按提交时间倒序
func (s *ProjectService) ListByAuthor(ctx context.Context, authorID string) ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.WithContext(ctx).
		Preload("Bootcamp").
		Where("author_id = ?", authorID).
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("failed to list projects by author: %w", err)
	}
	return projects, nil
}

// Delete 删除项目及其全部投票（同一事务）。作者本人或管理员可删除
func (s *ProjectService) Delete(ctx context.Context, projectID string, actor identity.Resolution) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Project
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "author_id").
			Where("id = ?", projectID).
			Take(&p).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProjectNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load project: %w", err)
		}

		uid, _ := actor.Identity.UserID()
		if actor.Role != models.RoleAdmin && (uid == "" || uid != p.AuthorID) {
			return ErrForbidden
		}

		if err := tx.Where("project_id = ?", projectID).Delete(&models.Vote{}).Error; err != nil {
			return fmt.Errorf("failed to delete votes: %w", err)
		}
		if err := tx.Where("id = ?", projectID).Delete(&models.Project{}).Error; err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return nil
	})
}
