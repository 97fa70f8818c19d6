package services

import (
	"errors"
	"fmt"

	"showcase/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProjectStatus 投票所需的项目字段快照
type ProjectStatus struct {
	ID         string
	IsApproved bool
	AuthorID   string
	VoteCount  int
}

// ProjectGate answers whether a project can receive votes. Lookup must be
// called with the vote transaction so the answer cannot change before commit.
type ProjectGate interface {
	Lookup(tx *gorm.DB, projectID string) (ProjectStatus, error)
}

type UserDirectory interface {
	Exists(tx *gorm.DB, userID string) (bool, error)
}

type gormProjectGate struct{}

func NewProjectGate() ProjectGate {
	return gormProjectGate{}
}

// Lookup 读取项目并加行锁（SELECT ... FOR UPDATE），同一项目的投票因此串行执行。
// SQLite 不支持行锁，由单连接池保证串行。
func (gormProjectGate) Lookup(tx *gorm.DB, projectID string) (ProjectStatus, error) {
	var p models.Project
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "is_approved", "author_id", "vote_count").
		Where("id = ?", projectID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ProjectStatus{}, ErrProjectNotFound
	}
	if err != nil {
		return ProjectStatus{}, fmt.Errorf("failed to load project %s: %w", projectID, err)
	}
	return ProjectStatus{
		ID:         p.ID,
		IsApproved: p.IsApproved,
		AuthorID:   p.AuthorID,
		VoteCount:  p.VoteCount,
	}, nil
}

type gormUserDirectory struct{}

func NewUserDirectory() UserDirectory {
	return gormUserDirectory{}
}

func (gormUserDirectory) Exists(tx *gorm.DB, userID string) (bool, error) {
	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up user %s: %w", userID, err)
	}
	return count > 0, nil
}
