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

// VoteResult is returned to the client after every toggle.
type VoteResult struct {
	Voted     bool `json:"voted"`
	VoteCount int  `json:"voteCount"`
}

// VoteEngine owns the only code path that moves projects.vote_count.
type VoteEngine struct {
	db      *gorm.DB
	gate    ProjectGate
	users   UserDirectory
	metrics *Metrics
	// 投票成功后的回调（缓存失效、一致性检查），在事务提交后执行
	afterCommit []func(projectID string)
}

func NewVoteEngine(db *gorm.DB, gate ProjectGate, users UserDirectory, metrics *Metrics) *VoteEngine {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &VoteEngine{db: db, gate: gate, users: users, metrics: metrics}
}

// OnCommit registers a hook run after each committed toggle.
func (e *VoteEngine) OnCommit(fn func(projectID string)) {
	e.afterCommit = append(e.afterCommit, fn)
}

// ToggleVote 投票或取消投票。
// 校验顺序：项目存在 -> 已审核 -> 用户存在 -> 非本人项目；
// 之后在同一事务中查找已有投票（visitorId 或 userId 任一匹配），删除并 -1，或插入并 +1。
func (e *VoteEngine) ToggleVote(ctx context.Context, projectID string, id identity.Identity) (VoteResult, error) {
	start := time.Now()
	result, err := e.toggle(ctx, projectID, id)
	e.metrics.VoteDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		e.metrics.VoteErrors.WithLabelValues(VoteErrorCode(err)).Inc()
		return VoteResult{}, err
	}
	if result.Voted {
		e.metrics.VotesCast.Inc()
	} else {
		e.metrics.VotesRetract.Inc()
	}
	for _, fn := range e.afterCommit {
		fn(projectID)
	}
	return result, nil
}

func (e *VoteEngine) toggle(ctx context.Context, projectID string, id identity.Identity) (VoteResult, error) {
	if !id.Valid() {
		return VoteResult{}, ErrInvalidIdentity
	}
	userID, authenticated := id.UserID()
	visitorID := id.VisitorID()

	var result VoteResult
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := e.gate.Lookup(tx, projectID)
		if err != nil {
			return err
		}
		if !project.IsApproved {
			return ErrProjectNotApproved
		}
		if authenticated {
			exists, err := e.users.Exists(tx, userID)
			if err != nil {
				return err
			}
			if !exists {
				return ErrUserNotFound
			}
			if userID == project.AuthorID {
				return ErrCannotVoteOwnProject
			}
		}

		existing, found, err := findVote(tx, projectID, userID, visitorID)
		if err != nil {
			return err
		}

		if found {
			if err := tx.Delete(&models.Vote{}, "id = ?", existing.ID).Error; err != nil {
				return fmt.Errorf("failed to delete vote: %w", err)
			}
			res := tx.Model(&models.Project{}).
				Where("id = ? AND vote_count > 0", projectID).
				UpdateColumn("vote_count", gorm.Expr("vote_count - ?", 1))
			if res.Error != nil {
				return fmt.Errorf("failed to decrement vote count: %w", res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("project %s: %w", projectID, ErrCounterDrift)
			}
			result.Voted = false
		} else {
			vote := models.Vote{ProjectID: projectID}
			if authenticated {
				vote.VoterID = &userID
			}
			if visitorID != "" {
				vote.VisitorID = &visitorID
			}
			if err := tx.Omit(clause.Associations).Create(&vote).Error; err != nil {
				if isDuplicateKey(err) {
					return ErrVoteConflict
				}
				return fmt.Errorf("failed to insert vote: %w", err)
			}
			if err := tx.Model(&models.Project{}).
				Where("id = ?", projectID).
				UpdateColumn("vote_count", gorm.Expr("vote_count + ?", 1)).Error; err != nil {
				return fmt.Errorf("failed to increment vote count: %w", err)
			}
			result.Voted = true
		}

		var count int
		if err := tx.Model(&models.Project{}).
			Select("vote_count").
			Where("id = ?", projectID).
			Scan(&count).Error; err != nil {
			return fmt.Errorf("failed to read vote count: %w", err)
		}
		result.VoteCount = count
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}
	return result, nil
}

// findVote 查找当前身份在该项目上的投票，两种 key 都命中时优先返回属于该用户的那一行
func findVote(tx *gorm.DB, projectID, userID, visitorID string) (models.Vote, bool, error) {
	q := tx.Where("project_id = ?", projectID)
	switch {
	case userID != "" && visitorID != "":
		q = q.Where("(voter_id = ? OR visitor_id = ?)", userID, visitorID)
	case userID != "":
		q = q.Where("voter_id = ?", userID)
	default:
		q = q.Where("visitor_id = ?", visitorID)
	}

	var votes []models.Vote
	if err := q.Order("created_at ASC").Find(&votes).Error; err != nil {
		return models.Vote{}, false, fmt.Errorf("failed to look up vote: %w", err)
	}
	if len(votes) == 0 {
		return models.Vote{}, false, nil
	}
	for _, v := range votes {
		if userID != "" && v.VoterID != nil && *v.VoterID == userID {
			return v, true, nil
		}
	}
	return votes[0], true, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate")
}
