package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vote is one live vote. VoterID and VisitorID may both be set when a
// logged-in user votes from a browser that carries a visitor cookie.
//
// (project_id, voter_id) is unique; NULL voter ids never collide, so the
// visitor case relies on the existence check under the project row lock.
type Vote struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	ProjectID string    `gorm:"size:36;not null;uniqueIndex:idx_vote_project_voter;index:idx_vote_project_visitor" json:"projectId"`
	Project   Project   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	VoterID   *string   `gorm:"size:36;uniqueIndex:idx_vote_project_voter" json:"voterId"`
	VisitorID *string   `gorm:"size:64;index:idx_vote_project_visitor" json:"visitorId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
