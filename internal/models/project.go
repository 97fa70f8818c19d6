package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectType string

const (
	ProjectTypeHTMLFile ProjectType = "HTML_FILE"
	ProjectTypeLink     ProjectType = "LINK"
)

// Project is a showcase entry. VoteCount caches the number of Vote rows and
// is only ever moved by ±1 inside the vote transaction.
type Project struct {
	ID          string      `gorm:"primaryKey;size:36" json:"id"`
	Title       string      `gorm:"not null;size:200" json:"title"`
	Description string      `gorm:"type:text" json:"description"`
	Type        ProjectType `gorm:"size:20;not null" json:"type"`
	HTMLFile    *string     `gorm:"size:500" json:"htmlFile"`
	ProjectURL  *string     `gorm:"size:500" json:"projectUrl"`
	CoverImage  string      `gorm:"size:500;not null" json:"coverImage"`
	VoteCount   int         `gorm:"not null;default:0;index" json:"voteCount"`
	IsApproved  bool        `gorm:"not null;default:false;index" json:"isApproved"`
	BootcampID  string      `gorm:"size:36;not null;index" json:"bootcampId"`
	Bootcamp    Bootcamp    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"bootcamp"`
	AuthorID    string      `gorm:"size:36;not null;index" json:"authorId"`
	Author      User        `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	CreatedAt   time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
