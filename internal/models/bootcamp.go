package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Bootcamp struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Name        string     `gorm:"not null;size:120" json:"name"`
	Description string     `gorm:"type:text" json:"description"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
	IsActive    bool       `gorm:"not null;index" json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	// 非数据库字段，用于查询时填充
	ProjectCount int64 `gorm:"-" json:"projectCount"`
}

func (b *Bootcamp) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}
