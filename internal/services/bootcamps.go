package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"showcase/internal/models"
)

type BootcampInput struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	StartDate   time.Time  `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

// ListActiveBootcamps 进行中的训练营及其项目数
func (s *ProjectService) ListActiveBootcamps(ctx context.Context) ([]models.Bootcamp, error) {
	var bootcamps []models.Bootcamp
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at DESC").
		Find(&bootcamps).Error; err != nil {
		return nil, fmt.Errorf("failed to list bootcamps: %w", err)
	}
	if len(bootcamps) == 0 {
		return bootcamps, nil
	}

	ids := make([]string, len(bootcamps))
	for i, b := range bootcamps {
		ids[i] = b.ID
	}
	var counts []struct {
		BootcampID string
		Total      int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Project{}).
		Select("bootcamp_id, COUNT(*) AS total").
		Where("bootcamp_id IN ?", ids).
		Group("bootcamp_id").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	byID := make(map[string]int64, len(counts))
	for _, c := range counts {
		byID[c.BootcampID] = c.Total
	}
	for i := range bootcamps {
		bootcamps[i].ProjectCount = byID[bootcamps[i].ID]
	}
	return bootcamps, nil
}

func (s *ProjectService) CreateBootcamp(ctx context.Context, in BootcampInput) (models.Bootcamp, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return models.Bootcamp{}, fmt.Errorf("%w: 训练营名称不能为空", ErrInvalidInput)
	}
	if in.StartDate.IsZero() {
		in.StartDate = time.Now()
	}
	b := models.Bootcamp{
		Name:        in.Name,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		IsActive:    true,
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return models.Bootcamp{}, fmt.Errorf("failed to create bootcamp: %w", err)
	}
	return b, nil
}
