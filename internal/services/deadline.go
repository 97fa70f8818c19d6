package services

import (
	"fmt"
	"time"
)

// Deadline 提交截止时间；未配置时不限制
type Deadline struct {
	at          *time.Time
	gatesVoting bool
}

type DeadlineInfo struct {
	HasDeadline     bool       `json:"hasDeadline"`
	Deadline        *time.Time `json:"deadline"`
	IsExpired       bool       `json:"isExpired"`
	TimeRemainingMs *int64     `json:"timeRemaining,omitempty"` // 设置了截止时间时总是返回，过期后为负数
}

// NewDeadline parses an RFC3339 timestamp. An empty string means no deadline.
func NewDeadline(raw string, gatesVoting bool) (*Deadline, error) {
	d := &Deadline{gatesVoting: gatesVoting}
	if raw == "" {
		return d, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid deadline %q: %w", raw, err)
	}
	d.at = &at
	return d, nil
}

// IsAfter 是否已超过截止时间
func (d *Deadline) IsAfter(now time.Time) bool {
	return d.at != nil && now.After(*d.at)
}

// VotingClosed reports whether the vote route should reject requests.
func (d *Deadline) VotingClosed(now time.Time) bool {
	return d.gatesVoting && d.IsAfter(now)
}

func (d *Deadline) Info(now time.Time) DeadlineInfo {
	if d.at == nil {
		return DeadlineInfo{}
	}
	remaining := d.at.Sub(now).Milliseconds()
	at := d.at.UTC()
	return DeadlineInfo{
		HasDeadline:     true,
		Deadline:        &at,
		IsExpired:       d.IsAfter(now),
		TimeRemainingMs: &remaining,
	}
}
