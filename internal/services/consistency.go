package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Drift 一个项目的 vote_count 与实际投票行数不一致
type Drift struct {
	ProjectID string    `json:"projectId"`
	VoteCount int       `json:"voteCount"`
	VoteRows  int64     `json:"voteRows"`
	CheckedAt time.Time `json:"checkedAt"`
}

// ConsistencyService 后台核对计数器，只报告不修复
type ConsistencyService struct {
	db       *gorm.DB
	metrics  *Metrics
	interval time.Duration

	queue   chan string // 待核对的项目 ID
	pending map[string]bool
	drifts  map[string]Drift
	mu      sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

const (
	checkQueueSize = 1000
	checkBatchSize = 50
	checkFlush     = 500 * time.Millisecond
)

// NewConsistencyService interval 为 0 时不做定期全量扫描
func NewConsistencyService(db *gorm.DB, metrics *Metrics, interval time.Duration) *ConsistencyService {
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &ConsistencyService{
		db:       db,
		metrics:  metrics,
		interval: interval,
		queue:    make(chan string, checkQueueSize),
		pending:  make(map[string]bool),
		drifts:   make(map[string]Drift),
		now:      time.Now,
	}
}

// Start 启动后台 worker，ctx 取消或调用 Stop 时退出
func (s *ConsistencyService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
}

func (s *ConsistencyService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// ScheduleCheck 将项目加入核对队列（异步，去重）
func (s *ConsistencyService) ScheduleCheck(projectID string) {
	s.mu.Lock()
	if s.pending[projectID] {
		s.mu.Unlock()
		return
	}
	s.pending[projectID] = true
	s.mu.Unlock()

	// 非阻塞发送
	select {
	case s.queue <- projectID:
	default:
		s.mu.Lock()
		delete(s.pending, projectID)
		s.mu.Unlock()
		slog.Warn("consistency queue full, dropping check", "project_id", projectID)
	}
}

func (s *ConsistencyService) worker(ctx context.Context) {
	batch := make([]string, 0, checkBatchSize)
	flush := time.NewTicker(checkFlush)
	defer flush.Stop()

	var sweep <-chan time.Time
	if s.interval > 0 {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		sweep = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			batch = append(batch, id)
			if len(batch) >= checkBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-flush.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-sweep:
			if _, err := s.Sweep(ctx); err != nil {
				slog.Error("consistency sweep failed", "error", err)
			}
		}
	}
}

func (s *ConsistencyService) processBatch(ctx context.Context, ids []string) {
	for _, id := range ids {
		if _, _, err := s.CheckProject(ctx, id); err != nil {
			slog.Error("consistency check failed", "project_id", id, "error", err)
		}

		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}
}

type countRow struct {
	ID        string
	VoteCount int
	VoteRows  int64
}

// 单条语句读取，计数器与行数来自同一快照
const countQuery = `SELECT p.id AS id, p.vote_count AS vote_count,
	(SELECT COUNT(*) FROM votes v WHERE v.project_id = p.id) AS vote_rows
	FROM projects p`

// CheckProject compares one project's counter with its vote rows.
func (s *ConsistencyService) CheckProject(ctx context.Context, projectID string) (Drift, bool, error) {
	var rows []countRow
	if err := s.db.WithContext(ctx).Raw(countQuery+" WHERE p.id = ?", projectID).Scan(&rows).Error; err != nil {
		return Drift{}, false, fmt.Errorf("failed to count votes for %s: %w", projectID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.publish()

	if len(rows) == 0 {
		// 项目已删除
		delete(s.drifts, projectID)
		return Drift{}, false, nil
	}
	row := rows[0]
	if int64(row.VoteCount) == row.VoteRows {
		delete(s.drifts, projectID)
		return Drift{}, false, nil
	}

	d := Drift{ProjectID: row.ID, VoteCount: row.VoteCount, VoteRows: row.VoteRows, CheckedAt: s.now()}
	s.drifts[projectID] = d
	slog.Warn("vote count drift detected", "project_id", projectID, "vote_count", d.VoteCount, "vote_rows", d.VoteRows)
	return d, true, nil
}

// Sweep 全量核对，结果替换之前的报告
func (s *ConsistencyService) Sweep(ctx context.Context) ([]Drift, error) {
	var rows []countRow
	if err := s.db.WithContext(ctx).Raw(countQuery).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to sweep vote counts: %w", err)
	}

	now := s.now()
	drifts := make(map[string]Drift)
	for _, row := range rows {
		if int64(row.VoteCount) != row.VoteRows {
			drifts[row.ID] = Drift{ProjectID: row.ID, VoteCount: row.VoteCount, VoteRows: row.VoteRows, CheckedAt: now}
			slog.Warn("vote count drift detected", "project_id", row.ID, "vote_count", row.VoteCount, "vote_rows", row.VoteRows)
		}
	}

	s.mu.Lock()
	s.drifts = drifts
	s.publish()
	s.mu.Unlock()

	slog.Info("consistency sweep completed", "projects", len(rows), "drifts", len(drifts))
	return s.Drifts(), nil
}

// Drifts 返回当前已知的不一致项目，按项目 ID 排序
func (s *ConsistencyService) Drifts() []Drift {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Drift, 0, len(s.drifts))
	for _, d := range s.drifts {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// publish 需持有 mu
func (s *ConsistencyService) publish() {
	s.metrics.CounterDrifts.Set(float64(len(s.drifts)))
}
