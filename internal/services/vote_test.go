package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"showcase/internal/db"
	"showcase/internal/identity"
	"showcase/internal/models"
	"showcase/internal/testutil"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type VoteEngineSuite struct {
	suite.Suite
	ctx      context.Context
	store    *db.Store
	metrics  *Metrics
	engine   *VoteEngine
	author   models.User
	voter    models.User
	bootcamp models.Bootcamp
	project  models.Project
}

func TestVoteEngineSuite(t *testing.T) {
	suite.Run(t, new(VoteEngineSuite))
}

func (s *VoteEngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = testutil.NewStore(s.T())
	s.metrics = NewMetrics()
	s.engine = NewVoteEngine(s.store.DB, NewProjectGate(), NewUserDirectory(), s.metrics)

	s.author = testutil.CreateUser(s.T(), s.store.DB, "author1", "")
	s.voter = testutil.CreateUser(s.T(), s.store.DB, "user-42", "")
	s.bootcamp = testutil.CreateBootcamp(s.T(), s.store.DB, "spring")
	s.project = testutil.CreateProject(s.T(), s.store.DB, testutil.ProjectOpts{
		AuthorID:   s.author.ID,
		BootcampID: s.bootcamp.ID,
		Approved:   true,
	})
}

func (s *VoteEngineSuite) db() *gorm.DB {
	return s.store.DB
}

func (s *VoteEngineSuite) assertConsistent(projectID string) {
	s.Require().Equal(int64(testutil.VoteCount(s.T(), s.db(), projectID)), testutil.VoteRows(s.T(), s.db(), projectID))
}

func (s *VoteEngineSuite) TestEndToEndScenario() {
	require := s.Require()

	res, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Anonymous("visitor-abc"))
	require.NoError(err)
	require.Equal(VoteResult{Voted: true, VoteCount: 1}, res)

	res, err = s.engine.ToggleVote(s.ctx, s.project.ID, identity.Anonymous("visitor-abc"))
	require.NoError(err)
	require.Equal(VoteResult{Voted: false, VoteCount: 0}, res)

	res, err = s.engine.ToggleVote(s.ctx, s.project.ID, identity.Authenticated("user-42", ""))
	require.NoError(err)
	require.Equal(VoteResult{Voted: true, VoteCount: 1}, res)

	_, err = s.engine.ToggleVote(s.ctx, s.project.ID, identity.Authenticated("author1", ""))
	require.ErrorIs(err, ErrCannotVoteOwnProject)
	require.Equal(CodeCannotVoteOwnProject, VoteErrorCode(err))
	require.Equal(1, testutil.VoteCount(s.T(), s.db(), s.project.ID))
	s.assertConsistent(s.project.ID)
}

func (s *VoteEngineSuite) TestTogglePairRestoresCount() {
	ids := []identity.Identity{
		identity.Anonymous(identity.NewVisitorID()),
		identity.Authenticated(s.voter.ID, ""),
		identity.Authenticated(s.voter.ID, identity.NewVisitorID()),
	}
	for _, id := range ids {
		before := testutil.VoteCount(s.T(), s.db(), s.project.ID)

		first, err := s.engine.ToggleVote(s.ctx, s.project.ID, id)
		s.Require().NoError(err)
		s.Require().True(first.Voted)
		s.Require().Equal(before+1, first.VoteCount)

		second, err := s.engine.ToggleVote(s.ctx, s.project.ID, id)
		s.Require().NoError(err)
		s.Require().False(second.Voted)
		s.Require().Equal(before, second.VoteCount)
		s.assertConsistent(s.project.ID)
	}
}

func (s *VoteEngineSuite) TestAuthorCannotVoteEvenWithCookie() {
	for i := 0; i < 3; i++ {
		_, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Authenticated(s.author.ID, "visitor-of-author"))
		s.Require().ErrorIs(err, ErrCannotVoteOwnProject)
	}
	s.Require().Equal(0, testutil.VoteCount(s.T(), s.db(), s.project.ID))
	s.Require().Equal(int64(0), testutil.VoteRows(s.T(), s.db(), s.project.ID))
}

func (s *VoteEngineSuite) TestApprovalGate() {
	pending := testutil.CreateProject(s.T(), s.db(), testutil.ProjectOpts{
		AuthorID:   s.author.ID,
		BootcampID: s.bootcamp.ID,
		Approved:   false,
	})

	for _, id := range []identity.Identity{
		identity.Anonymous("visitor-abc"),
		identity.Authenticated(s.voter.ID, "visitor-abc"),
		identity.Authenticated(s.author.ID, ""),
	} {
		_, err := s.engine.ToggleVote(s.ctx, pending.ID, id)
		s.Require().ErrorIs(err, ErrProjectNotApproved)
	}
	s.Require().Equal(0, testutil.VoteCount(s.T(), s.db(), pending.ID))
	s.Require().Equal(int64(0), testutil.VoteRows(s.T(), s.db(), pending.ID))
}

func (s *VoteEngineSuite) TestProjectNotFound() {
	_, err := s.engine.ToggleVote(s.ctx, "missing", identity.Anonymous("visitor-abc"))
	s.Require().ErrorIs(err, ErrProjectNotFound)
	s.Require().Equal(CodeProjectNotFound, VoteErrorCode(err))
}

func (s *VoteEngineSuite) TestUserNotFound() {
	_, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Authenticated("ghost", "visitor-abc"))
	s.Require().ErrorIs(err, ErrUserNotFound)
	s.Require().Equal(int64(0), testutil.VoteRows(s.T(), s.db(), s.project.ID))
}

func (s *VoteEngineSuite) TestInvalidIdentity() {
	_, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Identity{})
	s.Require().ErrorIs(err, ErrInvalidIdentity)
}

func (s *VoteEngineSuite) TestIdentityUnion() {
	require := s.Require()
	ranking := NewRankingService(s.db(), nil, 0)
	visitor := "visitor-browser"

	res, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Anonymous(visitor))
	require.NoError(err)
	require.True(res.Voted)

	loggedIn := identity.Authenticated(s.voter.ID, visitor)
	views, err := ranking.AnnotateHasVoted(s.ctx, []models.Project{s.project}, loggedIn)
	require.NoError(err)
	require.True(views[0].HasVoted)

	res, err = s.engine.ToggleVote(s.ctx, s.project.ID, loggedIn)
	require.NoError(err)
	require.False(res.Voted)
	require.Equal(0, res.VoteCount)
	require.Equal(int64(0), testutil.VoteRows(s.T(), s.db(), s.project.ID))
}

func (s *VoteEngineSuite) TestUserVoteRecognisedFromNewBrowser() {
	require := s.Require()

	_, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Authenticated(s.voter.ID, "browser-a"))
	require.NoError(err)

	// 另一个浏览器：visitor 不同，但用户相同
	res, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Authenticated(s.voter.ID, "browser-b"))
	require.NoError(err)
	require.False(res.Voted)
	s.assertConsistent(s.project.ID)
}

func (s *VoteEngineSuite) TestRetractPrefersUsersOwnRow() {
	require := s.Require()

	// 匿名投票后在同一浏览器登录，再用同一账号在另一个浏览器投票
	_, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Anonymous("browser-a"))
	require.NoError(err)
	other := testutil.CreateUser(s.T(), s.db(), "", "")
	_, err = s.engine.ToggleVote(s.ctx, s.project.ID, identity.Authenticated(other.ID, "browser-b"))
	require.NoError(err)
	require.Equal(2, testutil.VoteCount(s.T(), s.db(), s.project.ID))

	res, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Authenticated(other.ID, "browser-a"))
	require.NoError(err)
	require.False(res.Voted)
	require.Equal(1, res.VoteCount)

	var remaining models.Vote
	require.NoError(s.db().Where("project_id = ?", s.project.ID).Take(&remaining).Error)
	require.Nil(remaining.VoterID)
	require.Equal("browser-a", *remaining.VisitorID)
}

// 以下并发用例跑在单连接 SQLite 上，事务由连接池串行化，行锁（FOR UPDATE）并未真正竞争。
// 行锁路径由 postgres_test.go 覆盖，需设置 TEST_DATABASE_URL 才会运行。
func (s *VoteEngineSuite) TestConcurrentDifferentIdentities() {
	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Anonymous(fmt.Sprintf("visitor-%d", i)))
			if err == nil && !res.Voted {
				err = fmt.Errorf("visitor-%d: expected a cast vote", i)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	s.Require().Equal(n, testutil.VoteCount(s.T(), s.db(), s.project.ID))
	s.assertConsistent(s.project.ID)
}

func (s *VoteEngineSuite) TestConcurrentSameIdentity() {
	const n = 5
	id := identity.Authenticated(s.voter.ID, "visitor-abc")

	var wg sync.WaitGroup
	var mu sync.Mutex
	var cast, retracted int
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.engine.ToggleVote(s.ctx, s.project.ID, id)
			s.NoError(err)
			mu.Lock()
			defer mu.Unlock()
			if res.Voted {
				cast++
			} else {
				retracted++
			}
		}()
	}
	wg.Wait()

	// 串行化后交替投票/取消：奇数次调用最终为已投票
	s.Require().Equal(3, cast)
	s.Require().Equal(2, retracted)
	s.Require().Equal(1, testutil.VoteCount(s.T(), s.db(), s.project.ID))
	s.assertConsistent(s.project.ID)
}

func (s *VoteEngineSuite) TestDriftedCounterRollsBack() {
	require := s.Require()
	_, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Anonymous("visitor-abc"))
	require.NoError(err)

	require.NoError(s.db().Model(&models.Project{}).Where("id = ?", s.project.ID).UpdateColumn("vote_count", 0).Error)

	_, err = s.engine.ToggleVote(s.ctx, s.project.ID, identity.Anonymous("visitor-abc"))
	require.ErrorIs(err, ErrCounterDrift)
	require.Equal(CodeVoteFailed, VoteErrorCode(err))
	// 删除已回滚
	require.Equal(int64(1), testutil.VoteRows(s.T(), s.db(), s.project.ID))
}

func (s *VoteEngineSuite) TestMetricsAndCommitHook() {
	var committed []string
	s.engine.OnCommit(func(projectID string) { committed = append(committed, projectID) })

	_, err := s.engine.ToggleVote(s.ctx, s.project.ID, identity.Anonymous("visitor-abc"))
	s.Require().NoError(err)
	_, err = s.engine.ToggleVote(s.ctx, s.project.ID, identity.Anonymous("visitor-abc"))
	s.Require().NoError(err)
	_, err = s.engine.ToggleVote(s.ctx, "missing", identity.Anonymous("visitor-abc"))
	s.Require().Error(err)

	s.Require().Equal([]string{s.project.ID, s.project.ID}, committed)
	s.Require().Equal(1.0, gatherValue(s.T(), s.metrics, "showcase_votes_cast_total"))
	s.Require().Equal(1.0, gatherValue(s.T(), s.metrics, "showcase_votes_retracted_total"))
	s.Require().Equal(1.0, gatherValue(s.T(), s.metrics, "showcase_vote_errors_total"))
}

func TestVoteErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		code   string
		status int
	}{
		{ErrProjectNotFound, CodeProjectNotFound, 404},
		{ErrProjectNotApproved, CodeProjectNotApproved, 403},
		{ErrCannotVoteOwnProject, CodeCannotVoteOwnProject, 403},
		{ErrUserNotFound, CodeUserNotFound, 404},
		{ErrVoteConflict, CodeVoteConflict, 409},
		{ErrVotingClosed, CodeVotingClosed, 403},
		{fmt.Errorf("wrapped: %w", ErrProjectNotApproved), CodeProjectNotApproved, 403},
		{fmt.Errorf("connection reset"), CodeVoteFailed, 500},
	}
	for _, tt := range tests {
		require.Equal(t, tt.code, VoteErrorCode(tt.err))
		status, msg := VoteErrorStatus(tt.err)
		require.Equal(t, tt.status, status)
		require.NotEmpty(t, msg)
	}
}

func gatherValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
			if g := metric.GetGauge(); g != nil {
				total += g.GetValue()
			}
		}
		return total
	}
	return 0
}
