// Package testutil opens throwaway stores and seeds fixtures for tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"showcase/internal/config"
	"showcase/internal/db"
	"showcase/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NewStore opens a private in-memory SQLite database. The pool has a single
// connection, so transactions run one at a time.
func NewStore(t testing.TB) *db.Store {
	t.Helper()
	store, err := db.Open(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		URL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// NewPostgresStore connects to TEST_DATABASE_URL and skips the test when it is unset.
func NewPostgresStore(t testing.TB) *db.Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	store, err := db.Open(context.Background(), config.DatabaseConfig{
		Driver:       "postgres",
		URL:          url,
		MaxOpenConns: 20,
		MaxIdleConns: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func CreateUser(t testing.TB, gdb *gorm.DB, id, role string) models.User {
	t.Helper()
	if id == "" {
		id = uuid.NewString()
	}
	if role == "" {
		role = models.RoleMember
	}
	u := models.User{
		ID:       id,
		Username: "u-" + id,
		Nickname: "user " + id,
		Password: "not-a-real-hash",
		Role:     role,
	}
	require.NoError(t, gdb.Create(&u).Error)
	return u
}

func CreateBootcamp(t testing.TB, gdb *gorm.DB, name string) models.Bootcamp {
	t.Helper()
	b := models.Bootcamp{Name: name, StartDate: time.Now(), IsActive: true}
	require.NoError(t, gdb.Create(&b).Error)
	return b
}

type ProjectOpts struct {
	Title      string
	AuthorID   string
	BootcampID string
	Approved   bool
	CreatedAt  time.Time
}

func CreateProject(t testing.TB, gdb *gorm.DB, opts ProjectOpts) models.Project {
	t.Helper()
	if opts.Title == "" {
		opts.Title = "project " + uuid.NewString()[:8]
	}
	url := "https://example.com/demo"
	p := models.Project{
		Title:       opts.Title,
		Description: "A **demo** project",
		Type:        models.ProjectTypeLink,
		ProjectURL:  &url,
		CoverImage:  "https://example.com/cover.png",
		IsApproved:  opts.Approved,
		BootcampID:  opts.BootcampID,
		AuthorID:    opts.AuthorID,
		CreatedAt:   opts.CreatedAt,
	}
	require.NoError(t, gdb.Omit(clause.Associations).Create(&p).Error)
	return p
}

// VoteCount reads the denormalized counter.
func VoteCount(t testing.TB, gdb *gorm.DB, projectID string) int {
	t.Helper()
	var p models.Project
	require.NoError(t, gdb.Select("vote_count").Where("id = ?", projectID).Take(&p).Error)
	return p.VoteCount
}

// VoteRows counts the vote rows behind the counter.
func VoteRows(t testing.TB, gdb *gorm.DB, projectID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, gdb.Model(&models.Vote{}).Where("project_id = ?", projectID).Count(&n).Error)
	return n
}
