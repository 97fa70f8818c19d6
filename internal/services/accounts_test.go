package services

import (
	"context"
	"testing"
	"time"

	"showcase/internal/identity"
	"showcase/internal/models"
	"showcase/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestAccounts(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	tokens := identity.NewTokens("test-secret", time.Hour)
	svc := NewAccountService(store.DB, tokens)

	reg, err := svc.Register(ctx, RegisterInput{Username: "alice", Nickname: "Alice", Password: "secret1"})
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, reg.User.Role)
	claims, err := tokens.Verify(reg.Token)
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, claims.UserID)

	_, err = svc.Register(ctx, RegisterInput{Username: "alice", Nickname: "Again", Password: "secret1"})
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Nickname: "Bob", Password: "123"})
	require.ErrorIs(t, err, ErrInvalidInput)

	login, err := svc.Login(ctx, " alice ", "secret1")
	require.NoError(t, err)
	require.Equal(t, reg.User.ID, login.User.ID)

	_, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrBadCredentials)
	_, err = svc.Login(ctx, "nobody", "secret1")
	require.ErrorIs(t, err, ErrBadCredentials)

	_, err = svc.GetUser(ctx, "missing")
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestEnsureAdmin(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	svc := NewAccountService(store.DB, identity.NewTokens("test-secret", time.Hour))

	require.NoError(t, svc.EnsureAdmin(ctx, "", ""))
	require.NoError(t, svc.EnsureAdmin(ctx, "root", "rootpass"))
	require.NoError(t, svc.EnsureAdmin(ctx, "root", "rootpass"))

	login, err := svc.Login(ctx, "root", "rootpass")
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, login.User.Role)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	svc := NewAccountService(store.DB, identity.NewTokens("test-secret", time.Hour))

	reg, err := svc.Register(ctx, RegisterInput{Username: "alice", Nickname: "Alice", Password: "secret1"})
	require.NoError(t, err)
	uid := reg.User.ID

	require.ErrorIs(t, svc.ChangePassword(ctx, uid, "", "secret2"), ErrInvalidInput)
	require.ErrorIs(t, svc.ChangePassword(ctx, uid, "secret1", "123"), ErrInvalidInput)
	require.ErrorIs(t, svc.ChangePassword(ctx, uid, "wrong1", "secret2"), ErrWrongPassword)
	require.ErrorIs(t, svc.ChangePassword(ctx, uid, "secret1", "secret1"), ErrInvalidInput)
	require.ErrorIs(t, svc.ChangePassword(ctx, "missing", "secret1", "secret2"), ErrUserNotFound)

	require.NoError(t, svc.ChangePassword(ctx, uid, "secret1", "secret2"))
	_, err = svc.Login(ctx, "alice", "secret1")
	require.ErrorIs(t, err, ErrBadCredentials)
	_, err = svc.Login(ctx, "alice", "secret2")
	require.NoError(t, err)
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore(t)
	svc := NewAccountService(store.DB, identity.NewTokens("test-secret", time.Hour))

	alice := testutil.CreateUser(t, store.DB, "", "")
	bob := testutil.CreateUser(t, store.DB, "", "")
	admin := testutil.CreateUser(t, store.DB, "", models.RoleAdmin)
	asAlice := identity.Resolution{Identity: identity.Authenticated(alice.ID, ""), Role: models.RoleMember}
	asAdmin := identity.Resolution{Identity: identity.Authenticated(admin.ID, ""), Role: models.RoleAdmin}

	nickname := "  Alice  "
	email := "alice@example.com"
	updated, err := svc.UpdateUser(ctx, alice.ID, UserUpdate{Nickname: &nickname, Email: &email}, asAlice)
	require.NoError(t, err)
	require.Equal(t, "Alice", updated.Nickname)
	require.NotNil(t, updated.Email)
	require.Equal(t, email, *updated.Email)

	_, err = svc.UpdateUser(ctx, bob.ID, UserUpdate{Nickname: &nickname}, asAlice)
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.UpdateUser(ctx, alice.ID, UserUpdate{Nickname: &nickname}, identity.Resolution{Identity: identity.Anonymous("v1")})
	require.ErrorIs(t, err, ErrForbidden)

	// 普通用户不能给自己升级角色
	role := models.RoleAdmin
	_, err = svc.UpdateUser(ctx, alice.ID, UserUpdate{Role: &role}, asAlice)
	require.ErrorIs(t, err, ErrForbidden)

	blank := " "
	_, err = svc.UpdateUser(ctx, alice.ID, UserUpdate{Nickname: &blank}, asAlice)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateUser(ctx, bob.ID, UserUpdate{Email: &email}, asAdmin)
	require.ErrorIs(t, err, ErrUsernameTaken)

	promoted, err := svc.UpdateUser(ctx, bob.ID, UserUpdate{Role: &role}, asAdmin)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, promoted.Role)

	bogus := "OWNER"
	_, err = svc.UpdateUser(ctx, bob.ID, UserUpdate{Role: &bogus}, asAdmin)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.UpdateUser(ctx, "missing", UserUpdate{Nickname: &nickname}, asAdmin)
	require.ErrorIs(t, err, ErrUserNotFound)

	// 清空邮箱写入 NULL，不占唯一索引
	empty := ""
	cleared, err := svc.UpdateUser(ctx, alice.ID, UserUpdate{Email: &empty}, asAlice)
	require.NoError(t, err)
	require.Nil(t, cleared.Email)
	_, err = svc.UpdateUser(ctx, bob.ID, UserUpdate{Email: &empty}, asAdmin)
	require.NoError(t, err)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
}
