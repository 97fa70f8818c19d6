package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"showcase/internal/identity"
	"showcase/internal/models"
	"showcase/internal/utils"

	"gorm.io/gorm"
)

type RegisterInput struct {
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult 登录或注册成功后返回给客户端
type AuthResult struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

type AccountService struct {
	db     *gorm.DB
	tokens *identity.Tokens
}

func NewAccountService(db *gorm.DB, tokens *identity.Tokens) *AccountService {
	return &AccountService{db: db, tokens: tokens}
}

func (s *AccountService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Nickname = strings.TrimSpace(in.Nickname)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Nickname == "" {
		return AuthResult{}, fmt.Errorf("%w: 请填写所有必填字段", ErrInvalidInput)
	}
	if len(in.Password) < 6 {
		return AuthResult{}, fmt.Errorf("%w: 密码至少6位", ErrInvalidInput)
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to hash password: %w", err)
	}
	user := models.User{
		Username: in.Username,
		Nickname: in.Nickname,
		Password: hash,
		Role:     models.RoleMember,
	}
	if in.Email != "" {
		user.Email = &in.Email
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			return AuthResult{}, ErrUsernameTaken
		}
		return AuthResult{}, fmt.Errorf("failed to create user: %w", err)
	}
	return s.issue(user)
}

func (s *AccountService) Login(ctx context.Context, username, password string) (AuthResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AuthResult{}, ErrBadCredentials
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("failed to load user: %w", err)
	}
	if !utils.CheckPasswordHash(strings.TrimSpace(password), user.Password) {
		return AuthResult{}, ErrBadCredentials
	}
	return s.issue(user)
}

func (s *AccountService) issue(user models.User) (AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Token: token}, nil
}

func (s *AccountService) GetUser(ctx context.Context, userID string) (models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, ErrUserNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// EnsureAdmin 启动时创建管理员账号（已存在则跳过）
func (s *AccountService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check admin user: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := models.User{Username: username, Nickname: username, Password: hash, Role: models.RoleAdmin}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	slog.Info("Admin user created", "username", username)
	return nil
}

// ChangePassword 校验旧密码后更新为新密码
func (s *AccountService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	oldPassword = strings.TrimSpace(oldPassword)
	newPassword = strings.TrimSpace(newPassword)
	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: 旧密码和新密码不能为空", ErrInvalidInput)
	}
	if len(newPassword) < 6 {
		return fmt.Errorf("%w: 新密码至少需要6个字符", ErrInvalidInput)
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPasswordHash(oldPassword, user.Password) {
		return ErrWrongPassword
	}
	if utils.CheckPasswordHash(newPassword, user.Password) {
		return fmt.Errorf("%w: 新密码不能与旧密码相同", ErrInvalidInput)
	}

	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("password", hash).Error; err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

func (s *AccountService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// UserUpdate nil 表示不修改
type UserUpdate struct {
	Nickname *string `json:"nickname"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
}

// UpdateUser 用户可修改自己的昵称和邮箱；修改角色或他人资料需要管理员
func (s *AccountService) UpdateUser(ctx context.Context, userID string, in UserUpdate, actor identity.Resolution) (models.User, error) {
	admin := actor.Role == models.RoleAdmin
	uid, _ := actor.Identity.UserID()
	if !admin && (uid == "" || uid != userID) {
		return models.User{}, ErrForbidden
	}

	updates := map[string]interface{}{}
	if in.Nickname != nil {
		nickname := strings.TrimSpace(*in.Nickname)
		if nickname == "" {
			return models.User{}, fmt.Errorf("%w: 昵称不能为空", ErrInvalidInput)
		}
		updates["nickname"] = nickname
	}
	if in.Email != nil {
		updates["email"] = optional(strings.TrimSpace(*in.Email))
	}
	if in.Role != nil {
		if !admin {
			return models.User{}, ErrForbidden
		}
		switch *in.Role {
		case models.RoleMember, models.RoleAdmin:
			updates["role"] = *in.Role
		default:
			return models.User{}, fmt.Errorf("%w: 未知的角色 %q", ErrInvalidInput, *in.Role)
		}
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	if len(updates) == 0 {
		return user, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		if isDuplicateKey(err) {
			return models.User{}, ErrUsernameTaken
		}
		return models.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return s.GetUser(ctx, userID)
}
