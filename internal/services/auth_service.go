// internal/services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/config"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/repository"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountSuspended   = errors.New("account is suspended")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

const resetTokenTTL = time.Hour

// AccountMailer sends the account emails triggered by authentication flows.
type AccountMailer interface {
	SendWelcomeEmail(user *models.User) error
	SendPasswordReset(user *models.User, token string) error
}

type AuthService struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer AccountMailer
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username    string                 `json:"username" validate:"required,username"`
	Email       string                 `json:"email" validate:"required,email"`
	Password    string                 `json:"password" validate:"required,strong_password"`
	Company     string                 `json:"company,omitempty" validate:"max=255"`
	ProfileData map[string]interface{} `json:"profile_data,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,strong_password"`
}

type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"` // in seconds
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,strong_password"`
}

func NewAuthService(db *gorm.DB, cfg *config.Config, mailer AccountMailer) *AuthService {
	return &AuthService{
		db:     db,
		cfg:    cfg,
		mailer: mailer,
	}
}

// Register creates a customer account. Administrators are only seeded.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	email := normalizeEmail(req.Email)

	var existingUser models.User
	err := s.db.WithContext(ctx).Where("email = ? OR username = ?", email, req.Username).First(&existingUser).Error
	if err == nil {
		if existingUser.Email == email {
			return nil, apperrors.Conflict(apperrors.ReasonUserExists, "user with this email already exists")
		}
		return nil, apperrors.Conflict(apperrors.ReasonUserExists, "username already taken")
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Internal("database error", err)
	}

	user := &models.User{
		Username:    req.Username,
		Email:       email,
		UserType:    models.UserTypeCustomer,
		Status:      models.UserStatusActive,
		Company:     strings.TrimSpace(req.Company),
		ProfileData: models.JSONB(req.ProfileData),
	}

	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperrors.Internal("failed to hash password", err)
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, apperrors.Conflict(apperrors.ReasonUserExists, "user already exists").WithCause(err)
		}
		return nil, apperrors.Internal("failed to create user", err)
	}

	if s.mailer != nil {
		go func() {
			if err := s.mailer.SendWelcomeEmail(user); err != nil {
				logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send welcome email")
			}
		}()
	}

	return s.issueTokens(user)
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperrors.Internal("database error", err)
	}

	if err := user.CheckPassword(req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	if user.Status == models.UserStatusSuspended {
		return nil, ErrAccountSuspended
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to record last login")
	}

	return s.issueTokens(&user)
}

func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	userIDStr, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID in token: %w", err)
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if user.Status != models.UserStatusActive {
		return nil, ErrAccountSuspended
	}

	return s.issueTokens(user)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, req *ChangePasswordRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return invalidRequest(err)
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := user.CheckPassword(req.CurrentPassword); err != nil {
		return ErrInvalidCredentials
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		return apperrors.Internal("failed to hash password", err)
	}

	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", user.PasswordHash).Error; err != nil {
		return apperrors.Internal("failed to update password", err)
	}
	return nil
}

// ForgotPassword mails a reset link. Unknown addresses succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, req *ForgotPasswordRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return invalidRequest(err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return apperrors.Internal("database error", err)
	}

	resetToken, err := utils.GenerateRandomString(48)
	if err != nil {
		return apperrors.Internal("failed to generate reset token", err)
	}

	if user.ProfileData == nil {
		user.ProfileData = make(models.JSONB)
	}
	user.ProfileData["reset_token"] = resetToken
	user.ProfileData["reset_token_expires"] = time.Now().Add(resetTokenTTL).Unix()

	if err := s.db.WithContext(ctx).Model(&user).Update("profile_data", user.ProfileData).Error; err != nil {
		return apperrors.Internal("failed to save reset token", err)
	}

	if s.mailer != nil {
		go func() {
			if err := s.mailer.SendPasswordReset(&user, resetToken); err != nil {
				logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send password reset email")
			}
		}()
	}

	return nil
}

func (s *AuthService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return invalidRequest(err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("profile_data->>'reset_token' = ?", req.Token).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return apperrors.Internal("database error", err)
	}

	if !resetTokenValid(user.ProfileData, time.Now()) {
		return ErrInvalidResetToken
	}

	if err := user.SetPassword(req.NewPassword); err != nil {
		return apperrors.Internal("failed to hash password", err)
	}

	delete(user.ProfileData, "reset_token")
	delete(user.ProfileData, "reset_token_expires")

	err := s.db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{
		"password_hash": user.PasswordHash,
		"profile_data":  user.ProfileData,
	}).Error
	if err != nil {
		return apperrors.Internal("failed to update password", err)
	}

	return nil
}

func (s *AuthService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal("database error", err)
	}
	return &user, nil
}

func (s *AuthService) issueTokens(user *models.User) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(user.ID, user.Username, string(user.UserType), s.cfg.JWT.AccessTokenTTL)
	if err != nil {
		return nil, apperrors.Internal("failed to generate access token", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(user.ID, s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, apperrors.Internal("failed to generate refresh token", err)
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.JWT.AccessTokenTTL * 3600, // Convert hours to seconds
	}, nil
}

// resetTokenValid checks the expiry stored next to a reset token. JSONB
// numbers come back from postgres as float64.
func resetTokenValid(profile models.JSONB, now time.Time) bool {
	var expiresAt int64
	switch v := profile["reset_token_expires"].(type) {
	case float64:
		expiresAt = int64(v)
	case int64:
		expiresAt = v
	default:
		return false
	}
	return now.Unix() <= expiresAt
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
