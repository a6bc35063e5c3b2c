// internal/services/user_service.go
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/repository"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

type UserService struct {
	db *gorm.DB
}

type UpdateUserProfileRequest struct {
	Username    string                 `json:"username,omitempty" validate:"omitempty,username"`
	Company     *string                `json:"company,omitempty" validate:"omitempty,max=255"`
	ProfileData map[string]interface{} `json:"profile_data,omitempty"`
}

type DeleteAccountRequest struct {
	Password string `json:"password" validate:"required"`
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal("database error", err)
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, req *UpdateUserProfileRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != "" && req.Username != user.Username {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("username = ? AND id <> ?", req.Username, userID).
			Count(&count).Error; err != nil {
			return nil, apperrors.Internal("database error", err)
		}
		if count > 0 {
			return nil, apperrors.Conflict(apperrors.ReasonUserExists, "username already taken")
		}
		user.Username = req.Username
	}

	if req.Company != nil {
		user.Company = strings.TrimSpace(*req.Company)
	}

	user.ProfileData = mergeProfile(user.ProfileData, req.ProfileData)

	err = s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
		"username":     user.Username,
		"company":      user.Company,
		"profile_data": user.ProfileData,
	}).Error
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, apperrors.Conflict(apperrors.ReasonUserExists, "username already taken").WithCause(err)
		}
		return nil, apperrors.Internal("failed to update profile", err)
	}

	return user, nil
}

// DeleteAccount soft-deletes a customer. Accounts holding active licenses are
// kept so activated machines stay traceable to an owner.
func (s *UserService) DeleteAccount(ctx context.Context, userID uuid.UUID, req *DeleteAccountRequest) error {
	if err := utils.ValidateStruct(req); err != nil {
		return invalidRequest(err)
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := user.CheckPassword(req.Password); err != nil {
		return ErrInvalidCredentials
	}

	if user.IsAdmin() {
		return apperrors.Validation("administrator accounts cannot be deleted")
	}

	var activeLicenses int64
	if err := s.db.WithContext(ctx).Model(&models.License{}).
		Where("owner_id = ? AND license_status = ?", userID, models.LicenseStatusActive).
		Count(&activeLicenses).Error; err != nil {
		return apperrors.Internal("failed to count licenses", err)
	}
	if activeLicenses > 0 {
		return apperrors.Validation("cannot delete account with active licenses")
	}

	if err := s.db.WithContext(ctx).Delete(user).Error; err != nil {
		return apperrors.Internal("failed to delete account", err)
	}

	return nil
}

// mergeProfile overlays updates onto the stored profile. A nil value removes
// the key.
func mergeProfile(current models.JSONB, updates map[string]interface{}) models.JSONB {
	if len(updates) == 0 {
		return current
	}
	if current == nil {
		current = make(models.JSONB)
	}
	for key, value := range updates {
		if value == nil {
			delete(current, key)
			continue
		}
		current[key] = value
	}
	return current
}
