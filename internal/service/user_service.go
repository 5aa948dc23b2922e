package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/database"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
)

const searchLimit = 20

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	SearchSupervisors(ctx context.Context, q string, limit int) ([]models.UserSummary, error)
	SearchUnassignedStudents(ctx context.Context, q string, limit int) ([]models.UserSummary, error)
}

// UserService handles user administration and directory lookups.
type UserService struct {
	repo      userRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, validator: validate, logger: logger}
}

// List returns users filtered by role and search text.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.PageMeta, error) {
	paging := models.Paging{Page: filter.Page, Limit: filter.Limit}.Normalize(20, 100)
	filter.Page, filter.Limit = paging.Page, paging.Limit
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	meta := models.NewPageMeta(total, paging.Page, paging.Limit)
	return users, &meta, nil
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "User not found", "failed to load user")
	}
	return user, nil
}

// Create registers an account with any role.
func (s *UserService) Create(ctx context.Context, req models.CreateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid user payload")
	}
	if err := s.ensureEmailFree(ctx, req.Email, ""); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, internalError(err, "failed to hash password")
	}
	user := &models.User{
		Email:        strings.TrimSpace(req.Email),
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		Role:         req.Role,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "User already exists")
		}
		return nil, internalError(err, "failed to create user")
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// Update applies a partial update to a user.
func (s *UserService) Update(ctx context.Context, id string, req models.UpdateUserRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid user payload")
	}
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "User not found", "failed to load user")
	}

	if req.Email != nil && !strings.EqualFold(*req.Email, user.Email) {
		if err := s.ensureEmailFree(ctx, *req.Email, user.ID); err != nil {
			return nil, err
		}
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, internalError(err, "failed to hash password")
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "Email already in use")
		}
		return nil, internalError(err, "failed to update user")
	}
	return user, nil
}

// Delete removes a user. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor models.Identity, id string) error {
	if actor.ID == id {
		return appErrors.Clone(appErrors.ErrBadRequest, "You cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return lookupError(err, "User not found", "failed to delete user")
	}
	return nil
}

// SearchSupervisors lists supervisors matching q.
func (s *UserService) SearchSupervisors(ctx context.Context, q string) ([]models.UserSummary, error) {
	users, err := s.repo.SearchSupervisors(ctx, q, searchLimit)
	if err != nil {
		return nil, internalError(err, "failed to search supervisors")
	}
	return users, nil
}

// SearchAvailableStudents lists students not yet in any group.
func (s *UserService) SearchAvailableStudents(ctx context.Context, q string) ([]models.UserSummary, error) {
	users, err := s.repo.SearchUnassignedStudents(ctx, q, searchLimit)
	if err != nil {
		return nil, internalError(err, "failed to search students")
	}
	return users, nil
}

func (s *UserService) ensureEmailFree(ctx context.Context, email, selfID string) error {
	existing, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != selfID:
		return appErrors.Clone(appErrors.ErrConflict, "User already exists")
	case err == nil, errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return internalError(err, "failed to check existing user")
	}
}
