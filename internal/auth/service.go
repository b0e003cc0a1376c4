package auth

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	apperrors "github.com/atelierhq/backstage/internal/errors"
	"github.com/atelierhq/backstage/internal/models"
)

// Service performs credential checks against the users table and
// issues tokens on success.
type Service struct {
	db  *gorm.DB
	jwt *JWTService
	log zerolog.Logger
}

func NewService(db *gorm.DB, jwt *JWTService, log zerolog.Logger) *Service {
	return &Service{db: db, jwt: jwt, log: log.With().Str("component", "auth").Logger()}
}

// Login verifies an email/password pair. Unknown accounts, inactive
// accounts and wrong passwords all return the same error so the
// response never reveals which part failed.
func (s *Service) Login(ctx context.Context, email, password string) (*Token, *models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Burn a bcrypt comparison anyway so lookup misses take as
			// long as password mismatches.
			CheckPassword(password, "$2a$10$invalidsaltinvalidsaltinvalidsaltinvalidsaltinvalid")
			return nil, nil, apperrors.NewUnauthorizedError("invalid credentials")
		}
		return nil, nil, apperrors.NewStoreError("lookup user", err)
	}

	if !user.IsActive || !CheckPassword(password, user.PasswordHash) {
		s.log.Warn().Str("email", email).Msg("failed login attempt")
		return nil, nil, apperrors.NewUnauthorizedError("invalid credentials")
	}

	token, err := s.jwt.Generate(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		s.log.Warn().Err(err).Msg("failed to record login time")
	}

	s.log.Info().Str("email", user.Email).Str("role", user.Role).Msg("user logged in")
	return token, &user, nil
}

// CreateUser registers an account with a hashed password. Used by the
// CLI bootstrap command.
func (s *Service) CreateUser(ctx context.Context, email, password, role string) (*models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, apperrors.NewStoreError("create user", err)
	}
	return &user, nil
}
