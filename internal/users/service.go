package users

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service registers users.
type Service struct {
	store    Store
	hashCost int
	logger   *zap.Logger
	now      func() time.Time
}

// Config holds users service configuration.
type Config struct {
	Store    Store
	HashCost int // bcrypt cost, defaults to bcrypt.DefaultCost
	Logger   *zap.Logger
}

// New creates a new users service.
func New(cfg *Config) *Service {
	cost := cfg.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	return &Service{
		store:    cfg.Store,
		hashCost: cost,
		logger:   cfg.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register validates the credentials, creates the identity and its profile,
// and returns the new user.
func (s *Service) Register(ctx context.Context, email string, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if len(password) < MinPasswordLength {
		RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrWeakPassword
	}
	if len(password) > MaxPasswordBytes {
		RegistrationsTotal.WithLabelValues("invalid").Inc()
		return nil, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("hash password: %w", err)
	}

	identity := &Identity{
		User: User{
			ID:        uuid.New().String(),
			Email:     email,
			CreatedAt: s.now(),
		},
		PasswordHash: hash,
	}

	err = s.store.Create(ctx, identity)
	if err != nil {
		if IsValidation(err) {
			RegistrationsTotal.WithLabelValues("duplicate").Inc()
			return nil, err
		}
		RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create user: %w", err)
	}

	RegistrationsTotal.WithLabelValues("created").Inc()
	s.logger.Info("user-registered",
		zap.String("user-id", identity.ID))

	user := identity.User
	return &user, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrInvalidEmail
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}

	return strings.ToLower(email), nil
}
