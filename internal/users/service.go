package users

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/inkwell/inkwell-backend/internal/db/entities"
	"github.com/inkwell/inkwell-backend/internal/db/interfaces"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	usernameMinLen = 4
	usernameMaxLen = 20
	passwordMinLen = 8
	// bcrypt silently truncates beyond 72 bytes.
	passwordMaxLen = 72
)

var emailPattern = regexp.MustCompile(`^[\w-]+(\.[\w-]+)*@([\w-]+\.)+[a-zA-Z]{2,7}$`)

// Service manages account registration and credential verification. It is
// the identity collaborator for the post service: everything downstream
// trusts the caller identity this package verifies.
type Service struct {
	repo   interfaces.Repository
	logger *zap.SugaredLogger
}

// NewService creates the user service on the given database.
func NewService(database interfaces.Database, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:   database.Repository(entities.UserSchema),
		logger: logger,
	}
}

// Register creates a new account with a bcrypt-hashed password. Duplicate
// usernames or emails surface as ErrUserExists via the store's unique
// constraints.
func (s *Service) Register(ctx context.Context, username, email, password string) (*entities.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if !emailPattern.MatchString(email) {
		return nil, &ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	record, err := s.repo.Create(ctx, map[string]interface{}{
		"username":      username,
		"email":         email,
		"password_hash": string(hash),
		"role":          entities.RoleUser,
	})
	if errors.Is(err, interfaces.ErrUniqueConstraint) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Infow("user registered", "username", username)
	return entities.UserFromRecord(record), nil
}

// Login verifies the email/password pair and returns the account.
func (s *Service) Login(ctx context.Context, email, password string) (*entities.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	record, err := s.repo.FindOne(ctx, &interfaces.Query{
		Where: &interfaces.Filters{
			Conditions: []interfaces.Filter{{Field: "email", Value: email}},
		},
	})
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	user := entities.UserFromRecord(record)
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return user, nil
}

// GetByID returns the account with the given id.
func (s *Service) GetByID(ctx context.Context, id string) (*entities.User, error) {
	record, err := s.repo.GetByID(ctx, interfaces.StringID(id))
	if errors.Is(err, interfaces.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return entities.UserFromRecord(record), nil
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	switch {
	case n < usernameMinLen:
		return &ValidationError{Field: "username", Message: fmt.Sprintf("must be at least %d characters", usernameMinLen)}
	case n > usernameMaxLen:
		return &ValidationError{Field: "username", Message: fmt.Sprintf("must be at most %d characters", usernameMaxLen)}
	}
	return nil
}

func validatePassword(password string) error {
	switch {
	case len(password) < passwordMinLen:
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at least %d characters", passwordMinLen)}
	case len(password) > passwordMaxLen:
		return &ValidationError{Field: "password", Message: fmt.Sprintf("must be at most %d characters", passwordMaxLen)}
	}
	return nil
}
