// Package service validates sign-in credentials against directory accounts.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"collab-suite/auth/internal/directory/domain"
	"collab-suite/auth/internal/directory/repository"
	"collab-suite/auth/internal/security"
	sessiondomain "collab-suite/auth/internal/session/domain"
)

// dummyPassword is hashed once at startup so unknown emails cost the same as a wrong password.
const dummyPassword = "directory-timing-equaliser"

// Service is the account directory. It implements the session manager's Directory.
type Service struct {
	repo      repository.Repository
	hasher    security.Hasher
	dummyHash string
	logger    *slog.Logger
}

// NewService returns a directory Service. It hashes a dummy password with hasher up front.
func NewService(repo repository.Repository, hasher security.Hasher, logger *slog.Logger) (*Service, error) {
	if repo == nil || hasher == nil {
		return nil, errors.New("directory: repository and hasher are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dummy, err := hasher.Hash([]byte(dummyPassword))
	if err != nil {
		return nil, fmt.Errorf("directory: dummy hash: %w", err)
	}
	return &Service{repo: repo, hasher: hasher, dummyHash: dummy, logger: logger}, nil
}

// ValidateCredentials returns the principal for matching credentials. Unknown
// emails, wrong passwords and disabled accounts all yield ErrUnauthorized.
func (s *Service) ValidateCredentials(ctx context.Context, creds sessiondomain.Credentials) (sessiondomain.Principal, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" || creds.Password == "" {
		return sessiondomain.Principal{}, sessiondomain.ErrUnauthorized
	}
	acc, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return sessiondomain.Principal{}, fmt.Errorf("%w: account lookup: %w", sessiondomain.ErrUpstreamUnavailable, err)
	}
	if acc == nil {
		_ = s.hasher.Compare(s.dummyHash, []byte(creds.Password))
		return sessiondomain.Principal{}, sessiondomain.ErrUnauthorized
	}
	if err := s.hasher.Compare(acc.PasswordHash, []byte(creds.Password)); err != nil {
		if !errors.Is(err, security.ErrHashMismatch) {
			s.logger.WarnContext(ctx, "directory: stored password hash is unreadable",
				slog.String("account_id", acc.ID), slog.Any("error", err))
		}
		return sessiondomain.Principal{}, sessiondomain.ErrUnauthorized
	}
	if !acc.Active() {
		return sessiondomain.Principal{}, sessiondomain.ErrUnauthorized
	}
	return sessiondomain.Principal{SubjectID: acc.ID, Role: acc.Role}, nil
}

// Register creates an active account with a fresh id and the hashed password.
func (s *Service) Register(ctx context.Context, email, password, role string) (*domain.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", sessiondomain.ErrInvalidArgument)
	}
	hash, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	acc := &domain.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.StatusActive,
	}
	if err := s.repo.Create(ctx, acc); err != nil {
		return nil, err
	}
	return acc, nil
}

// HealthCheck pings the account store.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
