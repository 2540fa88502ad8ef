// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the database
//
// Every service takes its repositories as interfaces (programming to an
// interface): tests inject in-memory mocks, and the service never imports
// the sqlite package at all.
//
// The services in this package form the scoring and access-control core:
//
//	IdentityService    — opaque credential → User snapshot or anonymous
//	LedgerReader       — best-effort multi-source ledger reads
//	ScoreService       — weighted, de-duplicated aggregation + cached projection
//	LeaderboardService — competition-ranked views over the projections
//	authz.go           — the pure authorization gate
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/auth"
	"github.com/nafis/campus-hub/internal/model"
	"github.com/nafis/campus-hub/internal/repository"
)

// IdentityService resolves a request's opaque credential to a full User
// record, or to an explicit anonymous identity.
//
// THE CONTRACT (and why it's strict):
//
//   - A missing, malformed, expired, or tampered credential resolves to
//     ANONYMOUS (nil user, nil error). Being logged out is a normal state,
//     not a failure, and it must never 500 a public page.
//   - A credential whose subject no longer exists also resolves to
//     anonymous — the account may have been deleted after the token was
//     issued.
//   - ONLY an unreachable user store is an error, wrapping
//     apperror.ErrAuthContext. Infrastructure being down is the one thing
//     the caller must not paper over as "not logged in".
//
// The resolver is read-only; it never refreshes tokens or touches the user
// record.
type IdentityService struct {
	tokens *auth.TokenService
	users  repository.UserRepository
	logger *slog.Logger
}

// Compile-time check: the HTTP middleware depends on this exact contract.
var _ auth.IdentityResolver = (*IdentityService)(nil)

// NewIdentityService creates an IdentityService with all required dependencies.
func NewIdentityService(tokens *auth.TokenService, users repository.UserRepository, logger *slog.Logger) *IdentityService {
	return &IdentityService{
		tokens: tokens,
		users:  users,
		logger: logger,
	}
}

// Resolve maps a credential string to (user, nil), (nil, nil) for anonymous,
// or (nil, err wrapping apperror.ErrAuthContext) for infrastructure failure.
func (s *IdentityService) Resolve(ctx context.Context, credential string) (*model.User, error) {
	if credential == "" {
		return nil, nil // no credential presented — anonymous
	}

	userID, err := s.tokens.Validate(credential)
	if err != nil {
		// Expired or invalid token. Log at debug — this is routine churn
		// (stale cookies), not something an operator should be paged for.
		s.logger.Debug("credential rejected", slog.String("error", err.Error()))
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// Token subject no longer exists — treat as anonymous.
			s.logger.Debug("credential for deleted user", slog.String("userID", userID))
			return nil, nil
		}
		// The store itself failed. This is the AuthContext error: fatal to
		// the request, distinct from "not logged in".
		return nil, fmt.Errorf("service/identity: %w", apperror.AuthContext(err))
	}

	return user, nil
}
