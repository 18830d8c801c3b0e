package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/audit"
	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/idx"
)

// ErrInvalidScope is wrapped around every scope validation failure. The
// message lists all failing scopes at once so a client fixes its request in
// one round trip rather than one scope at a time.
var ErrInvalidScope = errors.New("service: invalid scope")

// ScopeService validates requested scopes against the catalog and the
// application's grants, and manages user consent records.
type ScopeService struct {
	store   store.Store
	auditor *audit.Auditor
}

func NewScopeService(st store.Store, auditor *audit.Auditor) *ScopeService {
	return &ScopeService{store: st, auditor: auditor}
}

// ValidateScopes checks every requested scope and accumulates the failures
// instead of stopping at the first. A scope is valid when it is a built-in
// OIDC scope or a catalog entry, the application is allowed to request it,
// and any verification requirement is met. Returns the validated list with
// duplicates removed, preserving request order.
func (s *ScopeService) ValidateScopes(ctx context.Context, app domain.Application, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, fmt.Errorf("%w: no scopes requested", ErrInvalidScope)
	}

	var (
		problems []string
		valid    []string
		seen     = make(map[string]struct{}, len(requested))
	)

	for _, name := range requested {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		if !app.AllowsScope(name) {
			problems = append(problems, fmt.Sprintf("%s: not allowed for this application", name))
			continue
		}

		if domain.IsBuiltinOIDCScope(name) {
			valid = append(valid, name)
			continue
		}

		scope, err := s.store.Scopes().GetScopeByName(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			problems = append(problems, fmt.Sprintf("%s: unknown scope", name))
			continue
		}
		if err != nil {
			return nil, err
		}

		if scope.RequiresVerification && !app.IsVerified {
			problems = append(problems, fmt.Sprintf("%s: requires a verified application", name))
			continue
		}

		valid = append(valid, name)
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScope, strings.Join(problems, "; "))
	}
	return valid, nil
}

// GetOrUpdateConsent records the user's grant of scopes to the application.
// Granted scopes are monotonic: a new authorization can only add scopes,
// never remove them, and the history entry records just the newly added
// ones. When nothing new is granted the call is a no-op returning the
// existing consent. A previously revoked consent does not resurrect; a fresh
// consent row is created instead.
func (s *ScopeService) GetOrUpdateConsent(ctx context.Context, userID, applicationID string, scopes []string) (domain.Consent, error) {
	now := time.Now().UTC()

	existing, err := s.store.Consents().GetConsent(ctx, userID, applicationID)
	if errors.Is(err, store.ErrNotFound) {
		consent := domain.Consent{
			ID:            idx.New().String(),
			UserID:        userID,
			ApplicationID: applicationID,
			GrantedScopes: sortedCopy(scopes),
			ScopeHistory: []domain.ConsentGrant{
				{Scopes: sortedCopy(scopes), GrantedAt: now},
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.Consents().CreateConsent(ctx, consent); err != nil {
			return domain.Consent{}, err
		}
		s.auditor.Record(ctx, audit.Event{
			Type:          audit.EventConsentGranted,
			ApplicationID: applicationID,
			UserID:        userID,
			Metadata:      map[string]any{"scopes": strings.Join(consent.GrantedScopes, " ")},
		})
		return consent, nil
	}
	if err != nil {
		return domain.Consent{}, err
	}

	var added []string
	for _, name := range scopes {
		if !existing.HasScope(name) {
			added = append(added, name)
		}
	}
	if len(added) == 0 {
		return existing, nil
	}

	sort.Strings(added)
	existing.GrantedScopes = sortedCopy(append(existing.GrantedScopes, added...))
	existing.ScopeHistory = append(existing.ScopeHistory, domain.ConsentGrant{Scopes: added, GrantedAt: now})
	existing.UpdatedAt = now

	if err := s.store.Consents().UpdateConsentScopes(ctx, existing.ID, existing.GrantedScopes, existing.ScopeHistory); err != nil {
		return domain.Consent{}, err
	}

	s.auditor.Record(ctx, audit.Event{
		Type:          audit.EventConsentGranted,
		ApplicationID: applicationID,
		UserID:        userID,
		Metadata:      map[string]any{"added_scopes": strings.Join(added, " ")},
	})
	return existing, nil
}

// RevokeConsent withdraws the user's grant and revokes every outstanding
// refresh token for the pair, in one transaction. Access tokens already
// issued run out their short lifetime.
func (s *ScopeService) RevokeConsent(ctx context.Context, userID, applicationID string) error {
	now := time.Now().UTC()

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Consents().RevokeConsent(ctx, userID, applicationID, now); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllUserApplicationRefreshTokens(ctx, userID, applicationID)
	})
	if err != nil {
		return err
	}

	s.auditor.Record(ctx, audit.Event{
		Type:          audit.EventConsentRevoked,
		ApplicationID: applicationID,
		UserID:        userID,
	})
	return nil
}

// ListConsents returns the user's active consents.
func (s *ScopeService) ListConsents(ctx context.Context, userID string) ([]domain.Consent, error) {
	return s.store.Consents().ListConsentsForUser(ctx, userID)
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
