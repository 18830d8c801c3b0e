package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dodge100/FairArena-sub008/internal/auth/audit"
	"github.com/Dodge100/FairArena-sub008/internal/auth/domain"
	"github.com/Dodge100/FairArena-sub008/internal/auth/kv"
	"github.com/Dodge100/FairArena-sub008/internal/auth/store"
	"github.com/Dodge100/FairArena-sub008/pkg/cryptox"
)

// Device flow errors map 1:1 onto the RFC 8628 token endpoint error codes.
var (
	ErrAuthorizationPending = errors.New("service: authorization pending")
	ErrSlowDown             = errors.New("service: polling too fast")
	ErrDeviceAccessDenied   = errors.New("service: user denied the request")
	ErrDeviceCodeExpired    = errors.New("service: device code expired")

	// ErrUserCodeNotFound means the code the user typed matches no pending
	// authorization. Shown on the verification page, not the token endpoint.
	ErrUserCodeNotFound = errors.New("service: user code not found")

	// ErrDeviceCodeConsumed means the authorization was already decided or
	// exchanged and cannot transition again.
	ErrDeviceCodeConsumed = errors.New("service: device authorization already settled")
)

const (
	// DefaultDeviceCodeTTL is how long the user has to approve.
	DefaultDeviceCodeTTL = 10 * time.Minute

	// DefaultDeviceInterval is the minimum seconds between polls.
	DefaultDeviceInterval = 5

	// userCodeRetries bounds collision retries when minting a user code. The
	// space is 32^8 so more than one retry is already unusual.
	userCodeRetries = 5

	deviceKeyPrefix   = "device:"
	userCodeKeyPrefix = "usercode:"
)

// DeviceAuthorizationResult is what the device authorization endpoint
// returns to the device: the raw device code plus the user-facing values.
type DeviceAuthorizationResult struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresIn               int64
	Interval                int
}

// DeviceService runs the RFC 8628 state machine. Records live only in the
// TTL store: the device code entry holds the state and a second entry maps
// the user code to the device entry's key.
type DeviceService struct {
	store           store.Store
	codes           kv.Store
	scopes          *ScopeService
	auditor         *audit.Auditor
	verificationURI string
	codeTTL         time.Duration
	interval        int
}

func NewDeviceService(st store.Store, codes kv.Store, scopes *ScopeService, auditor *audit.Auditor, verificationURI string, codeTTL time.Duration, interval int) *DeviceService {
	if codeTTL <= 0 {
		codeTTL = DefaultDeviceCodeTTL
	}
	if interval <= 0 {
		interval = DefaultDeviceInterval
	}
	return &DeviceService{
		store:           st,
		codes:           codes,
		scopes:          scopes,
		auditor:         auditor,
		verificationURI: verificationURI,
		codeTTL:         codeTTL,
		interval:        interval,
	}
}

// Authorize starts a device flow: validates the application and scopes, then
// mints the device code and user code pair.
func (s *DeviceService) Authorize(ctx context.Context, applicationID string, requestedScopes []string) (DeviceAuthorizationResult, error) {
	app, err := s.store.Applications().GetApplicationByID(ctx, applicationID)
	if errors.Is(err, store.ErrNotFound) {
		return DeviceAuthorizationResult{}, ErrInvalidClient
	}
	if err != nil {
		return DeviceAuthorizationResult{}, err
	}

	scopes, err := s.scopes.ValidateScopes(ctx, app, requestedScopes)
	if err != nil {
		return DeviceAuthorizationResult{}, err
	}

	deviceCode, err := cryptox.GenerateToken(cryptox.TokenSize512)
	if err != nil {
		return DeviceAuthorizationResult{}, err
	}
	deviceHash := cryptox.FingerprintToken(deviceCode)

	now := time.Now().UTC()
	record := domain.DeviceAuthorization{
		DeviceCodeHash:  deviceHash,
		ApplicationID:   app.ID,
		Scopes:          scopes,
		Status:          domain.DeviceStatusPending,
		VerificationURI: s.verificationURI,
		Interval:        s.interval,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.codeTTL),
	}

	// The user code space is small enough that collisions with concurrent
	// pending flows are possible. SetNX claims the code atomically; on a
	// clash we mint another.
	var userCode string
	for attempt := 0; attempt < userCodeRetries; attempt++ {
		candidate, err := cryptox.GenerateUserCode()
		if err != nil {
			return DeviceAuthorizationResult{}, err
		}
		claimed, err := s.codes.SetNX(ctx, userCodeKeyPrefix+candidate, []byte(deviceHash), s.codeTTL)
		if err != nil {
			return DeviceAuthorizationResult{}, err
		}
		if claimed {
			userCode = candidate
			break
		}
	}
	if userCode == "" {
		return DeviceAuthorizationResult{}, errors.New("service: could not allocate a unique user code")
	}
	record.UserCode = userCode

	payload, err := json.Marshal(record)
	if err != nil {
		return DeviceAuthorizationResult{}, err
	}
	if err := s.codes.Set(ctx, deviceKeyPrefix+deviceHash, payload, s.codeTTL); err != nil {
		return DeviceAuthorizationResult{}, fmt.Errorf("store device authorization: %w", err)
	}

	s.auditor.Record(ctx, audit.Event{
		Type:          audit.EventDeviceCodeIssued,
		ApplicationID: app.ID,
		Metadata:      map[string]any{"scopes": strings.Join(scopes, " ")},
	})

	return DeviceAuthorizationResult{
		DeviceCode:              deviceCode,
		UserCode:                userCode,
		VerificationURI:         s.verificationURI,
		VerificationURIComplete: s.verificationURI + "?user_code=" + userCode,
		ExpiresIn:               int64(s.codeTTL.Seconds()),
		Interval:                s.interval,
	}, nil
}

// Lookup resolves a user code to its pending authorization, for rendering
// the approval page. Codes are normalized so "abcd-efgh" and "ABCDEFGH" both
// resolve.
func (s *DeviceService) Lookup(ctx context.Context, userCode string) (domain.DeviceAuthorization, error) {
	hash, err := s.codes.Get(ctx, userCodeKeyPrefix+NormalizeUserCode(userCode))
	if errors.Is(err, kv.ErrNotFound) {
		return domain.DeviceAuthorization{}, ErrUserCodeNotFound
	}
	if err != nil {
		return domain.DeviceAuthorization{}, err
	}

	payload, err := s.codes.Get(ctx, deviceKeyPrefix+string(hash))
	if errors.Is(err, kv.ErrNotFound) {
		return domain.DeviceAuthorization{}, ErrUserCodeNotFound
	}
	if err != nil {
		return domain.DeviceAuthorization{}, err
	}

	var record domain.DeviceAuthorization
	if err := json.Unmarshal(payload, &record); err != nil {
		return domain.DeviceAuthorization{}, err
	}
	if time.Now().UTC().After(record.ExpiresAt) {
		return domain.DeviceAuthorization{}, ErrUserCodeNotFound
	}
	return record, nil
}

// Approve transitions the authorization to authorized on behalf of userID
// and records consent. Only a pending record can transition; anything else
// means the decision already happened.
func (s *DeviceService) Approve(ctx context.Context, userCode, userID string) error {
	record, err := s.Lookup(ctx, userCode)
	if err != nil {
		return err
	}

	app, err := s.store.Applications().GetApplicationByID(ctx, record.ApplicationID)
	if err != nil {
		return err
	}
	if _, err := s.scopes.GetOrUpdateConsent(ctx, userID, app.ID, record.Scopes); err != nil {
		return err
	}

	now := time.Now().UTC()
	err = s.transition(ctx, record.DeviceCodeHash, func(d *domain.DeviceAuthorization) error {
		if d.Status != domain.DeviceStatusPending {
			return ErrDeviceCodeConsumed
		}
		d.Status = domain.DeviceStatusAuthorized
		d.UserID = userID
		d.AuthorizedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	s.auditor.Record(ctx, audit.Event{
		Type:          audit.EventDeviceApproved,
		ApplicationID: record.ApplicationID,
		UserID:        userID,
	})
	return nil
}

// Deny transitions the authorization to denied.
func (s *DeviceService) Deny(ctx context.Context, userCode, userID string) error {
	record, err := s.Lookup(ctx, userCode)
	if err != nil {
		return err
	}

	err = s.transition(ctx, record.DeviceCodeHash, func(d *domain.DeviceAuthorization) error {
		if d.Status != domain.DeviceStatusPending {
			return ErrDeviceCodeConsumed
		}
		d.Status = domain.DeviceStatusDenied
		return nil
	})
	if err != nil {
		return err
	}

	s.auditor.Record(ctx, audit.Event{
		Type:          audit.EventDeviceDenied,
		ApplicationID: record.ApplicationID,
		UserID:        userID,
	})
	return nil
}

// Consume is the token endpoint's poll. Exactly one successful call per
// device code: the CAS flips an authorized record to consumed, so of two
// racing exchanges only the transition winner gets tokens and the loser sees
// an already-consumed code.
//
// A too-fast poll still stamps LastPolledAt, so a client that ignores
// slow_down keeps getting slow_down rather than sneaking a poll through on
// the old clock.
func (s *DeviceService) Consume(ctx context.Context, applicationID, deviceCode string) (domain.DeviceAuthorization, error) {
	deviceHash := cryptox.FingerprintToken(deviceCode)
	key := deviceKeyPrefix + deviceHash
	now := time.Now().UTC()

	var result domain.DeviceAuthorization
	var outcome error

	err := s.codes.Update(ctx, key, func(current []byte) ([]byte, error) {
		var d domain.DeviceAuthorization
		if err := json.Unmarshal(current, &d); err != nil {
			return nil, err
		}
		if d.ApplicationID != applicationID {
			outcome = ErrInvalidGrant
			return current, nil
		}
		if now.After(d.ExpiresAt) {
			outcome = ErrDeviceCodeExpired
			return current, nil
		}

		tooFast := !d.LastPolledAt.IsZero() && now.Sub(d.LastPolledAt) < time.Duration(d.Interval)*time.Second
		d.LastPolledAt = now

		if tooFast {
			outcome = ErrSlowDown
		} else {
			switch d.Status {
			case domain.DeviceStatusPending:
				outcome = ErrAuthorizationPending
			case domain.DeviceStatusDenied:
				outcome = ErrDeviceAccessDenied
			case domain.DeviceStatusAuthorized:
				outcome = nil
				result = d
				d.Status = domain.DeviceStatusConsumed
			case domain.DeviceStatusConsumed:
				outcome = ErrDeviceCodeExpired
			default:
				outcome = ErrInvalidGrant
			}
		}

		next, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		return next, nil
	})
	if errors.Is(err, kv.ErrNotFound) {
		// Unknown, expired-out, or already exchanged: all look the same.
		return domain.DeviceAuthorization{}, ErrDeviceCodeExpired
	}
	if err != nil {
		return domain.DeviceAuthorization{}, err
	}
	if outcome != nil {
		return domain.DeviceAuthorization{}, outcome
	}

	// The consumed record only exists so a replayed exchange reads as
	// expired; the user code mapping has no further use.
	_ = s.codes.Delete(ctx, userCodeKeyPrefix+result.UserCode)

	return result, nil
}

// transition applies fn to the stored record under CAS.
func (s *DeviceService) transition(ctx context.Context, deviceHash string, fn func(*domain.DeviceAuthorization) error) error {
	err := s.codes.Update(ctx, deviceKeyPrefix+deviceHash, func(current []byte) ([]byte, error) {
		var d domain.DeviceAuthorization
		if err := json.Unmarshal(current, &d); err != nil {
			return nil, err
		}
		if err := fn(&d); err != nil {
			return nil, err
		}
		return json.Marshal(d)
	})
	if errors.Is(err, kv.ErrNotFound) {
		return ErrUserCodeNotFound
	}
	return err
}

// NormalizeUserCode upcases and strips the separator so user input is
// forgiving about case and the dash.
func NormalizeUserCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	if len(code) == 8 {
		return code[:4] + "-" + code[4:]
	}
	return code
}
