// Package audit emits structured security events for the authorization
// server. Events go through slog so the deployment's log pipeline picks them
// up without a separate sink.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/Dodge100/FairArena-sub008/pkg/slogx"
)

// Event types recorded by the server.
const (
	EventTokenIssued        = "token_issued"
	EventTokenRefreshed     = "token_refreshed"
	EventTokenRevoked       = "token_revoked"
	EventRefreshTokenReplay = "refresh_token_replay"
	EventAuthCodeExchanged  = "auth_code_exchanged"
	EventAuthCodeRejected   = "auth_code_rejected"
	EventDeviceCodeIssued   = "device_code_issued"
	EventDeviceApproved     = "device_approved"
	EventDeviceDenied       = "device_denied"
	EventConsentGranted     = "consent_granted"
	EventConsentRevoked     = "consent_revoked"
	EventClientAuthFailed   = "client_auth_failed"
	EventKeyRotated         = "signing_key_rotated"
)

// Event is one security-relevant occurrence.
type Event struct {
	Type          string
	ApplicationID string
	UserID        string
	IPAddress     string
	UserAgent     string
	Metadata      map[string]any
}

// Auditor records security events.
type Auditor struct {
	log *slog.Logger
}

// New creates an Auditor writing through the given logger. A nil logger
// falls back to slog.Default.
func New(log *slog.Logger) *Auditor {
	if log == nil {
		log = slog.Default()
	}
	return &Auditor{log: log.With("component", "audit")}
}

// Record emits the event at info level. The request-scoped logger from ctx
// wins over the constructor logger so request IDs flow through.
func (a *Auditor) Record(ctx context.Context, ev Event) {
	log := a.log
	if ctxLog := slogx.FromContext(ctx); ctxLog != slog.Default() {
		log = ctxLog.With("component", "audit")
	}

	attrs := make([]any, 0, 12)
	attrs = append(attrs, "event", ev.Type, "ts", time.Now().UTC().Format(time.RFC3339))
	if ev.ApplicationID != "" {
		attrs = append(attrs, "application_id", ev.ApplicationID)
	}
	if ev.UserID != "" {
		attrs = append(attrs, "user_id", ev.UserID)
	}
	if ev.IPAddress != "" {
		attrs = append(attrs, "ip", ev.IPAddress)
	}
	if ev.UserAgent != "" {
		attrs = append(attrs, "user_agent", ev.UserAgent)
	}
	for k, v := range ev.Metadata {
		attrs = append(attrs, k, v)
	}

	log.InfoContext(ctx, "audit", attrs...)
}
