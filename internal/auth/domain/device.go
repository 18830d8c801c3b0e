package domain

import "time"

// DeviceAuthorizationStatus is the RFC 8628 state of a device grant.
// pending transitions to authorized or denied exactly once; expiry is
// implicit and checked lazily on every read.
type DeviceAuthorizationStatus string

const (
	DeviceStatusPending    DeviceAuthorizationStatus = "pending"
	DeviceStatusAuthorized DeviceAuthorizationStatus = "authorized"
	DeviceStatusDenied     DeviceAuthorizationStatus = "denied"

	// DeviceStatusConsumed marks an authorized record whose tokens were
	// already issued. A consumed code behaves like an expired one.
	DeviceStatusConsumed DeviceAuthorizationStatus = "consumed"
)

// DeviceAuthorization is the ephemeral device-flow record. It is stored in
// the TTL store under SHA-256 of the device code; a second entry maps the
// human-readable user code to that hash without duplicating the payload.
type DeviceAuthorization struct {
	DeviceCodeHash  string                    `json:"device_code_hash"`
	UserCode        string                    `json:"user_code"`
	ApplicationID   string                    `json:"application_id"`
	Scopes          []string                  `json:"scopes"`
	Status          DeviceAuthorizationStatus `json:"status"`
	VerificationURI string                    `json:"verification_uri"`
	Interval        int                       `json:"interval"` // minimum seconds between polls
	CreatedAt       time.Time                 `json:"created_at"`
	LastPolledAt    time.Time                 `json:"last_polled_at"`
	AuthorizedAt    *time.Time                `json:"authorized_at,omitempty"`
	UserID          string                    `json:"user_id,omitempty"` // set on approval
	ExpiresAt       time.Time                 `json:"expires_at"`
}
