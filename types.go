package authcore

import (
	"context"
	"fmt"
	"io"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
)

// Role is the authorization tier carried inside access tokens and refresh
// records. Only two tiers exist; anything else fails validation.
type Role uint8

const (
	// RoleUser is the default tier for authenticated principals.
	RoleUser Role = iota
	// RoleAdmin marks administrative principals. The engine never gates on
	// it; gateways decide what admins may reach.
	RoleAdmin
)

// String returns the wire form of the role ("user" or "admin").
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// ParseRole converts a wire-form role string back to a [Role].
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the defined tiers.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Principal is an authenticated identity as the engine sees it: an opaque
// ID owned by the user store, plus the role tier.
type Principal struct {
	ID   string
	Role Role
}

// TokenPair is returned by IssueSession, Login, and Rotate. AccessToken is
// a signed JWT; RefreshToken is opaque and single-use.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthResult is returned by [Engine.ValidateAccess]. It carries the verified
// identity claims; it never grants anything by itself.
type AuthResult struct {
	PrincipalID string
	Role        Role
}

// Credentials is what [PrincipalStore.LookupPrincipal] receives from Login.
// Identifier is typically a username; the engine does not interpret it.
type Credentials struct {
	Identifier string
	Password   string
}

// PrincipalStore is the integration point with the relational user store.
// Implementations verify the password themselves (see package password for
// the hashing used by the reference pgstore adapter) and must return
// [ErrInvalidCredentials] when either the principal is unknown or the
// password does not match, so the engine cannot leak which one failed.
type PrincipalStore interface {
	LookupPrincipal(ctx context.Context, creds Credentials) (Principal, error)
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
// Handle must not block; slow sinks cause event drops, not backpressure.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
