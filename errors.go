package authcore

import "errors"

var (
	// ErrUnauthorized is returned when a presented credential fails
	// verification for any reason other than expiry.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials is returned by Login when the principal store
	// rejects the identifier/password combination.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTokenExpired is returned by ValidateAccess for a well-signed but
	// expired access token. Callers should route this to the refresh flow.
	ErrTokenExpired = errors.New("access token expired")
	// ErrRefreshInvalid is returned when a refresh token cannot be decoded
	// into a record ID and secret.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when an already-rotated or revoked refresh
	// token is presented again. The session family is revoked as a whole.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrSessionNotFound is returned when the refresh record does not exist
	// or has already been dropped by TTL.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable is returned on transient Redis failures. The
	// operation did not complete and may be retried.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called on an
	// engine that did not go through Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)
