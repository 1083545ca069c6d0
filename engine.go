package authcore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authcore/internal"
	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/refresh"
	"github.com/MrEthical07/authcore/token"
)

// Engine is the token lifecycle core. Construct it through [Builder.Build];
// after that every method is safe for concurrent use.
type Engine struct {
	config     Config
	codec      *token.Codec
	store      *refresh.Store
	principals PrincipalStore
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
}

func (e *Engine) ready() error {
	if e == nil || e.codec == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return nil
}

// IssueSession creates a fresh session family for an already-authenticated
// principal and returns its first token pair. Use this when authentication
// happened outside the engine (SSO callback, service account, tests).
func (e *Engine) IssueSession(ctx context.Context, p Principal) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, errors.New("principal id required")
	}
	if !p.Role.Valid() {
		return nil, fmt.Errorf("invalid role %d", p.Role)
	}

	familyID := uuid.NewString()

	pair, recordID, err := e.issueTokens(ctx, p, familyID)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventSessionIssued, true, p.ID, familyID, recordID, nil)

	return pair, nil
}

// Login verifies credentials against the configured [PrincipalStore] and
// issues a session. Returns [ErrInvalidCredentials] without distinguishing
// unknown identifiers from wrong passwords.
func (e *Engine) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.principals == nil {
		return nil, errors.New("no principal store configured")
	}

	p, err := e.principals.LookupPrincipal(ctx, Credentials{Identifier: identifier, Password: password})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			e.metrics.Inc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", ErrInvalidCredentials)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("principal lookup: %w", err)
	}

	pair, err := e.IssueSession(ctx, p)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, p.ID, "", "", nil)

	return pair, nil
}

// ValidateAccess verifies a bearer access token. It is purely local: no
// Redis round-trip, so revocation of the refresh family does not affect
// outstanding access tokens before they expire.
//
// Expiry maps to [ErrTokenExpired]; every other rejection carries
// [ErrUnauthorized] joined with the codec's failure kind.
func (e *Engine) ValidateAccess(ctx context.Context, raw string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	start := time.Now()

	claims, err := e.codec.DecodeAccess(raw)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Join(ErrUnauthorized, err)
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}

	e.metrics.Observe(MetricValidateLatency, time.Since(start))

	return &AuthResult{PrincipalID: claims.PrincipalID, Role: role}, nil
}

// Rotate exchanges a live refresh token for a new token pair, retiring the
// old token in the same atomic step. A token can win this exchange exactly
// once; presenting it again revokes its whole session family and returns
// [ErrRefreshReuse].
func (e *Engine) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	recordID, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		e.metrics.Inc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", "", ErrRefreshInvalid)
		return nil, ErrRefreshInvalid
	}
	providedHash := internal.HashRefreshSecret(secret)

	rec, err := e.store.Get(ctx, recordID)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrNotFound):
			e.metrics.Inc(MetricRotateFailure)
			e.emitAudit(ctx, auditEventRefreshInvalid, false, "", "", recordID, ErrSessionNotFound)
			return nil, ErrSessionNotFound
		case errors.Is(err, refresh.ErrRedisUnavailable):
			return nil, errors.Join(ErrStoreUnavailable, err)
		default:
			e.metrics.Inc(MetricRotateFailure)
			return nil, errors.Join(ErrRefreshInvalid, err)
		}
	}

	if rec.Revoked || rec.SecretHash != providedHash {
		return nil, e.handleReuse(ctx, rec)
	}

	next, nextSecret, err := e.newRecord(Principal{ID: rec.PrincipalID, Role: Role(rec.Role)}, rec.FamilyID)
	if err != nil {
		return nil, err
	}

	status, err := e.store.Rotate(ctx, recordID, providedHash, next, e.config.Token.RefreshTTL)
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}

	switch status {
	case refresh.RotateOK:
		// proceed to token issuance below
	case refresh.RotateRevoked, refresh.RotateHashMismatch:
		// Lost a race against a concurrent rotation of the same token.
		return nil, e.handleReuse(ctx, rec)
	case refresh.RotateNotFound, refresh.RotateExpired:
		// The record aged out between the read and the swap. The family
		// ID is in hand, so sweep any sibling that outlived its chain.
		count, rerr := e.store.RevokeFamily(ctx, rec.FamilyID)
		if rerr != nil {
			log.Printf("authcore: family revoke after expired rotation failed: %v", rerr)
		}
		if count > 0 {
			e.metrics.Inc(MetricFamilyRevoked)
		}
		e.metrics.Inc(MetricRotateFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, rec.PrincipalID, rec.FamilyID, recordID, ErrSessionNotFound)
		return nil, ErrSessionNotFound
	default:
		e.metrics.Inc(MetricRotateFailure)
		return nil, errors.Join(ErrRefreshInvalid, fmt.Errorf("rotate status %d", status))
	}

	access, err := e.codec.SignAccess(rec.PrincipalID, Role(rec.Role).String())
	if err != nil {
		return nil, err
	}
	refreshTok, err := internal.EncodeRefreshToken(next.RecordID, nextSecret)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricRotateSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, rec.PrincipalID, rec.FamilyID, next.RecordID, nil)

	return &TokenPair{AccessToken: access, RefreshToken: refreshTok}, nil
}

// Revoke retires the single session behind a refresh token (logout).
// Idempotent: revoking an already-revoked session succeeds. Outstanding
// access tokens stay valid until they expire.
func (e *Engine) Revoke(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	rec, err := e.authenticateRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}

	found, err := e.store.Revoke(ctx, rec.RecordID)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	if !found {
		return ErrSessionNotFound
	}

	e.metrics.Inc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, true, rec.PrincipalID, rec.FamilyID, rec.RecordID, nil)

	return nil
}

// LogoutEverywhere revokes every session in the token's family. The token
// must prove possession (hash match); a tombstoned token is accepted since
// the holder clearly once owned the session and the result is strictly less
// access.
func (e *Engine) LogoutEverywhere(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}

	rec, err := e.authenticateRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}

	count, err := e.store.RevokeFamily(ctx, rec.FamilyID)
	if err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	e.metrics.Inc(MetricLogoutEverywhere)
	if count > 0 {
		e.metrics.Inc(MetricFamilyRevoked)
	}
	e.emitAudit(ctx, auditEventLogoutEverywhere, true, rec.PrincipalID, rec.FamilyID, rec.RecordID, nil)

	return nil
}

// RevokeFamily is the administrative entry point for killing a session
// family by ID, without holding any of its tokens. Returns how many records
// were tombstoned.
func (e *Engine) RevokeFamily(ctx context.Context, familyID string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if familyID == "" {
		return 0, errors.New("family id required")
	}

	count, err := e.store.RevokeFamily(ctx, familyID)
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}

	e.metrics.Inc(MetricFamilyRevoked)
	e.emitAudit(ctx, auditEventFamilyRevoked, true, "", familyID, "", nil)

	return count, nil
}

// Ping reports whether the refresh store backend is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.store.Ping(ctx); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}, Histograms: map[MetricID][]uint64{}}
	}
	return e.metrics.Snapshot()
}

// newRecord builds a fresh refresh record for the principal within the
// given family. The plaintext secret is returned alongside; it exists only
// long enough to be encoded into the client token.
func (e *Engine) newRecord(p Principal, familyID string) (refresh.Record, [32]byte, error) {
	var zero [32]byte

	id, err := internal.NewRecordID()
	if err != nil {
		return refresh.Record{}, zero, fmt.Errorf("generate record id: %w", err)
	}
	secret, err := internal.NewRefreshSecret()
	if err != nil {
		return refresh.Record{}, zero, fmt.Errorf("generate refresh secret: %w", err)
	}

	now := time.Now().UTC()
	rec := refresh.Record{
		RecordID:    id.String(),
		PrincipalID: p.ID,
		Role:        byte(p.Role),
		FamilyID:    familyID,
		SecretHash:  internal.HashRefreshSecret(secret),
		CreatedAt:   now,
		ExpiresAt:   now.Add(e.config.Token.RefreshTTL),
	}

	return rec, secret, nil
}

func (e *Engine) issueTokens(ctx context.Context, p Principal, familyID string) (*TokenPair, string, error) {
	rec, secret, err := e.newRecord(p, familyID)
	if err != nil {
		return nil, "", err
	}

	if err := e.store.Save(ctx, rec, e.config.Token.RefreshTTL); err != nil {
		return nil, "", errors.Join(ErrStoreUnavailable, err)
	}

	access, err := e.codec.SignAccess(p.ID, p.Role.String())
	if err != nil {
		return nil, "", err
	}
	refreshTok, err := internal.EncodeRefreshToken(rec.RecordID, secret)
	if err != nil {
		return nil, "", err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refreshTok}, rec.RecordID, nil
}

// authenticateRefresh decodes a refresh token and proves possession against
// the stored record. Tombstoned records pass; callers that must reject them
// (rotation) do their own check.
func (e *Engine) authenticateRefresh(ctx context.Context, refreshToken string) (refresh.Record, error) {
	recordID, secret, err := internal.DecodeRefreshToken(refreshToken)
	if err != nil {
		return refresh.Record{}, ErrRefreshInvalid
	}

	rec, err := e.store.Get(ctx, recordID)
	if err != nil {
		switch {
		case errors.Is(err, refresh.ErrNotFound):
			return refresh.Record{}, ErrSessionNotFound
		case errors.Is(err, refresh.ErrRedisUnavailable):
			return refresh.Record{}, errors.Join(ErrStoreUnavailable, err)
		default:
			return refresh.Record{}, errors.Join(ErrRefreshInvalid, err)
		}
	}

	if rec.SecretHash != internal.HashRefreshSecret(secret) {
		return refresh.Record{}, ErrUnauthorized
	}

	return rec, nil
}

// handleReuse is the theft response: tombstone the entire family, including
// whatever token a concurrent winner may have just been handed.
func (e *Engine) handleReuse(ctx context.Context, rec refresh.Record) error {
	count, err := e.store.RevokeFamily(ctx, rec.FamilyID)
	if err != nil {
		// The reuse verdict stands even when the family sweep fails;
		// the caller is rejected either way.
		log.Printf("authcore: family revoke after reuse detection failed: %v", err)
	}

	e.metrics.Inc(MetricRotateFailure)
	e.metrics.Inc(MetricRefreshReuseDetected)
	if count > 0 {
		e.metrics.Inc(MetricFamilyRevoked)
	}
	e.emitAudit(ctx, auditEventRefreshReuse, false, rec.PrincipalID, rec.FamilyID, rec.RecordID, ErrRefreshReuse)
	e.emitAudit(ctx, auditEventFamilyRevoked, false, rec.PrincipalID, rec.FamilyID, rec.RecordID, ErrRefreshReuse)

	return ErrRefreshReuse
}
