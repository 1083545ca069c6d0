package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	authcore "github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/password"
)

const lookupQuery = `SELECT id, hashed_password, is_admin FROM users WHERE username = $1`

// Store resolves credentials against a users table. Safe for concurrent
// use; the pool handles connection lifecycle.
type Store struct {
	pool   *pgxpool.Pool
	hasher *password.Hasher
}

// New wraps an existing pool. hasher must match the parameters the stored
// hashes were created with (package password reads them from the hash
// itself, so [password.DefaultConfig] is fine for verification).
func New(pool *pgxpool.Pool, hasher *password.Hasher) *Store {
	return &Store{pool: pool, hasher: hasher}
}

// LookupPrincipal implements [authcore.PrincipalStore]. Unknown usernames
// and wrong passwords both come back as [authcore.ErrInvalidCredentials].
func (s *Store) LookupPrincipal(ctx context.Context, creds authcore.Credentials) (authcore.Principal, error) {
	var (
		id      int64
		hash    string
		isAdmin bool
	)

	err := s.pool.QueryRow(ctx, lookupQuery, creds.Identifier).Scan(&id, &hash, &isAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return authcore.Principal{}, authcore.ErrInvalidCredentials
		}
		return authcore.Principal{}, fmt.Errorf("query user: %w", err)
	}

	ok, err := s.hasher.Verify(creds.Password, hash)
	if err != nil {
		return authcore.Principal{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return authcore.Principal{}, authcore.ErrInvalidCredentials
	}

	role := authcore.RoleUser
	if isAdmin {
		role = authcore.RoleAdmin
	}

	return authcore.Principal{ID: strconv.FormatInt(id, 10), Role: role}, nil
}
