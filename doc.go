// Package authcore implements the token lifecycle core of a microservice
// authentication system: asymmetric-key signed JWT access tokens, rotating
// opaque refresh tokens with Redis-backed revocation, and user/admin role
// separation surfaced at validation time.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Principal, TokenPair, AuthResult). Mechanism lives in
// subpackages: key loading in keys/, the access-token codec in token/, the
// refresh record store in refresh/, audit dispatch under internal/. The
// relational user store and the HTTP gateway are external collaborators,
// integrated through [PrincipalStore] and middleware/ respectively.
//
// # What this package must NOT do
//
//   - Expose Redis clients, record encodings, or key material in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build).
//   - Gate endpoints by role. The engine reports the verified role; the
//     gateway decides what it is allowed to reach.
//
// # Performance contract
//
// ValidateAccess is the hot path and completes without any Redis round-trip.
// IssueSession, Rotate, and the revocation operations are allowed one Redis
// round-trip each (rotation is a single Lua compare-and-swap).
package authcore
