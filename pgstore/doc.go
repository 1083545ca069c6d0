// Package pgstore is a reference [authcore.PrincipalStore] backed by
// Postgres, matching the conventional users table
// (id, username, hashed_password, is_admin). Services with a different
// schema implement the interface themselves; nothing in the engine depends
// on this package.
package pgstore
