// Package keys loads and validates the asymmetric keypair used to sign and
// verify access tokens. Loading is strict: missing, malformed, or mismatched
// material fails fast with [ErrKeyLoad] so a service never starts half-keyed.
package keys
