// Package token encodes and decodes access tokens. Tokens are JWTs signed
// with the keypair loaded by package keys; decoding classifies every failure
// into one of four sentinel kinds so callers can map them to transport
// responses without string matching.
package token
