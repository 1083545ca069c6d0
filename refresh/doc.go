// Package refresh stores refresh records in Redis and implements the
// single-use rotation contract.
//
// # Record model
//
// One Redis string per record, binary-encoded with a fixed-offset header
// (version, revoked flag, secret hash, expiry) so the rotation Lua script
// can verify and tombstone without a full decode. A per-family set indexes
// every record ID ever issued for a login session, live and tombstoned.
//
// # Tombstones
//
// Rotation and revocation never delete a record; they flip its revoked byte
// in place, preserving the TTL. Presenting a tombstoned token is therefore
// distinguishable from presenting one that never existed, which is what
// makes reuse detection possible.
//
// # Architecture boundaries
//
// This package owns Redis access and atomicity. Token wire format lives in
// internal/; reuse policy (revoking the family, classifying errors for
// callers) is the Engine's job.
package refresh
