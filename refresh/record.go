package refresh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Binary layout, version 1. Offsets are fixed so the rotation script can
// read the header in place (Lua offsets are these plus one):
//
//	[0]      version
//	[1]      revoked flag (0|1)
//	[2:34]   sha256 of the token secret
//	[34:42]  expiresAt, unix seconds, big endian
//	[42:50]  createdAt, unix seconds, big endian
//	[50]     role byte
//	[51]     len(principalID), then principalID bytes
//	[...]    len(familyID), then familyID bytes
const (
	recordVersion = 1

	offVersion   = 0
	offRevoked   = 1
	offHash      = 2
	offExpiresAt = 34
	offCreatedAt = 42
	offRole      = 50
	offVarData   = 51

	maxFieldLen = 255
)

var (
	// ErrCorruptRecord means a stored blob failed structural validation.
	// It should never happen outside of operator error or version skew.
	ErrCorruptRecord = errors.New("corrupt refresh record")
	// ErrRecordTooLarge means a principal or family ID exceeds the
	// single-byte length prefix.
	ErrRecordTooLarge = errors.New("refresh record field too large")
)

// Record is one refresh credential's server-side state. The secret itself is
// never stored; SecretHash is its SHA-256.
type Record struct {
	RecordID    string
	PrincipalID string
	Role        byte
	FamilyID    string
	SecretHash  [32]byte
	Revoked     bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Encode serializes r into the version-1 binary form.
func Encode(r Record) ([]byte, error) {
	if len(r.PrincipalID) == 0 || len(r.PrincipalID) > maxFieldLen {
		return nil, fmt.Errorf("%w: principal id length %d", ErrRecordTooLarge, len(r.PrincipalID))
	}
	if len(r.FamilyID) == 0 || len(r.FamilyID) > maxFieldLen {
		return nil, fmt.Errorf("%w: family id length %d", ErrRecordTooLarge, len(r.FamilyID))
	}

	buf := make([]byte, offVarData+1+len(r.PrincipalID)+1+len(r.FamilyID))

	buf[offVersion] = recordVersion
	if r.Revoked {
		buf[offRevoked] = 1
	}
	copy(buf[offHash:offExpiresAt], r.SecretHash[:])
	binary.BigEndian.PutUint64(buf[offExpiresAt:offCreatedAt], uint64(r.ExpiresAt.Unix()))
	binary.BigEndian.PutUint64(buf[offCreatedAt:offRole], uint64(r.CreatedAt.Unix()))
	buf[offRole] = r.Role

	i := offVarData
	buf[i] = byte(len(r.PrincipalID))
	i++
	i += copy(buf[i:], r.PrincipalID)
	buf[i] = byte(len(r.FamilyID))
	i++
	copy(buf[i:], r.FamilyID)

	return buf, nil
}

// Decode parses a version-1 blob. The RecordID is not part of the blob; the
// caller supplies it from the Redis key.
func Decode(recordID string, blob []byte) (Record, error) {
	var r Record

	if len(blob) < offVarData+2 {
		return r, fmt.Errorf("%w: short blob (%d bytes)", ErrCorruptRecord, len(blob))
	}
	if blob[offVersion] != recordVersion {
		return r, fmt.Errorf("%w: unknown version %d", ErrCorruptRecord, blob[offVersion])
	}

	r.RecordID = recordID
	r.Revoked = blob[offRevoked] == 1
	copy(r.SecretHash[:], blob[offHash:offExpiresAt])
	r.ExpiresAt = time.Unix(int64(binary.BigEndian.Uint64(blob[offExpiresAt:offCreatedAt])), 0).UTC()
	r.CreatedAt = time.Unix(int64(binary.BigEndian.Uint64(blob[offCreatedAt:offRole])), 0).UTC()
	r.Role = blob[offRole]

	i := offVarData
	pidLen := int(blob[i])
	i++
	if pidLen == 0 || i+pidLen+1 > len(blob) {
		return r, fmt.Errorf("%w: bad principal id length", ErrCorruptRecord)
	}
	r.PrincipalID = string(blob[i : i+pidLen])
	i += pidLen

	famLen := int(blob[i])
	i++
	if famLen == 0 || i+famLen != len(blob) {
		return r, fmt.Errorf("%w: bad family id length", ErrCorruptRecord)
	}
	r.FamilyID = string(blob[i : i+famLen])

	return r, nil
}
