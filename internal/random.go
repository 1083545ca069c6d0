package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// RecordID identifies one refresh record. 128 bits of CSPRNG output,
// rendered as unpadded base64url in Redis keys and audit events.
type RecordID [16]byte

const (
	refreshTokenRawSize = 48
	refreshSecretSize   = 32
)

func NewRecordID() (RecordID, error) {
	var id RecordID
	_, err := rand.Read(id[:])
	return id, err
}

func (r RecordID) Bytes() []byte {
	return r[:]
}

func (r RecordID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(r[:])
}

func ParseRecordID(s string) (RecordID, error) {
	var id RecordID

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid record id size")
	}

	copy(id[:], raw)
	return id, nil
}

// NewRefreshSecret draws the 32-byte secret half of a refresh token. Only
// its SHA-256 hash is ever stored.
func NewRefreshSecret() ([refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte
	_, err := rand.Read(secret[:])
	return secret, err
}

func HashRefreshSecret(secret [refreshSecretSize]byte) [32]byte {
	return sha256.Sum256(secret[:])
}

// EncodeRefreshToken packs recordID || secret into the opaque wire form
// handed to clients: base64url over 48 raw bytes.
func EncodeRefreshToken(recordID string, secret [refreshSecretSize]byte) (string, error) {
	id, err := ParseRecordID(recordID)
	if err != nil {
		return "", err
	}

	var raw [refreshTokenRawSize]byte
	copy(raw[:len(id)], id[:])
	copy(raw[len(id):], secret[:])

	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// DecodeRefreshToken reverses [EncodeRefreshToken]. Any length or encoding
// deviation is rejected before Redis is consulted.
func DecodeRefreshToken(token string) (string, [refreshSecretSize]byte, error) {
	var secret [refreshSecretSize]byte

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", secret, err
	}
	if len(raw) != refreshTokenRawSize {
		return "", secret, errors.New("invalid refresh token size")
	}

	var id RecordID
	copy(id[:], raw[:len(id)])
	copy(secret[:], raw[len(id):])

	return id.String(), secret, nil
}
