package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps every backend failure. The operation did not
	// complete; callers may retry.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrNotFound means the record key is absent, either never issued or
	// already dropped by TTL.
	ErrNotFound = errors.New("refresh record not found")
)

// RotateStatus is the outcome of the atomic rotation script.
type RotateStatus int

const (
	// RotateNotFound: the old record key is absent.
	RotateNotFound RotateStatus = iota
	// RotateExpired: the record outlived its expiry stamp; it was deleted.
	RotateExpired
	// RotateHashMismatch: the presented secret does not hash to the stored
	// value. Treated as theft by the caller.
	RotateHashMismatch
	// RotateRevoked: the record is a tombstone; the token was already used
	// or revoked. Treated as theft by the caller.
	RotateRevoked
	// RotateOK: the old record is now a tombstone and the new record is live.
	RotateOK
	// RotateCorrupt: the stored blob has an unknown version.
	RotateCorrupt
)

// Lua script offsets are 1-based: version at 1, revoked at 2, hash at 3..34,
// expiry at 35. They must track the layout constants in record.go.

// rotateScript atomically verifies the old record and swaps in the new one.
// Every check the Go caller did against its earlier Get is repeated here so
// two concurrent rotations of the same token cannot both win.
//
// KEYS: old record, new record, family set.
// ARGV: secret hash (raw 32 bytes), new record blob, new TTL millis,
// now unix seconds, new record ID.
var rotateScript = redis.NewScript(`
local function read_be64(s, offset)
	local v = 0
	for i = 0, 7 do
		v = v * 256 + string.byte(s, offset + i)
	end
	return v
end

local blob = redis.call('GET', KEYS[1])
if not blob then
	return 0
end
if string.byte(blob, 1) ~= 1 then
	return 5
end
if string.byte(blob, 2) == 1 then
	return 3
end
local exp = read_be64(blob, 35)
if exp <= tonumber(ARGV[4]) then
	redis.call('DEL', KEYS[1])
	return 1
end
if string.sub(blob, 3, 34) ~= ARGV[1] then
	return 2
end

redis.call('SETRANGE', KEYS[1], 1, string.char(1))
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
redis.call('SADD', KEYS[3], ARGV[5])
redis.call('PEXPIRE', KEYS[3], ARGV[3])
return 4
`)

// revokeScript tombstones a single record in place, keeping its TTL.
// Returns 1 when the record exists (already-revoked included), 0 otherwise.
var revokeScript = redis.NewScript(`
local blob = redis.call('GET', KEYS[1])
if not blob then
	return 0
end
if string.byte(blob, 2) == 0 then
	redis.call('SETRANGE', KEYS[1], 1, string.char(1))
end
return 1
`)

// revokeFamilyScript tombstones every live record in a family set.
// ARGV[1] is the record key prefix. Returns the number newly tombstoned.
var revokeFamilyScript = redis.NewScript(`
local ids = redis.call('SMEMBERS', KEYS[1])
local n = 0
for _, id in ipairs(ids) do
	local key = ARGV[1] .. id
	local blob = redis.call('GET', key)
	if blob and string.byte(blob, 2) == 0 then
		redis.call('SETRANGE', key, 1, string.char(1))
		n = n + 1
	end
end
return n
`)

// Store persists refresh records in Redis. Safe for concurrent use.
type Store struct {
	rdb    *redis.Client
	prefix string
}

// NewStore wraps an existing client. prefix namespaces every key.
func NewStore(rdb *redis.Client, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) recordKey(id string) string {
	return s.prefix + "r:" + id
}

func (s *Store) familyKey(familyID string) string {
	return s.prefix + "f:" + familyID
}

// Save writes a new record and registers it in its family set. Record and
// family index are written in one transaction so neither can exist alone.
func (s *Store) Save(ctx context.Context, rec Record, ttl time.Duration) error {
	blob, err := Encode(rec)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(rec.RecordID), blob, ttl)
		pipe.SAdd(ctx, s.familyKey(rec.FamilyID), rec.RecordID)
		pipe.PExpire(ctx, s.familyKey(rec.FamilyID), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get fetches and decodes one record, tombstones included. Returns
// [ErrNotFound] when the key is absent.
func (s *Store) Get(ctx context.Context, recordID string) (Record, error) {
	blob, err := s.rdb.Get(ctx, s.recordKey(recordID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return Decode(recordID, blob)
}

// Rotate atomically retires the record oldID and installs next, provided the
// old record is live, unexpired, and its stored hash matches providedHash.
// The returned status says exactly which check failed; only [RotateOK] means
// next is now live.
func (s *Store) Rotate(ctx context.Context, oldID string, providedHash [32]byte, next Record, ttl time.Duration) (RotateStatus, error) {
	blob, err := Encode(next)
	if err != nil {
		return RotateCorrupt, err
	}

	res, err := rotateScript.Run(ctx, s.rdb,
		[]string{s.recordKey(oldID), s.recordKey(next.RecordID), s.familyKey(next.FamilyID)},
		providedHash[:],
		blob,
		ttl.Milliseconds(),
		time.Now().Unix(),
		next.RecordID,
	).Int64()
	if err != nil {
		return RotateNotFound, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	status := RotateStatus(res)
	if status < RotateNotFound || status > RotateCorrupt {
		return RotateCorrupt, fmt.Errorf("unexpected rotate status %d", res)
	}

	return status, nil
}

// Revoke tombstones one record, preserving its TTL. Idempotent: revoking a
// tombstone reports found=true with no change.
func (s *Store) Revoke(ctx context.Context, recordID string) (found bool, err error) {
	res, err := revokeScript.Run(ctx, s.rdb, []string{s.recordKey(recordID)}).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return res == 1, nil
}

// RevokeFamily tombstones every live record in the family and returns how
// many it changed. Records already expired out of Redis are skipped.
func (s *Store) RevokeFamily(ctx context.Context, familyID string) (int, error) {
	res, err := revokeFamilyScript.Run(ctx, s.rdb,
		[]string{s.familyKey(familyID)},
		s.prefix+"r:",
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(res), nil
}

// Ping checks backend reachability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
