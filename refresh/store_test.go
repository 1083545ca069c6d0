package refresh

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "ac:"), mr
}

func makeRecord(recordID, familyID, secretSeed string) Record {
	now := time.Now().Truncate(time.Second).UTC()
	return Record{
		RecordID:    recordID,
		PrincipalID: "user-1",
		Role:        0,
		FamilyID:    familyID,
		SecretHash:  sha256.Sum256([]byte(secretSeed)),
		CreatedAt:   now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestSaveAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := makeRecord("rec-1", "fam-1", "seed")
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != rec {
		t.Errorf("Get:\n got %+v\nwant %+v", got, rec)
	}
}

func TestGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "no-such-record")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get missing: err = %v, want ErrNotFound", err)
	}
}

func TestGetAfterTTLExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	rec := makeRecord("rec-1", "fam-1", "seed")
	if err := store.Save(ctx, rec, time.Second); err != nil {
		t.Fatal(err)
	}

	mr.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "rec-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after expiry: err = %v, want ErrNotFound", err)
	}
}

func TestRotateSuccess(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	old := makeRecord("rec-old", "fam-1", "old-secret")
	if err := store.Save(ctx, old, time.Hour); err != nil {
		t.Fatal(err)
	}

	next := makeRecord("rec-new", "fam-1", "new-secret")
	status, err := store.Rotate(ctx, old.RecordID, old.SecretHash, next, time.Hour)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if status != RotateOK {
		t.Fatalf("Rotate status = %v, want RotateOK", status)
	}

	// Old record must be a tombstone, not gone.
	gotOld, err := store.Get(ctx, old.RecordID)
	if err != nil {
		t.Fatalf("Get old: %v", err)
	}
	if !gotOld.Revoked {
		t.Error("old record not tombstoned after rotation")
	}

	gotNew, err := store.Get(ctx, next.RecordID)
	if err != nil {
		t.Fatalf("Get new: %v", err)
	}
	if gotNew.Revoked {
		t.Error("new record unexpectedly revoked")
	}
	if gotNew.FamilyID != "fam-1" {
		t.Errorf("new record family = %q, want fam-1", gotNew.FamilyID)
	}
}

func TestRotateReplayHitsTombstone(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	old := makeRecord("rec-old", "fam-1", "old-secret")
	if err := store.Save(ctx, old, time.Hour); err != nil {
		t.Fatal(err)
	}

	first := makeRecord("rec-a", "fam-1", "a")
	if status, err := store.Rotate(ctx, old.RecordID, old.SecretHash, first, time.Hour); err != nil || status != RotateOK {
		t.Fatalf("first Rotate = (%v, %v), want (RotateOK, nil)", status, err)
	}

	second := makeRecord("rec-b", "fam-1", "b")
	status, err := store.Rotate(ctx, old.RecordID, old.SecretHash, second, time.Hour)
	if err != nil {
		t.Fatalf("replay Rotate: %v", err)
	}
	if status != RotateRevoked {
		t.Fatalf("replay Rotate status = %v, want RotateRevoked", status)
	}

	// The loser's record must not have been created.
	if _, err := store.Get(ctx, second.RecordID); !errors.Is(err, ErrNotFound) {
		t.Errorf("loser record exists after failed rotation: err = %v", err)
	}
}

func TestRotateWrongHash(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	old := makeRecord("rec-old", "fam-1", "real-secret")
	if err := store.Save(ctx, old, time.Hour); err != nil {
		t.Fatal(err)
	}

	forged := sha256.Sum256([]byte("guessed-secret"))
	next := makeRecord("rec-new", "fam-1", "next")
	status, err := store.Rotate(ctx, old.RecordID, forged, next, time.Hour)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if status != RotateHashMismatch {
		t.Fatalf("Rotate status = %v, want RotateHashMismatch", status)
	}

	// Record must still be live; a bad guess is not a rotation.
	got, err := store.Get(ctx, old.RecordID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Revoked {
		t.Error("record tombstoned by failed hash check")
	}
}

func TestRotateUnknownRecord(t *testing.T) {
	store, _ := newTestStore(t)

	next := makeRecord("rec-new", "fam-1", "next")
	status, err := store.Rotate(context.Background(), "no-such", next.SecretHash, next, time.Hour)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if status != RotateNotFound {
		t.Fatalf("Rotate status = %v, want RotateNotFound", status)
	}
}

func TestRotateExpiredRecord(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Stamp is past but the key TTL has not fired yet.
	old := makeRecord("rec-old", "fam-1", "secret")
	old.ExpiresAt = time.Now().Add(-time.Minute).Truncate(time.Second).UTC()
	if err := store.Save(ctx, old, time.Hour); err != nil {
		t.Fatal(err)
	}

	next := makeRecord("rec-new", "fam-1", "next")
	status, err := store.Rotate(ctx, old.RecordID, old.SecretHash, next, time.Hour)
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if status != RotateExpired {
		t.Fatalf("Rotate status = %v, want RotateExpired", status)
	}

	if _, err := store.Get(ctx, old.RecordID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired record not deleted: err = %v", err)
	}
}

func TestRevokeIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	rec := makeRecord("rec-1", "fam-1", "seed")
	if err := store.Save(ctx, rec, time.Hour); err != nil {
		t.Fatal(err)
	}

	found, err := store.Revoke(ctx, "rec-1")
	if err != nil || !found {
		t.Fatalf("Revoke = (%v, %v), want (true, nil)", found, err)
	}

	got, err := store.Get(ctx, "rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Revoked {
		t.Fatal("record not tombstoned by Revoke")
	}

	found, err = store.Revoke(ctx, "rec-1")
	if err != nil || !found {
		t.Fatalf("second Revoke = (%v, %v), want (true, nil)", found, err)
	}

	found, err = store.Revoke(ctx, "no-such")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("Revoke reported found for unknown record")
	}
}

func TestRevokeFamily(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := makeRecord(fmt.Sprintf("rec-%d", i), "fam-1", fmt.Sprintf("seed-%d", i))
		if err := store.Save(ctx, rec, time.Hour); err != nil {
			t.Fatal(err)
		}
	}
	other := makeRecord("rec-other", "fam-2", "other")
	if err := store.Save(ctx, other, time.Hour); err != nil {
		t.Fatal(err)
	}

	count, err := store.RevokeFamily(ctx, "fam-1")
	if err != nil {
		t.Fatalf("RevokeFamily: %v", err)
	}
	if count != 3 {
		t.Fatalf("RevokeFamily count = %d, want 3", count)
	}

	for i := 0; i < 3; i++ {
		got, err := store.Get(ctx, fmt.Sprintf("rec-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if !got.Revoked {
			t.Errorf("rec-%d not tombstoned", i)
		}
	}

	gotOther, err := store.Get(ctx, "rec-other")
	if err != nil {
		t.Fatal(err)
	}
	if gotOther.Revoked {
		t.Error("unrelated family was revoked")
	}

	// Second sweep finds nothing live.
	count, err = store.RevokeFamily(ctx, "fam-1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("second RevokeFamily count = %d, want 0", count)
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	old := makeRecord("rec-old", "fam-1", "secret")
	if err := store.Save(ctx, old, time.Hour); err != nil {
		t.Fatal(err)
	}

	const workers = 16

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			next := makeRecord(fmt.Sprintf("rec-next-%d", i), "fam-1", fmt.Sprintf("next-%d", i))
			status, err := store.Rotate(ctx, old.RecordID, old.SecretHash, next, time.Hour)
			if err != nil {
				t.Errorf("Rotate: %v", err)
				return
			}

			mu.Lock()
			defer mu.Unlock()
			switch status {
			case RotateOK:
				winners++
			case RotateRevoked:
				// expected for losers
			default:
				t.Errorf("unexpected status %v", status)
			}
		}(i)
	}
	wg.Wait()

	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	if _, err := store.Get(context.Background(), "rec-1"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Get with dead backend: err = %v, want ErrRedisUnavailable", err)
	}
	if err := store.Ping(context.Background()); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Ping with dead backend: err = %v, want ErrRedisUnavailable", err)
	}
}
