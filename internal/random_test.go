package internal

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func TestRefreshTokenRoundTrip(t *testing.T) {
	id, err := NewRecordID()
	if err != nil {
		t.Fatalf("NewRecordID: %v", err)
	}
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}

	tok, err := EncodeRefreshToken(id.String(), secret)
	if err != nil {
		t.Fatalf("EncodeRefreshToken: %v", err)
	}

	gotID, gotSecret, err := DecodeRefreshToken(tok)
	if err != nil {
		t.Fatalf("DecodeRefreshToken: %v", err)
	}
	if gotID != id.String() {
		t.Errorf("record id = %q, want %q", gotID, id.String())
	}
	if gotSecret != secret {
		t.Error("secret mismatch after round trip")
	}
}

func TestDecodeRefreshTokenRejectsBadInput(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64", "!!!not-base64!!!"},
		{"too short", base64.RawURLEncoding.EncodeToString(make([]byte, 20))},
		{"too long", base64.RawURLEncoding.EncodeToString(make([]byte, 64))},
		{"padded encoding", base64.URLEncoding.EncodeToString(make([]byte, 48))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := DecodeRefreshToken(tc.token); err == nil {
				t.Errorf("DecodeRefreshToken(%q) succeeded, want error", tc.token)
			}
		})
	}
}

func TestParseRecordID(t *testing.T) {
	id, err := NewRecordID()
	if err != nil {
		t.Fatalf("NewRecordID: %v", err)
	}

	parsed, err := ParseRecordID(id.String())
	if err != nil {
		t.Fatalf("ParseRecordID: %v", err)
	}
	if !bytes.Equal(parsed.Bytes(), id.Bytes()) {
		t.Error("parsed record id differs from original")
	}

	if _, err := ParseRecordID("short"); err == nil {
		t.Error("ParseRecordID accepted wrong-size input")
	}
}

func TestHashRefreshSecretIsStable(t *testing.T) {
	secret, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}

	if HashRefreshSecret(secret) != HashRefreshSecret(secret) {
		t.Error("hash is not deterministic")
	}

	other, err := NewRefreshSecret()
	if err != nil {
		t.Fatalf("NewRefreshSecret: %v", err)
	}
	if HashRefreshSecret(secret) == HashRefreshSecret(other) {
		t.Error("distinct secrets produced identical hashes")
	}
}

func FuzzDecodeRefreshToken(f *testing.F) {
	id, _ := NewRecordID()
	secret, _ := NewRefreshSecret()
	valid, _ := EncodeRefreshToken(id.String(), secret)

	f.Add(valid)
	f.Add("")
	f.Add("AAAA")

	f.Fuzz(func(t *testing.T, input string) {
		gotID, gotSecret, err := DecodeRefreshToken(input)
		if err != nil {
			return
		}
		// Every accepted token must re-encode to itself.
		again, err := EncodeRefreshToken(gotID, gotSecret)
		if err != nil {
			t.Fatalf("re-encode of accepted token failed: %v", err)
		}
		if again != input {
			t.Errorf("round trip mismatch: %q -> %q", input, again)
		}
	})
}
