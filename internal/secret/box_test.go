package secret

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func testBox(t *testing.T, fill byte) *Box {
	t.Helper()
	b, err := NewBox(bytes.Repeat([]byte{fill}, 32))
	if err != nil {
		t.Fatalf("NewBox failed: %v", err)
	}
	return b
}

func TestSealOpen(t *testing.T) {
	b := testBox(t, 1)
	sealed, err := b.Seal("s3cret pässword")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if !strings.HasPrefix(sealed, "v2:") || strings.Contains(sealed, "s3cret") {
		t.Errorf("unexpected sealed form %q", sealed)
	}
	again, _ := b.Seal("s3cret pässword")
	if again == sealed {
		t.Error("sealing twice should use distinct nonces")
	}
	plain, err := b.Open(sealed)
	if err != nil || plain != "s3cret pässword" {
		t.Errorf("Open = %q, %v", plain, err)
	}
}

func TestOpenWithWrongKey(t *testing.T) {
	sealed, _ := testBox(t, 1).Seal("x")
	if _, err := testBox(t, 2).Open(sealed); !errors.Is(err, ErrSealedPayload) {
		t.Errorf("expected ErrSealedPayload, got %v", err)
	}
	if _, err := testBox(t, 1).Open("v2:not-base64!"); !errors.Is(err, ErrSealedPayload) {
		t.Errorf("expected ErrSealedPayload, got %v", err)
	}
}

func TestOpenLegacyValues(t *testing.T) {
	b := testBox(t, 1)

	// "abc" xor-ed with the legacy key and base64 encoded.
	xored := []byte{'a' ^ 'd', 'b' ^ 'a', 'c' ^ 't'}
	legacy := "enc:" + base64.StdEncoding.EncodeToString(xored)

	plain, err := b.Open(legacy)
	if err != nil || plain != "abc" {
		t.Errorf("legacy Open = %q, %v", plain, err)
	}
	if plain, _ := b.Open("plaintext"); plain != "plaintext" {
		t.Errorf("unprefixed values should pass through, got %q", plain)
	}
	if !NeedsReseal(legacy) || !NeedsReseal("plaintext") || NeedsReseal("") {
		t.Error("unexpected NeedsReseal result")
	}
	if empty, _ := b.Seal(""); empty != "" {
		t.Error("empty secrets stay empty")
	}
}

func TestDecodeKey(t *testing.T) {
	if _, err := DecodeKey("short"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
	key, _ := GenerateKey()
	raw, err := DecodeKey(key)
	if err != nil || len(raw) != 32 {
		t.Errorf("DecodeKey(GenerateKey()) = %d bytes, %v", len(raw), err)
	}
}

func TestLoadKeyFromKeychain(t *testing.T) {
	keyring.MockInit()

	first, err := LoadKey("", "sql-console-test")
	if err != nil {
		t.Fatalf("LoadKey failed: %v", err)
	}
	second, err := LoadKey("", "sql-console-test")
	if err != nil {
		t.Fatalf("LoadKey failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("second load should return the key stored by the first")
	}

	configured, _ := GenerateKey()
	raw, err := LoadKey(configured, "sql-console-test")
	if err != nil || base64.StdEncoding.EncodeToString(raw) != configured {
		t.Error("a configured key takes precedence over the keychain")
	}
}
