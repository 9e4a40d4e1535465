package record

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey("my-secret")
	k2 := DeriveKey("my-secret")
	if len(k1) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(k1))
	}
	for i := range k1 {
		if k1[i] != k2[i] {
			t.Fatal("same input must produce same key")
		}
	}
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	k1 := DeriveKey("secret-a")
	k2 := DeriveKey("secret-b")
	same := true
	for i := range k1 {
		if k1[i] != k2[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different inputs must produce different keys")
	}
}

func TestEncryptDecryptNotes_RoundTrip(t *testing.T) {
	key := DeriveKey("records-secret")
	notes := "Patient reports persistent cough; advised rest and fluids."

	stored, err := EncryptNotes(notes, key)
	if err != nil {
		t.Fatalf("EncryptNotes: %v", err)
	}

	if stored == notes {
		t.Fatal("stored notes should not match plaintext")
	}
	if _, err := base64.StdEncoding.DecodeString(stored); err != nil {
		t.Fatalf("stored notes should be base64: %v", err)
	}

	got, err := DecryptNotes(stored, key)
	if err != nil {
		t.Fatalf("DecryptNotes: %v", err)
	}
	if got != notes {
		t.Fatalf("round-trip mismatch: got %q, want %q", got, notes)
	}
}

func TestDecryptNotes_WrongKey(t *testing.T) {
	key1 := DeriveKey("secret-1")
	key2 := DeriveKey("secret-2")

	stored, err := EncryptNotes("routine check-in", key1)
	if err != nil {
		t.Fatalf("EncryptNotes: %v", err)
	}

	_, err = DecryptNotes(stored, key2)
	if err == nil {
		t.Fatal("expected error when decrypting with wrong key")
	}
}

func TestDecryptNotes_NotBase64(t *testing.T) {
	key := DeriveKey("secret")
	_, err := DecryptNotes("not%%%base64", key)
	if err == nil {
		t.Fatal("expected error for non-base64 input")
	}
}

func TestDecryptNotes_TooShort(t *testing.T) {
	key := DeriveKey("secret")
	short := base64.StdEncoding.EncodeToString([]byte("tiny"))
	_, err := DecryptNotes(short, key)
	if err == nil {
		t.Fatal("expected error for short sealed notes")
	}
	if !strings.Contains(err.Error(), "too short") {
		t.Fatalf("expected too-short error, got %v", err)
	}
}

func TestEncryptNotes_UniqueOutputs(t *testing.T) {
	key := DeriveKey("secret")
	notes := "same notes"

	s1, err := EncryptNotes(notes, key)
	if err != nil {
		t.Fatalf("EncryptNotes 1: %v", err)
	}

	s2, err := EncryptNotes(notes, key)
	if err != nil {
		t.Fatalf("EncryptNotes 2: %v", err)
	}

	// Due to random nonce, outputs must differ
	if s1 == s2 {
		t.Fatal("encrypting same notes twice should produce different outputs")
	}
}
