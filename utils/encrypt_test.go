package utils

import (
	"strings"
	"testing"
)

func TestEncryptFieldRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{"address", "+4915112345678"},
		{"empty", ""},
		{"unicode", "bestellung für näxte woche"},
		{"long", strings.Repeat("x", 4096)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cipherB64, saltB64, err := EncryptField("hunter2", test.plaintext)
			if err != nil {
				t.Fatalf("EncryptField: %v", err)
			}
			got, err := DecryptField("hunter2", cipherB64, saltB64)
			if err != nil {
				t.Fatalf("DecryptField: %v", err)
			}
			if got != test.plaintext {
				t.Errorf("round trip mismatch: got %q, want %q", got, test.plaintext)
			}
		})
	}
}

func TestEncryptFieldFreshSaltPerCall(t *testing.T) {
	c1, s1, err := EncryptField("hunter2", "same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	c2, s2, err := EncryptField("hunter2", "same plaintext")
	if err != nil {
		t.Fatal(err)
	}
	if s1 == s2 {
		t.Error("two encryptions produced the same salt")
	}
	if c1 == c2 {
		t.Error("two encryptions produced the same ciphertext")
	}
}

func TestDecryptFieldWrongPassword(t *testing.T) {
	cipherB64, saltB64, err := EncryptField("hunter2", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptField("hunter3", cipherB64, saltB64); err == nil {
		t.Error("decryption with the wrong password succeeded")
	}
}

func TestDecryptFieldCorruptInputs(t *testing.T) {
	cipherB64, saltB64, err := EncryptField("hunter2", "secret")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := DecryptField("hunter2", "!!!not base64!!!", saltB64); err == nil {
		t.Error("corrupt ciphertext encoding accepted")
	}
	if _, err := DecryptField("hunter2", cipherB64, "!!!not base64!!!"); err == nil {
		t.Error("corrupt salt encoding accepted")
	}
	if _, err := DecryptField("hunter2", "c2hvcnQ=", saltB64); err != ErrCiphertextTooShort {
		t.Errorf("truncated ciphertext: got %v, want ErrCiphertextTooShort", err)
	}
}

func TestAddressDigest(t *testing.T) {
	d1 := AddressDigest("hunter2", "+4915112345678")
	d2 := AddressDigest("hunter2", "+4915112345678")
	if d1 != d2 {
		t.Error("digest is not deterministic for the same password and address")
	}
	if AddressDigest("hunter2", "+4915187654321") == d1 {
		t.Error("different addresses share a digest")
	}
	if AddressDigest("other", "+4915112345678") == d1 {
		t.Error("different passwords share a digest")
	}
	if len(d1) != 64 {
		t.Errorf("digest length %d, want 64 hex chars", len(d1))
	}
}

func TestHashAndVerifyPIN(t *testing.T) {
	hashHex, saltHex, err := HashPIN("2580")
	if err != nil {
		t.Fatalf("HashPIN: %v", err)
	}
	if !VerifyPIN("2580", hashHex, saltHex) {
		t.Error("correct PIN rejected")
	}
	if VerifyPIN("0852", hashHex, saltHex) {
		t.Error("wrong PIN accepted")
	}
	if VerifyPIN("2580", hashHex, "zzzz") {
		t.Error("malformed salt accepted")
	}
	if VerifyPIN("2580", "zzzz", saltHex) {
		t.Error("malformed hash accepted")
	}
}
