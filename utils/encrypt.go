package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	fieldSaltSize  = 16
	fieldKeySize   = 32
	fieldKDFRounds = 200000

	pinSaltSize  = 16
	pinKeySize   = 32
	pinKDFRounds = 200000
)

var (
	// ErrCiphertextTooShort is returned when a stored ciphertext is
	// shorter than the nonce it must carry.
	ErrCiphertextTooShort = errors.New("ciphertext shorter than nonce")
)

// DeriveFieldKey derives the AES key for one encrypted field value from
// the master password and the per-value salt.
func DeriveFieldKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, fieldKDFRounds, fieldKeySize, sha256.New)
}

// EncryptField encrypts a single database field value with a key derived
// from the master password. Every call draws a fresh salt and nonce, so
// the same plaintext never maps to the same ciphertext twice. Both return
// values are base64 for storage in text columns.
func EncryptField(password, plaintext string) (cipherB64, saltB64 string, err error) {
	salt := make([]byte, fieldSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", "", err
	}

	block, err := aes.NewCipher(DeriveFieldKey(password, salt))
	if err != nil {
		return "", "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", "", err
	}

	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed),
		base64.StdEncoding.EncodeToString(salt), nil
}

// DecryptField reverses EncryptField. A wrong password, a corrupted value
// or a corrupted salt all surface as an error; callers that read records
// in bulk must isolate the failure to the record it belongs to.
func DecryptField(password, cipherB64, saltB64 string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(cipherB64)
	if err != nil {
		return "", err
	}
	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(DeriveFieldKey(password, salt))
	if err != nil {
		return "", err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", ErrCiphertextTooShort
	}

	plaintext, err := aead.Open(nil, sealed[:aead.NonceSize()], sealed[aead.NonceSize():], nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// AddressDigest returns a deterministic keyed digest of a contact address
// so encrypted rows can be looked up without storing plaintext. The master
// password keys the digest; without it the column reveals nothing.
func AddressDigest(password, address string) string {
	mac := hmac.New(sha256.New, []byte(password))
	mac.Write([]byte(address))
	return hex.EncodeToString(mac.Sum(nil))
}

// HashPIN derives a storable hash from the seller PIN. Both return values
// are hex strings.
func HashPIN(pin string) (hashHex, saltHex string, err error) {
	salt := make([]byte, pinSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", "", err
	}
	hash := pbkdf2.Key([]byte(pin), salt, pinKDFRounds, pinKeySize, sha256.New)
	return hex.EncodeToString(hash), hex.EncodeToString(salt), nil
}

// VerifyPIN reports whether pin matches the stored hash/salt pair. The
// comparison is constant time.
func VerifyPIN(pin, hashHex, saltHex string) bool {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}
	got := pbkdf2.Key([]byte(pin), salt, pinKDFRounds, pinKeySize, sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
