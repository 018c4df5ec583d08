package security

import (
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func setTestKey(t *testing.T) {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}
	t.Setenv("EXCHANGE_CREDENTIALS_KEY", base64.StdEncoding.EncodeToString(key))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	setTestKey(t)

	secret := "oanda-api-key-12345"
	encrypted, err := EncryptString(secret)
	if err != nil {
		t.Fatalf("EncryptString failed: %v", err)
	}

	if encrypted == secret {
		t.Fatal("encrypted value must not equal plaintext")
	}

	decrypted, err := DecryptString(encrypted)
	if err != nil {
		t.Fatalf("DecryptString failed: %v", err)
	}

	if decrypted != secret {
		t.Fatalf("expected %q after round trip, got %q", secret, decrypted)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	setTestKey(t)

	first, err := EncryptString("same-input")
	if err != nil {
		t.Fatalf("EncryptString failed: %v", err)
	}
	second, err := EncryptString("same-input")
	if err != nil {
		t.Fatalf("EncryptString failed: %v", err)
	}

	if first == second {
		t.Fatal("expected distinct nonces to produce distinct ciphertexts")
	}
}

func TestDecryptEmptyString(t *testing.T) {
	setTestKey(t)

	out, err := DecryptString("")
	if err != nil {
		t.Fatalf("DecryptString of empty string failed: %v", err)
	}
	if out != "" {
		t.Fatalf("expected empty plaintext, got %q", out)
	}
}

func TestDecryptGarbageFails(t *testing.T) {
	setTestKey(t)

	if _, err := DecryptString("not-base64!!"); err == nil {
		t.Fatal("expected error decrypting invalid input")
	}
}
