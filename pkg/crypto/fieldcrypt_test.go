package crypto

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	fe, err := DeriveFieldEncryptor([]byte("test-master-secret-that-is-long!"), "commerce-credentials")
	if err != nil {
		t.Fatalf("DeriveFieldEncryptor: %v", err)
	}

	plaintext := `{"api_key":"shppa_abc123","store_url":"https://shop.example.com"}`
	stored, err := fe.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if !strings.HasPrefix(stored, "enc:v1:") {
		t.Fatalf("expected enc:v1: prefix, got %q", stored[:10])
	}
	if !IsEncrypted(stored) {
		t.Fatal("IsEncrypted should report true for encrypted value")
	}

	decrypted, err := fe.Decrypt(stored)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if decrypted != plaintext {
		t.Fatalf("round trip mismatch: got %q", decrypted)
	}
}

func TestPlaintextPassthrough(t *testing.T) {
	fe, err := DeriveFieldEncryptor([]byte("test-master-secret-that-is-long!"), "commerce-credentials")
	if err != nil {
		t.Fatalf("DeriveFieldEncryptor: %v", err)
	}
	got, err := fe.Decrypt("not-encrypted")
	if err != nil {
		t.Fatalf("Decrypt plaintext: %v", err)
	}
	if got != "not-encrypted" {
		t.Fatalf("expected passthrough, got %q", got)
	}
}

func TestPurposeIsolation(t *testing.T) {
	secret := []byte("test-master-secret-that-is-long!")
	feA, _ := DeriveFieldEncryptor(secret, "purpose-a")
	feB, _ := DeriveFieldEncryptor(secret, "purpose-b")

	stored, err := feA.Encrypt("hello")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := feB.Decrypt(stored); err == nil {
		t.Fatal("expected decryption with different purpose to fail")
	}
}

func TestTamperedCiphertext(t *testing.T) {
	fe, _ := DeriveFieldEncryptor([]byte("test-master-secret-that-is-long!"), "commerce-credentials")
	stored, err := fe.Encrypt("payload")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	tampered := stored[:len(stored)-2] + "xx"
	if _, err := fe.Decrypt(tampered); err == nil {
		t.Fatal("expected tampered ciphertext to fail authentication")
	}
}
