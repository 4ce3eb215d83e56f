package crypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte("k"), 32)
	svc, err := NewService(key)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	plaintext := "сегодня тренировка и книга"
	encrypted, err := svc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if encrypted == plaintext {
		t.Fatal("ciphertext equals plaintext")
	}

	decrypted, err := svc.Decrypt(encrypted)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if decrypted != plaintext {
		t.Fatalf("got %q, want %q", decrypted, plaintext)
	}
}

func TestNilServicePassesThrough(t *testing.T) {
	var svc *Service
	out, err := svc.Encrypt("as-is")
	if err != nil || out != "as-is" {
		t.Fatalf("encrypt: got %q, %v", out, err)
	}
	out, err = svc.Decrypt("as-is")
	if err != nil || out != "as-is" {
		t.Fatalf("decrypt: got %q, %v", out, err)
	}
}

func TestBadKeyRejected(t *testing.T) {
	if _, err := NewService([]byte("short")); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestDecryptGarbage(t *testing.T) {
	svc, _ := NewService(bytes.Repeat([]byte("k"), 32))
	if _, err := svc.Decrypt("AAAA"); err == nil {
		t.Fatal("expected error for truncated ciphertext")
	}
	if _, err := svc.Decrypt("not base64 at all!!!"); err == nil {
		t.Fatal("expected error for invalid encoding")
	}
}
