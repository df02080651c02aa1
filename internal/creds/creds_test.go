package creds

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	original := Credentials{Key: "api-key-123", Secret: "super-secret"}

	blob, err := Encrypt(original, "hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(string(blob), "api-key-123") || strings.Contains(string(blob), "super-secret") {
		t.Fatal("plaintext leaked into the encrypted blob")
	}

	got, err := Decrypt(blob, "hunter2")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != original {
		t.Fatalf("round trip = %+v, want %+v", got, original)
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	blob, err := Encrypt(Credentials{Key: "k", Secret: "s"}, "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Decrypt(blob, "wrong"); err == nil {
		t.Fatal("Decrypt accepted the wrong password")
	}
}

func TestEncryptRejectsEmptyInput(t *testing.T) {
	if _, err := Encrypt(Credentials{Key: "k"}, ""); err == nil {
		t.Fatal("Encrypt accepted an empty password")
	}
	if _, err := Encrypt(Credentials{}, "pw"); err == nil {
		t.Fatal("Encrypt accepted empty credentials")
	}
}

func TestLoadPrecedence(t *testing.T) {
	// Plaintext key wins even when an encrypted path is also set.
	got, err := Load(Source{Key: "plain", Secret: "text", EncryptedPath: "/nonexistent"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Key != "plain" || got.Secret != "text" {
		t.Fatalf("Load = %+v", got)
	}

	// No source at all resolves to empty credentials, not an error.
	got, err = Load(Source{})
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("Load empty = %+v", got)
	}
}

func TestLoadEncryptedFile(t *testing.T) {
	original := Credentials{Key: "file-key", Secret: "file-secret"}
	blob, err := Encrypt(original, "pw")
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, blob, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := Load(Source{EncryptedPath: path, Password: "pw"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != original {
		t.Fatalf("Load = %+v, want %+v", got, original)
	}

	if _, err := Load(Source{EncryptedPath: filepath.Join(t.TempDir(), "missing.json"), Password: "pw"}); err == nil {
		t.Fatal("Load accepted a missing encrypted file")
	}
}
