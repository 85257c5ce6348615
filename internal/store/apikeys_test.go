package store

import (
	"strings"
	"testing"
)

func TestHashKeyDeterministic(t *testing.T) {
	a := HashKey("sp_abc123")
	b := HashKey("sp_abc123")
	if a != b {
		t.Fatal("hash must be deterministic")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
	if a == HashKey("sp_abc124") {
		t.Error("distinct keys must hash differently")
	}
}

func TestGenerateKeyShape(t *testing.T) {
	raw, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	if !strings.HasPrefix(raw, apiKeyPrefix) {
		t.Errorf("key %q missing prefix %q", raw, apiKeyPrefix)
	}
	if len(raw) != len(apiKeyPrefix)+48 {
		t.Errorf("key length = %d, want %d", len(raw), len(apiKeyPrefix)+48)
	}
	other, _ := GenerateKey()
	if raw == other {
		t.Error("generated keys must be unique")
	}
}
