package cache

import (
	"strings"
	"testing"
)

func TestKeyStableForIdenticalInputs(t *testing.T) {
	a := Key("summarize this", "gemini", 0.1, nil)
	b := Key("summarize this", "gemini", 0.1, nil)
	if a != b {
		t.Fatalf("identical inputs produced different keys: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "prompt:v1:") {
		t.Errorf("key missing prefix: %s", a)
	}
	// prefix + 64 hex chars of sha256
	if len(a) != len("prompt:v1:")+64 {
		t.Errorf("unexpected key length %d: %s", len(a), a)
	}
}

func TestKeyTemperatureRounding(t *testing.T) {
	a := Key("p", "gemini", 0.1, nil)
	b := Key("p", "gemini", 0.100001, nil)
	if a != b {
		t.Error("temperatures equal at two decimals should share a key")
	}
	c := Key("p", "gemini", 0.11, nil)
	if a == c {
		t.Error("distinct temperatures should not share a key")
	}
}

func TestKeyVariesByInput(t *testing.T) {
	base := Key("p", "gemini", 0.1, nil)
	if Key("q", "gemini", 0.1, nil) == base {
		t.Error("prompt change should change the key")
	}
	if Key("p", "claude", 0.1, nil) == base {
		t.Error("provider change should change the key")
	}
	schema := map[string]any{"type": "object"}
	if Key("p", "gemini", 0.1, schema) == base {
		t.Error("schema should change the key")
	}
}

func TestSchemaHashOrderIndependent(t *testing.T) {
	a := SchemaHash(map[string]any{"type": "object", "required": []any{"x"}})
	b := SchemaHash(map[string]any{"required": []any{"x"}, "type": "object"})
	if a == "" || a != b {
		t.Fatalf("schema hashes differ: %s vs %s", a, b)
	}
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache
	if got := c.Get(t.Context(), "k"); got != nil {
		t.Errorf("nil cache Get = %v, want nil", got)
	}
	c.Set(t.Context(), "k", &Entry{}, 0)
	c.Delete(t.Context(), "k")
	if n, err := c.ClearAll(t.Context()); n != 0 || err != nil {
		t.Errorf("nil cache ClearAll = (%d, %v)", n, err)
	}
	if stats := c.CollectStats(t.Context()); stats.Connected {
		t.Error("nil cache should report disconnected")
	}
}

func TestParseInfoField(t *testing.T) {
	info := "# Stats\r\nkeyspace_hits:42\r\nkeyspace_misses:7\r\nused_memory_human:1.04M\r\n"
	if got := parseInfoInt(info, "keyspace_hits"); got != 42 {
		t.Errorf("keyspace_hits = %d, want 42", got)
	}
	if got := parseInfoInt(info, "keyspace_misses"); got != 7 {
		t.Errorf("keyspace_misses = %d, want 7", got)
	}
	if got := parseInfoField(info, "used_memory_human"); got != "1.04M" {
		t.Errorf("used_memory_human = %q", got)
	}
	if got := parseInfoInt(info, "absent"); got != 0 {
		t.Errorf("absent field = %d, want 0", got)
	}
}
