package cache

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// keyPrefix namespaces cache entries; bump the version to invalidate every
// entry after a format change.
const keyPrefix = "prompt:v1:"

// Key derives the cache key for a request. Temperature is rounded to two
// decimals so equivalent float values collide, and a custom schema changes
// the key through its hash.
func Key(prompt, providerName string, temperature float64, schema map[string]any) string {
	material := fmt.Sprintf("%s|%s|%.2f", prompt, providerName, temperature)
	if len(schema) > 0 {
		material += "|" + SchemaHash(schema)
	}
	sum := sha256.Sum256([]byte(material))
	return keyPrefix + fmt.Sprintf("%x", sum)
}

// SchemaHash fingerprints a JSON schema. Keys are sorted during marshaling
// so logically identical schemas hash the same.
func SchemaHash(schema map[string]any) string {
	raw, err := json.Marshal(schema)
	if err != nil {
		return ""
	}
	sum := md5.Sum(raw)
	return fmt.Sprintf("%x", sum)
}
