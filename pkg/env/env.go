// Package env reads process variables that sit outside the typed config,
// such as platform-injected ones.
package env

import (
	"os"
	"strings"
)

// Lookup returns the first of keys set to a non-blank value.
func Lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val, true
		}
	}
	return "", false
}

// Get is Lookup with a single key and a fallback.
func Get(key, fallback string) string {
	if val, ok := Lookup(key); ok {
		return val
	}
	return fallback
}
