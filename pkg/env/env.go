// Package env reads process environment variables with defaults. Structured
// configuration goes through pkg/config; this covers the few lookups needed
// before config is loaded, like the logger's service metadata.
package env

import "os"

// Get returns the variable's value, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
