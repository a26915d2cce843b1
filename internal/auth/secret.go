package auth

import "crypto/subtle"

// SecretMatches compares a presented processor secret against the configured
// one in constant time. An empty configured secret never matches.
func SecretMatches(configured, presented string) bool {
	if configured == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(presented)) == 1
}
