package security

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint hashes a refresh token for storage. The token is first reduced
// with SHA-256 so its length never hits the hasher's input limit, then salted
// and hashed with h. The raw token is never stored.
func Fingerprint(h Hasher, token string) (string, error) {
	return h.Hash(tokenDigest(token))
}

// FingerprintMatches reports whether token matches a fingerprint produced by
// Fingerprint. The comparison is constant-time in the hasher.
func FingerprintMatches(h Hasher, token, fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	return h.Compare(fingerprint, tokenDigest(token)) == nil
}

func tokenDigest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum[:])
	return out
}
