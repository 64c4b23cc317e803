package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrHashMismatch is returned by Compare when the secret does not match the digest.
var ErrHashMismatch = errors.New("hash mismatch")

// ErrInvalidHash is returned when a stored digest cannot be parsed.
var ErrInvalidHash = errors.New("invalid hash")

// Hasher hashes and verifies secrets (account passwords and refresh-token
// fingerprints). Callers must not log or persist plaintext secrets.
type Hasher interface {
	// Hash returns a salted, self-describing digest of secret.
	Hash(secret []byte) (string, error)
	// Compare returns nil when secret matches digest, ErrHashMismatch when it
	// does not, and another error when digest is malformed.
	Compare(digest string, secret []byte) error
}

// NewHasher returns the hasher named by alg ("bcrypt" or "argon2id"). bcryptCost
// is only used for bcrypt.
func NewHasher(alg string, bcryptCost int) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(alg)) {
	case "", "bcrypt":
		return NewBcryptHasher(bcryptCost), nil
	case "argon2id":
		return NewArgon2idHasher(DefaultArgon2idParams()), nil
	default:
		return nil, fmt.Errorf("security: unknown password hash %q", alg)
	}
}

// BcryptHasher hashes with bcrypt.
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher returns a BcryptHasher with the given cost (4–31). Cost 12 is
// roughly a few hundred milliseconds; 10 lands in the tens of milliseconds.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &BcryptHasher{Cost: cost}
}

// Hash produces a bcrypt hash of secret. Secrets longer than 72 bytes are
// rejected by bcrypt; hash a digest of long inputs instead (see Fingerprint).
func (h *BcryptHasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies secret against digest in constant time.
func (h *BcryptHasher) Compare(digest string, secret []byte) error {
	err := bcrypt.CompareHashAndPassword([]byte(digest), secret)
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrHashMismatch
	}
	return err
}

// Argon2idParams tunes argon2id.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams follows the OWASP baseline (19 MiB, t=2, p=1).
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		MemoryKiB:   19 * 1024,
		Iterations:  2,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2idHasher produces PHC strings: $argon2id$v=19$m=..,t=..,p=..$salt$key.
type Argon2idHasher struct {
	Params Argon2idParams
}

// NewArgon2idHasher returns an Argon2idHasher with p.
func NewArgon2idHasher(p Argon2idParams) *Argon2idHasher {
	return &Argon2idHasher{Params: p}
}

// Hash returns a PHC-encoded argon2id digest with a random salt.
func (h *Argon2idHasher) Hash(secret []byte) (string, error) {
	salt := make([]byte, h.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}
	key := argon2.IDKey(secret, salt, h.Params.Iterations, h.Params.MemoryKiB, h.Params.Parallelism, h.Params.KeyLength)
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.Params.MemoryKiB, h.Params.Iterations, h.Params.Parallelism,
		b64.EncodeToString(salt), b64.EncodeToString(key)), nil
}

// Compare re-derives the key with the digest's own parameters. Digests whose
// parameters exceed twice the configured ones are refused.
func (h *Argon2idHasher) Compare(digest string, secret []byte) error {
	p, salt, want, err := decodeArgon2id(digest)
	if err != nil {
		return err
	}
	if p.MemoryKiB > h.Params.MemoryKiB*2 || p.Iterations > h.Params.Iterations*2 || p.Parallelism > h.Params.Parallelism*2 {
		return ErrInvalidHash
	}
	got := argon2.IDKey(secret, salt, p.Iterations, p.MemoryKiB, p.Parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrHashMismatch
	}
	return nil
}

func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	var mem, it, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &it, &par); err != nil {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	if mem == 0 || it == 0 || par == 0 || par > 255 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	b64 := base64.RawStdEncoding
	salt, err := b64.DecodeString(parts[4])
	if err != nil || len(salt) < 8 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	key, err := b64.DecodeString(parts[5])
	if err != nil || len(key) < 16 || len(key) > 128 {
		return Argon2idParams{}, nil, nil, ErrInvalidHash
	}
	return Argon2idParams{
		MemoryKiB:   mem,
		Iterations:  it,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}
