package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for every verification failure: bad signature,
	// malformed structure, expiry, wrong issuer/audience, or wrong token use.
	// Callers get no hint about which check failed.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenUse distinguishes access from refresh tokens so one cannot stand in for the other.
type TokenUse string

const (
	UseAccess  TokenUse = "access"
	UseRefresh TokenUse = "refresh"
)

// Claims is the claim set of both token kinds. SessionID is only set on refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Role      string   `json:"role"`
	SessionID string   `json:"sid,omitempty"`
	Use       TokenUse `json:"token_use"`
}

// TokenProvider signs and verifies compact JWTs. It is stateless apart from its
// key material and clock.
type TokenProvider struct {
	method    jwt.SigningMethod
	signKey   any
	verifyKey any
	issuer    string
	audience  string
	now       func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with the given private key (RS256 or ES256).
// issuer and audience are set on claims and enforced on verification.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string) (*TokenProvider, error) {
	var method jwt.SigningMethod
	switch privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return nil, ErrInvalidKey
	}
	return &TokenProvider{
		method:    method,
		signKey:   privateKey,
		verifyKey: publicKey,
		issuer:    issuer,
		audience:  audience,
		now:       time.Now,
	}, nil
}

// NewHMACTokenProvider returns a TokenProvider that signs with HS256 using secret.
func NewHMACTokenProvider(secret []byte, issuer, audience string) (*TokenProvider, error) {
	if len(secret) < 32 {
		return nil, ErrInvalidKey
	}
	key := slices.Clone(secret)
	return &TokenProvider{
		method:    jwt.SigningMethodHS256,
		signKey:   key,
		verifyKey: key,
		issuer:    issuer,
		audience:  audience,
		now:       time.Now,
	}, nil
}

// WithClock replaces the provider's clock. Used by tests to move time.
func (p *TokenProvider) WithClock(now func() time.Time) *TokenProvider {
	p.now = now
	return p
}

// IssueAccess issues a short-lived access token carrying subject and role.
func (p *TokenProvider) IssueAccess(subjectID, role string, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	return p.issue(UseAccess, subjectID, "", role, ttl)
}

// IssueRefresh issues a long-lived refresh token bound to sessionID.
func (p *TokenProvider) IssueRefresh(subjectID, sessionID, role string, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	return p.issue(UseRefresh, subjectID, sessionID, role, ttl)
}

func (p *TokenProvider) issue(use TokenUse, subjectID, sessionID, role string, ttl time.Duration) (string, time.Time, error) {
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC()
	// exp is encoded in whole seconds; report what the token actually carries.
	expiresAt := now.Add(ttl).Truncate(jwt.TimePrecision)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subjectID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role:      role,
		SessionID: sessionID,
		Use:       use,
	}
	token, err := jwt.NewWithClaims(p.method, claims).SignedString(p.signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify parses and validates a token of either use (signature, exp, iss, aud).
func (p *TokenProvider) Verify(tokenString string) (*Claims, error) {
	return p.parse(tokenString, false)
}

// VerifyAccess is Verify restricted to access tokens.
func (p *TokenProvider) VerifyAccess(tokenString string) (*Claims, error) {
	return p.verifyUse(tokenString, UseAccess, false)
}

// VerifyRefresh is Verify restricted to refresh tokens.
func (p *TokenProvider) VerifyRefresh(tokenString string) (*Claims, error) {
	return p.verifyUse(tokenString, UseRefresh, false)
}

// VerifyRefreshAllowExpired checks signature, issuer, audience and use but not
// expiry. It only locates a session; it never authorizes anything.
func (p *TokenProvider) VerifyRefreshAllowExpired(tokenString string) (*Claims, error) {
	return p.verifyUse(tokenString, UseRefresh, true)
}

func (p *TokenProvider) verifyUse(tokenString string, use TokenUse, allowExpired bool) (*Claims, error) {
	claims, err := p.parse(tokenString, allowExpired)
	if err != nil {
		return nil, err
	}
	if claims.Use != use {
		return nil, ErrInvalidToken
	}
	if use == UseRefresh && claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (p *TokenProvider) parse(tokenString string, allowExpired bool) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{p.method.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts,
			jwt.WithIssuer(p.issuer),
			jwt.WithAudience(p.audience),
			jwt.WithExpirationRequired(),
		)
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return p.verifyKey, nil
	}, opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if allowExpired {
		if claims.Issuer != p.issuer || !slices.Contains(claims.Audience, p.audience) {
			return nil, ErrInvalidToken
		}
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
