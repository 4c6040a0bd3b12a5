// Package token issues and verifies the signed tokens used by the auth
// flows: short-lived access tokens, long-lived refresh tokens, and the
// medium-lived tokens embedded in confirmation links. Password-reset grants
// are opaque identifiers, not signed tokens.
package token

import (
	"errors"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"
)

// Token kinds carried in the scope claim. A token of one kind is never
// accepted where another kind is expected.
const (
	scopeAccess  = "access_token"
	scopeRefresh = "refresh_token"
	scopeEmail   = "email_token"
)

var (
	// ErrInvalidToken covers every verification failure: bad signature,
	// expiry, and kind mismatch alike, so callers cannot be used as an
	// oracle for which check failed.
	ErrInvalidToken = errors.New("could not validate credentials")

	// ErrMalformedToken is returned only when an email token's payload
	// cannot be parsed at all; handlers surface it as 422 rather than 401.
	ErrMalformedToken = errors.New("invalid token for email verification")
)

// Service signs and verifies tokens with a single HS256 secret.
type Service struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	emailTTL   time.Duration
}

// New builds a Service. Zero TTLs fall back to 15m/7d/24h.
func New(secret []byte, accessTTL, refreshTTL, emailTTL time.Duration) *Service {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	if emailTTL <= 0 {
		emailTTL = 24 * time.Hour
	}
	return &Service{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, emailTTL: emailTTL}
}

type kindClaim struct {
	Scope string `json:"scope"`
}

// CreateAccessToken issues an access token for the subject. A non-zero ttl
// overrides the default; login uses this to hand out longer sessions.
func (s *Service) CreateAccessToken(subject string, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = s.accessTTL
	}
	return s.sign(subject, scopeAccess, ttl)
}

// CreateRefreshToken issues a refresh token for the subject.
func (s *Service) CreateRefreshToken(subject string) (string, error) {
	return s.sign(subject, scopeRefresh, s.refreshTTL)
}

// CreateEmailToken issues a token for confirmation links.
func (s *Service) CreateEmailToken(subject string) (string, error) {
	return s.sign(subject, scopeEmail, s.emailTTL)
}

// DecodeAccessToken verifies an access token and returns its subject.
func (s *Service) DecodeAccessToken(raw string) (string, error) {
	return s.verify(raw, scopeAccess)
}

// DecodeRefreshToken verifies a refresh token and returns its subject.
func (s *Service) DecodeRefreshToken(raw string) (string, error) {
	return s.verify(raw, scopeRefresh)
}

// DecodeEmailToken verifies an email token and returns its subject. Unlike
// the other decoders it distinguishes an unparseable payload
// (ErrMalformedToken) from a failed verification (ErrInvalidToken).
func (s *Service) DecodeEmailToken(raw string) (string, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return "", ErrMalformedToken
	}
	return s.claims(parsed, scopeEmail)
}

// NewResetToken returns a fresh opaque password-reset grant.
func NewResetToken() string {
	return uuid.NewString()
}

func (s *Service) sign(subject, scope string, ttl time.Duration) (string, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: s.secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:  subject,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(ttl)),
	}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(kindClaim{Scope: scope}).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return raw, nil
}

func (s *Service) verify(raw, scope string) (string, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return "", ErrInvalidToken
	}
	return s.claims(parsed, scope)
}

func (s *Service) claims(parsed *gojwt.JSONWebToken, scope string) (string, error) {
	var std gojwt.Claims
	var kind kindClaim
	if err := parsed.Claims(s.secret, &std, &kind); err != nil {
		return "", ErrInvalidToken
	}
	if err := std.Validate(gojwt.Expected{Time: time.Now().UTC()}); err != nil {
		return "", ErrInvalidToken
	}
	if kind.Scope != scope || std.Subject == "" {
		return "", ErrInvalidToken
	}
	return std.Subject, nil
}
