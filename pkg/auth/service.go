package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Service signs and validates the HS256 tokens used for bearer
// authentication and for push notification payloads.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

type ServiceOption func(*Service)

func WithIssuer(issuer string) ServiceOption {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithTTL sets the default lifetime of generated tokens.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// NewService creates a new authentication service
func NewService(secret string, opts ...ServiceOption) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: signing secret is required")
	}

	s := &Service{
		signingKey: []byte(secret),
		issuer:     "a2a-relay",
		ttl:        time.Hour,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *Service) getSigningKey(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return s.signingKey, nil
}

// GenerateToken issues a token for subject carrying the extra claims.
func (s *Service) GenerateToken(subject string, extra jwt.MapClaims) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)

	claims := jwt.MapClaims{
		"sub": subject,
		"iss": s.issuer,
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}

	for k, v := range extra {
		claims[k] = v
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)

	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenStr, expiresAt, nil
}

// Validate parses a token and checks signature, issuer and expiry.
func (s *Service) Validate(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(
		tokenStr,
		s.getSigningKey,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)

	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// AuthenticateHeader validates the value of an Authorization header.
func (s *Service) AuthenticateHeader(header string) (jwt.MapClaims, error) {
	if header == "" {
		return nil, fmt.Errorf("missing authorization header")
	}

	tokenStr, ok := strings.CutPrefix(header, "Bearer ")

	if !ok {
		return nil, fmt.Errorf("authorization header is not a bearer token")
	}

	return s.Validate(strings.TrimSpace(tokenStr))
}

/*
SignPayload issues a short lived token binding the SHA-256 of body, so the
receiver of a push notification can check that the payload is ours and was
not altered.
*/
func (s *Service) SignPayload(body []byte) (string, error) {
	token, _, err := s.GenerateToken("push", jwt.MapClaims{
		"request_body_sha256": digest(body),
	})

	return token, err
}

// VerifyPayload is the receiving side of SignPayload.
func (s *Service) VerifyPayload(tokenStr string, body []byte) error {
	claims, err := s.Validate(tokenStr)

	if err != nil {
		return err
	}

	if sum, _ := claims["request_body_sha256"].(string); sum != digest(body) {
		return fmt.Errorf("payload digest mismatch")
	}

	return nil
}

func digest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
