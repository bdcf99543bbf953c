package identity

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/classward/classward/internal/shared"
)

// TokenService signs and parses the bearer credential: an HMAC JWT
// carrying subject, role, permission snapshot and generation counter.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService constructs a TokenService.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

type tokenClaims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"perms"`
	Generation  int64    `json:"gen"`
	jwt.RegisteredClaims
}

// TTL exposes the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a credential for the user with the given live permission
// snapshot.
func (s *TokenService) Issue(user User, permissions []string) (string, Claims, error) {
	now := time.Now()
	expiresAt := now.Add(s.ttl)
	tokenID := uuid.NewString()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role:        user.RoleName,
		Permissions: permissions,
		Generation:  user.Generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        tokenID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Claims{}, err
	}
	return signed, Claims{
		UserID:      user.ID,
		Role:        user.RoleName,
		Permissions: permissions,
		Generation:  user.Generation,
		TokenID:     tokenID,
		ExpiresAt:   expiresAt,
	}, nil
}

// Parse verifies the signature and expiry and returns the asserted
// claims. Any parse failure is an authentication failure; staleness
// against live state is checked separately by the validator.
func (s *TokenService) Parse(raw string) (Claims, error) {
	var parsed tokenClaims
	token, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, shared.E(shared.KindAuthenticationFailure, "unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return Claims{}, shared.E(shared.KindAuthenticationFailure, "invalid or expired credential")
	}
	userID, err := strconv.ParseInt(parsed.Subject, 10, 64)
	if err != nil {
		return Claims{}, shared.E(shared.KindAuthenticationFailure, "invalid credential subject")
	}
	claims := Claims{
		UserID:      userID,
		Role:        parsed.Role,
		Permissions: parsed.Permissions,
		Generation:  parsed.Generation,
		TokenID:     parsed.ID,
	}
	if parsed.ExpiresAt != nil {
		claims.ExpiresAt = parsed.ExpiresAt.Time
	}
	return claims, nil
}
