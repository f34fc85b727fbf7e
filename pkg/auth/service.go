package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// TokenExpiry is how long tokens minted by GenerateToken stay valid.
const TokenExpiry = time.Hour

// Identity is who a request acts for. The zero Identity is a guest.
type Identity struct {
	UserID string `json:"user_id,omitempty"`
	// Token is the bearer token as received, forwarded to the remote
	// backend so its row-level policies apply.
	Token string `json:"-"`
	// Verified is set when the token's signature was checked here.
	Verified bool `json:"-"`
}

func (i Identity) IsGuest() bool {
	return i.UserID == ""
}

// LocalOwner is the owner id rows in the local store are filed under. The
// remote backend checks every token it receives, but local rows are only
// protected by this id, so an unverified claim gets no more than a guest.
func (i Identity) LocalOwner() string {
	if !i.Verified {
		return ""
	}
	return i.UserID
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the request's identity, or a guest.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(contextKey{}).(Identity)
	return id
}

// Service turns bearer tokens into identities. Tokens are issued by the
// remote backend; when its signing secret is known they are verified here,
// otherwise only decoded and the backend enforces them on every call.
type Service struct {
	jwtSecret []byte
	parser    *jwt.Parser
}

func NewService(jwtSecret string) *Service {
	return &Service{
		jwtSecret: []byte(jwtSecret),
		parser:    jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verifies reports whether tokens are checked against a secret.
func (s *Service) Verifies() bool {
	return len(s.jwtSecret) > 0
}

// GenerateToken mints an HS256 token for userID. Only useful when a secret
// is configured; debug tooling and tests use it.
func (s *Service) GenerateToken(userID string) (string, error) {
	if !s.Verifies() {
		return "", errors.New("no signing secret configured")
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.WithStack(err)
	}
	return signed, nil
}

// Identify returns the identity a bearer token stands for.
func (s *Service) Identify(tokenString string) (Identity, error) {
	claims := &jwt.RegisteredClaims{}

	if s.Verifies() {
		token, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return s.jwtSecret, nil
		})
		if err != nil {
			return Identity{}, errors.WithStack(err)
		}
		if !token.Valid {
			return Identity{}, errors.New("invalid token")
		}
	} else {
		if _, _, err := s.parser.ParseUnverified(tokenString, claims); err != nil {
			return Identity{}, errors.WithStack(err)
		}
		if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
			return Identity{}, errors.New("token is expired")
		}
	}

	if claims.Subject == "" {
		return Identity{}, errors.New("token has no subject")
	}
	return Identity{UserID: claims.Subject, Token: tokenString, Verified: s.Verifies()}, nil
}
