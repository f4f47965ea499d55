package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/archivelab/bookhaven/internal/users"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultTokenTTL = 30 * time.Minute
)

var (
	errMissingSigningSecret = errors.New("auth: signing secret must be provided")
	errMissingSubjectClaim  = errors.New("auth: subject claim must be provided")
)

// Session identifies the authenticated actor behind a request. It replaces
// the process-wide current-user singleton: every operation that needs the
// actor receives one of these explicitly.
type Session struct {
	Username string
	Role     users.Role
}

// IsAdmin reports whether the session carries admin privileges.
func (s Session) IsAdmin() bool {
	return s.Role == users.RoleAdmin
}

// CanStoreData reports whether the session may mutate record storage.
func (s Session) CanStoreData() bool {
	return s.Role.CanStoreData()
}

// GuestSession returns the anonymous session used for unauthenticated
// online searches.
func GuestSession() Session {
	return Session{Username: "guest", Role: users.RoleGuest}
}

type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures the session JWT issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
	Clock         func() time.Time
}

// TokenIssuer issues and validates HS256 session tokens carrying the
// username as subject and the role as a custom claim.
type TokenIssuer struct {
	config TokenIssuerConfig
	clock  func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) *TokenIssuer {
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TokenIssuer{
		config: TokenIssuerConfig{
			SigningSecret: cfg.SigningSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			TokenTTL:      ttl,
			Clock:         clock,
		},
		clock: clock,
	}
}

// IssueToken produces a signed JWT and its expiry in seconds for the session.
func (i *TokenIssuer) IssueToken(session Session) (string, int64, error) {
	if len(i.config.SigningSecret) == 0 {
		return "", 0, errMissingSigningSecret
	}
	if session.Username == "" {
		return "", 0, errMissingSubjectClaim
	}

	now := i.clock().UTC()
	expiresAt := now.Add(i.config.TokenTTL).UTC()

	claims := sessionClaims{
		Role: string(session.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.Username,
			Issuer:    i.config.Issuer,
			Audience:  []string{i.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.config.SigningSecret)
	if err != nil {
		return "", 0, err
	}

	return signed, int64(expiresAt.Sub(now).Seconds()), nil
}

// ValidateToken ensures the JWT is well formed and returns its session.
func (i *TokenIssuer) ValidateToken(tokenString string) (Session, error) {
	if len(i.config.SigningSecret) == 0 {
		return Session{}, errMissingSigningSecret
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", token.Method.Alg())
			}
			return i.config.SigningSecret, nil
		},
		jwt.WithAudience(i.config.Audience),
		jwt.WithIssuer(i.config.Issuer),
		jwt.WithTimeFunc(i.clock),
	)
	if err != nil {
		return Session{}, err
	}
	if claims.Subject == "" {
		return Session{}, errMissingSubjectClaim
	}
	return Session{Username: claims.Subject, Role: users.ParseRole(claims.Role)}, nil
}
