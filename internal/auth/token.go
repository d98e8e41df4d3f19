package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin  = "admin"
	DefaultTTL = 24 * time.Hour

	// MaxPasswordBytes is the longest password bcrypt accepts.
	MaxPasswordBytes = 72
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrExpired            = errors.New("auth: token expired")
	ErrBadSignature       = errors.New("auth: bad token signature")
	ErrMisconfigured      = errors.New("auth: server auth is not configured")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type Token struct {
	Value     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Options struct {
	Username string
	Password string
	Secret   string
	TTL      time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service issues and verifies bearer tokens for the single admin identity.
type Service struct {
	username     string
	passwordHash []byte
	secret       []byte
	ttl          time.Duration
	now          func() time.Time
}

// NewService never fails: a missing identity or secret surfaces as
// ErrMisconfigured on every call instead.
func NewService(opts Options) *Service {
	s := &Service{
		username: opts.Username,
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		now:      opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.Password != "" {
		// passwords over MaxPasswordBytes are rejected by bcrypt; such a service stays misconfigured
		if h, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost); err == nil {
			s.passwordHash = h
		}
	}
	return s
}

func (s *Service) configured() bool {
	return s.username != "" && len(s.passwordHash) > 0 && len(s.secret) > 0
}

func (s *Service) Issue(username, password string) (Token, error) {
	if !s.configured() {
		return Token{}, ErrMisconfigured
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := len(password) <= MaxPasswordBytes &&
		bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	if !userOK || !passOK {
		return Token{}, ErrInvalidCredentials
	}

	now := s.now().Truncate(time.Second)
	exp := now.Add(s.ttl)
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, IssuedAt: now, ExpiresAt: exp}, nil
}

// Verify checks the HMAC first, then expiry, then that the claims name the admin.
func (s *Service) Verify(tokenStr string) (*Claims, error) {
	if !s.configured() {
		return nil, ErrMisconfigured
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrBadSignature
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrBadSignature
	}
	if claims.Role != RoleAdmin || claims.Subject != s.username {
		return nil, ErrBadSignature
	}
	return claims, nil
}
