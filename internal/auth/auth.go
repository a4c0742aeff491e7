// Package auth implements password authentication and stateless session
// tokens. Credentials are stored as bcrypt digests; sessions are JWT pairs
// (short-lived access token, longer-lived refresh token) signed with HS256.
//
// The package also provides RestoreSession, a bounded-retry wrapper around
// token re-hydration used at process/page start: a transiently unreachable
// verifier is retried a fixed number of times with a fixed delay before the
// failure is surfaced.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/animoa/animoa-backend/internal/config"
	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/repo"
)

// Sentinel errors for predictable auth failures.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
)

// TokenKind distinguishes access from refresh tokens inside claims, so a
// refresh token can never be presented as an access token.
const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

// Claims are the JWT claims carried by both token kinds.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
	Kind   string `json:"kind"`
	jwt.RegisteredClaims
}

// Session is the result of a successful sign-in or refresh.
type Session struct {
	User         *domain.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

// Service implements sign-up, sign-in, and token verification against the
// users table.
type Service struct {
	DB  *gorm.DB
	Cfg config.AuthConfig
}

// NewService constructs an auth Service.
func NewService(db *gorm.DB, cfg config.AuthConfig) *Service {
	return &Service{DB: db, Cfg: cfg}
}

// SignUp registers a new account and returns a live session for it.
// The email is normalized (trimmed, lowercased) before storage.
func (s *Service) SignUp(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidCredentials
	}
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u, err := repo.CreateUser(ctx, s.DB, email, string(hash))
	if err != nil {
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint") ||
			strings.Contains(low, "duplicate key") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return s.issue(u)
}

// SignIn verifies credentials and returns a session. Invalid email and wrong
// password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(u)
}

// Refresh exchanges a valid refresh token for a fresh session. It is
// idempotent in effect: re-hydrating twice with the same token yields two
// equally valid sessions for the same user.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Kind != tokenKindRefresh {
		return nil, ErrInvalidToken
	}

	u, err := repo.GetUser(ctx, s.DB, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.issue(u)
}

// Verify validates an access token and returns its user id.
func (s *Service) Verify(accessToken string) (string, error) {
	claims, err := s.parse(accessToken)
	if err != nil {
		return "", err
	}
	if claims.Kind != tokenKindAccess {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// RestoreSession re-hydrates a session from a stored refresh token with a
// bounded retry (fixed count, fixed delay) around transient failures. Token
// validation failures are terminal and never retried.
func (s *Service) RestoreSession(ctx context.Context, refreshToken string) (*Session, error) {
	var lastErr error
	attempts := s.Cfg.RestoreRetries + 1
	for i := 0; i < attempts; i++ {
		sess, err := s.Refresh(ctx, refreshToken)
		if err == nil {
			return sess, nil
		}
		if errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		lastErr = err
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.Cfg.RestoreDelay):
			}
		}
	}
	return nil, lastErr
}

// issue mints an access/refresh token pair for u.
func (s *Service) issue(u *domain.User) (*Session, error) {
	access, err := s.sign(u, tokenKindAccess, s.Cfg.AccessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(u, tokenKindRefresh, s.Cfg.RefreshTTL)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, AccessToken: access, RefreshToken: refresh}, nil
}

func (s *Service) sign(u *domain.User, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.Cfg.JWTSecret))
}

func (s *Service) parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.Cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
