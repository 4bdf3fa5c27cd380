package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Token types for the out-of-band action tokens delivered by email.
// Typed claims keep a verification link from being replayed as a
// password reset and vice versa.
const (
	TokenTypeEmailVerification = "email_verification"
	TokenTypePasswordReset     = "password_reset"
)

// SessionClaims is the payload of the signed session cookie.
type SessionClaims struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	IsAdmin bool      `json:"is_admin"`
	jwt.RegisteredClaims
}

// ActionClaims is the payload of a verification or reset token.
type ActionClaims struct {
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secret        []byte
	sessionExpiry time.Duration
	verifyExpiry  time.Duration
	resetExpiry   time.Duration
}

func NewJWTService(secret string, sessionExpiry, verifyExpiry, resetExpiry time.Duration) *JWTService {
	return &JWTService{
		secret:        []byte(secret),
		sessionExpiry: sessionExpiry,
		verifyExpiry:  verifyExpiry,
		resetExpiry:   resetExpiry,
	}
}

func (s *JWTService) GenerateSessionToken(userID uuid.UUID, email string, isAdmin bool) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:  userID,
		Email:   email,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "pollbox",
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// GenerateActionToken issues a typed, time-limited token for the given
// email. The expiry depends on the token type: verification links live
// for hours, reset links for minutes.
func (s *JWTService) GenerateActionToken(tokenType, email string) (string, error) {
	expiry := s.verifyExpiry
	if tokenType == TokenTypePasswordReset {
		expiry = s.resetExpiry
	}

	now := time.Now()
	claims := ActionClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "pollbox",
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateActionToken checks signature, expiry and token type, and
// returns the subject email.
func (s *JWTService) ValidateActionToken(tokenString, wantType string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ActionClaims{}, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(*ActionClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.TokenType != wantType {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}

func (s *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrInvalidToken
	}
	return s.secret, nil
}
