package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTManager issues and validates HS256 bearer tokens for the configured admin.
type JWTManager struct {
	jwtSecret     []byte
	tokenExpiry   time.Duration
	adminUsername string
	adminPassword string
	now           func() time.Time
}

// Claims represents JWT token claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// LoginRequest represents the login payload
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenIssuer = "jfrlite"

var ErrInvalidCredentials = errors.New("invalid credentials")

// NewJWTManager creates a new token manager
func NewJWTManager(jwtSecret, adminUsername, adminPassword string, tokenExpiry time.Duration) (*JWTManager, error) {
	if len(jwtSecret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 characters")
	}
	if tokenExpiry <= 0 {
		tokenExpiry = time.Hour
	}

	return &JWTManager{
		jwtSecret:     []byte(jwtSecret),
		tokenExpiry:   tokenExpiry,
		adminUsername: adminUsername,
		adminPassword: adminPassword,
		now:           time.Now,
	}, nil
}

func (m *JWTManager) Scheme() string {
	return "Bearer"
}

func (m *JWTManager) Validate(_ context.Context, authorization string) (bool, error) {
	token, ok := splitAuthorization(authorization, "Bearer")
	if !ok {
		return false, nil
	}
	if _, err := m.ValidateToken(token); err != nil {
		return false, nil
	}
	return true, nil
}

// Login authenticates the admin user and returns a JWT token
func (m *JWTManager) Login(username, password string) (*LoginResponse, error) {
	if m.adminUsername == "" || username != m.adminUsername || password != m.adminPassword {
		return nil, ErrInvalidCredentials
	}

	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.tokenExpiry)
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &LoginResponse{
		Token:     tokenString,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken validates a JWT token and returns the claims
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
