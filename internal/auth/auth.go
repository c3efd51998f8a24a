package auth

import (
	"context"
	"time"

	"github.com/frahmantamala/room-rental/internal"
	"github.com/golang-jwt/jwt/v5"
)

// TokenGenerator creates and validates signed tokens.
type TokenGenerator interface {
	GenerateAccessToken(subject Subject) (token string, err error)
	GenerateRefreshToken(subject Subject) (token string, err error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	ValidateRefreshToken(tokenString string) (*Claims, error)
}

// ServiceAPI is what the HTTP layer needs from the auth service.
type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

// Subject is the identity embedded in a token.
type Subject struct {
	UserID int64
	Email  string
	Role   internal.Role
}

type AuthTokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Claims represents JWT token claims
type Claims struct {
	UserID int64         `json:"user_id"`
	Email  string        `json:"email"`
	Role   internal.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() internal.Actor {
	return internal.Actor{ID: c.UserID, Role: c.Role}
}

const (
	tokenUseAccess  = "access"
	tokenUseRefresh = "refresh"
)
