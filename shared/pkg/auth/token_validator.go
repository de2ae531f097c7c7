package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrMissingWallet = errors.New("token carries no wallet address")
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID        string
	WalletAddress string
	Token         string
}

// TokenValidator interface for validating tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*UserContext, error)
}

// Claims is the session token payload issued by the account service
type Claims struct {
	UserID        string `json:"userId"`
	WalletAddress string `json:"walletAddress"`
	jwt.RegisteredClaims
}

// JWTValidator validates HS256 session tokens
type JWTValidator struct {
	secret []byte
	leeway time.Duration
}

// NewJWTValidator creates a validator for tokens signed with secret
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret), leeway: 30 * time.Second}
}

// ValidateToken parses and verifies token. Wallet addresses are upper-cased since the issuer may store them lower case.
func (v *JWTValidator) ValidateToken(ctx context.Context, token string) (*UserContext, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	wallet := strings.ToUpper(strings.TrimSpace(claims.WalletAddress))
	if wallet == "" {
		return nil, ErrMissingWallet
	}

	return &UserContext{
		UserID:        claims.UserID,
		WalletAddress: wallet,
		Token:         token,
	}, nil
}

// IssueToken signs a session token. The service only verifies tokens; this is used by tooling and tests.
func IssueToken(secret, userID, walletAddress string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:        userID,
		WalletAddress: walletAddress,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
