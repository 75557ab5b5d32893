package auth

import (
	"errors"
	"time"

	"notes-api/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	UserID int64 `json:"userId"`
	jwt.RegisteredClaims
}

// ExpiresIn is the remaining lifetime of the token, never negative.
func (c *Claims) ExpiresIn() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(time.Until(c.ExpiresAt.Time), 0)
}

type JWTManager struct {
	secretKey []byte
	expiry    time.Duration
	issuer    string
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{
		secretKey: []byte(cfg.JWTSecret),
		expiry:    cfg.JWTExpiry(),
		issuer:    cfg.JWTIssuer,
	}
}

func (j *JWTManager) Expiry() time.Duration {
	return j.expiry
}

// GenerateToken signs a session token for userID. Every token gets its own
// id so that a single session can be revoked at logout.
func (j *JWTManager) GenerateToken(userID int64) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secretKey, nil
	}, jwt.WithIssuer(j.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid && claims.UserID > 0 {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
