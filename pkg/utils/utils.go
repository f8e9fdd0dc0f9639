package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GenerateStateToken generates a random token for OAuth state nonces
func GenerateStateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

// GenerateJWT generates a JWT session token for a connected account
func GenerateJWT(accountID uuid.UUID, secret string, expiration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"account_id": accountID.String(),
		"exp":        time.Now().Add(expiration).Unix(),
		"iat":        time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateJWT validates and parses a JWT session token
func ValidateJWT(tokenString, secret string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})

	if err != nil {
		return uuid.Nil, err
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		accountIDStr, ok := claims["account_id"].(string)
		if !ok {
			return uuid.Nil, fmt.Errorf("invalid account_id claim")
		}

		accountID, err := uuid.Parse(accountIDStr)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid account_id format")
		}

		return accountID, nil
	}

	return uuid.Nil, fmt.Errorf("invalid token")
}

// SanitizeObjectKey normalizes a client-supplied object key
func SanitizeObjectKey(key string) string {
	key = strings.TrimLeft(key, "/")
	key = strings.ReplaceAll(key, "..", "")
	key = strings.ReplaceAll(key, " ", "-")
	return key
}
