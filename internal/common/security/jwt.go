package security

import (
	"errors"
	"time"

	"code_duel/internal/platform/config"

	"github.com/go-chi/jwtauth/v5"
	"github.com/golang-jwt/jwt/v5"
)

var TokenAuth *jwtauth.JWTAuth

var errClaimMissing = errors.New("claim is missing or not a string")

func InitJWT() {
	TokenAuth = jwtauth.New("HS256", config.AppConfig.JWTKey, nil)
}

// GenerateToken issues a bearer token carrying the player's id, display name and role.
func GenerateToken(userID, username, role string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": username,
		"role":     role,
		"exp":      now.Add(config.AppConfig.JWTExp).Unix(),
		"iat":      now.Unix(),
	}
	_, tokenString, err := TokenAuth.Encode(claims)
	return tokenString, err
}

func GetUserIDFromClaims(claims map[string]any) (string, error) {
	return stringClaim(claims, "user_id")
}

func GetUserRoleFromClaims(claims map[string]any) (string, error) {
	return stringClaim(claims, "role")
}

func stringClaim(claims map[string]any, name string) (string, error) {
	v, ok := claims[name].(string)
	if !ok || v == "" {
		return "", errors.New(name + " " + errClaimMissing.Error())
	}
	return v, nil
}
