package security

import (
	"testing"
	"time"

	"code_duel/internal/platform/config"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPasswordHash("s3cret", hash) {
		t.Fatalf("expected password to match its hash")
	}
	if CheckPasswordHash("other", hash) {
		t.Fatalf("wrong password accepted")
	}
}

func TestGenerateTokenClaims(t *testing.T) {
	config.AppConfig = &config.Config{JWTKey: []byte("test-key"), JWTExp: time.Hour}
	InitJWT()

	tokenString, err := GenerateToken("u-1", "alice", "user")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	token, err := TokenAuth.Decode(tokenString)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	claims, err := token.AsMap(t.Context())
	if err != nil {
		t.Fatalf("AsMap: %v", err)
	}
	if id, err := GetUserIDFromClaims(claims); err != nil || id != "u-1" {
		t.Fatalf("user id = %q, %v", id, err)
	}
	if role, err := GetUserRoleFromClaims(claims); err != nil || role != "user" {
		t.Fatalf("role = %q, %v", role, err)
	}
}

func TestMissingClaim(t *testing.T) {
	if _, err := GetUserIDFromClaims(map[string]any{"user_id": 42}); err == nil {
		t.Fatalf("expected error for non-string claim")
	}
}
