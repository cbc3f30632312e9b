package auth

import (
	"testing"

	"micropost-be/internal/models"
)

func TestGenerateAndValidateJWT(t *testing.T) {
	user := models.User{ID: "u-1", Username: "alice"}

	token, err := GenerateJWT(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ValidateJWT(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != "u-1" || claims.Username != "alice" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Unix() <= claims.IssuedAt.Unix() {
		t.Fatalf("token must expire after issuance: %+v", claims.RegisteredClaims)
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	cases := []string{
		"",
		"not-a-token",
		"aaa.bbb.ccc",
	}
	for i, tokenStr := range cases {
		if _, err := ValidateJWT(tokenStr); err == nil {
			t.Fatalf("case %d: expected error for %q", i, tokenStr)
		}
	}
}

func TestTokensAreIndependent(t *testing.T) {
	user := models.User{ID: "u-1", Username: "alice"}

	first, err := GenerateJWT(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := GenerateJWT(user)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// A fresh token never invalidates an earlier one.
	if _, err := ValidateJWT(first); err != nil {
		t.Fatalf("first token rejected after reissue: %v", err)
	}
	if _, err := ValidateJWT(second); err != nil {
		t.Fatalf("second token rejected: %v", err)
	}
}
