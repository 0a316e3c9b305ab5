package auth

import "testing"

func TestIssuerRoundTrip(t *testing.T) {
	iss := NewIssuer("test-secret", 60)
	tok, err := iss.CreateAccessToken("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("CreateAccessToken: %v", err)
	}
	claims, err := iss.DecodeAccessToken(tok)
	if err != nil {
		t.Fatalf("DecodeAccessToken: %v", err)
	}
	if claims.UserID != "user-1" || claims.Email != "a@example.com" {
		t.Errorf("claims = %+v, want user-1/a@example.com", claims)
	}
}

func TestIssuerRejectsTamperedToken(t *testing.T) {
	iss := NewIssuer("test-secret", 60)
	tok, _ := iss.CreateAccessToken("user-1", "a@example.com")
	other := NewIssuer("other-secret", 60)
	if _, err := other.DecodeAccessToken(tok); err == nil {
		t.Error("expected error decoding token signed with a different secret")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "correct-horse") {
		t.Error("CheckPassword should accept the original password")
	}
	if CheckPassword(hash, "wrong-password") {
		t.Error("CheckPassword should reject a wrong password")
	}
}
