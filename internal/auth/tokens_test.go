package auth

import (
	"testing"
	"time"
)

func newTestIssuer(clock func() time.Time) *TokenIssuer {
	return NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("test-secret"),
		Issuer:        "stickerbooth-auth",
		Audience:      "stickerbooth-api",
		TokenTTL:      time.Hour,
		Clock:         clock,
	})
}

func TestIssueRoleTokenRoundTrip(t *testing.T) {
	clock := func() time.Time { return time.Unix(1700000000, 0).UTC() }
	issuer := newTestIssuer(clock)

	for _, role := range []Role{RoleAdmin, RoleCapture} {
		token, expiresIn, err := issuer.IssueRoleToken(role)
		if err != nil {
			t.Fatalf("unexpected issue error for %s: %v", role, err)
		}
		if expiresIn != 3600 {
			t.Fatalf("expected 3600s expiry, got %d", expiresIn)
		}

		parsed, err := issuer.ValidateToken(token)
		if err != nil {
			t.Fatalf("unexpected validation error: %v", err)
		}
		if parsed != role {
			t.Fatalf("expected role %s, got %s", role, parsed)
		}
	}
}

func TestIssueRoleTokenRejectsProcessorRole(t *testing.T) {
	issuer := newTestIssuer(nil)
	if _, _, err := issuer.IssueRoleToken(RoleProcessor); err == nil {
		t.Fatalf("expected processor role issuance to be rejected")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	issued := time.Unix(1700000000, 0).UTC()
	issuer := newTestIssuer(func() time.Time { return issued })

	token, _, err := issuer.IssueRoleToken(RoleAdmin)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}

	late := newTestIssuer(func() time.Time { return issued.Add(2 * time.Hour) })
	if _, err := late.ValidateToken(token); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	issuer := newTestIssuer(nil)
	token, _, err := issuer.IssueRoleToken(RoleCapture)
	if err != nil {
		t.Fatalf("unexpected issue error: %v", err)
	}

	other := NewTokenIssuer(TokenIssuerConfig{
		SigningSecret: []byte("different-secret"),
		Issuer:        "stickerbooth-auth",
		Audience:      "stickerbooth-api",
	})
	if _, err := other.ValidateToken(token); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestSecretMatches(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		presented  string
		want       bool
	}{
		{name: "match", configured: "processor-secret", presented: "processor-secret", want: true},
		{name: "mismatch", configured: "processor-secret", presented: "guess", want: false},
		{name: "empty-configured", configured: "", presented: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecretMatches(tt.configured, tt.presented); got != tt.want {
				t.Fatalf("SecretMatches(%q, %q) = %v, want %v", tt.configured, tt.presented, got, tt.want)
			}
		})
	}
}
