package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier("secret", "authenticated")
	token, err := v.Issue(Identity{ID: "u-1", Email: "a@b.c"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	id, err := v.Verify(token)
	if err != nil {
		t.Fatalf("Expected token to verify, got %v", err)
	}
	if id.ID != "u-1" || id.Email != "a@b.c" {
		t.Errorf("Expected identity u-1/a@b.c, got %+v", id)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("secret", "authenticated")

	other, _ := NewVerifier("other", "authenticated").Issue(Identity{ID: "u-1"}, time.Hour)
	if _, err := v.Verify(other); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected wrong signature to be rejected, got %v", err)
	}

	expired, _ := v.Issue(Identity{ID: "u-1"}, -time.Minute)
	if _, err := v.Verify(expired); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected expired token to be rejected, got %v", err)
	}

	wrongAud, _ := NewVerifier("secret", "anon").Issue(Identity{ID: "u-1"}, time.Hour)
	if _, err := v.Verify(wrongAud); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected audience mismatch to be rejected, got %v", err)
	}

	noSub, _ := v.Issue(Identity{}, time.Hour)
	if _, err := v.Verify(noSub); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected token without subject to be rejected, got %v", err)
	}

	if _, err := NewVerifier("", "").Verify("x.y.z"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected unconfigured verifier to reject, got %v", err)
	}
}

func TestIdentityContext(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Error("Expected anonymous context")
	}
	ctx := WithIdentity(context.Background(), &Identity{ID: "u-2"})
	if got := FromContext(ctx); got == nil || got.ID != "u-2" {
		t.Errorf("Expected identity u-2, got %+v", got)
	}
}
