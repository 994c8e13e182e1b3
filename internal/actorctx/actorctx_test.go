package actorctx

import (
	"context"
	"testing"

	"github.com/geocoder89/inkwell/internal/domain/user"
)

func TestIdentityRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), user.Identity{ID: "u1", Username: "alice"})

	id, ok := IdentityFrom(ctx)
	if !ok || id.Username != "alice" {
		t.Fatalf("got %+v ok=%v", id, ok)
	}

	uid, ok := UserIDFrom(ctx)
	if !ok || uid != "u1" {
		t.Fatalf("got %q ok=%v", uid, ok)
	}

	if _, ok := UserIDFrom(context.Background()); ok {
		t.Fatalf("expected no identity on empty context")
	}

	if _, ok := IdentityFrom(WithIdentity(context.Background(), user.Identity{})); ok {
		t.Fatalf("empty identity should not count")
	}
}
