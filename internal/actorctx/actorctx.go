package actorctx

import (
	"context"

	"github.com/geocoder89/inkwell/internal/domain/user"
)

type ctxKey string

const keyIdentity ctxKey = "identity"

func WithIdentity(ctx context.Context, id user.Identity) context.Context {
	return context.WithValue(ctx, keyIdentity, id)
}

func IdentityFrom(ctx context.Context) (user.Identity, bool) {
	v, ok := ctx.Value(keyIdentity).(user.Identity)

	return v, ok && v.ID != ""
}

func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := IdentityFrom(ctx)

	return id.ID, ok
}
