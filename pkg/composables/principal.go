package composables

import (
	"context"

	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/pkg/constants"
	"github.com/iota-uz/varda/pkg/serrors"
)

// WithKayttaja binds the authenticated principal to the context. The edge
// resolves identity; everything below here trusts the context.
func WithKayttaja(ctx context.Context, k kayttaja.Kayttaja) context.Context {
	return context.WithValue(ctx, constants.KayttajaKey, k)
}

func UseKayttaja(ctx context.Context) (kayttaja.Kayttaja, error) {
	v := ctx.Value(constants.KayttajaKey)
	if v == nil {
		return kayttaja.Kayttaja{}, serrors.Unauthenticated("no principal in context")
	}
	k, ok := v.(kayttaja.Kayttaja)
	if !ok || k.IsZero() {
		return kayttaja.Kayttaja{}, serrors.Unauthenticated("no principal in context")
	}
	return k, nil
}
