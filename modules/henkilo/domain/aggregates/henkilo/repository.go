package henkilo

import (
	"context"

	"github.com/iota-uz/varda/pkg/serrors"
)

var ErrNotFound = serrors.NotFound("henkilo not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (Henkilo, error)
	GetByOID(ctx context.Context, oid string) (Henkilo, error)
	GetByHetuHash(ctx context.Context, hash string) (Henkilo, error)
	Create(ctx context.Context, h Henkilo) (Henkilo, error)
	Update(ctx context.Context, h Henkilo) (Henkilo, error)
}
