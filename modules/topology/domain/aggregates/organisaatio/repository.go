package organisaatio

import (
	"context"

	"github.com/iota-uz/varda/pkg/serrors"
)

var ErrNotFound = serrors.NotFound("organisaatio not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (Organisaatio, error)
	GetByOID(ctx context.Context, oid string) (Organisaatio, error)
	// Create inserts the operator, returning the already-stored row when
	// the OID exists. Idempotent by OID.
	Create(ctx context.Context, o Organisaatio) (Organisaatio, error)
	Update(ctx context.Context, o Organisaatio) (Organisaatio, error)
	ReplaceIntegraatiot(ctx context.Context, id int64, categories []string) error
}
