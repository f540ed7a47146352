package toimipaikka

import (
	"context"

	"github.com/iota-uz/varda/pkg/serrors"
)

var ErrNotFound = serrors.NotFound("toimipaikka not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (Toimipaikka, error)
	GetByOID(ctx context.Context, oid string) (Toimipaikka, error)
	GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (Toimipaikka, error)
	ListByOrganisaatio(ctx context.Context, organisaatioID int64) ([]Toimipaikka, error)
	// GetByIDForUpdate locks the unit row for the remainder of the
	// transaction; unit migration starts here.
	GetByIDForUpdate(ctx context.Context, id int64) (Toimipaikka, error)
	Create(ctx context.Context, t Toimipaikka) (Toimipaikka, error)
	Update(ctx context.Context, t Toimipaikka) (Toimipaikka, error)

	CreatePainotus(ctx context.Context, p Painotus) (Painotus, error)
	ListPainotukset(ctx context.Context, toimipaikkaID int64) ([]Painotus, error)
}
