package tyontekija

import (
	"context"

	"github.com/iota-uz/varda/pkg/serrors"
)

var ErrNotFound = serrors.NotFound("tyontekija not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (Tyontekija, error)
	GetByIDForUpdate(ctx context.Context, id int64) (Tyontekija, error)
	// GetByHenkilo resolves the employee record of a person at an
	// operator; at most one exists per pair.
	GetByHenkilo(ctx context.Context, henkiloID, vakajarjestajaID int64) (Tyontekija, error)
	GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (Tyontekija, error)
	Create(ctx context.Context, t Tyontekija) (Tyontekija, error)
	Delete(ctx context.Context, id int64) error
}
