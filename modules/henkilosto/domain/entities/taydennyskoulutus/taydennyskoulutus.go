// Package taydennyskoulutus models training events and their
// participants.
package taydennyskoulutus

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/varda/pkg/serrors"
)

// ContentType is the permission-index key of training rows.
const ContentType = "taydennyskoulutus"

// Osallistuja is one (employee, role-code) pair attending a training.
type Osallistuja struct {
	TyontekijaID       int64
	TehtavanimikeKoodi string
}

// Taydennyskoulutus is a training event shared by one or more
// participants.
type Taydennyskoulutus struct {
	ID               int64
	Nimi             string
	SuoritusPvm      time.Time
	KoulutusPaivia   decimal.Decimal
	Lahdejarjestelma string
	Tunniste         string
	Osallistujat     []Osallistuja
}

var ErrNotFound = serrors.NotFound("taydennyskoulutus not found")

type Repository interface {
	GetByID(ctx context.Context, id int64) (Taydennyskoulutus, error)
	GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (Taydennyskoulutus, error)
	ListByTyontekija(ctx context.Context, tyontekijaID int64) ([]Taydennyskoulutus, error)
	Create(ctx context.Context, t Taydennyskoulutus) (Taydennyskoulutus, error)
	Delete(ctx context.Context, id int64) error
}
