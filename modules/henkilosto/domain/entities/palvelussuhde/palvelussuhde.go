// Package palvelussuhde models the employment chain below an employee:
// service relations, work locations and long absences.
package palvelussuhde

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/varda/pkg/serrors"
)

// Permission-index keys.
const (
	ContentType                  = "palvelussuhde"
	ContentTypeTyoskentelypaikka = "tyoskentelypaikka"
	ContentTypePidempiPoissaolo  = "pidempipoissaolo"
)

// MinPoissaoloDays is the shortest reportable long absence.
const MinPoissaoloDays = 60

// Palvelussuhde is a service relation: the contract under which a person
// works for the operator.
type Palvelussuhde struct {
	ID               int64
	TyontekijaID     int64
	TyosuhdeKoodi    string
	TyoaikaKoodi     string
	TutkintoKoodi    string
	TyoaikaViikossa  decimal.Decimal
	AlkamisPvm       time.Time
	PaattymisPvm     *time.Time
	Lahdejarjestelma string
	Tunniste         string
}

func (p Palvelussuhde) ActiveOn(pvm time.Time) bool {
	if p.AlkamisPvm.IsZero() || pvm.Before(p.AlkamisPvm) {
		return false
	}
	return p.PaattymisPvm == nil || !pvm.After(*p.PaattymisPvm)
}

// Tyoskentelypaikka ties a service relation to a unit with a role code.
// A roving worker has no unit; a stationary one must name it.
type Tyoskentelypaikka struct {
	ID                       int64
	PalvelussuhdeID          int64
	ToimipaikkaID            int64
	KiertavaTyontekijaKytkin bool
	TehtavanimikeKoodi       string
	KelpoisuusKytkin         bool
	AlkamisPvm               time.Time
	PaattymisPvm             *time.Time
	Lahdejarjestelma         string
	Tunniste                 string
}

// Consistent reports the roving-flag invariant: roving excludes a unit,
// stationary requires one.
func (t Tyoskentelypaikka) Consistent() bool {
	if t.KiertavaTyontekijaKytkin {
		return t.ToimipaikkaID == 0
	}
	return t.ToimipaikkaID != 0
}

func (t Tyoskentelypaikka) ActiveOn(pvm time.Time) bool {
	if t.AlkamisPvm.IsZero() || pvm.Before(t.AlkamisPvm) {
		return false
	}
	return t.PaattymisPvm == nil || !pvm.After(*t.PaattymisPvm)
}

// PidempiPoissaolo is an absence of at least MinPoissaoloDays. Both
// endpoints are mandatory.
type PidempiPoissaolo struct {
	ID               int64
	PalvelussuhdeID  int64
	AlkamisPvm       time.Time
	PaattymisPvm     time.Time
	Lahdejarjestelma string
	Tunniste         string
}

// Days is the inclusive length of the absence.
func (p PidempiPoissaolo) Days() int {
	if p.AlkamisPvm.IsZero() || p.PaattymisPvm.Before(p.AlkamisPvm) {
		return 0
	}
	return int(p.PaattymisPvm.Sub(p.AlkamisPvm).Hours()/24) + 1
}

// LongEnough reports whether the absence is reportable.
func (p PidempiPoissaolo) LongEnough() bool {
	return p.Days() >= MinPoissaoloDays
}

var (
	ErrNotFound                  = serrors.NotFound("palvelussuhde not found")
	ErrTyoskentelypaikkaNotFound = serrors.NotFound("tyoskentelypaikka not found")
	ErrPoissaoloNotFound         = serrors.NotFound("pidempi poissaolo not found")
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (Palvelussuhde, error)
	GetByTunniste(ctx context.Context, lahdejarjestelma, tunniste string) (Palvelussuhde, error)
	ListByTyontekija(ctx context.Context, tyontekijaID int64) ([]Palvelussuhde, error)
	Create(ctx context.Context, p Palvelussuhde) (Palvelussuhde, error)
	End(ctx context.Context, id int64, pvm time.Time) error
	Delete(ctx context.Context, id int64) error

	GetTyoskentelypaikka(ctx context.Context, id int64) (Tyoskentelypaikka, error)
	ListTyoskentelypaikatByPalvelussuhde(ctx context.Context, palvelussuhdeID int64) ([]Tyoskentelypaikka, error)
	// ListTyoskentelypaikatByNimike lists an employee's work locations
	// carrying the role code, across all service relations.
	ListTyoskentelypaikatByNimike(ctx context.Context, tyontekijaID int64, tehtavanimikeKoodi string) ([]Tyoskentelypaikka, error)
	CreateTyoskentelypaikka(ctx context.Context, t Tyoskentelypaikka) (Tyoskentelypaikka, error)
	DeleteTyoskentelypaikka(ctx context.Context, id int64) error

	GetPoissaolo(ctx context.Context, id int64) (PidempiPoissaolo, error)
	ListPoissaolotByPalvelussuhde(ctx context.Context, palvelussuhdeID int64) ([]PidempiPoissaolo, error)
	CreatePoissaolo(ctx context.Context, p PidempiPoissaolo) (PidempiPoissaolo, error)
	DeletePoissaolo(ctx context.Context, id int64) error
}
