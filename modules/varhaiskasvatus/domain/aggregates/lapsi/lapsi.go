// Package lapsi models a child record: the binding of a person to one
// operator, or to an arranger/producer operator pair under a
// shared-custody agreement.
package lapsi

import (
	"time"
)

// ContentType is the permission-index key for child rows.
const ContentType = "lapsi"

// Lapsi binds a person to either one operator (ordinary) or to an
// arranger and a producer (PAOS). At most one ordinary record exists per
// (person, operator) and one PAOS record per (person, arranger,
// producer).
type Lapsi struct {
	id                 int64
	henkiloID          int64
	vakatoimijaID      int64
	omaOrganisaatioID  int64
	paosOrganisaatioID int64
	lahdejarjestelma   string
	tunniste           string
	createdAt          time.Time
	updatedAt          time.Time
}

// NewOrdinary binds the person to a single operator.
func NewOrdinary(henkiloID, vakatoimijaID int64, lahdejarjestelma, tunniste string) Lapsi {
	return Lapsi{
		henkiloID:        henkiloID,
		vakatoimijaID:    vakatoimijaID,
		lahdejarjestelma: lahdejarjestelma,
		tunniste:         tunniste,
	}
}

// NewPaos binds the person to an arranger/producer pair.
func NewPaos(henkiloID, omaOrganisaatioID, paosOrganisaatioID int64, lahdejarjestelma, tunniste string) Lapsi {
	return Lapsi{
		henkiloID:          henkiloID,
		omaOrganisaatioID:  omaOrganisaatioID,
		paosOrganisaatioID: paosOrganisaatioID,
		lahdejarjestelma:   lahdejarjestelma,
		tunniste:           tunniste,
	}
}

func Hydrate(
	id int64,
	henkiloID int64,
	vakatoimijaID int64,
	omaOrganisaatioID int64,
	paosOrganisaatioID int64,
	lahdejarjestelma string,
	tunniste string,
	createdAt time.Time,
	updatedAt time.Time,
) Lapsi {
	return Lapsi{
		id:                 id,
		henkiloID:          henkiloID,
		vakatoimijaID:      vakatoimijaID,
		omaOrganisaatioID:  omaOrganisaatioID,
		paosOrganisaatioID: paosOrganisaatioID,
		lahdejarjestelma:   lahdejarjestelma,
		tunniste:           tunniste,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}
}

func (l Lapsi) ID() int64                 { return l.id }
func (l Lapsi) HenkiloID() int64          { return l.henkiloID }
func (l Lapsi) VakatoimijaID() int64      { return l.vakatoimijaID }
func (l Lapsi) OmaOrganisaatioID() int64  { return l.omaOrganisaatioID }
func (l Lapsi) PaosOrganisaatioID() int64 { return l.paosOrganisaatioID }
func (l Lapsi) Lahdejarjestelma() string  { return l.lahdejarjestelma }
func (l Lapsi) Tunniste() string          { return l.tunniste }
func (l Lapsi) CreatedAt() time.Time      { return l.createdAt }
func (l Lapsi) UpdatedAt() time.Time      { return l.updatedAt }
func (l Lapsi) IsZero() bool              { return l.id == 0 }

// IsPaos reports whether the record is a shared-custody binding.
func (l Lapsi) IsPaos() bool { return l.omaOrganisaatioID != 0 && l.paosOrganisaatioID != 0 }

// OwnerID returns the operator responsible for the record: the
// vakatoimija for an ordinary child, the arranger for a PAOS child.
func (l Lapsi) OwnerID() int64 {
	if l.IsPaos() {
		return l.omaOrganisaatioID
	}
	return l.vakatoimijaID
}
