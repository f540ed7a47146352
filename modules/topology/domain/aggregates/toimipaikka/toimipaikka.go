// Package toimipaikka models the physical and administrative units an
// operator provides childcare in.
package toimipaikka

import (
	"strings"
	"time"
)

// Permission-index keys for the unit and its emphasis entities.
const (
	ContentType                       = "toimipaikka"
	ContentTypeKielipainotus          = "kielipainotus"
	ContentTypeToiminnallinenPainotus = "toiminnallinenpainotus"
)

// Hallinnointijarjestelma says which system is authoritative for the
// unit: this registry, or the upstream operator registry it is mirrored
// from.
type Hallinnointijarjestelma string

const (
	HallinnointiVarda        Hallinnointijarjestelma = "VARDA"
	HallinnointiOrganisaatio Hallinnointijarjestelma = "ORGANISAATIO"
)

// Toimipaikka is a unit owned by exactly one operator.
type Toimipaikka struct {
	id                int64
	organisaatioID    int64
	oid               string
	nimi              string
	toimintamuoto     string
	jarjestamismuodot []string
	hallinnointi      Hallinnointijarjestelma
	lahdejarjestelma  string
	tunniste          string
	alkamisPvm        time.Time
	paattymisPvm      *time.Time
	createdAt         time.Time
	updatedAt         time.Time
}

func New(
	organisaatioID int64,
	oid string,
	nimi string,
	toimintamuoto string,
	jarjestamismuodot []string,
	lahdejarjestelma string,
	tunniste string,
	alkamisPvm time.Time,
) Toimipaikka {
	return Toimipaikka{
		organisaatioID:    organisaatioID,
		oid:               strings.TrimSpace(oid),
		nimi:              nimi,
		toimintamuoto:     toimintamuoto,
		jarjestamismuodot: jarjestamismuodot,
		hallinnointi:      HallinnointiVarda,
		lahdejarjestelma:  lahdejarjestelma,
		tunniste:          tunniste,
		alkamisPvm:        alkamisPvm,
	}
}

func Hydrate(
	id int64,
	organisaatioID int64,
	oid string,
	nimi string,
	toimintamuoto string,
	jarjestamismuodot []string,
	hallinnointi Hallinnointijarjestelma,
	lahdejarjestelma string,
	tunniste string,
	alkamisPvm time.Time,
	paattymisPvm *time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) Toimipaikka {
	return Toimipaikka{
		id:                id,
		organisaatioID:    organisaatioID,
		oid:               strings.TrimSpace(oid),
		nimi:              nimi,
		toimintamuoto:     toimintamuoto,
		jarjestamismuodot: jarjestamismuodot,
		hallinnointi:      hallinnointi,
		lahdejarjestelma:  lahdejarjestelma,
		tunniste:          tunniste,
		alkamisPvm:        alkamisPvm,
		paattymisPvm:      paattymisPvm,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

func (t Toimipaikka) ID() int64                             { return t.id }
func (t Toimipaikka) OrganisaatioID() int64                 { return t.organisaatioID }
func (t Toimipaikka) OID() string                           { return t.oid }
func (t Toimipaikka) Nimi() string                          { return t.nimi }
func (t Toimipaikka) Toimintamuoto() string                 { return t.toimintamuoto }
func (t Toimipaikka) Hallinnointi() Hallinnointijarjestelma { return t.hallinnointi }
func (t Toimipaikka) Lahdejarjestelma() string              { return t.lahdejarjestelma }
func (t Toimipaikka) Tunniste() string                      { return t.tunniste }
func (t Toimipaikka) AlkamisPvm() time.Time                 { return t.alkamisPvm }
func (t Toimipaikka) PaattymisPvm() *time.Time              { return t.paattymisPvm }
func (t Toimipaikka) CreatedAt() time.Time                  { return t.createdAt }
func (t Toimipaikka) UpdatedAt() time.Time                  { return t.updatedAt }
func (t Toimipaikka) IsZero() bool                          { return t.id == 0 }

func (t Toimipaikka) Jarjestamismuodot() []string {
	out := make([]string, len(t.jarjestamismuodot))
	copy(out, t.jarjestamismuodot)
	return out
}

// SupportsJarjestamismuoto reports whether the unit accepts the given
// arrangement-form code; a PAOS placement requires jm02 or jm03 here.
func (t Toimipaikka) SupportsJarjestamismuoto(code string) bool {
	for _, jm := range t.jarjestamismuodot {
		if jm == code {
			return true
		}
	}
	return false
}

// ActiveOn reports whether the unit's activation window covers the date.
func (t Toimipaikka) ActiveOn(pvm time.Time) bool {
	if t.alkamisPvm.IsZero() || pvm.Before(t.alkamisPvm) {
		return false
	}
	return t.paattymisPvm == nil || !pvm.After(*t.paattymisPvm)
}

// WithOrganisaatio returns a copy owned by another operator; the final
// step of a unit migration.
func (t Toimipaikka) WithOrganisaatio(organisaatioID int64) Toimipaikka {
	t.organisaatioID = organisaatioID
	return t
}

// WithPaattymisPvm returns a copy with the activation window ended.
func (t Toimipaikka) WithPaattymisPvm(pvm time.Time) Toimipaikka {
	t.paattymisPvm = &pvm
	return t
}

// Painotus is a language or functional emphasis attached to a unit. It
// shares the unit's permission scopes.
type Painotus struct {
	ID            int64
	ToimipaikkaID int64
	Kind          string
	Koodi         string
	AlkamisPvm    time.Time
	PaattymisPvm  *time.Time
}
