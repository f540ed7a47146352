// Package organisaatio models the top-level responsible parties of the
// registry: municipal and private childcare operators.
package organisaatio

import (
	"strings"
	"time"
)

// ContentType is the permission-index key for operator rows.
const ContentType = "organisaatio"

// TyyppiVakajarjestaja marks an operator as a childcare operator. Other
// type tags arrive from the operator registry and pass through opaquely.
const TyyppiVakajarjestaja = "organisaatiotyyppi_07"

// Yritysmuoto codes of public-sector bodies: kunta and kuntayhtyma.
// Every other business form is private-sector.
var publicYritysmuodot = map[string]struct{}{
	"41": {},
	"42": {},
}

// Organisaatio is an operator. Created explicitly or lazily when first
// referenced; never deleted while dependent entities reference it.
type Organisaatio struct {
	id           int64
	oid          string
	nimi         string
	ytunnus      string
	yritysmuoto  string
	tyypit       []string
	integraatiot []string
	alkamisPvm   time.Time
	paattymisPvm *time.Time
	createdAt    time.Time
	updatedAt    time.Time
}

func New(oid, nimi, ytunnus, yritysmuoto string, tyypit []string, alkamisPvm time.Time) Organisaatio {
	return Organisaatio{
		oid:         strings.TrimSpace(oid),
		nimi:        nimi,
		ytunnus:     ytunnus,
		yritysmuoto: yritysmuoto,
		tyypit:      tyypit,
		alkamisPvm:  alkamisPvm,
	}
}

func Hydrate(
	id int64,
	oid string,
	nimi string,
	ytunnus string,
	yritysmuoto string,
	tyypit []string,
	integraatiot []string,
	alkamisPvm time.Time,
	paattymisPvm *time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) Organisaatio {
	return Organisaatio{
		id:           id,
		oid:          strings.TrimSpace(oid),
		nimi:         nimi,
		ytunnus:      ytunnus,
		yritysmuoto:  yritysmuoto,
		tyypit:       tyypit,
		integraatiot: integraatiot,
		alkamisPvm:   alkamisPvm,
		paattymisPvm: paattymisPvm,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (o Organisaatio) ID() int64                { return o.id }
func (o Organisaatio) OID() string              { return o.oid }
func (o Organisaatio) Nimi() string             { return o.nimi }
func (o Organisaatio) Ytunnus() string          { return o.ytunnus }
func (o Organisaatio) Yritysmuoto() string      { return o.yritysmuoto }
func (o Organisaatio) AlkamisPvm() time.Time    { return o.alkamisPvm }
func (o Organisaatio) PaattymisPvm() *time.Time { return o.paattymisPvm }
func (o Organisaatio) CreatedAt() time.Time     { return o.createdAt }
func (o Organisaatio) UpdatedAt() time.Time     { return o.updatedAt }
func (o Organisaatio) IsZero() bool             { return o.id == 0 && o.oid == "" }

func (o Organisaatio) Tyypit() []string {
	out := make([]string, len(o.tyypit))
	copy(out, o.tyypit)
	return out
}

// Integraatiot lists the data categories this operator may only submit
// through system-to-system integration.
func (o Organisaatio) Integraatiot() []string {
	out := make([]string, len(o.integraatiot))
	copy(out, o.integraatiot)
	return out
}

// IsPublic reports whether the operator is a public-sector body. Unit
// migration may not cross this boundary.
func (o Organisaatio) IsPublic() bool {
	_, ok := publicYritysmuodot[o.yritysmuoto]
	return ok
}

// IsVakajarjestaja reports whether the operator carries the childcare
// operator type tag.
func (o Organisaatio) IsVakajarjestaja() bool {
	for _, t := range o.tyypit {
		if t == TyyppiVakajarjestaja {
			return true
		}
	}
	return false
}

// IntegraatioOnly reports whether the given data category is restricted
// to integration submissions for this operator.
func (o Organisaatio) IntegraatioOnly(category string) bool {
	for _, c := range o.integraatiot {
		if c == category {
			return true
		}
	}
	return false
}

// WithIntegraatiot returns a copy with the integration-channel set.
func (o Organisaatio) WithIntegraatiot(categories []string) Organisaatio {
	o.integraatiot = categories
	return o
}

// WithPaattymisPvm returns a copy with the activation window ended.
func (o Organisaatio) WithPaattymisPvm(pvm time.Time) Organisaatio {
	o.paattymisPvm = &pvm
	return o
}
