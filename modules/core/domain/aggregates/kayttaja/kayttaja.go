package kayttaja

import (
	"strings"
	"time"

	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
)

// Kind separates natural persons from machine accounts.
type Kind string

const (
	KindVirkailija Kind = "VIRKAILIJA"
	KindPalvelu    Kind = "PALVELU"
)

// Kayttooikeus is one role assignment: a role within an operator scope.
type Kayttooikeus struct {
	OrganisaatioOID string
	Role            permission.Role
}

func (k Kayttooikeus) Group() permission.Group {
	return permission.NewGroup(k.Role, k.OrganisaatioOID)
}

// Kayttaja is the principal profile plus its role assignments.
type Kayttaja struct {
	id         int64
	oid        string
	kind       Kind
	oikeudet   []Kayttooikeus
	lastSyncAt time.Time
	createdAt  time.Time
	updatedAt  time.Time
}

func New(oid string, kind Kind) Kayttaja {
	return Kayttaja{oid: strings.TrimSpace(oid), kind: kind}
}

func Hydrate(
	id int64,
	oid string,
	kind Kind,
	oikeudet []Kayttooikeus,
	lastSyncAt time.Time,
	createdAt time.Time,
	updatedAt time.Time,
) Kayttaja {
	return Kayttaja{
		id:         id,
		oid:        strings.TrimSpace(oid),
		kind:       kind,
		oikeudet:   oikeudet,
		lastSyncAt: lastSyncAt,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (k Kayttaja) ID() int64             { return k.id }
func (k Kayttaja) OID() string           { return k.oid }
func (k Kayttaja) Kind() Kind            { return k.kind }
func (k Kayttaja) LastSyncAt() time.Time { return k.lastSyncAt }
func (k Kayttaja) CreatedAt() time.Time  { return k.createdAt }
func (k Kayttaja) UpdatedAt() time.Time  { return k.updatedAt }
func (k Kayttaja) IsZero() bool          { return k.id == 0 && k.oid == "" }
func (k Kayttaja) Oikeudet() []Kayttooikeus {
	out := make([]Kayttooikeus, len(k.oikeudet))
	copy(out, k.oikeudet)
	return out
}

// Groups projects the role assignments into the group set used as ACL
// subjects.
func (k Kayttaja) Groups() []permission.Group {
	out := make([]permission.Group, 0, len(k.oikeudet))
	for _, o := range k.oikeudet {
		out = append(out, o.Group())
	}
	return out
}

// HasRole reports whether the principal holds the role in the given scope.
func (k Kayttaja) HasRole(role permission.Role, organisaatioOID string) bool {
	for _, o := range k.oikeudet {
		if o.Role == role && o.OrganisaatioOID == organisaatioOID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal holds the system administrator
// role at the umbrella operator. Administrators bypass object-level
// checks entirely.
func (k Kayttaja) IsAdmin(umbrellaOID string) bool {
	return k.HasRole(permission.RoleYllapitaja, umbrellaOID)
}

// IsUmbrellaAdmin reports whether the principal is an administrator whose
// memberships must survive a role synchronization untouched.
func (k Kayttaja) IsUmbrellaAdmin(umbrellaOID string) bool {
	return k.HasRole(permission.RolePaakayttaja, umbrellaOID) || k.IsAdmin(umbrellaOID)
}

// WithOikeudet returns a copy with the given role assignments.
func (k Kayttaja) WithOikeudet(oikeudet []Kayttooikeus) Kayttaja {
	k.oikeudet = oikeudet
	return k
}
