// Package henkilo models deduplicated physical persons. One person may
// simultaneously be a child, an employee at any number of operators, and
// a guardian of any number of children.
package henkilo

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// ContentType is the permission-index key for person rows.
const ContentType = "henkilo"

// HashHetu derives the uniqueness key of a national identifier. Only the
// hash is ever compared; the identifier itself is stored encrypted.
func HashHetu(hetu string) string {
	sum := sha256.Sum256([]byte(strings.ToUpper(strings.TrimSpace(hetu))))
	return hex.EncodeToString(sum[:])
}

// Henkilo is a person record. Uniqueness is enforced on the hetu hash
// when present and on the external OID when present; an OID-only record
// carries no hetu at all.
type Henkilo struct {
	id             int64
	oid            string
	hetuHash       string
	hetuCiphertext []byte
	etunimet       string
	kutsumanimi    string
	sukunimi       string
	syntymaPvm     time.Time
	turvakielto    bool
	createdAt      time.Time
	updatedAt      time.Time
}

func New(oid, hetuHash string, hetuCiphertext []byte, etunimet, kutsumanimi, sukunimi string, syntymaPvm time.Time) Henkilo {
	return Henkilo{
		oid:            strings.TrimSpace(oid),
		hetuHash:       hetuHash,
		hetuCiphertext: hetuCiphertext,
		etunimet:       etunimet,
		kutsumanimi:    kutsumanimi,
		sukunimi:       sukunimi,
		syntymaPvm:     syntymaPvm,
	}
}

func Hydrate(
	id int64,
	oid string,
	hetuHash string,
	hetuCiphertext []byte,
	etunimet string,
	kutsumanimi string,
	sukunimi string,
	syntymaPvm time.Time,
	turvakielto bool,
	createdAt time.Time,
	updatedAt time.Time,
) Henkilo {
	return Henkilo{
		id:             id,
		oid:            strings.TrimSpace(oid),
		hetuHash:       hetuHash,
		hetuCiphertext: hetuCiphertext,
		etunimet:       etunimet,
		kutsumanimi:    kutsumanimi,
		sukunimi:       sukunimi,
		syntymaPvm:     syntymaPvm,
		turvakielto:    turvakielto,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (h Henkilo) ID() int64              { return h.id }
func (h Henkilo) OID() string            { return h.oid }
func (h Henkilo) HetuHash() string       { return h.hetuHash }
func (h Henkilo) HetuCiphertext() []byte { return h.hetuCiphertext }
func (h Henkilo) Etunimet() string       { return h.etunimet }
func (h Henkilo) Kutsumanimi() string    { return h.kutsumanimi }
func (h Henkilo) Sukunimi() string       { return h.sukunimi }
func (h Henkilo) SyntymaPvm() time.Time  { return h.syntymaPvm }
func (h Henkilo) Turvakielto() bool      { return h.turvakielto }
func (h Henkilo) CreatedAt() time.Time   { return h.createdAt }
func (h Henkilo) UpdatedAt() time.Time   { return h.updatedAt }
func (h Henkilo) IsZero() bool           { return h.id == 0 && h.oid == "" }

// AgeOn returns the person's age in full years on the given date.
func (h Henkilo) AgeOn(pvm time.Time) int {
	if h.syntymaPvm.IsZero() {
		return 0
	}
	years := pvm.Year() - h.syntymaPvm.Year()
	anniversary := h.syntymaPvm.AddDate(years, 0, 0)
	if anniversary.After(pvm) {
		years--
	}
	return years
}
