// Package tyontekija models employee records binding a person to an
// operator.
package tyontekija

import "time"

// ContentType is the permission-index key of employee rows.
const ContentType = "tyontekija"

// Tyontekija binds a person to the operator employing them. The same
// person may be employed by any number of operators, one record each.
type Tyontekija struct {
	id               int64
	henkiloID        int64
	vakajarjestajaID int64
	lahdejarjestelma string
	tunniste         string
	createdAt        time.Time
	updatedAt        time.Time
}

func New(henkiloID, vakajarjestajaID int64, lahdejarjestelma, tunniste string) Tyontekija {
	return Tyontekija{
		henkiloID:        henkiloID,
		vakajarjestajaID: vakajarjestajaID,
		lahdejarjestelma: lahdejarjestelma,
		tunniste:         tunniste,
	}
}

func Hydrate(
	id, henkiloID, vakajarjestajaID int64,
	lahdejarjestelma, tunniste string,
	createdAt, updatedAt time.Time,
) Tyontekija {
	return Tyontekija{
		id:               id,
		henkiloID:        henkiloID,
		vakajarjestajaID: vakajarjestajaID,
		lahdejarjestelma: lahdejarjestelma,
		tunniste:         tunniste,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

func (t Tyontekija) ID() int64                { return t.id }
func (t Tyontekija) HenkiloID() int64         { return t.henkiloID }
func (t Tyontekija) VakajarjestajaID() int64  { return t.vakajarjestajaID }
func (t Tyontekija) Lahdejarjestelma() string { return t.lahdejarjestelma }
func (t Tyontekija) Tunniste() string         { return t.tunniste }
func (t Tyontekija) CreatedAt() time.Time     { return t.createdAt }
func (t Tyontekija) UpdatedAt() time.Time     { return t.updatedAt }
func (t Tyontekija) IsZero() bool             { return t.id == 0 }
