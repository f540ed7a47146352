package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
)

func rowSet(rows []Row) map[string]struct{} {
	out := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		out[r.Group.Name()+" "+string(r.Verb)] = struct{}{}
	}
	return out
}

func TestRowsForOrdinaryChild(t *testing.T) {
	proj := Projection{
		Domains: []permission.Domain{permission.DomainVaka},
		Grants:  []ScopeGrant{{OID: "1.2.246.562.10.111"}},
	}
	rows := rowSet(RowsFor(proj))

	// Recorder group gets all four verbs.
	for _, verb := range []string{"view", "add", "change", "delete"} {
		assert.Contains(t, rows, "VARDA-TALLENTAJA_1.2.246.562.10.111 "+verb)
	}
	// Reader group gets view only.
	assert.Contains(t, rows, "VARDA-KATSELIJA_1.2.246.562.10.111 view")
	assert.NotContains(t, rows, "VARDA-KATSELIJA_1.2.246.562.10.111 change")
	// Guardian-data groups receive nothing on childcare data.
	assert.NotContains(t, rows, "HUOLTAJATIETO_KATSELU_1.2.246.562.10.111 view")
}

func TestRowsForPaosChild(t *testing.T) {
	// Recording party is the arranger; producer side is read-only.
	proj := Projection{
		Domains: []permission.Domain{permission.DomainVaka},
		Grants: []ScopeGrant{
			{OID: "1.2.246.562.10.A"},
			{OID: "1.2.246.562.10.B", ReadOnly: true},
		},
	}
	rows := rowSet(RowsFor(proj))

	assert.Contains(t, rows, "VARDA-TALLENTAJA_1.2.246.562.10.A change")
	assert.Contains(t, rows, "VARDA-TALLENTAJA_1.2.246.562.10.A delete")
	assert.Contains(t, rows, "VARDA-KATSELIJA_1.2.246.562.10.A view")

	// Both sides view, only the recording party writes.
	assert.Contains(t, rows, "VARDA-KATSELIJA_1.2.246.562.10.B view")
	assert.Contains(t, rows, "VARDA-TALLENTAJA_1.2.246.562.10.B view")
	assert.NotContains(t, rows, "VARDA-TALLENTAJA_1.2.246.562.10.B change")
	assert.NotContains(t, rows, "VARDA-TALLENTAJA_1.2.246.562.10.B delete")
}

func TestRowsForPayment(t *testing.T) {
	proj := Projection{
		Domains: []permission.Domain{permission.DomainVaka, permission.DomainHuoltajatieto},
		Grants:  []ScopeGrant{{OID: "1.2.246.562.10.111"}},
	}
	rows := rowSet(RowsFor(proj))

	// Payments are visible to guardian-data groups in addition to the
	// vaka groups.
	assert.Contains(t, rows, "HUOLTAJATIETO_TALLENNUS_1.2.246.562.10.111 change")
	assert.Contains(t, rows, "HUOLTAJATIETO_KATSELU_1.2.246.562.10.111 view")
	assert.Contains(t, rows, "VARDA-TALLENTAJA_1.2.246.562.10.111 change")
}

func TestRowsForEmployee(t *testing.T) {
	proj := Projection{
		Domains: []permission.Domain{permission.DomainTyontekija},
		Grants:  []ScopeGrant{{OID: "1.2.246.562.10.111"}},
	}
	rows := rowSet(RowsFor(proj))

	assert.Contains(t, rows, "HENKILOSTO_TYONTEKIJA_TALLENTAJA_1.2.246.562.10.111 add")
	assert.Contains(t, rows, "HENKILOSTO_TYONTEKIJA_KATSELIJA_1.2.246.562.10.111 view")
	assert.NotContains(t, rows, "VARDA-TALLENTAJA_1.2.246.562.10.111 view")
}

func TestRowsForDeduplicatesAcrossDomains(t *testing.T) {
	// PAAKAYTTAJA covers both domains; each (group, verb) must appear
	// once even when emitted by two domain passes.
	proj := Projection{
		Domains: []permission.Domain{permission.DomainVaka, permission.DomainHuoltajatieto},
		Grants:  []ScopeGrant{{OID: "1.2.3"}},
	}
	rows := RowsFor(proj)
	seen := make(map[string]int)
	for _, r := range rows {
		seen[r.Group.Name()+" "+string(r.Verb)]++
	}
	for key, n := range seen {
		assert.Equal(t, 1, n, key)
	}
}

func TestDiffRows(t *testing.T) {
	tallentajaA := permission.NewGroup(permission.RoleTallentaja, "A")
	tallentajaB := permission.NewGroup(permission.RoleTallentaja, "B")

	old := []Row{
		{Group: tallentajaA, Verb: permission.View},
		{Group: tallentajaA, Verb: permission.Change},
	}
	updated := []Row{
		{Group: tallentajaA, Verb: permission.View},
		{Group: tallentajaB, Verb: permission.Change},
	}

	toInsert, toDelete := DiffRows(old, updated)
	require.Len(t, toInsert, 1)
	require.Len(t, toDelete, 1)
	assert.Equal(t, tallentajaB, toInsert[0].Group)
	assert.Equal(t, tallentajaA, toDelete[0].Group)
	assert.Equal(t, permission.Change, toDelete[0].Verb)
}

func TestRotationRoundTripIsStable(t *testing.T) {
	// Rotating recording party A→B→A must land exactly on the initial
	// row set.
	grantsAtoB := func(recording string) Projection {
		return Projection{
			Domains: []permission.Domain{permission.DomainVaka},
			Grants: []ScopeGrant{
				{OID: "A", ReadOnly: recording != "A"},
				{OID: "B", ReadOnly: recording != "B"},
			},
		}
	}

	initial := RowsFor(grantsAtoB("A"))
	afterB := RowsFor(grantsAtoB("B"))
	back := RowsFor(grantsAtoB("A"))

	assert.Equal(t, initial, back)
	assert.NotEqual(t, initial, afterB)

	toInsert, toDelete := DiffRows(afterB, back)
	reverseInsert, reverseDelete := DiffRows(initial, afterB)
	assert.ElementsMatch(t, toInsert, reverseDelete)
	assert.ElementsMatch(t, toDelete, reverseInsert)
}
