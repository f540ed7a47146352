package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupNameRoundTrip(t *testing.T) {
	g := NewGroup(RoleTallentaja, "1.2.246.562.10.111")
	assert.Equal(t, "VARDA-TALLENTAJA_1.2.246.562.10.111", g.Name())

	parsed, err := ParseGroupName(g.Name())
	require.NoError(t, err)
	assert.Equal(t, g, parsed)
}

func TestGroupNameWithUnderscoreRole(t *testing.T) {
	g := NewGroup(RoleTaydennyskoulutusTallentaja, "1.2.246.562.10.222")
	assert.Equal(t, "HENKILOSTO_TAYDENNYSKOULUTUS_TALLENTAJA_1.2.246.562.10.222", g.Name())

	parsed, err := ParseGroupName(g.Name())
	require.NoError(t, err)
	assert.Equal(t, RoleTaydennyskoulutusTallentaja, parsed.Role)
	assert.Equal(t, "1.2.246.562.10.222", parsed.OrganisaatioOID)
}

func TestParseGroupNameRejectsGarbage(t *testing.T) {
	for _, name := range []string{"", "VARDA-TALLENTAJA", "VARDA-TALLENTAJA_", "_1.2.3", "NOT_A_ROLE_1.2.3"} {
		_, err := ParseGroupName(name)
		assert.Error(t, err, name)
	}
}

func TestRoleNamesDeduplicates(t *testing.T) {
	groups := []Group{
		NewGroup(RoleTallentaja, "1.2.246.562.10.111"),
		NewGroup(RoleTallentaja, "1.2.246.562.10.222"),
		NewGroup(RoleKatselija, "1.2.246.562.10.111"),
	}
	assert.Equal(t, []string{"VARDA-TALLENTAJA", "VARDA-KATSELIJA"}, RoleNames(groups))
	assert.Empty(t, RoleNames(nil))
}

func TestRoleVerbs(t *testing.T) {
	assert.Equal(t, AllVerbs, RoleTallentaja.Verbs())
	assert.Equal(t, ReadVerbs, RoleKatselija.Verbs())
	// Machine accounts get recorder verbs for their domain.
	assert.Equal(t, AllVerbs, RolePalvelukayttaja.Verbs())
}

func TestRoleDomains(t *testing.T) {
	assert.True(t, RoleTallentaja.Covers(DomainVaka))
	assert.False(t, RoleTallentaja.Covers(DomainTyontekija))

	// Guardian-data roles see payments but not childcare decisions.
	assert.True(t, RoleHuoltajatietoKatselu.Covers(DomainHuoltajatieto))
	assert.False(t, RoleHuoltajatietoKatselu.Covers(DomainVaka))

	vaka := RolesForDomain(DomainVaka)
	assert.Contains(t, vaka, RoleTallentaja)
	assert.Contains(t, vaka, RoleKatselija)
	assert.Contains(t, vaka, RolePalvelukayttaja)
	assert.NotContains(t, vaka, RoleHuoltajatietoTallennus)
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("VARDA-TALLENTAJA")
	assert.True(t, ok)
	assert.Equal(t, RoleTallentaja, r)

	_, ok = ParseRole("VARDA-SOMETHING-NEW")
	assert.False(t, ok)
}

func TestParseVerb(t *testing.T) {
	v, err := ParseVerb("change")
	require.NoError(t, err)
	assert.Equal(t, Change, v)

	_, err = ParseVerb("execute")
	assert.Error(t, err)
}
