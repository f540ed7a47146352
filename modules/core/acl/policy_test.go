package acl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/pkg/authz"
)

func shippedPolicy(t *testing.T) *authz.Service {
	t.Helper()
	svc, err := authz.NewService(authz.Config{
		ModelPath:  "../../../config/access/model.conf",
		PolicyPath: "../../../config/access/policy.csv",
	})
	require.NoError(t, err)
	return svc
}

// Every group row the projection stores must also pass the role-policy
// gate, or Permits would deny the very access the index granted. The
// domain sets mirror the owning services' projection rules.
func TestShippedPolicyAdmitsProjectedRows(t *testing.T) {
	svc := shippedPolicy(t)

	domainsByContentType := map[string][]permission.Domain{
		"organisaatio":           {permission.DomainToimijatiedot, permission.DomainVaka, permission.DomainRaportit},
		"toimipaikka":            {permission.DomainVaka, permission.DomainTyontekija},
		"kielipainotus":          {permission.DomainVaka, permission.DomainTyontekija},
		"toiminnallinenpainotus": {permission.DomainVaka, permission.DomainTyontekija},
		"lapsi":                  {permission.DomainVaka},
		"varhaiskasvatuspaatos":  {permission.DomainVaka},
		"varhaiskasvatussuhde":   {permission.DomainVaka},
		"maksutieto":             {permission.DomainVaka, permission.DomainHuoltajatieto},
		"huoltajuussuhde":        {permission.DomainVaka, permission.DomainHuoltajatieto},
		"tyontekija":             {permission.DomainTyontekija, permission.DomainVuokrattuHenkilosto},
		"palvelussuhde":          {permission.DomainTyontekija, permission.DomainVuokrattuHenkilosto},
		"tyoskentelypaikka":      {permission.DomainTyontekija, permission.DomainVuokrattuHenkilosto},
		"pidempipoissaolo":       {permission.DomainTyontekija, permission.DomainVuokrattuHenkilosto},
		"taydennyskoulutus":      {permission.DomainTaydennyskoulutus},
	}

	ctx := context.Background()
	for contentType, domains := range domainsByContentType {
		rows := RowsFor(Projection{
			Domains: domains,
			Grants:  []ScopeGrant{{OID: "1.2.246.562.10.111"}},
		})
		require.NotEmpty(t, rows, contentType)
		for _, row := range rows {
			ok, err := svc.Check(ctx, string(row.Group.Role), policyObject(contentType), string(row.Verb))
			require.NoError(t, err)
			assert.True(t, ok, "%s must be allowed %s on %s", row.Group.Role, row.Verb, contentType)
		}
	}
}

// Person rows are projected read-only from every referencing entity, so
// the gate must admit view for the referencing roles on henkilo objects.
func TestShippedPolicyAdmitsPersonReadThrough(t *testing.T) {
	svc := shippedPolicy(t)

	rows := RowsFor(Projection{
		Domains: []permission.Domain{permission.DomainTyontekija, permission.DomainVuokrattuHenkilosto},
		Grants:  []ScopeGrant{{OID: "1.2.246.562.10.111", ReadOnly: true}},
	})
	for _, row := range rows {
		ok, err := svc.Check(context.Background(), string(row.Group.Role), policyObject("henkilo"), string(row.Verb))
		require.NoError(t, err)
		assert.True(t, ok, "%s must be allowed %s on henkilo", row.Group.Role, row.Verb)
	}
}

func TestShippedPolicyReaderSeesUnits(t *testing.T) {
	svc := shippedPolicy(t)
	ctx := context.Background()

	ok, err := svc.Check(ctx, "VARDA-KATSELIJA", "topology.toimipaikka", "view")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Check(ctx, "VARDA-KATSELIJA", "topology.toimipaikka", "change")
	require.NoError(t, err)
	assert.False(t, ok, "readers never get write verbs on units")

	ok, err = svc.Check(ctx, "VARDA_RAPORTTIEN_KATSELIJA", "topology.organisaatio", "view")
	require.NoError(t, err)
	assert.True(t, ok)
}
