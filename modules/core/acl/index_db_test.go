package acl

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/core/domain/aggregates/kayttaja"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/pkg/cache"
	"github.com/iota-uz/varda/pkg/itf"
)

const umbrellaOID = "1.2.246.562.10.00000000001"

func testIndex(t *testing.T) *Index {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	visible := cache.NewMemory(time.Minute, clockwork.NewRealClock())
	return NewIndex(log, visible, shippedPolicy(t), umbrellaOID)
}

func virkailija(id int64, oikeudet ...kayttaja.Kayttooikeus) kayttaja.Kayttaja {
	return kayttaja.Hydrate(id, "1.2.246.562.24.10000000000", kayttaja.KindVirkailija,
		oikeudet, time.Time{}, time.Time{}, time.Time{})
}

func TestIndexPermitsProjectedUnit(t *testing.T) {
	env := itf.Setup(t)
	x := testIndex(t)

	ref := Ref{ContentType: "toimipaikka", ObjectID: 9001}
	require.NoError(t, x.Apply(env.Ctx, ref, Projection{
		Domains: []permission.Domain{permission.DomainVaka, permission.DomainTyontekija},
		Grants:  []ScopeGrant{{OID: "1.2.246.562.10.111"}},
	}))

	reader := virkailija(7001, kayttaja.Kayttooikeus{
		OrganisaatioOID: "1.2.246.562.10.111",
		Role:            permission.RoleKatselija,
	})
	ok, err := x.Permits(env.Ctx, reader, ref, permission.View)
	require.NoError(t, err)
	assert.True(t, ok, "reader in scope must see the unit")

	ok, err = x.Permits(env.Ctx, reader, ref, permission.Change)
	require.NoError(t, err)
	assert.False(t, ok, "reader never gets write verbs")

	outsider := virkailija(7002, kayttaja.Kayttooikeus{
		OrganisaatioOID: "1.2.246.562.10.999",
		Role:            permission.RoleTallentaja,
	})
	ok, err = x.Permits(env.Ctx, outsider, ref, permission.View)
	require.NoError(t, err)
	assert.False(t, ok, "foreign operator scope must be denied")
}

func TestIndexVisibleIDsFollowApplyAndDrop(t *testing.T) {
	env := itf.Setup(t)
	x := testIndex(t)

	ref := Ref{ContentType: "toimipaikka", ObjectID: 9002}
	require.NoError(t, x.Apply(env.Ctx, ref, Projection{
		Domains: []permission.Domain{permission.DomainVaka},
		Grants:  []ScopeGrant{{OID: "1.2.246.562.10.111"}},
	}))

	reader := virkailija(7003, kayttaja.Kayttooikeus{
		OrganisaatioOID: "1.2.246.562.10.111",
		Role:            permission.RoleKatselija,
	})
	ids, err := x.VisibleIDs(env.Ctx, reader, "toimipaikka")
	require.NoError(t, err)
	assert.Contains(t, ids, int64(9002))

	require.NoError(t, x.Drop(env.Ctx, ref))
	ids, err = x.VisibleIDs(env.Ctx, reader, "toimipaikka")
	require.NoError(t, err)
	assert.NotContains(t, ids, int64(9002))
}

// A user row is an explicit per-principal grant; it must hold even for a
// principal with no group memberships at all.
func TestIndexUserGrantStandsWithoutGroups(t *testing.T) {
	env := itf.Setup(t)
	x := testIndex(t)

	ref := Ref{ContentType: "henkilo", ObjectID: 9003}
	require.NoError(t, x.GrantUser(env.Ctx, 7004, ref, permission.View))

	grantee := virkailija(7004)
	ok, err := x.Permits(env.Ctx, grantee, ref, permission.View)
	require.NoError(t, err)
	assert.True(t, ok, "user row must permit without any group")

	ok, err = x.Permits(env.Ctx, grantee, ref, permission.Change)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, x.RevokeUser(env.Ctx, 7004, ref))
	ok, err = x.Permits(env.Ctx, grantee, ref, permission.View)
	require.NoError(t, err)
	assert.False(t, ok, "revoked user row must no longer permit")
}

func TestIndexAdminBypassesRows(t *testing.T) {
	env := itf.Setup(t)
	x := testIndex(t)

	admin := virkailija(7005, kayttaja.Kayttooikeus{
		OrganisaatioOID: umbrellaOID,
		Role:            permission.RoleYllapitaja,
	})
	ok, err := x.Permits(env.Ctx, admin, Ref{ContentType: "lapsi", ObjectID: 1}, permission.Delete)
	require.NoError(t, err)
	assert.True(t, ok)
}
