package services

import (
	"context"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	"github.com/iota-uz/varda/modules/varhaiskasvatus/domain/aggregates/lapsi"
)

// Scope derivation rules for childcare entities. Child rows project to
// the responsible operator's scopes; for a shared-custody child both
// sides see the data but only the recording party's groups keep write
// verbs. Decisions and placements add the unit scopes of their
// placements; payments additionally open up to the guardian-data groups.

var (
	vakaDomains    = []permission.Domain{permission.DomainVaka}
	paymentDomains = []permission.Domain{permission.DomainVaka, permission.DomainHuoltajatieto}
)

// ordinaryScopes is the single-operator case.
func ordinaryScopes(vakatoimijaOID string) []acl.ScopeGrant {
	return []acl.ScopeGrant{{OID: vakatoimijaOID}}
}

// paosScopes grants both sides of the agreement, capping the
// non-recording side to read access.
func paosScopes(arrangerOID, producerOID string, recorderIsArranger bool) []acl.ScopeGrant {
	return []acl.ScopeGrant{
		{OID: arrangerOID, ReadOnly: !recorderIsArranger},
		{OID: producerOID, ReadOnly: recorderIsArranger},
	}
}

// resolveChildGrants derives the operator grants of a child and, for a
// shared-custody child, whether the producer side is currently capped to
// read access. The agreement row is locked so the recording party cannot
// rotate mid-write.
func resolveChildGrants(ctx context.Context, orgs OrganisaatioLookup, oikeudet OikeusLookup, l lapsi.Lapsi) ([]acl.ScopeGrant, bool, error) {
	if !l.IsPaos() {
		owner, err := orgs.GetByID(ctx, l.VakatoimijaID())
		if err != nil {
			return nil, false, err
		}
		return ordinaryScopes(owner.OID()), false, nil
	}

	arranger, err := orgs.GetByID(ctx, l.OmaOrganisaatioID())
	if err != nil {
		return nil, false, err
	}
	producer, err := orgs.GetByID(ctx, l.PaosOrganisaatioID())
	if err != nil {
		return nil, false, err
	}
	oikeus, err := oikeudet.GetOikeusForUpdate(ctx, arranger.ID(), producer.ID())
	if err != nil {
		return nil, false, err
	}
	recorderIsArranger := oikeus.TallentajaID == arranger.ID()
	return paosScopes(arranger.OID(), producer.OID(), recorderIsArranger), recorderIsArranger, nil
}

// withUnitScopes appends unit-OID grants to the operator grants. Unit
// grants carry the read-only cap of the unit's owning side so that a
// rotation flips unit-scoped writers together with operator-scoped ones.
func withUnitScopes(grants []acl.ScopeGrant, unitOIDs []string, readOnly bool) []acl.ScopeGrant {
	out := make([]acl.ScopeGrant, len(grants), len(grants)+len(unitOIDs))
	copy(out, grants)
	for _, oid := range unitOIDs {
		if oid == "" {
			continue
		}
		out = append(out, acl.ScopeGrant{OID: oid, ReadOnly: readOnly})
	}
	return out
}
