// Package services implements the employee-module use cases: employee
// records, the employment chain below them and training events.
package services

import (
	"context"

	"github.com/go-playground/validator/v10"

	"github.com/iota-uz/varda/modules/core/acl"
	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
	henkiloaggregate "github.com/iota-uz/varda/modules/henkilo/domain/aggregates/henkilo"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/organisaatio"
	"github.com/iota-uz/varda/modules/topology/domain/aggregates/toimipaikka"
)

var validate = validator.New()

// Model names of the change record stream.
const (
	modelTyontekija        = "Tyontekija"
	modelPalvelussuhde     = "Palvelussuhde"
	modelTyoskentelypaikka = "Tyoskentelypaikka"
	modelPoissaolo         = "PidempiPoissaolo"
	modelKoulutus          = "Taydennyskoulutus"
)

var (
	tyontekijaDomains = []permission.Domain{permission.DomainTyontekija, permission.DomainVuokrattuHenkilosto}
	koulutusDomains   = []permission.Domain{permission.DomainTaydennyskoulutus}
)

// OrganisaatioLookup reads operators from the topology store.
type OrganisaatioLookup interface {
	GetByID(ctx context.Context, id int64) (organisaatio.Organisaatio, error)
	GetByOID(ctx context.Context, oid string) (organisaatio.Organisaatio, error)
}

// ToimipaikkaLookup resolves units for work-location validation and
// scope derivation.
type ToimipaikkaLookup interface {
	GetByID(ctx context.Context, id int64) (toimipaikka.Toimipaikka, error)
}

// PersonResolver is the person store seen from this module.
type PersonResolver interface {
	FindOrCreate(ctx context.Context, hetu, oid string) (henkiloaggregate.Henkilo, error)
	GrantScopes(ctx context.Context, henkiloID int64, domains []permission.Domain, grants []acl.ScopeGrant) error
}

func operatorScopes(oid string) []acl.ScopeGrant {
	return []acl.ScopeGrant{{OID: oid}}
}

func withUnitScope(grants []acl.ScopeGrant, unitOID string) []acl.ScopeGrant {
	out := make([]acl.ScopeGrant, len(grants), len(grants)+1)
	copy(out, grants)
	if unitOID != "" {
		out = append(out, acl.ScopeGrant{OID: unitOID})
	}
	return out
}
