// Package acl maintains the object-level permission index: for every
// stored entity, which groups (role within operator scope) and which
// individual principals hold which verbs. Projection-rule evaluation is
// pure; persistence lives in index.go.
package acl

import (
	"sort"

	"github.com/iota-uz/varda/modules/core/domain/entities/permission"
)

// Ref identifies one stored entity in the index.
type Ref struct {
	ContentType string
	ObjectID    int64
}

// ScopeGrant is one operator or unit scope receiving ACL rows for an
// entity. ReadOnly scopes get view rows only, regardless of role grade:
// this is how the non-recording side of a PAOS agreement is kept to
// read access.
type ScopeGrant struct {
	OID      string
	ReadOnly bool
}

// Projection describes how one entity's ACL rows are derived: which data
// categories the entity belongs to, and which scopes receive rows.
type Projection struct {
	Domains []permission.Domain
	Grants  []ScopeGrant
}

// Row is one computed group-ACL row.
type Row struct {
	Group permission.Group
	Verb  permission.Verb
}

// RowsFor evaluates the projection into the concrete set of group rows.
// For every grant and every role covering one of the entity's domains the
// role's verbs are emitted, capped to view on read-only grants. The
// result is deduplicated and sorted for deterministic storage writes.
func RowsFor(p Projection) []Row {
	seen := make(map[string]struct{})
	rows := make([]Row, 0, len(p.Grants)*8)
	for _, grant := range p.Grants {
		for _, d := range p.Domains {
			for _, role := range permission.RolesForDomain(d) {
				verbs := role.Verbs()
				if grant.ReadOnly {
					verbs = permission.ReadVerbs
				}
				g := permission.NewGroup(role, grant.OID)
				for _, v := range verbs {
					key := g.Name() + "\x00" + string(v)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					rows = append(rows, Row{Group: g, Verb: v})
				}
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Group.Name() != rows[j].Group.Name() {
			return rows[i].Group.Name() < rows[j].Group.Name()
		}
		return rows[i].Verb < rows[j].Verb
	})
	return rows
}

// DiffRows computes the insertions and deletions needed to move the
// stored row set from old to new. Used by the PAOS transition engine to
// rewrite permissions with minimal churn.
func DiffRows(old, updated []Row) (toInsert, toDelete []Row) {
	key := func(r Row) string { return r.Group.Name() + "\x00" + string(r.Verb) }
	oldSet := make(map[string]Row, len(old))
	for _, r := range old {
		oldSet[key(r)] = r
	}
	newSet := make(map[string]Row, len(updated))
	for _, r := range updated {
		newSet[key(r)] = r
	}
	for k, r := range newSet {
		if _, ok := oldSet[k]; !ok {
			toInsert = append(toInsert, r)
		}
	}
	for k, r := range oldSet {
		if _, ok := newSet[k]; !ok {
			toDelete = append(toDelete, r)
		}
	}
	sortRows(toInsert)
	sortRows(toDelete)
	return toInsert, toDelete
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Group.Name() != rows[j].Group.Name() {
			return rows[i].Group.Name() < rows[j].Group.Name()
		}
		return rows[i].Verb < rows[j].Verb
	})
}
