package permission

import (
	"fmt"
	"strings"
)

// Group is a role bound to an organisation scope. Internally roles and
// scopes stay a typed pair; the <ROLE>_<OID> string form exists only at
// the storage and upstream-protocol boundaries.
type Group struct {
	Role            Role
	OrganisaatioOID string
}

func NewGroup(role Role, organisaatioOID string) Group {
	return Group{Role: role, OrganisaatioOID: strings.TrimSpace(organisaatioOID)}
}

// Name renders the storage-boundary form, e.g.
// "VARDA-TALLENTAJA_1.2.246.562.10.111".
func (g Group) Name() string {
	return string(g.Role) + "_" + g.OrganisaatioOID
}

// ParseGroupName splits a stored group name back into its typed pair.
// Role names may contain underscores; OIDs never do, so the split point is
// the last underscore.
func ParseGroupName(name string) (Group, error) {
	idx := strings.LastIndex(name, "_")
	if idx <= 0 || idx == len(name)-1 {
		return Group{}, fmt.Errorf("malformed group name: %q", name)
	}
	role, ok := ParseRole(name[:idx])
	if !ok {
		return Group{}, fmt.Errorf("unknown role in group name: %q", name)
	}
	return Group{Role: role, OrganisaatioOID: name[idx+1:]}, nil
}

// GroupNames renders a set of groups for storage.
func GroupNames(groups []Group) []string {
	out := make([]string, len(groups))
	for i, g := range groups {
		out[i] = g.Name()
	}
	return out
}

// RoleNames lists the distinct roles appearing in groups, in first-seen
// order. Policy checks work on roles alone; the organisation scope is the
// object index's concern.
func RoleNames(groups []Group) []string {
	seen := make(map[Role]struct{}, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if _, ok := seen[g.Role]; ok {
			continue
		}
		seen[g.Role] = struct{}{}
		out = append(out, string(g.Role))
	}
	return out
}
