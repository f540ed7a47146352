// Package cache memoizes per-principal visible-id lists. Entries are
// tagged with the group names that produced them so an ACL change
// touching a group can drop exactly the affected entries. Stale reads are
// tolerated for at most one TTL.
package cache

import (
	"context"
	"time"
)

// VisibleIDs is the memoization contract used by the permission index.
type VisibleIDs interface {
	Get(ctx context.Context, principalOID, contentType string) ([]int64, bool)
	Set(ctx context.Context, principalOID, contentType string, groupNames []string, ids []int64)
	// InvalidatePrincipal drops every entry of one principal (group
	// membership changed).
	InvalidatePrincipal(ctx context.Context, principalOID string)
	// InvalidateGroups drops every entry whose fill-time group set
	// intersects the given groups (ACL rows changed).
	InvalidateGroups(ctx context.Context, groupNames []string)
}

// Clock is the minimal clock dependency; satisfied by clockwork.Clock.
type Clock interface {
	Now() time.Time
}

func cacheKey(principalOID, contentType string) string {
	return principalOID + "\x00" + contentType
}
