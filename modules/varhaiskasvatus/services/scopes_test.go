package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/modules/core/acl"
)

func TestOrdinaryScopes(t *testing.T) {
	grants := ordinaryScopes("1.2.246.562.10.111")
	require.Len(t, grants, 1)
	assert.Equal(t, "1.2.246.562.10.111", grants[0].OID)
	assert.False(t, grants[0].ReadOnly)
}

func TestPaosScopesRecorderIsArranger(t *testing.T) {
	grants := paosScopes("1.2.246.562.10.111", "1.2.246.562.10.222", true)
	require.Len(t, grants, 2)

	assert.Equal(t, "1.2.246.562.10.111", grants[0].OID)
	assert.False(t, grants[0].ReadOnly, "recording arranger keeps write verbs")
	assert.Equal(t, "1.2.246.562.10.222", grants[1].OID)
	assert.True(t, grants[1].ReadOnly, "non-recording producer is capped to view")
}

func TestPaosScopesRecorderIsProducer(t *testing.T) {
	grants := paosScopes("1.2.246.562.10.111", "1.2.246.562.10.222", false)
	require.Len(t, grants, 2)
	assert.True(t, grants[0].ReadOnly)
	assert.False(t, grants[1].ReadOnly)
}

func TestWithUnitScopes(t *testing.T) {
	base := ordinaryScopes("1.2.246.562.10.111")
	grants := withUnitScopes(base, []string{"1.2.246.562.10.999", ""}, true)

	require.Len(t, grants, 2, "empty unit OIDs are skipped")
	assert.Equal(t, acl.ScopeGrant{OID: "1.2.246.562.10.111"}, grants[0])
	assert.Equal(t, acl.ScopeGrant{OID: "1.2.246.562.10.999", ReadOnly: true}, grants[1])
}

func TestWithUnitScopesDoesNotMutateBase(t *testing.T) {
	base := paosScopes("a", "b", true)
	_ = withUnitScopes(base, []string{"c"}, false)
	require.Len(t, base, 2)
}
