package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/varda/pkg/serrors"
)

const testModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")
`

const testPolicy = `p, VARDA-TALLENTAJA, varhaiskasvatus.*, *
p, VARDA-KATSELIJA, varhaiskasvatus.*, view
p, HUOLTAJATIETO_KATSELU, varhaiskasvatus.maksutieto, view
`

func newTestService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "model.conf")
	policyPath := filepath.Join(dir, "policy.csv")
	require.NoError(t, os.WriteFile(modelPath, []byte(testModel), 0o600))
	require.NoError(t, os.WriteFile(policyPath, []byte(testPolicy), 0o600))

	svc, err := NewService(Config{ModelPath: modelPath, PolicyPath: policyPath})
	require.NoError(t, err)
	return svc
}

func TestRecorderMayWrite(t *testing.T) {
	svc := newTestService(t)
	ok, err := svc.Check(context.Background(), "VARDA-TALLENTAJA", "varhaiskasvatus.lapsi", "add")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReaderMayOnlyView(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ok, err := svc.Check(ctx, "VARDA-KATSELIJA", "varhaiskasvatus.lapsi", "view")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Check(ctx, "VARDA-KATSELIJA", "varhaiskasvatus.lapsi", "change")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHuoltajatietoScopedToPayments(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ok, err := svc.Check(ctx, "HUOLTAJATIETO_KATSELU", "varhaiskasvatus.maksutieto", "view")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Check(ctx, "HUOLTAJATIETO_KATSELU", "varhaiskasvatus.varhaiskasvatuspaatos", "view")
	require.NoError(t, err)
	assert.False(t, ok, "guardian-data readers must not see childcare decisions")
}

func TestAuthorizeDenies(t *testing.T) {
	svc := newTestService(t)
	err := svc.Authorize(context.Background(), []string{"VARDA-KATSELIJA"}, "varhaiskasvatus.lapsi", "delete")
	require.Error(t, err)
	assert.True(t, serrors.IsKind(err, serrors.KindPermissionDenied))
}

func TestAuthorizeAllowsAnySubject(t *testing.T) {
	svc := newTestService(t)
	err := svc.Authorize(context.Background(),
		[]string{"VARDA-KATSELIJA", "VARDA-TALLENTAJA"}, "varhaiskasvatus.lapsi", "delete")
	assert.NoError(t, err)
}
