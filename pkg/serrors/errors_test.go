package serrors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindMatching(t *testing.T) {
	err := PermissionDenied("no change verb on lapsi")
	assert.True(t, IsKind(err, KindPermissionDenied))
	assert.False(t, IsKind(err, KindNotFound))

	wrapped := fmt.Errorf("save lapsi: %w", err)
	assert.True(t, IsKind(wrapped, KindPermissionDenied))
}

func TestConflictCarriesExistingID(t *testing.T) {
	err := ConflictDuplicateExternal(4217)
	assert.Equal(t, int64(4217), err.ExistingID)
	assert.True(t, IsKind(err, KindConflictDuplicate))
}

func TestThrottledCarriesRetryAfter(t *testing.T) {
	err := Throttled(42 * time.Minute)
	assert.Equal(t, 42*time.Minute, err.RetryAfter)
}

func TestTemplateData(t *testing.T) {
	err := NewError("AUTHZ_FORBIDDEN", "permission denied", "Authorization.PermissionDenied").
		WithTemplateData(map[string]string{"object": "varhaiskasvatus.lapsi", "action": "change"})
	assert.Equal(t, "varhaiskasvatus.lapsi", err.TemplateData["object"])
	assert.Equal(t, KindPermissionDenied, err.Kind)
}
