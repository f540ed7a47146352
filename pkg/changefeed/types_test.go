package changefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistoryTypeValid(t *testing.T) {
	assert.True(t, Created.Valid())
	assert.True(t, Modified.Valid())
	assert.True(t, Deleted.Valid())
	assert.False(t, HistoryType("x").Valid())
	assert.False(t, HistoryType("").Valid())
}

func TestChangeValidation(t *testing.T) {
	valid := Change{
		ModelName:         "lapsi",
		InstanceID:        7,
		TriggerModelName:  "varhaiskasvatuspaatos",
		TriggerInstanceID: 12,
		HistoryType:       Created,
	}
	assert.NoError(t, valid.validate())

	missingModel := valid
	missingModel.ModelName = ""
	assert.Error(t, missingModel.validate())

	missingInstance := valid
	missingInstance.InstanceID = 0
	assert.Error(t, missingInstance.validate())

	missingTrigger := valid
	missingTrigger.TriggerModelName = ""
	assert.Error(t, missingTrigger.validate())

	badType := valid
	badType.HistoryType = "?"
	assert.Error(t, badType.validate())
}
