package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_Record(t *testing.T) {
	step := NewStep("Check cache", "Remove any file prefixed ams_.")
	assert.False(t, step.Performed())

	step.Record(ActionDeleted, "/tmp/cache/ams_rules.any", "Deleted file /tmp/cache/ams_rules.any")
	step.Record(ActionReplaced, "/tmp/farm/publish.farm", "Replaced include statement")

	require.True(t, step.Performed())
	ops := step.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, ActionDeleted, ops[0].Action)
	assert.Equal(t, "/tmp/cache/ams_rules.any", ops[0].Location)
	assert.Equal(t, ActionReplaced, ops[1].Action)
}

func TestStep_OrderPreserved(t *testing.T) {
	step := NewStep("rule", "description")
	for _, a := range []Action{ActionAdded, ActionRemoved, ActionRenamed, ActionWarning} {
		step.Record(a, "loc", "details")
	}

	ops := step.Operations()
	require.Len(t, ops, 4)
	assert.Equal(t, ActionAdded, ops[0].Action)
	assert.Equal(t, ActionRemoved, ops[1].Action)
	assert.Equal(t, ActionRenamed, ops[2].Action)
	assert.Equal(t, ActionWarning, ops[3].Action)
}
