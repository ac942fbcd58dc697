package credential

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_EnvWins(t *testing.T) {
	t.Setenv("TASKBOARD_TEST_SECRET", "  from-env ")

	v, err := Lookup("unused-key", "TASKBOARD_TEST_SECRET")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(SMTPPasswordKey))
	assert.False(t, Known("jira-token"))
}
