package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/buildbook/buildbook/internal/testing/guard"
)

func TestInTestModeFollowsEnvironment(t *testing.T) {
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv(TestModeEnv, "true")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv(TestModeEnv, "yes")
	RefreshTestMode()
	require.False(t, InTestMode())
}
