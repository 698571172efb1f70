package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestShort verifies that Short returns the bare semantic version.
func TestShort(t *testing.T) {
	t.Parallel()

	require.Equal(t, Version, Short())
}

// TestFull verifies that Full contains all three build metadata fields.
func TestFull(t *testing.T) {
	t.Parallel()

	full := Full()
	require.True(t, strings.Contains(full, Version))
	require.True(t, strings.Contains(full, Commit))
	require.True(t, strings.Contains(full, BuildTime))
}
