package guests

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	require.Equal(t, TierViewer, ParseTier("viewer"))
	require.Equal(t, TierModerator, ParseTier(" Moderator "))
	require.Equal(t, TierManager, ParseTier("MANAGER"))
	require.Equal(t, TierNone, ParseTier("owner"))
	require.Equal(t, TierNone, ParseTier(""))
}

func TestTierAtLeastIsTotalOrder(t *testing.T) {
	require.True(t, TierManager.AtLeast(TierViewer))
	require.True(t, TierManager.AtLeast(TierModerator))
	require.True(t, TierManager.AtLeast(TierManager))
	require.True(t, TierModerator.AtLeast(TierViewer))
	require.False(t, TierModerator.AtLeast(TierManager))
	require.False(t, TierViewer.AtLeast(TierModerator))

	// TierNone neither satisfies nor is satisfiable.
	require.False(t, TierNone.AtLeast(TierViewer))
	require.False(t, TierViewer.AtLeast(TierNone))
}
