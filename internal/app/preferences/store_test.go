package preferences_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/rumbo-agent/internal/app/preferences"
	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

func TestStore_SetReplacesWholesale(t *testing.T) {
	s := preferences.NewStore(domain.DefaultPreferences())
	assert.Equal(t, domain.GoalFastest, s.Get().RouteGoal)
	assert.True(t, s.Get().UseLocation)

	next := domain.Preferences{RouteGoal: domain.GoalLowWalking, AccessibilityRequired: true}
	require.NoError(t, s.Set(next))

	assert.Equal(t, next, s.Get())
}

func TestStore_RejectsUnknownGoal(t *testing.T) {
	s := preferences.NewStore(domain.DefaultPreferences())

	err := s.Set(domain.Preferences{RouteGoal: "SCENIC"})
	require.ErrorIs(t, err, domain.ErrInvalidPreferences)
	assert.Equal(t, domain.DefaultPreferences(), s.Get())
}
