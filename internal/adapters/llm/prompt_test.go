package llm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

func TestPromptBuilder_Deterministic(t *testing.T) {
	pb, err := NewPromptBuilder("")
	require.NoError(t, err)

	prefs := domain.Preferences{RouteGoal: domain.GoalLeastCrowded, AccessibilityRequired: true, UseLocation: true}
	loc := &domain.PositionFix{Latitude: 40.416781, Longitude: -3.703789, CapturedAt: time.Now()}

	a, err := pb.Build(prefs, loc)
	require.NoError(t, err)

	// a later fix at the same place must not change the text
	loc2 := *loc
	loc2.CapturedAt = loc.CapturedAt.Add(time.Minute)
	b, err := pb.Build(prefs, &loc2)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Contains(t, a, "Routing goal: least crowded")
	assert.Contains(t, a, "step-free access")
	assert.Contains(t, a, "latitude 40.41678, longitude -3.70379")
}

func TestPromptBuilder_PreferencesChangeText(t *testing.T) {
	pb, err := NewPromptBuilder("")
	require.NoError(t, err)

	fastest, err := pb.Build(domain.Preferences{RouteGoal: domain.GoalFastest}, nil)
	require.NoError(t, err)
	lowWalking, err := pb.Build(domain.Preferences{RouteGoal: domain.GoalLowWalking}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, fastest, lowWalking)
	assert.Contains(t, fastest, "location is unknown")
	assert.NotContains(t, fastest, "step-free")
	assert.Contains(t, lowWalking, "Minimise walking")
}

func TestPromptBuilder_CustomTemplate(t *testing.T) {
	pb, err := NewPromptBuilder("goal={{ .GoalLabel }} located={{ .HasLocation }}")
	require.NoError(t, err)

	out, err := pb.Build(domain.Preferences{RouteGoal: domain.GoalFewestTransfers}, nil)
	require.NoError(t, err)
	assert.Equal(t, "goal=fewest transfers located=false", out)
}

func TestPromptBuilder_BadTemplate(t *testing.T) {
	_, err := NewPromptBuilder("{{ .GoalLabel ")
	require.Error(t, err)

	pb, err := NewPromptBuilder("{{ .Nope }}")
	require.NoError(t, err)
	_, err = pb.Build(domain.DefaultPreferences(), nil)
	require.Error(t, err)
}

func TestLoadPromptBuilder_MissingFile(t *testing.T) {
	_, err := LoadPromptBuilder("/does/not/exist.tmpl")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "reading instruction template"))
}
