package llm

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/PabloGalante/rumbo-agent/internal/domain"
)

//go:embed instructions.tmpl
var defaultInstructions string

var goalLabels = map[domain.RouteGoal]string{
	domain.GoalFastest:         "fastest",
	domain.GoalLeastCrowded:    "least crowded",
	domain.GoalLowWalking:      "least walking",
	domain.GoalFewestTransfers: "fewest transfers",
}

var goalGuidance = map[domain.RouteGoal]string{
	domain.GoalFastest: "Prefer the option with the shortest door-to-door time, " +
		"even if it needs an extra transfer.",
	domain.GoalLeastCrowded: "Prefer less busy lines and off-peak alternatives. " +
		"Point out which options are usually packed at this time of day.",
	domain.GoalLowWalking: "Minimise walking. Prefer stops close to the origin and destination " +
		"and avoid long transfers inside big stations.",
	domain.GoalFewestTransfers: "Minimise the number of vehicle changes, " +
		"accepting a somewhat longer total time.",
}

type instructionData struct {
	GoalLabel     string
	GoalGuidance  string
	Accessibility bool
	HasLocation   bool
	Latitude      string
	Longitude     string
}

// PromptBuilder renders the instruction context from a template.
// The template is configuration data; the builder has no branching of its own
// beyond choosing the goal wording.
type PromptBuilder struct {
	tmpl *template.Template
}

// NewPromptBuilder parses text, or the built-in instructions when text is empty.
func NewPromptBuilder(text string) (*PromptBuilder, error) {
	if strings.TrimSpace(text) == "" {
		text = defaultInstructions
	}

	tmpl, err := template.New("instructions").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing instruction template: %w", err)
	}
	return &PromptBuilder{tmpl: tmpl}, nil
}

// LoadPromptBuilder reads the template from path; an empty path uses the built-in one.
func LoadPromptBuilder(path string) (*PromptBuilder, error) {
	if path == "" {
		return NewPromptBuilder("")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading instruction template: %w", err)
	}
	return NewPromptBuilder(string(b))
}

// Build renders the instructions for the given preferences and optional location.
func (p *PromptBuilder) Build(prefs domain.Preferences, loc *domain.PositionFix) (string, error) {
	goal := prefs.RouteGoal
	if !goal.Valid() {
		goal = domain.GoalFastest
	}

	data := instructionData{
		GoalLabel:     goalLabels[goal],
		GoalGuidance:  goalGuidance[goal],
		Accessibility: prefs.AccessibilityRequired,
	}
	if loc != nil {
		data.HasLocation = true
		data.Latitude = formatCoord(loc.Latitude)
		data.Longitude = formatCoord(loc.Longitude)
	}

	var sb strings.Builder
	if err := p.tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("rendering instructions: %w", err)
	}
	return sb.String(), nil
}

// formatCoord uses 5 decimals (about 1 m), enough for routing and stable across fixes.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}
