package domain

// CitationKind tells apart the two grounding sources the answering service returns.
type CitationKind string

const (
	CitationWeb CitationKind = "web"
	CitationMap CitationKind = "map"
)

// Citation is a source reference (web page or map place) attached to a model answer.
type Citation struct {
	Kind  CitationKind
	URI   string
	Title string
}

// Message represents any message in the timeline (user or model).
// Messages are never modified once appended to a conversation.
type Message struct {
	ID        MessageID
	SessionID SessionID
	Role      Role
	Text      string
	CreatedAt Timestamp

	// IsError marks the apology appended when the answering service failed.
	// Error messages never carry citations and are never replayed as history.
	IsError   bool
	Citations []Citation
}

// Session represents a single trip-planning conversation between a user and the assistant.
type Session struct {
	ID        SessionID
	UserID    UserID
	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// Preferences are the user's routing settings. They are replaced wholesale on update.
type Preferences struct {
	RouteGoal             RouteGoal
	AccessibilityRequired bool
	UseLocation           bool
}

// DefaultPreferences is what every new session starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		RouteGoal:   GoalFastest,
		UseLocation: true,
	}
}
