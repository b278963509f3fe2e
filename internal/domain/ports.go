package domain

import "context"

// AnsweringService is the hosted model that turns a conversation into an itinerary.
type AnsweringService interface {
	Ask(ctx context.Context, q Query) (Answer, error)
}

// HistoryTurn is a prior exchange replayed to the answering service.
type HistoryTurn struct {
	Role Role
	Text string
}

// LatLng is a coordinate pair used to focus map grounding.
type LatLng struct {
	Latitude  float64
	Longitude float64
}

// ToolHints tells the answering service which grounding tools to enable.
type ToolHints struct {
	SearchEnabled bool
	MapsEnabled   bool
	FocusLatLng   *LatLng
}

// Query is one outbound request: prior turns, the instruction context and the live user text.
type Query struct {
	History     []HistoryTurn
	Instruction string
	Text        string
	Tools       ToolHints
}

// Answer is what the answering service returned; Citations may be empty.
type Answer struct {
	Text      string
	Citations []Citation
}

// LocationSource delivers position fixes for a device.
type LocationSource interface {
	// Watch subscribes to fixes. The returned func unsubscribes; it is safe to call more than once.
	Watch(ctx context.Context, opts WatchOptions) (<-chan LocationEvent, func())
	// Current performs a one-shot position request.
	Current(ctx context.Context, opts WatchOptions) (PositionFix, error)
}
