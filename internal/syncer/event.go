package syncer

import "time"

// Origin says which surface an event came from.
type Origin uint8

const (
	OriginEditor Origin = iota
	OriginPreview
)

func (o Origin) String() string {
	if o == OriginPreview {
		return "preview"
	}
	return "editor"
}

// EventKind classifies a user interaction.
type EventKind uint8

const (
	EventScroll EventKind = iota
	EventCursor
	EventClick
	EventContentChange
)

func (k EventKind) String() string {
	switch k {
	case EventScroll:
		return "scroll"
	case EventCursor:
		return "cursor"
	case EventClick:
		return "click"
	case EventContentChange:
		return "content_change"
	}
	return "unknown"
}

// Position locates an event on its origin surface. Line and Column are
// 1-based; OffsetPercentage is the scroll position in [0,1] and is the only
// field a scroll event is required to carry.
type Position struct {
	Line             int     `json:"line"`
	Column           int     `json:"column"`
	OffsetPercentage float64 `json:"offset_percentage"`
}

// Event is one transient interaction. Events drive the coordinator's state
// machine and are never persisted or queued indefinitely. Preview-origin
// events carry the id of the nearest anchored element when the adapter knows
// it.
type Event struct {
	Kind      EventKind
	Origin    Origin
	Position  Position
	NodeID    string
	Timestamp time.Time
}
