// Package remote talks to the controlled host: input commands and reachability probes.
package remote

// ActionKind identifies the kind of remote input command.
type ActionKind string

const (
	// ActMove moves the remote cursor by a normalized delta.
	ActMove ActionKind = "move"
	// ActTap clicks at the current remote cursor position.
	ActTap ActionKind = "tap"
	// ActDoubleTap double-clicks at the current remote cursor position.
	ActDoubleTap ActionKind = "doubletap"
	// ActSecondaryClick right-clicks at the current remote cursor position.
	ActSecondaryClick ActionKind = "rightclick"
)

// Action is one discrete input command. Only moves carry a delta.
type Action struct {
	Kind ActionKind
	DX   float64
	DY   float64
}

// Move returns a relative move action.
func Move(dx, dy float64) Action {
	return Action{Kind: ActMove, DX: dx, DY: dy}
}

// Tap returns a primary click action.
func Tap() Action {
	return Action{Kind: ActTap}
}

// DoubleTap returns a double click action.
func DoubleTap() Action {
	return Action{Kind: ActDoubleTap}
}

// SecondaryClick returns a right click action.
func SecondaryClick() Action {
	return Action{Kind: ActSecondaryClick}
}

// ParseActionKind maps a wire name onto a click kind. Moves are not accepted here.
func ParseActionKind(name string) (ActionKind, bool) {
	switch ActionKind(name) {
	case ActTap, ActDoubleTap, ActSecondaryClick:
		return ActionKind(name), true
	default:
		return "", false
	}
}
