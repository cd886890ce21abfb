// Package control turns pointer gestures on a local surface into remote input commands.
package control

// Rect is the bounding box of an input surface in client coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ClientPoint is a raw pointer or touch coordinate.
type ClientPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointerEvent carries whatever coordinates an input event resolved.
// Touch events fill Touches; mouse events fill Client.
type PointerEvent struct {
	Touches []ClientPoint
	Client  *ClientPoint
	Buttons int
}

// NormalizedPoint is a position as a fraction of the surface size, both axes in [0,1].
type NormalizedPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center is the fallback position for events without a usable coordinate.
var Center = NormalizedPoint{X: 0.5, Y: 0.5}

// MapPosition converts an event coordinate into a normalized point on surface.
// The first touch wins over a mouse coordinate; events with neither, or a surface with no area, map to Center.
func MapPosition(ev PointerEvent, surface Rect) NormalizedPoint {
	var p ClientPoint
	switch {
	case len(ev.Touches) > 0:
		p = ev.Touches[0]
	case ev.Client != nil:
		p = *ev.Client
	default:
		return Center
	}
	if surface.Width <= 0 || surface.Height <= 0 {
		return Center
	}
	return NormalizedPoint{
		X: clamp01((p.X - surface.Left) / surface.Width),
		Y: clamp01((p.Y - surface.Top) / surface.Height),
	}
}

// clamp01 bounds a float to the [0..1] range.
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	if v != v {
		return 0.5
	}
	return v
}
