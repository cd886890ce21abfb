package stream

import (
	"errors"
	"math"
)

// Update is a partial change to a Config. Nil fields keep their current value.
type Update struct {
	FPS      *int         `json:"fps,omitempty"`
	Quality  *int         `json:"quality,omitempty"`
	ScalePct *int         `json:"scalePct,omitempty"`
	Scale    *float64     `json:"scale,omitempty"`
	Cursor   *CursorStyle `json:"cursor,omitempty"`
	Reset    bool         `json:"reset,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.FPS == nil && u.Quality == nil && u.ScalePct == nil && u.Scale == nil && u.Cursor == nil && !u.Reset
}

// Apply returns c with the update's fields replaced. Values off the slider grid are rejected, not snapped.
// Reset is handled by the caller, which knows the host defaults.
func (u Update) Apply(c Config) (Config, error) {
	if u.ScalePct != nil && u.Scale != nil {
		return c, errors.New("set either scale or scalePct, not both")
	}
	next := c
	if u.FPS != nil {
		next.FPS = *u.FPS
	}
	if u.Quality != nil {
		next.Quality = *u.Quality
	}
	if u.ScalePct != nil {
		next.ScalePct = *u.ScalePct
	}
	if u.Scale != nil {
		next.ScalePct = int(math.Round(*u.Scale * 100))
	}
	if u.Cursor != nil {
		next.Cursor = *u.Cursor
	}
	if err := next.Validate(); err != nil {
		return c, err
	}
	return next, nil
}
