// Package stream holds live feed parameters and derives the feed address.
package stream

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// CursorStyle selects how the host draws its cursor into the feed.
type CursorStyle string

const (
	// CursorCrosshair draws a ring with a center dot.
	CursorCrosshair CursorStyle = "crosshair"
	// CursorSimple draws a plain dot.
	CursorSimple CursorStyle = "simple"
	// CursorNone draws no cursor overlay.
	CursorNone CursorStyle = "none"
)

// Slider bounds for each adjustable field.
const (
	MinFPS  = 5
	MaxFPS  = 30
	StepFPS = 5

	MinQuality  = 30
	MaxQuality  = 100
	StepQuality = 10

	MinScalePct  = 20
	MaxScalePct  = 100
	StepScalePct = 10
)

const (
	defaultFPS      = 15
	defaultQuality  = 30
	defaultScalePct = 40
)

var cursorStyles = []CursorStyle{CursorCrosshair, CursorSimple, CursorNone}

// Config is the mutable set of feed parameters for one live session.
type Config struct {
	FPS      int         `json:"fps" yaml:"fps"`
	Quality  int         `json:"quality" yaml:"quality"`
	ScalePct int         `json:"scalePct" yaml:"scale_pct"`
	Cursor   CursorStyle `json:"cursor" yaml:"cursor"`
}

// HostDefaults carries the feed parameters a host suggests.
type HostDefaults struct {
	FPS     int
	Quality int
	Scale   float64
}

// Default returns the parameters used before the host is known.
func Default() Config {
	return Config{
		FPS:      defaultFPS,
		Quality:  defaultQuality,
		ScalePct: defaultScalePct,
		Cursor:   CursorSimple,
	}
}

// FromHost seeds a config from host defaults, snapping each value onto its slider grid.
// Zero or missing defaults keep the built-in value.
func FromHost(d HostDefaults) Config {
	c := Default()
	if d.FPS > 0 {
		c = c.WithFPS(d.FPS)
	}
	if d.Quality > 0 {
		c = c.WithQuality(d.Quality)
	}
	if d.Scale > 0 {
		c = c.WithScale(d.Scale)
	}
	return c
}

// Scale returns the scale factor in (0, 1].
func (c Config) Scale() float64 {
	return float64(c.ScalePct) / 100
}

// WithFPS returns a copy with fps snapped to the 5..30 grid.
func (c Config) WithFPS(v int) Config {
	c.FPS = snap(v, MinFPS, MaxFPS, StepFPS)
	return c
}

// WithQuality returns a copy with quality snapped to the 30..100 grid.
func (c Config) WithQuality(v int) Config {
	c.Quality = snap(v, MinQuality, MaxQuality, StepQuality)
	return c
}

// WithScalePct returns a copy with the scale percentage snapped to the 20..100 grid.
func (c Config) WithScalePct(v int) Config {
	c.ScalePct = snap(v, MinScalePct, MaxScalePct, StepScalePct)
	return c
}

// WithScale returns a copy with a fractional scale factor applied.
func (c Config) WithScale(v float64) Config {
	return c.WithScalePct(int(math.Round(v * 100)))
}

// WithCursor returns a copy with the cursor style set; unknown styles are ignored.
func (c Config) WithCursor(s CursorStyle) Config {
	if s.Valid() {
		c.Cursor = s
	}
	return c
}

// NextCursor returns a copy with the next cursor style in cycle order.
func (c Config) NextCursor() Config {
	for i, s := range cursorStyles {
		if s == c.Cursor {
			c.Cursor = cursorStyles[(i+1)%len(cursorStyles)]
			return c
		}
	}
	c.Cursor = cursorStyles[0]
	return c
}

// Validate reports whether every field lies on its slider grid.
func (c Config) Validate() error {
	if !onGrid(c.FPS, MinFPS, MaxFPS, StepFPS) {
		return fmt.Errorf("fps must be %d-%d in steps of %d", MinFPS, MaxFPS, StepFPS)
	}
	if !onGrid(c.Quality, MinQuality, MaxQuality, StepQuality) {
		return fmt.Errorf("quality must be %d-%d in steps of %d", MinQuality, MaxQuality, StepQuality)
	}
	if !onGrid(c.ScalePct, MinScalePct, MaxScalePct, StepScalePct) {
		return fmt.Errorf("scale must be %d-%d%% in steps of %d", MinScalePct, MaxScalePct, StepScalePct)
	}
	if !c.Cursor.Valid() {
		return fmt.Errorf("cursor must be one of crosshair, simple, none")
	}
	return nil
}

// Valid reports whether s is a known cursor style.
func (s CursorStyle) Valid() bool {
	for _, known := range cursorStyles {
		if s == known {
			return true
		}
	}
	return false
}

// FeedURL derives the live feed address for cfg under the host base address.
// The query keys are always emitted in the same order so equal configs yield equal addresses.
func FeedURL(base string, c Config) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	b.WriteString("/livestream?fps=")
	b.WriteString(strconv.Itoa(c.FPS))
	b.WriteString("&quality=")
	b.WriteString(strconv.Itoa(c.Quality))
	b.WriteString("&scale=")
	b.WriteString(strconv.FormatFloat(c.Scale(), 'f', -1, 64))
	b.WriteString("&cursor=")
	b.WriteString(string(c.Cursor))
	return b.String()
}

// snap rounds v to the nearest step above lo and clamps it into [lo, hi].
func snap(v, lo, hi, step int) int {
	if v <= lo {
		return lo
	}
	if v >= hi {
		return hi
	}
	steps := int(math.Round(float64(v-lo) / float64(step)))
	return lo + steps*step
}

func onGrid(v, lo, hi, step int) bool {
	return v >= lo && v <= hi && (v-lo)%step == 0
}
