package remote

import "sync/atomic"

// debugWire controls whether every command and probe is logged.
var debugWire atomic.Bool

// SetDebugLogging enables/disables verbose per-request logs.
func SetDebugLogging(enabled bool) {
	debugWire.Store(enabled)
}

// debugEnabled reports whether per-request logs are enabled.
func debugEnabled() bool {
	return debugWire.Load()
}
