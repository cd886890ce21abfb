package control

import "sync/atomic"

// debugInput controls whether every control message is logged.
var debugInput atomic.Bool

// SetDebugLogging enables/disables verbose control message logs.
func SetDebugLogging(enabled bool) {
	debugInput.Store(enabled)
}

// debugEnabled reports whether control message logs are enabled.
func debugEnabled() bool {
	return debugInput.Load()
}
