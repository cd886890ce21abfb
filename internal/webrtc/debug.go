// Package webrtc accepts control input over WebRTC data channels.
package webrtc

import "sync/atomic"

// debugChannel controls whether verbose data channel logs are emitted.
var debugChannel atomic.Bool

// SetDebugLogging enables/disables verbose WebRTC debug logs.
func SetDebugLogging(enabled bool) {
	debugChannel.Store(enabled)
}

// debugChannelEnabled reports whether data channel debug logs are enabled.
func debugChannelEnabled() bool {
	return debugChannel.Load()
}
