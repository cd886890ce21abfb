// Package main starts the livecontrol relay.
package main

import "flag"

// main is the entrypoint for the livecontrol relay.
func main() {
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	tui := flag.Bool("tui", false, "Use this terminal as a touchpad")
	flag.Parse()

	if err := run(*debug, *tui); err != nil {
		logFatal(err)
	}
}
