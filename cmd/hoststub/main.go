// Package main serves a simulated remote host for local development.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"

	"github.com/frudas24/livecontrol/internal/hoststub"
)

// main is the entrypoint for the host simulator.
func main() {
	addr := flag.String("addr", "127.0.0.1:5000", "Listen address")
	token := flag.String("token", "", "Bearer token required on /mapping (empty disables the check)")
	width := flag.Int("width", 1920, "Simulated screen width")
	height := flag.Int("height", 1080, "Simulated screen height")
	prefix := flag.String("prefix", "/desktop", "Route prefix of the host endpoints")
	flag.Parse()

	host := hoststub.New(*token, *width, *height)
	log.Printf("hoststub: listening on http://%s%s (%dx%d)", *addr, *prefix, *width, *height)
	if err := http.ListenAndServe(*addr, host.Router(*prefix)); err != nil {
		log.Printf("fatal: %v", err)
		os.Exit(1)
	}
}
