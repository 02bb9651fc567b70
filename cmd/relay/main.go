// Relay is an HTTP forwarding gateway.
//
// It runs in one of three modes:
//   - client: wraps local requests in signed envelopes and posts them to a
//     broker
//   - server: the broker side; checks the envelope handshake and forwards
//     the unwrapped request to the real upstream
//   - router: forwards requests using an ordered path-rewrite table
//
// Usage:
//
//	# Start with a configuration file
//	relay run --config relay.yaml
//
//	# Check which rule a path hits
//	relay route /api/users --config relay.yaml
//
//	# Validate configuration
//	relay validate --config relay.yaml
//
//	# Inspect the access journal
//	relay journal query --since 1h --status error
package main

import "os"

func main() {
	os.Exit(Execute())
}
