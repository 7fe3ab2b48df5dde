// Package integration runs the planet notification path end to end against a real Redis:
// bus subscription, relay and client registry wired the way the server wires them.
package integration
