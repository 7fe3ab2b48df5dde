package broadcast

import "strconv"

// FramePlanetCreated wraps a decoded payload as one text/event-stream event.
// The payload is quoted and escaped so embedded newlines cannot split the event.
func FramePlanetCreated(payload string) []byte {
	return []byte("data: Planet created: " + strconv.Quote(payload) + "\n\n")
}
