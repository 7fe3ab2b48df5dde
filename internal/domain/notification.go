package domain

import "context"

// Notification is a decoded message from the bus. Payload is forwarded verbatim.
type Notification struct {
	Channel string
	Payload string
}

// NotificationStream is a lazy, non-restartable sequence of notifications.
// Notifications is closed when the stream ends; Err then reports why (nil on close or cancel).
type NotificationStream interface {
	Notifications() <-chan Notification
	Err() error
	Close() error
}

// Sink accepts framed chunks for one client connection.
// Send must not block on network I/O; an error means the client is gone.
type Sink interface {
	Send(chunk []byte) error
	Close()
}

// PlanetPublisher announces newly created planets on the bus.
type PlanetPublisher interface {
	PublishPlanetCreated(ctx context.Context, planet *Planet) error
}
