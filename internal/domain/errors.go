package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPlanetNotFound = errors.New("planet not found")
	ErrPlanetExists   = errors.New("planet already exists")
	ErrInvalidPlanet  = errors.New("invalid planet")

	// ErrConnection is returned when the message bus cannot be reached at subscribe time.
	ErrConnection = errors.New("message bus unreachable")
)

// DecodeError reports a published payload that did not match the expected shape.
type DecodeError struct {
	Channel string
	Payload []byte
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message on channel %s: %v", e.Channel, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
