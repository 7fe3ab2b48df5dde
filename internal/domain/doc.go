// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (planet.go, notification.go, errors.go) hold shared types and the
// contracts adapters implement. No implementation code. Interfaces live on the consumer side
// to prevent circular imports between app and adapter packages.
package domain
