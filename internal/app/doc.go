// Package app provides the application service layer.
//
// Relay pumps bus notifications into the client registry. PlanetService
// orchestrates the planet use cases between HTTP handlers and the repository,
// cache, publisher and asset store. Depends on domain interfaces, not concrete
// implementations.
package app
