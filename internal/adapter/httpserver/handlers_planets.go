package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/planetpulse/internal/adapter/assets"
	"github.com/pscheid92/planetpulse/internal/app"
	"github.com/pscheid92/planetpulse/internal/convert"
	"github.com/pscheid92/planetpulse/internal/domain"
	apperrors "github.com/pscheid92/planetpulse/internal/platform/errors"
)

func (s *Server) registerPlanetRoutes() {
	createLimiter := newRateLimiter(s.config.CreateRatePerSecond, s.config.CreateRateBurst)

	g := s.echo.Group("/planets")
	g.GET("", s.handleListPlanets)
	g.POST("", s.handleCreatePlanet, middleware.BodyLimit(maxRequestBody), createLimiter)
	g.GET("/:id", s.handleGetPlanet)
	g.GET("/:id/image", s.handleGetPlanetImage)
	g.DELETE("/:id", s.handleDeletePlanet)
}

func (s *Server) handleListPlanets(c echo.Context) error {
	planets, err := s.planets.ListPlanetsWire(c.Request().Context())
	if err != nil {
		return planetError(err, "failed to list planets")
	}
	if err := c.JSON(http.StatusOK, planets); err != nil {
		return fmt.Errorf("failed to write planets response: %w", err)
	}
	return nil
}

func (s *Server) handleGetPlanet(c echo.Context) error {
	id, err := planetID(c)
	if err != nil {
		return err
	}

	planet, err := s.planets.GetPlanetWire(c.Request().Context(), id)
	if err != nil {
		return planetError(err, "failed to load planet").WithField("planet_id", id)
	}
	if err := c.JSON(http.StatusOK, planet); err != nil {
		return fmt.Errorf("failed to write planet response: %w", err)
	}
	return nil
}

func (s *Server) handleGetPlanetImage(c echo.Context) error {
	id, err := planetID(c)
	if err != nil {
		return err
	}

	data, err := s.planets.GetPlanetImage(c.Request().Context(), id)
	if err != nil {
		return planetError(err, "failed to load planet image").WithField("planet_id", id)
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=86400")
	if err := c.Blob(http.StatusOK, assets.ContentType(data), data); err != nil {
		return fmt.Errorf("failed to write image response: %w", err)
	}
	return nil
}

func (s *Server) handleCreatePlanet(c echo.Context) error {
	var req app.CreatePlanetRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}

	planet, err := s.planets.CreatePlanet(c.Request().Context(), req)
	if errors.Is(err, app.ErrAnnounceFailed) {
		return apperrors.ExternalError("planet stored but not announced", err).WithField("planet_id", planet.ID)
	}
	if err != nil {
		return planetError(err, "failed to create planet").WithField("name", req.Name)
	}

	if err := c.JSON(http.StatusCreated, planet); err != nil {
		return fmt.Errorf("failed to write planet response: %w", err)
	}
	return nil
}

func (s *Server) handleDeletePlanet(c echo.Context) error {
	id, err := planetID(c)
	if err != nil {
		return err
	}

	if err := s.planets.DeletePlanet(c.Request().Context(), id); err != nil {
		return planetError(err, "failed to delete planet").WithField("planet_id", id)
	}
	return c.NoContent(http.StatusNoContent)
}

func planetID(c echo.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apperrors.ValidationError("invalid planet id").WithField("id", raw)
	}
	return id, nil
}

// planetError maps service and conversion errors to structured API errors.
// Conversion failures other than a missing image are server-side data faults.
func planetError(err error, message string) *apperrors.Error {
	switch {
	case errors.Is(err, domain.ErrPlanetNotFound):
		return apperrors.NotFoundError("planet not found")
	case errors.Is(err, domain.ErrInvalidPlanet):
		return apperrors.ValidationError(err.Error())
	case errors.Is(err, domain.ErrPlanetExists):
		return apperrors.ConflictError("planet already exists")
	case errors.Is(err, convert.ErrAssetNotFound):
		return apperrors.NotFoundError("planet image not found")
	}

	var convErr *convert.ConversionError
	if errors.As(err, &convErr) {
		return apperrors.InternalError("planet cannot be converted", err).WithField("field", convErr.Field)
	}
	return apperrors.InternalError(message, err)
}
