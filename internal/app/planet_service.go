package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pscheid92/planetpulse/internal/convert"
	"github.com/pscheid92/planetpulse/internal/domain"
	"golang.org/x/sync/singleflight"
)

// ErrAnnounceFailed means the planet was stored but the bus notification was not sent.
var ErrAnnounceFailed = errors.New("planet stored but not announced")

const wireLoadTimeout = 5 * time.Second

type CreatePlanetRequest struct {
	Name       string                   `json:"name" validate:"required,max=64"`
	Type       string                   `json:"type" validate:"required,oneof=TERRESTRIAL_PLANET GAS_GIANT ICE_GIANT DWARF_PLANET"`
	MeanRadius string                   `json:"mean_radius" validate:"required"`
	Mass       string                   `json:"mass" validate:"required"`
	Satellites []CreateSatelliteRequest `json:"satellites" validate:"max=256,dive"`
}

type CreateSatelliteRequest struct {
	Name                       string `json:"name" validate:"required,max=64"`
	FirstSpacecraftLandingDate string `json:"first_spacecraft_landing_date" validate:"omitempty,datetime=2006-01-02"`
}

type PlanetService struct {
	planets   domain.PlanetRepository
	cache     domain.PlanetCache
	publisher domain.PlanetPublisher
	images    domain.AssetStore
	validate  *validator.Validate
	wireGroup singleflight.Group
}

func NewPlanetService(planets domain.PlanetRepository, cache domain.PlanetCache, publisher domain.PlanetPublisher, images domain.AssetStore) *PlanetService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &PlanetService{
		planets:   planets,
		cache:     cache,
		publisher: publisher,
		images:    images,
		validate:  v,
	}
}

// CreatePlanet validates and stores a planet, then announces it on the bus.
// When only the announcement fails the stored planet is returned together with
// an error wrapping ErrAnnounceFailed.
func (s *PlanetService) CreatePlanet(ctx context.Context, req CreatePlanetRequest) (*domain.Planet, error) {
	planet, err := s.toPlanet(req)
	if err != nil {
		return nil, err
	}

	stored, err := s.planets.Create(ctx, planet)
	if err != nil {
		return nil, fmt.Errorf("failed to create planet: %w", err)
	}

	if err := s.publisher.PublishPlanetCreated(ctx, stored); err != nil {
		slog.ErrorContext(ctx, "Planet stored but announcement failed", "planet_id", stored.ID, "name", stored.Name, "error", err)
		return stored, fmt.Errorf("%w: %w", ErrAnnounceFailed, err)
	}

	slog.InfoContext(ctx, "Planet created", "planet_id", stored.ID, "name", stored.Name, "satellites", len(stored.Satellites))
	return stored, nil
}

func (s *PlanetService) GetPlanet(ctx context.Context, id int64) (*domain.Planet, error) {
	return s.cache.GetPlanet(ctx, id)
}

func (s *PlanetService) ListPlanets(ctx context.Context) ([]domain.Planet, error) {
	return s.planets.List(ctx)
}

func (s *PlanetService) DeletePlanet(ctx context.Context, id int64) error {
	if err := s.planets.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete planet: %w", err)
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		slog.WarnContext(ctx, "Planet deleted but cache invalidation failed", "planet_id", id, "error", err)
	}
	return nil
}

// GetPlanetWire loads a planet and converts it to its wire message.
// Concurrent requests for the same planet share one load. The shared load is
// detached from every caller's cancellation; each caller stops waiting on its own ctx.
func (s *PlanetService) GetPlanetWire(ctx context.Context, id int64) (*convert.Planet, error) {
	ch := s.wireGroup.DoChan(strconv.FormatInt(id, 10), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), wireLoadTimeout)
		defer cancel()

		planet, err := s.cache.GetPlanet(loadCtx, id)
		if err != nil {
			return nil, err
		}
		return convert.ToWire(convert.RecordOf(planet), s.images)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*convert.Planet), nil
	}
}

// ListPlanetsWire converts every stored planet. A record that fails conversion
// is logged and left out so one bad row cannot hide the rest of the list.
func (s *PlanetService) ListPlanetsWire(ctx context.Context) ([]*convert.Planet, error) {
	planets, err := s.planets.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*convert.Planet, 0, len(planets))
	for _, rec := range convert.RecordsOf(planets) {
		wire, err := convert.ToWire(rec, s.images)
		if err != nil {
			slog.WarnContext(ctx, "Skipping planet that cannot be converted", "planet_id", rec.Planet.ID, "name", rec.Planet.Name, "error", err)
			continue
		}
		out = append(out, wire)
	}
	return out, nil
}

// GetPlanetImage returns the raw image bytes for a planet.
func (s *PlanetService) GetPlanetImage(ctx context.Context, id int64) ([]byte, error) {
	planet, err := s.cache.GetPlanet(ctx, id)
	if err != nil {
		return nil, err
	}

	name := convert.ImageName(planet.Name)
	data, ok := s.images.Get(name)
	if !ok {
		return nil, &convert.ConversionError{Field: "image", Err: fmt.Errorf("%w: %s", convert.ErrAssetNotFound, name)}
	}
	return data, nil
}

func (s *PlanetService) toPlanet(req CreatePlanetRequest) (*domain.Planet, error) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, fmt.Errorf("%w: %s failed %q", domain.ErrInvalidPlanet, fe.Namespace(), fe.Tag())
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidPlanet, err)
	}

	meanRadius, err := parsePositive("mean_radius", req.MeanRadius)
	if err != nil {
		return nil, err
	}
	mass, err := parsePositive("mass", req.Mass)
	if err != nil {
		return nil, err
	}
	if image := convert.ImageName(req.Name); !s.hasImage(image) {
		return nil, fmt.Errorf("%w: no image %s for planet %q", domain.ErrInvalidPlanet, image, req.Name)
	}

	planet := &domain.Planet{
		Name:       req.Name,
		Type:       req.Type,
		MeanRadius: meanRadius,
		Mass:       mass,
		Satellites: make([]domain.Satellite, 0, len(req.Satellites)),
	}
	for _, sr := range req.Satellites {
		sat := domain.Satellite{Name: sr.Name}
		if sr.FirstSpacecraftLandingDate != "" {
			// validated above
			d, _ := time.Parse(time.DateOnly, sr.FirstSpacecraftLandingDate)
			sat.FirstSpacecraftLandingDate = &d
		}
		planet.Satellites = append(planet.Satellites, sat)
	}
	return planet, nil
}

func (s *PlanetService) hasImage(name string) bool {
	_, ok := s.images.Get(name)
	return ok
}

func parsePositive(field, value string) (*big.Float, error) {
	f, _, err := big.ParseFloat(value, 10, 128, big.ToNearestEven)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a number", domain.ErrInvalidPlanet, field)
	}
	if f.Sign() <= 0 || f.IsInf() {
		return nil, fmt.Errorf("%w: %s must be a positive finite number", domain.ErrInvalidPlanet, field)
	}
	return f, nil
}
