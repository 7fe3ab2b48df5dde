package convert

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/pscheid92/planetpulse/internal/domain"
	"github.com/samber/lo"
	"google.golang.org/protobuf/types/known/timestamppb"
)

var (
	ErrUnknownPlanetType = errors.New("unknown planet type")
	ErrAssetNotFound     = errors.New("asset not found")
	ErrNumericOverflow   = errors.New("value does not fit the wire type")
	ErrMissingValue      = errors.New("value is missing")
)

// ConversionError names the record field that could not be converted.
type ConversionError struct {
	Field string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s: %v", e.Field, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// PlanetRecord is a stored planet together with its satellites.
type PlanetRecord struct {
	Planet     domain.Planet
	Satellites []domain.Satellite
}

// RecordOf builds a record from a planet loaded with its satellites attached.
func RecordOf(p *domain.Planet) PlanetRecord {
	return PlanetRecord{Planet: *p, Satellites: p.Satellites}
}

// ImageName is the asset key for a planet image.
func ImageName(planetName string) string {
	return strings.ToLower(planetName) + ".jpg"
}

// ToWire converts a record into its wire message. It holds no state and is
// safe to call concurrently.
func ToWire(rec PlanetRecord, images domain.AssetStore) (*Planet, error) {
	p := rec.Planet

	if p.ID < 0 {
		return nil, &ConversionError{Field: "id", Err: ErrNumericOverflow}
	}

	planetType, err := ParsePlanetType(p.Type)
	if err != nil {
		return nil, &ConversionError{Field: "type", Err: err}
	}

	meanRadius, err := narrow(p.MeanRadius)
	if err != nil {
		return nil, &ConversionError{Field: "mean_radius", Err: err}
	}
	mass, err := narrow(p.Mass)
	if err != nil {
		return nil, &ConversionError{Field: "mass", Err: err}
	}

	image, ok := images.Get(ImageName(p.Name))
	if !ok {
		return nil, &ConversionError{Field: "image", Err: fmt.Errorf("%w: %s", ErrAssetNotFound, ImageName(p.Name))}
	}

	satellites := make([]Satellite, 0, len(rec.Satellites))
	for _, s := range rec.Satellites {
		if s.ID < 0 {
			return nil, &ConversionError{Field: "satellites.id", Err: ErrNumericOverflow}
		}
		satellites = append(satellites, satelliteToWire(s))
	}

	return &Planet{
		ID:         uint64(p.ID),
		Name:       p.Name,
		Type:       planetType,
		MeanRadius: meanRadius,
		Mass:       mass,
		Satellites: satellites,
		Image:      image,
	}, nil
}

// ToWireAll converts every record, failing on the first error.
func ToWireAll(recs []PlanetRecord, images domain.AssetStore) ([]*Planet, error) {
	out := make([]*Planet, 0, len(recs))
	for _, rec := range recs {
		p, err := ToWire(rec, images)
		if err != nil {
			return nil, fmt.Errorf("planet %q: %w", rec.Planet.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// RecordsOf is RecordOf over a slice.
func RecordsOf(planets []domain.Planet) []PlanetRecord {
	return lo.Map(planets, func(p domain.Planet, _ int) PlanetRecord { return RecordOf(&p) })
}

// ParsePlanetType matches a stored category code exactly.
func ParsePlanetType(code string) (PlanetType, error) {
	for t, name := range planetTypeNames {
		if name == code {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPlanetType, code)
}

func narrow(v *big.Float) (float32, error) {
	if v == nil {
		return 0, ErrMissingValue
	}
	f, _ := v.Float32()
	if math.IsInf(float64(f), 0) {
		return 0, fmt.Errorf("%w: %s", ErrNumericOverflow, v.Text('g', 10))
	}
	return f, nil
}

func satelliteToWire(s domain.Satellite) Satellite {
	out := Satellite{ID: uint64(s.ID), Name: s.Name}
	if d := s.FirstSpacecraftLandingDate; d != nil {
		midnight := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		out.FirstSpacecraftLandingDate = timestamppb.New(midnight)
	}
	return out
}
