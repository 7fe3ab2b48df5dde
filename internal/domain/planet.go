package domain

import (
	"context"
	"math/big"
	"time"
)

// Planet category codes as stored in the database.
const (
	PlanetTypeTerrestrial = "TERRESTRIAL_PLANET"
	PlanetTypeGasGiant    = "GAS_GIANT"
	PlanetTypeIceGiant    = "ICE_GIANT"
	PlanetTypeDwarf       = "DWARF_PLANET"
)

type Planet struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	MeanRadius *big.Float  `json:"mean_radius"`
	Mass       *big.Float  `json:"mass"`
	Satellites []Satellite `json:"satellites"`
}

type Satellite struct {
	ID                         int64      `json:"id"`
	Name                       string     `json:"name"`
	FirstSpacecraftLandingDate *time.Time `json:"first_spacecraft_landing_date,omitempty"`
}

type PlanetRepository interface {
	Create(ctx context.Context, planet *Planet) (*Planet, error)
	GetByID(ctx context.Context, id int64) (*Planet, error)
	List(ctx context.Context) ([]Planet, error)
	Delete(ctx context.Context, id int64) error
}

// PlanetCache sits in front of a PlanetRepository for reads.
type PlanetCache interface {
	GetPlanet(ctx context.Context, id int64) (*Planet, error)
	Invalidate(ctx context.Context, id int64) error
}

// AssetStore resolves a derived key to binary content.
type AssetStore interface {
	Get(name string) ([]byte, bool)
}
