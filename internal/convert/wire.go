// Package convert maps stored planets onto the wire message served to clients.
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/timestamppb"
)

type PlanetType int32

const (
	PlanetTypeTerrestrial PlanetType = iota
	PlanetTypeGasGiant
	PlanetTypeIceGiant
	PlanetTypeDwarf
)

var planetTypeNames = map[PlanetType]string{
	PlanetTypeTerrestrial: "TERRESTRIAL_PLANET",
	PlanetTypeGasGiant:    "GAS_GIANT",
	PlanetTypeIceGiant:    "ICE_GIANT",
	PlanetTypeDwarf:       "DWARF_PLANET",
}

func (t PlanetType) String() string {
	if name, ok := planetTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("PlanetType(%d)", int32(t))
}

func (t PlanetType) MarshalText() ([]byte, error) {
	name, ok := planetTypeNames[t]
	if !ok {
		return nil, fmt.Errorf("unknown planet type %d", int32(t))
	}
	return []byte(name), nil
}

type Planet struct {
	ID         uint64      `json:"id"`
	Name       string      `json:"name"`
	Type       PlanetType  `json:"type"`
	MeanRadius float32     `json:"mean_radius"`
	Mass       float32     `json:"mass"`
	Satellites []Satellite `json:"satellites"`
	Image      []byte      `json:"image"`
}

type Satellite struct {
	ID                         uint64
	Name                       string
	FirstSpacecraftLandingDate *timestamppb.Timestamp
}

// MarshalJSON renders the landing date as an RFC 3339 string.
func (s Satellite) MarshalJSON() ([]byte, error) {
	out := struct {
		ID                         uint64  `json:"id"`
		Name                       string  `json:"name"`
		FirstSpacecraftLandingDate *string `json:"first_spacecraft_landing_date,omitempty"`
	}{ID: s.ID, Name: s.Name}

	if s.FirstSpacecraftLandingDate != nil {
		ts := s.FirstSpacecraftLandingDate.AsTime().Format(time.RFC3339)
		out.FirstSpacecraftLandingDate = &ts
	}
	return json.Marshal(out)
}
