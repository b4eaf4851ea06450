package zonestore

import (
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
	"github.com/LeonardoBeccarini/crowdsense/internal/model/entities"
)

const defaultRiskLevel = 1

// Decode parses a GeoJSON FeatureCollection of Polygon features into zones,
// keeping file order. The features carry id, name, capacity (or
// maxCapacity) and riskLevel properties; the feature id is used when the
// id property is missing.
func Decode(data []byte) ([]model.Zone, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrInvalidZone, err)
	}

	zones := make([]model.Zone, 0, len(fc.Features))
	seen := make(map[string]bool, len(fc.Features))
	for i, f := range fc.Features {
		z, err := featureToZone(f)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		if seen[z.ID] {
			return nil, fmt.Errorf("feature %d: %w: duplicate id %s", i, entities.ErrInvalidZone, z.ID)
		}
		seen[z.ID] = true
		zones = append(zones, z)
	}
	return zones, nil
}

func featureToZone(f *geojson.Feature) (model.Zone, error) {
	poly, ok := f.Geometry.(orb.Polygon)
	if !ok {
		return model.Zone{}, fmt.Errorf("%w: geometry must be a Polygon, got %T", entities.ErrInvalidZone, f.Geometry)
	}

	id := stringProp(f.Properties, "id")
	if id == "" {
		if s, ok := f.ID.(string); ok {
			id = s
		} else if n, ok := f.ID.(float64); ok {
			id = fmt.Sprintf("%g", n)
		}
	}
	name := stringProp(f.Properties, "name")
	if name == "" {
		name = id
	}

	capacity, ok := intProp(f.Properties, "capacity")
	if !ok {
		capacity, _ = intProp(f.Properties, "maxCapacity")
	}
	risk, ok := intProp(f.Properties, "riskLevel")
	if !ok {
		risk = defaultRiskLevel
	}

	z := model.Zone{ID: id, Name: name, Boundary: poly, Capacity: capacity, RiskLevel: risk}
	if err := z.Validate(); err != nil {
		return model.Zone{}, err
	}
	return z, nil
}

func stringProp(p geojson.Properties, key string) string {
	if s, ok := p[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func intProp(p geojson.Properties, key string) (int, bool) {
	f, ok := p[key].(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// Encode writes zones as a FeatureCollection readable by Decode.
func Encode(zones []model.Zone) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for _, z := range zones {
		f := geojson.NewFeature(z.Boundary)
		f.ID = z.ID
		f.Properties["id"] = z.ID
		f.Properties["name"] = z.Name
		f.Properties["capacity"] = z.Capacity
		f.Properties["riskLevel"] = z.RiskLevel
		fc.Append(f)
	}
	return fc.MarshalJSON()
}

// SeedZones returns the three demo zones: a main stage, a food court and an
// entry plaza laid out around the origin.
func SeedZones() []model.Zone {
	return []model.Zone{
		{
			ID: "main-stage", Name: "Main Stage", Capacity: 1000, RiskLevel: 3,
			Boundary: orb.Polygon{orb.Ring{{0, 0}, {0, 0.005}, {0.005, 0.005}, {0.005, 0}, {0, 0}}},
		},
		{
			ID: "food-court", Name: "Food Court", Capacity: 500, RiskLevel: 2,
			Boundary: orb.Polygon{orb.Ring{{0.006, 0}, {0.006, 0.004}, {0.01, 0.004}, {0.01, 0}, {0.006, 0}}},
		},
		{
			ID: "entry-plaza", Name: "Entry Plaza", Capacity: 750, RiskLevel: 2,
			Boundary: orb.Polygon{orb.Ring{{0.002, -0.004}, {0.002, -0.001}, {0.008, -0.001}, {0.008, -0.004}, {0.002, -0.004}}},
		},
	}
}
