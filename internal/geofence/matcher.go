// Package geofence maps coordinates to zones with planar ray casting.
//
// Points are (longitude, latitude). Only the outer ring of each zone is
// tested; holes are ignored. A point lying exactly on an edge may be
// classified either way depending on edge orientation.
package geofence

import (
	"github.com/paulmach/orb"

	"github.com/LeonardoBeccarini/crowdsense/internal/model"
)

// Contains reports whether p is inside ring, counting crossings of a
// horizontal ray cast from p. An odd count means inside.
func Contains(ring orb.Ring, p orb.Point) bool {
	x, y := p[0], p[1]
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// MatchZone returns the first zone whose outer ring contains p.
func MatchZone(p orb.Point, zones []model.Zone) (*model.Zone, bool) {
	for i := range zones {
		if Contains(zones[i].Ring(), p) {
			return &zones[i], true
		}
	}
	return nil, false
}

// Point converts a latitude/longitude pair to an orb point.
func Point(lat, lng float64) orb.Point {
	return orb.Point{lng, lat}
}
