package entities

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/paulmach/orb"
)

var ErrInvalidZone = errors.New("invalid zone")

// Zone is a geofenced area with a maximum capacity.
// Only the outer ring of Boundary is used for containment.
type Zone struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Boundary  orb.Polygon `json:"-"`
	Capacity  int         `json:"capacity"`
	RiskLevel int         `json:"riskLevel"`
}

// Ring returns the outer ring of the zone boundary, or nil.
func (z Zone) Ring() orb.Ring {
	if len(z.Boundary) == 0 {
		return nil
	}
	return z.Boundary[0]
}

// Validate rejects zones that cannot be used for matching or density math.
func (z Zone) Validate() error {
	if strings.TrimSpace(z.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidZone)
	}
	if z.Capacity <= 0 {
		return fmt.Errorf("%w: zone %s: capacity must be positive, got %d", ErrInvalidZone, z.ID, z.Capacity)
	}
	ring := z.Ring()
	if len(ring) < 4 {
		return fmt.Errorf("%w: zone %s: ring needs at least 4 points, got %d", ErrInvalidZone, z.ID, len(ring))
	}
	for _, p := range ring {
		if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
			return fmt.Errorf("%w: zone %s: non-finite coordinate", ErrInvalidZone, z.ID)
		}
	}
	if !ring.Closed() {
		return fmt.Errorf("%w: zone %s: ring is not closed", ErrInvalidZone, z.ID)
	}
	return nil
}
