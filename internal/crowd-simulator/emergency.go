package crowd_simulator

import (
	"math"

	"github.com/rs/zerolog/log"

	"github.com/LeonardoBeccarini/crowdsense/internal/geofence"
)

// TriggerEmergency makes a share of the devices inside the zone flee from
// the centre of its bounding box for the configured duration. It returns
// the number of devices affected.
func (s *Simulator) TriggerEmergency(zoneID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return 0
	}
	z, ok := s.zones[zoneID]
	if !ok {
		return 0
	}
	ring := z.Ring()
	epicenter := ring.Bound().Center()

	var inside []*device
	for _, d := range s.devices {
		if geofence.Contains(ring, d.pos) {
			inside = append(inside, d)
		}
	}
	k := int(math.Ceil(s.cfg.EmergencyFraction * float64(len(inside))))
	until := s.clock.Now().Add(s.cfg.EmergencyDuration)
	for _, d := range inside[:k] {
		d.fleeUntil = until
		d.epicenter = epicenter
	}

	log.Warn().Str("zone", zoneID).Int("devices", k).Dur("duration", s.cfg.EmergencyDuration).Msg("emergency triggered")
	return k
}
