package crowd_simulator

import (
	"math"
	"math/rand"

	"github.com/paulmach/orb"

	"github.com/LeonardoBeccarini/crowdsense/internal/model/messages"
)

// stepScale is the largest per-tick displacement in degrees at speed 1.
const stepScale = 0.0001

// generator holds the random source for placement and movement.
// Not safe for concurrent use; the Simulator calls it under its lock.
type generator struct {
	rnd   *rand.Rand
	speed float64
}

func newGenerator(seed int64, speed float64) *generator {
	return &generator{rnd: rand.New(rand.NewSource(seed)), speed: speed}
}

// pointIn returns a uniform point in b. For non-rectangular zones it can
// fall outside the ring itself.
func (g *generator) pointIn(b orb.Bound) orb.Point {
	return orb.Point{
		b.Min[0] + g.rnd.Float64()*(b.Max[0]-b.Min[0]),
		b.Min[1] + g.rnd.Float64()*(b.Max[1]-b.Min[1]),
	}
}

func (g *generator) jitter() float64 {
	return (g.rnd.Float64() - 0.5) * stepScale * g.speed
}

// walk moves p by an independent jitter on each axis.
func (g *generator) walk(p orb.Point) orb.Point {
	return orb.Point{p[0] + g.jitter(), p[1] + g.jitter()}
}

// flee moves p radially away from epicenter by stepScale*speed*factor,
// plus the normal jitter. A device sitting on the epicenter picks a random
// heading.
func (g *generator) flee(p, epicenter orb.Point, factor float64) orb.Point {
	dx, dy := p[0]-epicenter[0], p[1]-epicenter[1]
	norm := math.Hypot(dx, dy)
	if norm == 0 {
		angle := g.rnd.Float64() * 2 * math.Pi
		dx, dy, norm = math.Cos(angle), math.Sin(angle), 1
	}
	step := stepScale * g.speed * factor
	return orb.Point{
		p[0] + dx/norm*step + g.jitter(),
		p[1] + dy/norm*step + g.jitter(),
	}
}

func (g *generator) acceleration() messages.Acceleration {
	return messages.Acceleration{
		X: g.rnd.Float64()*2 - 1,
		Y: g.rnd.Float64()*2 - 1,
		Z: g.rnd.Float64()*2 - 1,
	}
}
