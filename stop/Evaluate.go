package stop

import (
	"fmt"
	"time"
)

// TourMeta summarises a set of tours
type TourMeta struct {
	Tours       int
	Stops       int
	Distance    float64
	Duration    time.Duration
	AvgDistance float64
	AvgDuration time.Duration
}

func (m TourMeta) String() string {
	return fmt.Sprintf("tours=%d stops=%d distance=%.3f duration=%v "+
		"avg_distance=%.3f avg_duration=%v", m.Tours, m.Stops, m.Distance,
		m.Duration.Round(time.Second), m.AvgDistance,
		m.AvgDuration.Round(time.Second))
}

// Evaluate computes the total and average distance and duration of a set
// of tours. Distances are travelled at speed distance units per hour and
// each non-depot stop takes stay to serve.
func (r *Registry) Evaluate(tours []Tour, speed float64,
	stay time.Duration) (TourMeta, error) {
	if speed <= 0 {
		return TourMeta{}, fmt.Errorf("evaluate: speed must be positive, "+
			"got %v", speed)
	}

	var m TourMeta
	for _, t := range tours {
		if len(t) < 2 {
			continue
		}
		d := r.TourDistance(t)
		stops := len(t) - 2

		m.Tours++
		m.Stops += stops
		m.Distance += d
		m.Duration += time.Duration(d/speed*float64(time.Hour)) +
			time.Duration(stops)*stay
	}

	if m.Tours > 0 {
		m.AvgDistance = m.Distance / float64(m.Tours)
		m.AvgDuration = m.Duration / time.Duration(m.Tours)
	}
	return m, nil
}
