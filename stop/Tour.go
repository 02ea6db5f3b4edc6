package stop

import (
	"fmt"
	"strings"
)

// Tour is an ordered sequence of stop indices which begins and ends at
// the depot
type Tour []int

// TourDistance returns the length of a tour
func (r *Registry) TourDistance(t Tour) float64 {
	var d float64
	for i := 1; i < len(t); i++ {
		d += r.Distance(t[i-1], t[i])
	}
	return d
}

// TotalDistance returns the summed length of a set of tours
func (r *Registry) TotalDistance(tours []Tour) float64 {
	var d float64
	for _, t := range tours {
		d += r.TourDistance(t)
	}
	return d
}

// TourIDs converts a tour of indices into a tour of stop identifiers
func (r *Registry) TourIDs(t Tour) []int {
	ids := make([]int, len(t))
	for i, idx := range t {
		ids[i] = r.stops[idx].ID
	}
	return ids
}

// FormatTours returns a human readable listing of a set of tours using
// stop identifiers
func (r *Registry) FormatTours(tours []Tour) string {
	var b strings.Builder
	for i, t := range tours {
		ids := r.TourIDs(t)
		parts := make([]string, len(ids))
		for j, id := range ids {
			parts[j] = fmt.Sprint(id)
		}
		fmt.Fprintf(&b, "tour %d (%.3f): %s\n", i, r.TourDistance(t),
			strings.Join(parts, " -> "))
	}
	return b.String()
}

// ValidateTours checks that a set of tours is a complete solution:
// every tour starts and ends at the depot, the capacity holds at every
// prefix of every tour, and every non-depot stop is visited exactly
// once across all tours. The first violation found is returned.
func (r *Registry) ValidateTours(tours []Tour, c Capacity) error {
	seen := make([]bool, len(r.stops))

	for ti, t := range tours {
		if len(t) < 2 || t[0] != r.depot || t[len(t)-1] != r.depot {
			return fmt.Errorf("validateTours: tour %d does not start and "+
				"end at the depot: %v", ti, t)
		}

		var load Demand
		for _, idx := range t[1 : len(t)-1] {
			if idx < 0 || idx >= len(r.stops) {
				return fmt.Errorf("validateTours: tour %d has unknown stop "+
					"index %d", ti, idx)
			}
			if idx == r.depot {
				return fmt.Errorf("validateTours: tour %d revisits the "+
					"depot mid-tour", ti)
			}
			if seen[idx] {
				return fmt.Errorf("validateTours: stop %d visited more "+
					"than once", r.stops[idx].ID)
			}
			seen[idx] = true

			load = load.Add(r.stops[idx].Demand)
			if !c.Fits(load) {
				return fmt.Errorf("validateTours: tour %d exceeds capacity "+
					"at stop %d (w=%v v=%v)", ti, r.stops[idx].ID,
					load.Weight, load.Volume)
			}
		}
	}

	for i, s := range r.stops {
		if i != r.depot && !seen[i] {
			return fmt.Errorf("validateTours: stop %d never visited", s.ID)
		}
	}
	return nil
}
