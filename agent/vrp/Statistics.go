package vrp

import (
	"math"

	"github.com/samuelfneumann/vrprl/stop"
	"github.com/samuelfneumann/vrprl/utils/floatutils"
	"gonum.org/v1/gonum/stat"
)

// EpisodeStats are the statistics of a single training episode. Cost is
// the total distance travelled, or the registry's cost ceiling if the
// episode was truncated.
type EpisodeStats struct {
	Episode   int
	Return    float64
	Cost      float64
	Length    int
	Tours     int
	Truncated bool
}

// Statistics summarise a training run
type Statistics struct {
	Episodes []EpisodeStats

	BestCost    float64
	WorstCost   float64
	LastCost    float64
	BestEpisode int
	BestTours   []stop.Tour

	MeanCost float64
	StdCost  float64

	Truncations int

	// Smoothed is the moving average of the episode costs
	Smoothed []float64
}

// newStatistics returns empty Statistics
func newStatistics(episodes int) Statistics {
	return Statistics{
		Episodes:    make([]EpisodeStats, 0, episodes),
		BestCost:    math.Inf(1),
		WorstCost:   math.Inf(-1),
		BestEpisode: -1,
	}
}

// record adds the statistics of an episode. Only finished episodes can
// become the best episode.
func (s *Statistics) record(e EpisodeStats, tours []stop.Tour) {
	s.Episodes = append(s.Episodes, e)
	s.LastCost = e.Cost
	s.WorstCost = math.Max(s.WorstCost, e.Cost)

	if e.Truncated {
		s.Truncations++
		return
	}
	if e.Cost < s.BestCost {
		s.BestCost = e.Cost
		s.BestEpisode = e.Episode
		s.BestTours = tours
	}
}

// finish computes the summary statistics over all recorded episodes
func (s *Statistics) finish(window int) {
	costs := s.Costs()
	s.Smoothed = floatutils.MovingAverage(costs, window)
	if len(costs) > 0 {
		s.MeanCost, s.StdCost = stat.MeanStdDev(costs, nil)
	}
}

// Costs returns the cost of every episode
func (s *Statistics) Costs() []float64 {
	costs := make([]float64, len(s.Episodes))
	for i, e := range s.Episodes {
		costs[i] = e.Cost
	}
	return costs
}
