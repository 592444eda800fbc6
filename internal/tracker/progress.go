package tracker

import (
	"github.com/tripwise/tripwise/internal/journey"
	"github.com/tripwise/tripwise/internal/realtime"
	"github.com/tripwise/tripwise/pkg/geo"
)

// Snapshot computes the traveler's progress along j from point p.
// The current leg's nearest intermediate stop is reported as the next stop.
// A transfer is reported only when the current leg is not the last.
func Snapshot(j *journey.Journey, p geo.Point) realtime.Progress {
	idx := j.CurrentLegIndex()
	destM := geo.Distance(p, j.Destination.Point)

	progress := realtime.Progress{
		CurrentLegIndex:      idx,
		CompletedLegs:        j.CompletedLegs(),
		TotalLegs:            len(j.Legs),
		DestinationDistanceM: destM,
		DestinationEtaMin:    geo.EtaMinutes(destM),
	}
	if idx < 0 {
		return progress
	}

	leg := &j.Legs[idx]
	if stop, d, ok := nearestStop(leg, p); ok {
		progress.NextStop = &realtime.Target{Name: stop.Name, DistanceM: d, EtaMin: geo.EtaMinutes(d)}
	}
	if idx < len(j.Legs)-1 {
		d := geo.Distance(p, leg.End.Point)
		progress.NextTransfer = &realtime.Target{Name: leg.End.Name, DistanceM: d, EtaMin: geo.EtaMinutes(d)}
	}
	return progress
}

func nearestStop(leg *journey.Leg, p geo.Point) (journey.StopSnapshot, float64, bool) {
	var (
		best  journey.StopSnapshot
		bestD float64
		found bool
	)
	for _, s := range leg.Stops {
		d := geo.Distance(p, s.Point)
		if !found || d < bestD {
			best, bestD, found = s, d, true
		}
	}
	return best, bestD, found
}
