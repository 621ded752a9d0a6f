package insights

import (
	"context"
	"time"

	"github.com/jbt95/trenes/internal/feed"
)

// Compute builds a snapshot from one fetch of both feeds. Aggregation and
// correlation share ref, which also stamps GeneratedAt.
func Compute(vehicles []feed.VehiclePosition, alerts []feed.Alert, ref time.Time, loc *time.Location) *Snapshot {
	now := ref.Unix()

	agg := Aggregate(vehicles, alerts, now, loc)
	correlations := Correlate(vehicles, alerts, now)

	totals := agg.Totals
	totals.VehiclesMatched = MatchedVehicleUnion(correlations)
	for _, c := range correlations {
		if c.MatchedVehicleCount > 0 {
			totals.AlertsWithMatches++
		}
	}

	return &Snapshot{
		GeneratedAt:       now,
		Totals:            totals,
		VehiclesByRoute:   agg.VehiclesByRoute,
		VehiclesByStatus:  agg.VehiclesByStatus,
		AlertsByEffect:    agg.AlertsByEffect,
		AlertsByCause:     agg.AlertsByCause,
		AlertsByStartHour: agg.AlertsByStartHour,
		AlertsByDuration:  agg.AlertsByDuration,
		RouteSummaries:    agg.RouteSummaries,
		AlertTimeline:     agg.AlertTimeline,
		Correlations:      correlations,
	}
}

// Source provides one consistent fetch of both feeds
type Source interface {
	FetchAll(ctx context.Context) ([]feed.VehiclePosition, []feed.Alert, error)
}

// Assembler fetches the feeds and computes a snapshot on demand
type Assembler struct {
	source Source
	loc    *time.Location
	now    func() time.Time
}

// NewAssembler creates an assembler labelling hours in loc
func NewAssembler(source Source, loc *time.Location) *Assembler {
	return &Assembler{
		source: source,
		loc:    loc,
		now:    time.Now,
	}
}

// Build fetches both feeds and computes a snapshot at the current instant.
// Feed errors are returned unwrapped.
func (a *Assembler) Build(ctx context.Context) (*Snapshot, error) {
	vehicles, alerts, err := a.source.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return Compute(vehicles, alerts, a.now(), a.loc), nil
}
