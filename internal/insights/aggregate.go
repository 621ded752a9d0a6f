package insights

import (
	"math"
	"sort"
	"time"

	"github.com/jbt95/trenes/internal/feed"
)

// Aggregates is the output of the aggregation engine
type Aggregates struct {
	Totals            Totals
	VehiclesByRoute   []CountByKey
	VehiclesByStatus  []CountByKey
	AlertsByEffect    []CountByKey
	AlertsByCause     []CountByKey
	AlertsByStartHour []CountByKey
	AlertsByDuration  []CountByKey
	RouteSummaries    []RouteSummary
	AlertTimeline     []TimelineEntry
}

// Aggregate computes totals, grouped counts, route summaries and the alert
// timeline at reference instant ref (unix seconds). Hour labels use loc.
func Aggregate(vehicles []feed.VehiclePosition, alerts []feed.Alert, ref int64, loc *time.Location) Aggregates {
	if loc == nil {
		loc = time.UTC
	}

	routes := make([]*string, 0, len(vehicles))
	statuses := make([]*string, 0, len(vehicles))
	withTrip := 0
	for _, v := range vehicles {
		routes = append(routes, v.RouteID)
		statuses = append(statuses, v.Status)
		if v.TripID != nil {
			withTrip++
		}
	}

	effects := make([]*string, 0, len(alerts))
	causes := make([]*string, 0, len(alerts))
	hours := make([]*string, 0, len(alerts))
	durations := make([]*string, 0, len(alerts))
	active := 0
	for _, a := range alerts {
		effects = append(effects, a.Effect)
		causes = append(causes, a.Cause)
		hour := HourBucket(a.Start, loc)
		hours = append(hours, &hour)
		bucket := DurationBucket(DurationMinutes(a.Start, a.End, ref))
		durations = append(durations, &bucket)
		if IsActiveAt(a.Start, a.End, ref) {
			active++
		}
	}

	summaries := BuildRouteSummaries(vehicles, alerts, ref)
	routesWithAlerts := 0
	for _, s := range summaries {
		if s.AlertCount > 0 {
			routesWithAlerts++
		}
	}

	return Aggregates{
		Totals: Totals{
			Vehicles:         len(vehicles),
			VehiclesWithTrip: withTrip,
			Alerts:           len(alerts),
			ActiveAlerts:     active,
			UniqueRoutes:     len(summaries),
			RoutesWithAlerts: routesWithAlerts,
		},
		VehiclesByRoute:   CountByKeys(routes),
		VehiclesByStatus:  CountByKeys(statuses),
		AlertsByEffect:    CountByKeys(effects),
		AlertsByCause:     CountByKeys(causes),
		AlertsByStartHour: CountByKeys(hours),
		AlertsByDuration:  CountByKeys(durations),
		RouteSummaries:    summaries,
		AlertTimeline:     BuildAlertTimeline(alerts, ref),
	}
}

// CountByKeys groups values, counting nil as UnknownKey.
// Sorted by count descending, then key ascending.
func CountByKeys(values []*string) []CountByKey {
	counts := make(map[string]int)
	for _, v := range values {
		key := UnknownKey
		if v != nil {
			key = *v
		}
		counts[key]++
	}

	out := make([]CountByKey, 0, len(counts))
	for key, count := range counts {
		out = append(out, CountByKey{Key: key, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// HourBucket labels an alert start with its local hour ("08:00")
func HourBucket(start *int64, loc *time.Location) string {
	if start == nil {
		return UnknownBucket
	}
	return time.Unix(*start, 0).In(loc).Format("15") + ":00"
}

// DurationMinutes is round((end - start) / 60) with an open end taken as ref.
// Nil when start is unknown or the elapsed time is not positive.
func DurationMinutes(start, end *int64, ref int64) *int64 {
	if start == nil {
		return nil
	}
	effectiveEnd := ref
	if end != nil {
		effectiveEnd = *end
	}
	elapsed := effectiveEnd - *start
	if elapsed <= 0 {
		return nil
	}
	minutes := int64(math.Round(float64(elapsed) / 60))
	return &minutes
}

// DurationBucket maps a duration in minutes to its histogram label
func DurationBucket(minutes *int64) string {
	if minutes == nil {
		return UnknownBucket
	}
	switch m := *minutes; {
	case m < 30:
		return "< 30min"
	case m < 60:
		return "30-60min"
	case m < 120:
		return "1-2h"
	case m < 240:
		return "2-4h"
	case m < 480:
		return "4-8h"
	default:
		return "> 8h"
	}
}

// IsActiveAt reports whether an alert period contains t. Open bounds never exclude.
func IsActiveAt(start, end *int64, t int64) bool {
	return (start == nil || *start <= t) && (end == nil || *end >= t)
}

// alertRouteIDs returns the distinct route ids an alert informs, in first-seen order
func alertRouteIDs(a feed.Alert) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ie := range a.InformedEntities {
		if ie.RouteID == nil {
			continue
		}
		if _, ok := seen[*ie.RouteID]; ok {
			continue
		}
		seen[*ie.RouteID] = struct{}{}
		out = append(out, *ie.RouteID)
	}
	return out
}

type routeAccumulator struct {
	vehicles   map[string]struct{}
	alerts     int
	active     int
	effects    map[string]struct{}
	lastUpdate *int64
}

// BuildRouteSummaries summarizes every route seen on a vehicle or an alert.
// Sorted by alert count descending, then route id ascending.
func BuildRouteSummaries(vehicles []feed.VehiclePosition, alerts []feed.Alert, ref int64) []RouteSummary {
	acc := make(map[string]*routeAccumulator)
	get := func(routeID string) *routeAccumulator {
		r, ok := acc[routeID]
		if !ok {
			r = &routeAccumulator{
				vehicles: make(map[string]struct{}),
				effects:  make(map[string]struct{}),
			}
			acc[routeID] = r
		}
		return r
	}

	for _, v := range vehicles {
		if v.RouteID == nil {
			continue
		}
		r := get(*v.RouteID)
		r.vehicles[v.ID] = struct{}{}
		if v.Timestamp != nil && (r.lastUpdate == nil || *v.Timestamp > *r.lastUpdate) {
			ts := *v.Timestamp
			r.lastUpdate = &ts
		}
	}

	for _, a := range alerts {
		isActive := IsActiveAt(a.Start, a.End, ref)
		for _, routeID := range alertRouteIDs(a) {
			r := get(routeID)
			r.alerts++
			if isActive {
				r.active++
			}
			if a.Effect != nil {
				r.effects[*a.Effect] = struct{}{}
			}
		}
	}

	summaries := make([]RouteSummary, 0, len(acc))
	for routeID, r := range acc {
		effects := make([]string, 0, len(r.effects))
		for e := range r.effects {
			effects = append(effects, e)
		}
		sort.Strings(effects)

		summaries = append(summaries, RouteSummary{
			RouteID:           routeID,
			VehicleCount:      len(r.vehicles),
			AlertCount:        r.alerts,
			ActiveAlertCount:  r.active,
			Effects:           effects,
			LastVehicleUpdate: r.lastUpdate,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].AlertCount != summaries[j].AlertCount {
			return summaries[i].AlertCount > summaries[j].AlertCount
		}
		return summaries[i].RouteID < summaries[j].RouteID
	})
	return summaries
}

// BuildAlertTimeline lists alerts by start descending; a nil start sorts as 0.
// Equal starts are ordered by alert id.
func BuildAlertTimeline(alerts []feed.Alert, ref int64) []TimelineEntry {
	timeline := make([]TimelineEntry, 0, len(alerts))
	for _, a := range alerts {
		duration := DurationMinutes(a.Start, a.End, ref)
		routeIDs := alertRouteIDs(a)
		if routeIDs == nil {
			routeIDs = []string{}
		}
		timeline = append(timeline, TimelineEntry{
			AlertID:         a.ID,
			Header:          a.Header,
			Description:     a.Description,
			Cause:           a.Cause,
			Effect:          a.Effect,
			Start:           a.Start,
			End:             a.End,
			RouteIDs:        routeIDs,
			IsActiveNow:     IsActiveAt(a.Start, a.End, ref),
			DurationMinutes: duration,
			DurationBucket:  DurationBucket(duration),
		})
	}

	startOf := func(e TimelineEntry) int64 {
		if e.Start == nil {
			return 0
		}
		return *e.Start
	}
	sort.Slice(timeline, func(i, j int) bool {
		si, sj := startOf(timeline[i]), startOf(timeline[j])
		if si != sj {
			return si > sj
		}
		return timeline[i].AlertID < timeline[j].AlertID
	})
	return timeline
}
