package insights

import (
	"sort"

	"github.com/jbt95/trenes/internal/feed"
)

type vehicleIndex map[string]map[string]struct{}

func (idx vehicleIndex) add(key, vehicleID string) {
	set, ok := idx[key]
	if !ok {
		set = make(map[string]struct{})
		idx[key] = set
	}
	set[vehicleID] = struct{}{}
}

// Correlate matches every alert to the vehicles running one of its informed
// trips or routes. Stop and agency selectors never match. The result is
// sorted by matched vehicle count descending, then alert id ascending.
func Correlate(vehicles []feed.VehiclePosition, alerts []feed.Alert, ref int64) []Correlation {
	byTrip := make(vehicleIndex)
	byRoute := make(vehicleIndex)
	for _, v := range vehicles {
		if v.TripID != nil {
			byTrip.add(*v.TripID, v.ID)
		}
		if v.RouteID != nil {
			byRoute.add(*v.RouteID, v.ID)
		}
	}

	correlations := make([]Correlation, 0, len(alerts))
	for _, a := range alerts {
		tripIDs := make(map[string]struct{})
		routeIDs := make(map[string]struct{})
		for _, ie := range a.InformedEntities {
			if ie.TripID != nil {
				tripIDs[*ie.TripID] = struct{}{}
			}
			if ie.RouteID != nil {
				routeIDs[*ie.RouteID] = struct{}{}
			}
		}

		matched := make(map[string]struct{})
		matchedTrips := collectMatches(tripIDs, byTrip, matched)
		matchedRoutes := collectMatches(routeIDs, byRoute, matched)

		vehicleIDs := make([]string, 0, len(matched))
		for id := range matched {
			vehicleIDs = append(vehicleIDs, id)
		}
		sort.Strings(vehicleIDs)

		correlations = append(correlations, Correlation{
			AlertID:             a.ID,
			Header:              a.Header,
			Cause:               a.Cause,
			Effect:              a.Effect,
			Start:               a.Start,
			End:                 a.End,
			IsActiveNow:         IsActiveAt(a.Start, a.End, ref),
			MatchedVehicleIDs:   vehicleIDs,
			MatchedTripIDs:      matchedTrips,
			MatchedRouteIDs:     matchedRoutes,
			MatchedVehicleCount: len(vehicleIDs),
		})
	}

	sort.Slice(correlations, func(i, j int) bool {
		if correlations[i].MatchedVehicleCount != correlations[j].MatchedVehicleCount {
			return correlations[i].MatchedVehicleCount > correlations[j].MatchedVehicleCount
		}
		return correlations[i].AlertID < correlations[j].AlertID
	})
	return correlations
}

// collectMatches adds the vehicles indexed under keys to matched and returns
// the sorted keys that hit at least one vehicle
func collectMatches(keys map[string]struct{}, idx vehicleIndex, matched map[string]struct{}) []string {
	hits := make([]string, 0, len(keys))
	for key := range keys {
		set, ok := idx[key]
		if !ok {
			continue
		}
		hits = append(hits, key)
		for id := range set {
			matched[id] = struct{}{}
		}
	}
	sort.Strings(hits)
	return hits
}

// MatchedVehicleUnion counts distinct vehicles matched by any correlation
func MatchedVehicleUnion(correlations []Correlation) int {
	union := make(map[string]struct{})
	for _, c := range correlations {
		for _, id := range c.MatchedVehicleIDs {
			union[id] = struct{}{}
		}
	}
	return len(union)
}
