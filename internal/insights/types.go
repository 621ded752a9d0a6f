// Package insights derives aggregate views and alert/vehicle correlations
// from one fetch of the realtime feeds. Every function here is pure: the
// reference instant is passed in, never read from the clock.
package insights

// UnknownKey replaces absent values when grouping
const UnknownKey = "UNKNOWN"

// UnknownBucket labels alerts whose hour or duration cannot be computed
const UnknownBucket = "Unknown"

// CountByKey is one group of a grouped count
type CountByKey struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Totals are the headline numbers of a snapshot
type Totals struct {
	Vehicles          int `json:"vehicles"`
	VehiclesWithTrip  int `json:"vehiclesWithTrip"`
	Alerts            int `json:"alerts"`
	ActiveAlerts      int `json:"activeAlerts"`
	UniqueRoutes      int `json:"uniqueRoutes"`
	RoutesWithAlerts  int `json:"routesWithAlerts"`
	VehiclesMatched   int `json:"vehiclesMatched"`
	AlertsWithMatches int `json:"alertsWithMatches"`
}

// RouteSummary aggregates vehicles and alerts sharing a route id
type RouteSummary struct {
	RouteID           string   `json:"routeId"`
	VehicleCount      int      `json:"vehicleCount"`
	AlertCount        int      `json:"alertCount"`
	ActiveAlertCount  int      `json:"activeAlertCount"`
	Effects           []string `json:"effects"`
	LastVehicleUpdate *int64   `json:"lastVehicleUpdate"`
}

// TimelineEntry is one alert as shown on the alert timeline
type TimelineEntry struct {
	AlertID         string   `json:"alertId"`
	Header          *string  `json:"header"`
	Description     *string  `json:"description"`
	Cause           *string  `json:"cause"`
	Effect          *string  `json:"effect"`
	Start           *int64   `json:"start"`
	End             *int64   `json:"end"`
	RouteIDs        []string `json:"routeIds"`
	IsActiveNow     bool     `json:"isActiveNow"`
	DurationMinutes *int64   `json:"durationMinutes"`
	DurationBucket  string   `json:"durationBucket"`
}

// Correlation links an alert to the vehicles sharing one of its trip or route ids
type Correlation struct {
	AlertID             string   `json:"alertId"`
	Header              *string  `json:"header"`
	Cause               *string  `json:"cause"`
	Effect              *string  `json:"effect"`
	Start               *int64   `json:"start"`
	End                 *int64   `json:"end"`
	IsActiveNow         bool     `json:"isActiveNow"`
	MatchedVehicleIDs   []string `json:"matchedVehicleIds"`
	MatchedTripIDs      []string `json:"matchedTripIds"`
	MatchedRouteIDs     []string `json:"matchedRouteIds"`
	MatchedVehicleCount int      `json:"matchedVehicleCount"`
}

// Snapshot is the immutable result of one insights computation.
// GeneratedAt is the reference instant every time-dependent field uses.
type Snapshot struct {
	GeneratedAt       int64           `json:"generatedAt"`
	Totals            Totals          `json:"totals"`
	VehiclesByRoute   []CountByKey    `json:"vehiclesByRoute"`
	VehiclesByStatus  []CountByKey    `json:"vehiclesByStatus"`
	AlertsByEffect    []CountByKey    `json:"alertsByEffect"`
	AlertsByCause     []CountByKey    `json:"alertsByCause"`
	AlertsByStartHour []CountByKey    `json:"alertsByStartHour"`
	AlertsByDuration  []CountByKey    `json:"alertsByDuration"`
	RouteSummaries    []RouteSummary  `json:"routeSummaries"`
	AlertTimeline     []TimelineEntry `json:"alertTimeline"`
	Correlations      []Correlation   `json:"correlations"`
}
