package feed

// VehiclePosition is a validated vehicle record from the vehicle positions feed
type VehiclePosition struct {
	ID        string  `json:"id"`
	Label     *string `json:"label"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp *int64  `json:"timestamp"`
	TripID    *string `json:"tripId"`
	RouteID   *string `json:"routeId"`
	Status    *string `json:"status"`
}

// Alert is a validated service alert from the alerts feed.
// Start/End are unix seconds; nil Start means always active, nil End means ongoing.
type Alert struct {
	ID               string           `json:"id"`
	Cause            *string          `json:"cause"`
	Effect           *string          `json:"effect"`
	Header           *string          `json:"header"`
	Description      *string          `json:"description"`
	URL              *string          `json:"url"`
	Start            *int64           `json:"start"`
	End              *int64           `json:"end"`
	InformedEntities []InformedEntity `json:"informedEntities"`
}

// InformedEntity declares what an alert affects; any subset may be set
type InformedEntity struct {
	AgencyID *string `json:"agencyId"`
	RouteID  *string `json:"routeId"`
	TripID   *string `json:"tripId"`
	StopID   *string `json:"stopId"`
}

// StatusMap maps GTFS-RT VehicleStopStatus enum to string
var StatusMap = map[int64]string{
	0: "INCOMING_AT",
	1: "STOPPED_AT",
	2: "IN_TRANSIT_TO",
}

// CauseMap maps GTFS-RT Cause enum to string
var CauseMap = map[int64]string{
	1:  "UNKNOWN_CAUSE",
	2:  "OTHER_CAUSE",
	3:  "TECHNICAL_PROBLEM",
	4:  "STRIKE",
	5:  "DEMONSTRATION",
	6:  "ACCIDENT",
	7:  "HOLIDAY",
	8:  "WEATHER",
	9:  "MAINTENANCE",
	10: "CONSTRUCTION",
	11: "POLICE_ACTIVITY",
	12: "MEDICAL_EMERGENCY",
}

// EffectMap maps GTFS-RT Effect enum to string
var EffectMap = map[int64]string{
	1:  "NO_SERVICE",
	2:  "REDUCED_SERVICE",
	3:  "SIGNIFICANT_DELAYS",
	4:  "DETOUR",
	5:  "ADDITIONAL_SERVICE",
	6:  "MODIFIED_SERVICE",
	7:  "OTHER_EFFECT",
	8:  "UNKNOWN_EFFECT",
	9:  "STOP_MOVED",
	10: "NO_EFFECT",
	11: "ACCESSIBILITY_ISSUE",
}
