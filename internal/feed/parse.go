package feed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Parser turns raw GTFS-RT-as-JSON bodies into validated records.
// Entities failing validation are dropped; only an undecodable envelope is an error.
// Unknown fields anywhere in the feed are ignored.
type Parser struct {
	// DeriveRouteFromLabel fills a missing vehicle routeId with the
	// Rodalies line code found in the vehicle label.
	DeriveRouteFromLabel bool
}

// ParseVehiclePositions parses a vehicle positions feed with default options
func ParseVehiclePositions(body []byte) ([]VehiclePosition, error) {
	return Parser{}.VehiclePositions(body)
}

// ParseAlerts parses an alerts feed with default options
func ParseAlerts(body []byte) ([]Alert, error) {
	return Parser{}.Alerts(body)
}

// VehiclePositions validates every vehicle entity of the feed
func (p Parser) VehiclePositions(body []byte) ([]VehiclePosition, error) {
	entities, err := decodeEnvelope("vehicle positions", body)
	if err != nil {
		return nil, err
	}

	positions := make([]VehiclePosition, 0, len(entities))
	dropped := 0
	for _, raw := range entities {
		var entity rawEntity
		if err := json.Unmarshal(raw, &entity); err != nil {
			dropped++
			continue
		}
		pos, ok := p.vehicleFromEntity(entity)
		if !ok {
			dropped++
			continue
		}
		positions = append(positions, pos)
	}

	if dropped > 0 {
		log.Printf("Feed: dropped %d of %d vehicle entities failing validation", dropped, len(entities))
	}
	return positions, nil
}

// Alerts validates every alert entity of the feed
func (p Parser) Alerts(body []byte) ([]Alert, error) {
	entities, err := decodeEnvelope("alerts", body)
	if err != nil {
		return nil, err
	}

	alerts := make([]Alert, 0, len(entities))
	dropped := 0
	for _, raw := range entities {
		var entity rawEntity
		if err := json.Unmarshal(raw, &entity); err != nil {
			dropped++
			continue
		}
		alert, ok := alertFromEntity(entity)
		if !ok {
			dropped++
			continue
		}
		alerts = append(alerts, alert)
	}

	if dropped > 0 {
		log.Printf("Feed: dropped %d of %d alert entities failing validation", dropped, len(entities))
	}
	return alerts, nil
}

// decodeEnvelope checks the top-level shape: a JSON object whose optional
// "entity" member is an array. Entities are returned undecoded.
func decodeEnvelope(name string, body []byte) ([]json.RawMessage, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &ShapeError{Feed: name, Issue: fmt.Sprintf("expected a JSON object: %v", err)}
	}
	if envelope == nil {
		return nil, &ShapeError{Feed: name, Issue: "expected a JSON object, got null"}
	}

	raw, ok := envelope["entity"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, nil
	}

	var entities []json.RawMessage
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, &ShapeError{Feed: name, Issue: "entity must be an array"}
	}
	return entities, nil
}

func (p Parser) vehicleFromEntity(entity rawEntity) (VehiclePosition, bool) {
	v := entity.Vehicle
	if v == nil || v.Position == nil || v.Position.Latitude == nil || v.Position.Longitude == nil {
		return VehiclePosition{}, false
	}

	lat := float64(*v.Position.Latitude)
	lon := float64(*v.Position.Longitude)
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return VehiclePosition{}, false
	}

	pos := VehiclePosition{
		Latitude:  lat,
		Longitude: lon,
	}

	// Vehicle id falls back to the entity id, then to a generated one
	if v.Vehicle != nil {
		if id := nonEmpty(v.Vehicle.ID); id != nil {
			pos.ID = *id
		}
		pos.Label = nonEmpty(v.Vehicle.Label)
	}
	if pos.ID == "" {
		if id := nonEmpty(entity.ID); id != nil {
			pos.ID = *id
		} else {
			pos.ID = uuid.NewString()
		}
	}

	if v.Trip != nil {
		pos.TripID = nonEmpty(v.Trip.TripID)
		pos.RouteID = nonEmpty(v.Trip.RouteID)
	}
	if pos.RouteID == nil && p.DeriveRouteFromLabel && pos.Label != nil {
		if lineCode := extractLineCode(*pos.Label); lineCode != "" {
			pos.RouteID = &lineCode
		}
	}

	if v.Timestamp != nil {
		ts := int64(*v.Timestamp)
		pos.Timestamp = &ts
	}
	if v.CurrentStatus != nil {
		pos.Status = v.CurrentStatus.resolve(StatusMap)
	}

	return pos, true
}

func alertFromEntity(entity rawEntity) (Alert, bool) {
	a := entity.Alert
	if a == nil {
		return Alert{}, false
	}

	alert := Alert{
		Header:           a.HeaderText.firstText(),
		Description:      a.DescriptionText.firstText(),
		URL:              a.URL.firstText(),
		InformedEntities: make([]InformedEntity, 0, len(a.InformedEntity)),
	}

	if id := nonEmpty(entity.ID); id != nil {
		alert.ID = *id
	} else {
		alert.ID = uuid.NewString()
	}

	if a.Cause != nil {
		alert.Cause = a.Cause.resolve(CauseMap)
	}
	if a.Effect != nil {
		alert.Effect = a.Effect.resolve(EffectMap)
	}

	// Active periods (use first one if multiple)
	if len(a.ActivePeriod) > 0 {
		period := a.ActivePeriod[0]
		if period.Start != nil {
			s := int64(*period.Start)
			alert.Start = &s
		}
		if period.End != nil {
			e := int64(*period.End)
			alert.End = &e
		}
	}

	for _, ie := range a.InformedEntity {
		informed := InformedEntity{
			AgencyID: nonEmpty(ie.AgencyID),
			RouteID:  nonEmpty(ie.RouteID),
			StopID:   nonEmpty(ie.StopID),
		}
		if ie.Trip != nil {
			informed.TripID = nonEmpty(ie.Trip.TripID)
		}
		alert.InformedEntities = append(alert.InformedEntities, informed)
	}

	return alert, true
}

type rawEntity struct {
	ID      *string     `json:"id"`
	Vehicle *rawVehicle `json:"vehicle"`
	Alert   *rawAlert   `json:"alert"`
}

type rawVehicle struct {
	Trip          *rawTrip              `json:"trip"`
	Vehicle       *rawVehicleDescriptor `json:"vehicle"`
	Position      *rawPosition          `json:"position"`
	Timestamp     *flexUint             `json:"timestamp"`
	CurrentStatus *flexEnum             `json:"currentStatus"`
}

type rawTrip struct {
	TripID  *string `json:"tripId"`
	RouteID *string `json:"routeId"`
}

type rawVehicleDescriptor struct {
	ID    *string `json:"id"`
	Label *string `json:"label"`
}

type rawPosition struct {
	Latitude  *flexFloat `json:"latitude"`
	Longitude *flexFloat `json:"longitude"`
}

type rawAlert struct {
	ActivePeriod    []rawPeriod         `json:"activePeriod"`
	InformedEntity  []rawInformedEntity `json:"informedEntity"`
	Cause           *flexEnum           `json:"cause"`
	Effect          *flexEnum           `json:"effect"`
	HeaderText      *rawTranslated      `json:"headerText"`
	DescriptionText *rawTranslated      `json:"descriptionText"`
	URL             *rawTranslated      `json:"url"`
}

type rawPeriod struct {
	Start *flexUint `json:"start"`
	End   *flexUint `json:"end"`
}

type rawInformedEntity struct {
	AgencyID *string  `json:"agencyId"`
	RouteID  *string  `json:"routeId"`
	Trip     *rawTrip `json:"trip"`
	StopID   *string  `json:"stopId"`
}

type rawTranslated struct {
	Translation []rawTranslation `json:"translation"`
}

type rawTranslation struct {
	Text     *string `json:"text"`
	Language *string `json:"language"`
}

// firstText picks the first translation with non-empty text
func (t *rawTranslated) firstText() *string {
	if t == nil {
		return nil
	}
	for _, tr := range t.Translation {
		if text := nonEmpty(tr.Text); text != nil {
			return text
		}
	}
	return nil
}

// flexFloat accepts a JSON number or a numeric string
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s, err := unquoteNumber(data)
	if err != nil {
		return err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("not a finite number: %s", data)
	}
	*f = flexFloat(v)
	return nil
}

// flexUint accepts a non-negative integer as JSON number or string
type flexUint int64

func (u *flexUint) UnmarshalJSON(data []byte) error {
	s, err := unquoteNumber(data)
	if err != nil {
		return err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != math.Trunc(f) || f > math.MaxInt64 {
			return fmt.Errorf("not an integer: %s", data)
		}
		v = int64(f)
	}
	if v < 0 {
		return fmt.Errorf("negative value: %d", v)
	}
	*u = flexUint(v)
	return nil
}

// flexEnum accepts an enum either by name or by number
type flexEnum struct {
	name   string
	number *int64
}

func (e *flexEnum) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		e.name = strings.TrimSpace(name)
		return nil
	}
	var number int64
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("enum must be a string or integer: %s", data)
	}
	e.number = &number
	return nil
}

// resolve returns the enum name; unknown numbers are kept as their decimal text
func (e *flexEnum) resolve(names map[int64]string) *string {
	if e.name != "" {
		name := e.name
		return &name
	}
	if e.number == nil {
		return nil
	}
	if name, ok := names[*e.number]; ok {
		return &name
	}
	s := strconv.FormatInt(*e.number, 10)
	return &s
}

func unquoteNumber(data []byte) (string, error) {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal(data, &unquoted); err != nil {
			return "", err
		}
		s = strings.TrimSpace(unquoted)
	}
	if s == "" {
		return "", fmt.Errorf("empty number")
	}
	return s, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
