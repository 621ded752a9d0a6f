package feed

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/protobuf/proto"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	vehiclesPB := protobufVehicles(t)
	alertsPB := protobufAlerts(t)

	mux := http.NewServeMux()
	mux.HandleFunc("/vehicle_positions.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(vehiclesJSON))
	})
	mux.HandleFunc("/alerts.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(alertsJSON))
	})
	mux.HandleFunc("/broken.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>maintenance</html>"))
	})
	mux.HandleFunc("/down.json", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/vehicle_positions.pb", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(vehiclesPB)
	})
	mux.HandleFunc("/alerts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-protobuf")
		w.Write(alertsPB)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func protobufVehicles(t *testing.T) []byte {
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Timestamp:           proto.Uint64(1700000000),
		},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("VP_1"),
				Vehicle: &gtfs.VehiclePosition{
					Trip:          &gtfs.TripDescriptor{TripId: proto.String("TR1"), RouteId: proto.String("R1")},
					Vehicle:       &gtfs.VehicleDescriptor{Id: proto.String("V1"), Label: proto.String("R1-77626")},
					Position:      &gtfs.Position{Latitude: proto.Float32(41.5), Longitude: proto.Float32(2.25)},
					Timestamp:     proto.Uint64(1700000000),
					CurrentStatus: gtfs.VehiclePosition_STOPPED_AT.Enum(),
				},
			},
			{
				Id:      proto.String("VP_2"),
				Vehicle: &gtfs.VehiclePosition{Vehicle: &gtfs.VehicleDescriptor{Id: proto.String("V2")}},
			},
		},
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal vehicles: %v", err)
	}
	return data
}

func protobufAlerts(t *testing.T) []byte {
	msg := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{GtfsRealtimeVersion: proto.String("2.0")},
		Entity: []*gtfs.FeedEntity{
			{
				Id: proto.String("A1"),
				Alert: &gtfs.Alert{
					ActivePeriod:   []*gtfs.TimeRange{{Start: proto.Uint64(100)}},
					InformedEntity: []*gtfs.EntitySelector{{RouteId: proto.String("R1")}},
					Effect:         gtfs.Alert_SIGNIFICANT_DELAYS.Enum(),
					HeaderText: &gtfs.TranslatedString{
						Translation: []*gtfs.TranslatedString_Translation{
							{Text: proto.String("Retards"), Language: proto.String("ca")},
						},
					},
				},
			},
		},
	}
	data, err := proto.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal alerts: %v", err)
	}
	return data
}

func TestClient_FetchAll_JSON(t *testing.T) {
	srv := newFeedServer(t)
	client := NewClient(Options{
		VehiclePositionsURL: srv.URL + "/vehicle_positions.json",
		AlertsURL:           srv.URL + "/alerts.json",
	})

	vehicles, alerts, err := client.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(vehicles) != 2 {
		t.Errorf("vehicles = %d, want 2", len(vehicles))
	}
	if len(alerts) != 3 {
		t.Errorf("alerts = %d, want 3", len(alerts))
	}
}

func TestClient_Protobuf(t *testing.T) {
	srv := newFeedServer(t)
	client := NewClient(Options{
		VehiclePositionsURL: srv.URL + "/vehicle_positions.pb",
		AlertsURL:           srv.URL + "/alerts",
	})
	ctx := context.Background()

	vehicles, err := client.VehiclePositions(ctx)
	if err != nil {
		t.Fatalf("VehiclePositions failed: %v", err)
	}
	if len(vehicles) != 1 {
		t.Fatalf("expected 1 vehicle with a position, got %d", len(vehicles))
	}
	v := vehicles[0]
	if v.ID != "V1" || *v.TripID != "TR1" || *v.RouteID != "R1" {
		t.Errorf("unexpected vehicle %+v", v)
	}
	if math.Abs(v.Latitude-41.5) > 1e-6 || math.Abs(v.Longitude-2.25) > 1e-6 {
		t.Errorf("position = %f,%f", v.Latitude, v.Longitude)
	}
	if v.Timestamp == nil || *v.Timestamp != 1700000000 {
		t.Errorf("Timestamp = %v", v.Timestamp)
	}
	if v.Status == nil || *v.Status != "STOPPED_AT" {
		t.Errorf("Status = %v", v.Status)
	}

	alerts, err := client.Alerts(ctx)
	if err != nil {
		t.Fatalf("Alerts failed: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	a := alerts[0]
	if a.Start == nil || *a.Start != 100 || a.End != nil {
		t.Errorf("period = %v-%v", a.Start, a.End)
	}
	if a.Effect == nil || *a.Effect != "SIGNIFICANT_DELAYS" {
		t.Errorf("Effect = %v", a.Effect)
	}
	if a.Header == nil || *a.Header != "Retards" {
		t.Errorf("Header = %v", a.Header)
	}
	if len(a.InformedEntities) != 1 || *a.InformedEntities[0].RouteID != "R1" {
		t.Errorf("InformedEntities = %+v", a.InformedEntities)
	}
}

func TestClient_Errors(t *testing.T) {
	srv := newFeedServer(t)
	ctx := context.Background()

	t.Run("non-2xx is a fetch error", func(t *testing.T) {
		client := NewClient(Options{VehiclePositionsURL: srv.URL + "/down.json"})
		_, err := client.VehiclePositions(ctx)
		var fetchErr *FetchError
		if !errors.As(err, &fetchErr) {
			t.Fatalf("expected *FetchError, got %v", err)
		}
		if fetchErr.StatusCode != http.StatusBadGateway {
			t.Errorf("StatusCode = %d", fetchErr.StatusCode)
		}
	})

	t.Run("bad envelope is a shape error", func(t *testing.T) {
		client := NewClient(Options{AlertsURL: srv.URL + "/broken.json"})
		_, err := client.Alerts(ctx)
		var shapeErr *ShapeError
		if !errors.As(err, &shapeErr) {
			t.Fatalf("expected *ShapeError, got %v", err)
		}
	})

	t.Run("one failing feed fails FetchAll", func(t *testing.T) {
		client := NewClient(Options{
			VehiclePositionsURL: srv.URL + "/vehicle_positions.json",
			AlertsURL:           srv.URL + "/down.json",
		})
		if _, _, err := client.FetchAll(ctx); err == nil {
			t.Error("expected FetchAll to fail")
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		client := NewClient(Options{VehiclePositionsURL: srv.URL + "/vehicle_positions.json"})
		_, err := client.VehiclePositions(canceled)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestIsProtobuf(t *testing.T) {
	tests := []struct {
		url         string
		contentType string
		expected    bool
	}{
		{"https://gtfsrt.renfe.com/vehicle_positions.pb", "", true},
		{"https://gtfsrt.renfe.com/vehicle_positions.PB?x=1", "", true},
		{"https://gtfsrt.renfe.com/vehicle_positions.json", "application/json", false},
		{"https://example.com/feed", "application/x-protobuf", true},
		{"https://example.com/feed", "", false},
	}

	for _, tc := range tests {
		if got := isProtobuf(tc.url, tc.contentType); got != tc.expected {
			t.Errorf("isProtobuf(%q, %q) = %v, want %v", tc.url, tc.contentType, got, tc.expected)
		}
	}
}
