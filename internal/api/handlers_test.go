package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jbt95/trenes/internal/feed"
	"github.com/jbt95/trenes/internal/history"
	"github.com/jbt95/trenes/internal/insights"
)

func str(s string) *string { return &s }

type fakeFeeds struct {
	vehicles []feed.VehiclePosition
	alerts   []feed.Alert
	err      error
}

func (f *fakeFeeds) VehiclePositions(ctx context.Context) ([]feed.VehiclePosition, error) {
	return f.vehicles, f.err
}

func (f *fakeFeeds) Alerts(ctx context.Context) ([]feed.Alert, error) {
	return f.alerts, f.err
}

func (f *fakeFeeds) Build(ctx context.Context) (*insights.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return insights.Compute(f.vehicles, f.alerts, time.Unix(500, 0), time.UTC), nil
}

type fakeHistory struct {
	captureID  string
	err        error
	from, to   *time.Time
	views      map[string]*history.SnapshotView
	lastNow    time.Time
	listCalled bool
}

func (f *fakeHistory) Capture(ctx context.Context) (string, error) {
	return f.captureID, f.err
}

func (f *fakeHistory) ListSnapshots(ctx context.Context, from, to *time.Time) ([]history.SnapshotInfo, error) {
	f.listCalled = true
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	return []history.SnapshotInfo{{ID: "100-a", Timestamp: 100, VehicleCount: 2, AlertCount: 1}}, nil
}

func (f *fakeHistory) GetSnapshot(ctx context.Context, id string, now time.Time) (*history.SnapshotView, error) {
	f.lastNow = now
	if f.err != nil {
		return nil, f.err
	}
	view, ok := f.views[id]
	if !ok {
		return nil, history.ErrNotFound
	}
	return view, nil
}

func (f *fakeHistory) Summary(ctx context.Context) (*history.Summary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &history.Summary{TotalSnapshots: 4}, nil
}

type fakeIndex struct {
	err error
}

func (f fakeIndex) ListIndex(ctx context.Context) ([]history.IndexEntry, error) {
	return nil, f.err
}

func newTestServer(feeds *fakeFeeds, hist *fakeHistory, indexErr error) http.Handler {
	h := NewHandler(feeds, feeds, hist, time.UTC)
	h.now = func() time.Time { return time.Unix(1000, 0) }
	return NewRouter(h, fakeIndex{err: indexErr}, []string{"*"})
}

func do(t *testing.T, handler http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestFeedEndpoints(t *testing.T) {
	feeds := &fakeFeeds{
		vehicles: []feed.VehiclePosition{{ID: "V1", RouteID: str("R1"), TripID: str("TR1"), Latitude: 41.4, Longitude: 2.1}},
		alerts:   []feed.Alert{{ID: "A1", InformedEntities: []feed.InformedEntity{{RouteID: str("R1")}}}},
	}
	srv := newTestServer(feeds, &fakeHistory{}, nil)

	rec := do(t, srv, http.MethodGet, "/vehicle-positions")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var vehicles []feed.VehiclePosition
	if err := json.NewDecoder(rec.Body).Decode(&vehicles); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(vehicles) != 1 || vehicles[0].ID != "V1" {
		t.Errorf("vehicles = %+v", vehicles)
	}

	rec = do(t, srv, http.MethodGet, "/alerts")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"A1"`) {
		t.Errorf("alerts response = %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodGet, "/insights")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap insights.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if snap.GeneratedAt != 500 || snap.Totals.VehiclesMatched != 1 || len(snap.Correlations) != 1 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestFeedEndpoints_EmptyListsAreArrays(t *testing.T) {
	srv := newTestServer(&fakeFeeds{}, &fakeHistory{}, nil)

	for _, path := range []string{"/vehicle-positions", "/alerts"} {
		rec := do(t, srv, http.MethodGet, path)
		if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
			t.Errorf("%s body = %q, want []", path, body)
		}
	}
}

func TestErrorResponses(t *testing.T) {
	fetchErr := &feed.FetchError{URL: "https://gtfsrt.renfe.com/alerts.json", StatusCode: 503}
	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{"vehicles", http.MethodGet, "/vehicle-positions", http.StatusInternalServerError},
		{"alerts", http.MethodGet, "/alerts", http.StatusInternalServerError},
		{"insights", http.MethodGet, "/insights", http.StatusInternalServerError},
		{"summary", http.MethodGet, "/history/summary", http.StatusInternalServerError},
		{"list", http.MethodGet, "/history/snapshots", http.StatusInternalServerError},
		{"capture", http.MethodPost, "/history/capture", http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(&fakeFeeds{err: fetchErr}, &fakeHistory{err: fetchErr}, nil)
			rec := do(t, srv, tc.method, tc.path)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if resp.Error == "" || resp.Details["internal"] != fetchErr.Error() {
				t.Errorf("error response = %+v", resp)
			}
		})
	}
}

func TestGetSnapshot(t *testing.T) {
	hist := &fakeHistory{views: map[string]*history.SnapshotView{
		"100-a": {ID: "100-a", Timestamp: 100, VehicleCount: 1, AlertCount: 0},
	}}
	srv := newTestServer(&fakeFeeds{}, hist, nil)

	rec := do(t, srv, http.MethodGet, "/history/snapshots/100-a")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view history.SnapshotView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if view.ID != "100-a" || view.VehicleCount != 1 {
		t.Errorf("view = %+v", view)
	}
	if hist.lastNow.Unix() != 1000 {
		t.Errorf("alerts evaluated at %v, want request time", hist.lastNow)
	}

	rec = do(t, srv, http.MethodGet, "/history/snapshots/missing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}
}

func TestCapture(t *testing.T) {
	srv := newTestServer(&fakeFeeds{}, &fakeHistory{captureID: "1700000000-abcd1234"}, nil)

	rec := do(t, srv, http.MethodPost, "/history/capture")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp CaptureResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !resp.Success || resp.ID != "1700000000-abcd1234" {
		t.Errorf("response = %+v", resp)
	}

	if rec := do(t, srv, http.MethodGet, "/history/capture"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /history/capture status = %d, want 405", rec.Code)
	}
}

func TestListSnapshots_DateParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		status   int
		from, to int64 // 0 = unbounded
	}{
		{"no filters", "", http.StatusOK, 0, 0},
		{"unix", "?from=100&to=200", http.StatusOK, 100, 200},
		{"rfc3339", "?from=2024-06-01T10:00:00Z", http.StatusOK, 1717236000, 0},
		{"date to end of day", "?from=2024-06-01&to=2024-06-01", http.StatusOK, 1717200000, 1717286399},
		{"bad from", "?from=yesterday", http.StatusBadRequest, 0, 0},
		{"bad to", "?to=2024-13-45", http.StatusBadRequest, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hist := &fakeHistory{}
			srv := newTestServer(&fakeFeeds{}, hist, nil)

			rec := do(t, srv, http.MethodGet, "/history/snapshots"+tc.query)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.status, rec.Body.String())
			}
			if tc.status != http.StatusOK {
				if hist.listCalled {
					t.Error("service should not be called for invalid dates")
				}
				return
			}

			checkBound(t, "from", hist.from, tc.from)
			checkBound(t, "to", hist.to, tc.to)
		})
	}
}

func checkBound(t *testing.T, name string, got *time.Time, want int64) {
	t.Helper()
	if want == 0 {
		if got != nil {
			t.Errorf("%s = %v, want unbounded", name, got)
		}
		return
	}
	if got == nil || got.Unix() != want {
		t.Errorf("%s = %v, want %d", name, got, want)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(&fakeFeeds{}, &fakeHistory{}, nil)
	if rec := do(t, srv, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Errorf("healthy status = %d", rec.Code)
	}

	srv = newTestServer(&fakeFeeds{}, &fakeHistory{}, errors.New("database is locked"))
	rec := do(t, srv, http.MethodGet, "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "database is locked") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHistorySummary(t *testing.T) {
	srv := newTestServer(&fakeFeeds{}, &fakeHistory{}, nil)
	rec := do(t, srv, http.MethodGet, "/history/summary")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"totalSnapshots":4`) {
		t.Errorf("summary response = %d %s", rec.Code, rec.Body.String())
	}
}
