package feed

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// Options configures a feed Client
type Options struct {
	VehiclePositionsURL string
	AlertsURL           string
	// Timeout of zero keeps the http.Client default (no timeout)
	Timeout              time.Duration
	DeriveRouteFromLabel bool
}

// Client fetches and validates the upstream vehicle positions and alerts feeds.
// Both GTFS-RT-as-JSON and binary GTFS-RT bodies are accepted.
type Client struct {
	client              *http.Client
	parser              Parser
	vehiclePositionsURL string
	alertsURL           string
}

// NewClient creates a new feed client
func NewClient(opts Options) *Client {
	return &Client{
		client: &http.Client{
			Timeout: opts.Timeout,
		},
		parser:              Parser{DeriveRouteFromLabel: opts.DeriveRouteFromLabel},
		vehiclePositionsURL: opts.VehiclePositionsURL,
		alertsURL:           opts.AlertsURL,
	}
}

// VehiclePositions fetches and parses the vehicle positions feed
func (c *Client) VehiclePositions(ctx context.Context) ([]VehiclePosition, error) {
	body, err := c.fetchFeed(ctx, c.vehiclePositionsURL)
	if err != nil {
		return nil, err
	}
	return c.parser.VehiclePositions(body)
}

// Alerts fetches and parses the alerts feed
func (c *Client) Alerts(ctx context.Context) ([]Alert, error) {
	body, err := c.fetchFeed(ctx, c.alertsURL)
	if err != nil {
		return nil, err
	}
	return c.parser.Alerts(body)
}

// FetchAll fetches both feeds concurrently. Either failure fails the call.
func (c *Client) FetchAll(ctx context.Context) ([]VehiclePosition, []Alert, error) {
	var (
		vehicles []VehiclePosition
		alerts   []Alert
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vehicles, err = c.VehiclePositions(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		alerts, err = c.Alerts(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	log.Printf("Feed: fetched %d vehicles and %d alerts", len(vehicles), len(alerts))
	return vehicles, alerts, nil
}

// fetchFeed returns the feed body as GTFS-RT JSON, converting protobuf bodies
func (c *Client) fetchFeed(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/x-protobuf")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if isProtobuf(url, resp.Header.Get("Content-Type")) {
		return protobufToJSON(url, body)
	}
	return body, nil
}

func isProtobuf(url, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "protobuf") {
		return true
	}
	path := url
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(strings.ToLower(path), ".pb")
}

// protobufToJSON decodes a binary FeedMessage and re-encodes it with the
// proto3 JSON mapping, which is the GTFS-RT-as-JSON convention the parser reads.
func protobufToJSON(url string, body []byte) ([]byte, error) {
	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, &ShapeError{Feed: url, Issue: fmt.Sprintf("failed to parse protobuf: %v", err)}
	}
	data, err := protojson.Marshal(feed)
	if err != nil {
		return nil, &ShapeError{Feed: url, Issue: fmt.Sprintf("failed to convert protobuf: %v", err)}
	}
	return data, nil
}
