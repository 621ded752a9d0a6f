// Package history captures insights snapshots into a storage port and
// serves them back: listing, lookup, retention and summary statistics.
package history

import (
	"context"
	"strings"

	"github.com/jbt95/trenes/internal/feed"
	"github.com/jbt95/trenes/internal/insights"
)

// Store is the persistence port: one index of descriptors plus one blob per
// entry. ReadEntry returns ErrNotFound for an unknown id.
type Store interface {
	ListIndex(ctx context.Context) ([]IndexEntry, error)
	AppendIndexEntry(ctx context.Context, entry IndexEntry) error
	RewriteIndex(ctx context.Context, entries []IndexEntry) error
	ReadEntry(ctx context.Context, id string) ([]byte, error)
	WriteEntry(ctx context.Context, id string, payload []byte) error
	DeleteEntry(ctx context.Context, id string) error
	Close() error
}

// IndexEntry describes one persisted entry. Legacy descriptors may lack the
// id and counts; see ResolvedID and the count accessors.
type IndexEntry struct {
	ID           *string `json:"id,omitempty"`
	Timestamp    int64   `json:"timestamp"`
	Filename     string  `json:"filename"`
	VehicleCount *int    `json:"vehicleCount,omitempty"`
	AlertCount   *int    `json:"alertCount,omitempty"`
}

const (
	filenamePrefix = "snapshot-"
	filenameSuffix = ".json"
)

// FilenameFor returns the blob reference recorded for an entry id
func FilenameFor(id string) string {
	return filenamePrefix + id + filenameSuffix
}

// ResolvedID returns the explicit id, or derives it from the filename
// ("snapshot-<id>.json" -> "<id>")
func (e IndexEntry) ResolvedID() string {
	if e.ID != nil && *e.ID != "" {
		return *e.ID
	}
	name := e.Filename
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimPrefix(name, filenamePrefix)
	return strings.TrimSuffix(name, filenameSuffix)
}

// Vehicles returns the recorded vehicle count, 0 for legacy descriptors
func (e IndexEntry) Vehicles() int {
	if e.VehicleCount == nil {
		return 0
	}
	return *e.VehicleCount
}

// Alerts returns the recorded alert count, 0 for legacy descriptors
func (e IndexEntry) Alerts() int {
	if e.AlertCount == nil {
		return 0
	}
	return *e.AlertCount
}

// Series are the grouped counts kept with each entry
type Series struct {
	VehiclesByRoute  []insights.CountByKey `json:"vehiclesByRoute"`
	VehiclesByStatus []insights.CountByKey `json:"vehiclesByStatus"`
	AlertsByEffect   []insights.CountByKey `json:"alertsByEffect"`
	AlertsByCause    []insights.CountByKey `json:"alertsByCause"`
}

// VehicleRecord is the reduced vehicle persisted with an entry
type VehicleRecord struct {
	ID        string  `json:"id"`
	Label     *string `json:"label"`
	RouteID   *string `json:"routeId"`
	TripID    *string `json:"tripId"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Status    *string `json:"status"`
}

// AlertRecord is the reduced alert persisted with an entry
type AlertRecord struct {
	ID     string  `json:"id"`
	Header *string `json:"header"`
	Effect *string `json:"effect"`
	Cause  *string `json:"cause"`
	Start  *int64  `json:"start"`
	End    *int64  `json:"end"`
}

// Entry is one captured snapshot as persisted. Immutable once written.
type Entry struct {
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Totals    insights.Totals `json:"totals"`
	Series    Series          `json:"series"`
	Vehicles  []VehicleRecord `json:"vehicles"`
	Alerts    []AlertRecord   `json:"alerts"`
}

func newEntry(id string, snap *insights.Snapshot, vehicles []feed.VehiclePosition, alerts []feed.Alert) Entry {
	entry := Entry{
		ID:        id,
		Timestamp: snap.GeneratedAt,
		Totals:    snap.Totals,
		Series: Series{
			VehiclesByRoute:  snap.VehiclesByRoute,
			VehiclesByStatus: snap.VehiclesByStatus,
			AlertsByEffect:   snap.AlertsByEffect,
			AlertsByCause:    snap.AlertsByCause,
		},
		Vehicles: make([]VehicleRecord, 0, len(vehicles)),
		Alerts:   make([]AlertRecord, 0, len(alerts)),
	}
	for _, v := range vehicles {
		entry.Vehicles = append(entry.Vehicles, VehicleRecord{
			ID:        v.ID,
			Label:     v.Label,
			RouteID:   v.RouteID,
			TripID:    v.TripID,
			Latitude:  v.Latitude,
			Longitude: v.Longitude,
			Status:    v.Status,
		})
	}
	for _, a := range alerts {
		entry.Alerts = append(entry.Alerts, AlertRecord{
			ID:     a.ID,
			Header: a.Header,
			Effect: a.Effect,
			Cause:  a.Cause,
			Start:  a.Start,
			End:    a.End,
		})
	}
	return entry
}
