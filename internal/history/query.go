package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/jbt95/trenes/internal/insights"
	"github.com/jbt95/trenes/internal/metrics"
)

// SnapshotInfo is one row of the snapshot listing
type SnapshotInfo struct {
	ID           string `json:"id"`
	Timestamp    int64  `json:"timestamp"`
	VehicleCount int    `json:"vehicleCount"`
	AlertCount   int    `json:"alertCount"`
}

// ListSnapshots returns index entries with from <= timestamp <= to, oldest
// first. Nil bounds are open.
func (s *Service) ListSnapshots(ctx context.Context, from, to *time.Time) ([]SnapshotInfo, error) {
	index, err := s.store.ListIndex(ctx)
	if err != nil {
		return nil, persistErr("list index", err)
	}

	out := make([]SnapshotInfo, 0, len(index))
	for _, e := range index {
		if from != nil && e.Timestamp < from.Unix() {
			continue
		}
		if to != nil && e.Timestamp > to.Unix() {
			continue
		}
		out = append(out, SnapshotInfo{
			ID:           e.ResolvedID(),
			Timestamp:    e.Timestamp,
			VehicleCount: e.Vehicles(),
			AlertCount:   e.Alerts(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out, nil
}

// VehicleView is a stored vehicle as returned by GetSnapshot
type VehicleView struct {
	ID        string  `json:"id"`
	Label     *string `json:"label"`
	RouteID   *string `json:"routeId"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// AlertView is a stored alert with activity evaluated at request time
type AlertView struct {
	ID       string  `json:"id"`
	Header   *string `json:"header"`
	Effect   *string `json:"effect"`
	IsActive bool    `json:"isActive"`
}

// SnapshotView is the client-facing form of a stored entry
type SnapshotView struct {
	ID           string          `json:"id"`
	Timestamp    int64           `json:"timestamp"`
	VehicleCount int             `json:"vehicleCount"`
	AlertCount   int             `json:"alertCount"`
	Totals       insights.Totals `json:"totals"`
	Vehicles     []VehicleView   `json:"vehicles"`
	Alerts       []AlertView     `json:"alerts"`
}

// LoadEntry resolves id through the index and decodes its blob
func (s *Service) LoadEntry(ctx context.Context, id string) (*Entry, error) {
	index, err := s.store.ListIndex(ctx)
	if err != nil {
		return nil, persistErr("list index", err)
	}

	found := false
	for _, e := range index {
		if e.ResolvedID() == id {
			found = true
			break
		}
	}
	if !found {
		return nil, ErrNotFound
	}

	return s.readEntry(ctx, id)
}

func (s *Service) readEntry(ctx context.Context, id string) (*Entry, error) {
	payload, err := s.store.ReadEntry(ctx, id)
	if err != nil {
		return nil, persistErr("read entry "+id, err)
	}
	var entry Entry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, &PersistenceError{Op: "decode entry " + id, Err: err}
	}
	return &entry, nil
}

// GetSnapshot loads an entry and evaluates its alerts against now
func (s *Service) GetSnapshot(ctx context.Context, id string, now time.Time) (*SnapshotView, error) {
	entry, err := s.LoadEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &SnapshotView{
		ID:           entry.ID,
		Timestamp:    entry.Timestamp,
		VehicleCount: len(entry.Vehicles),
		AlertCount:   len(entry.Alerts),
		Totals:       entry.Totals,
		Vehicles:     make([]VehicleView, 0, len(entry.Vehicles)),
		Alerts:       make([]AlertView, 0, len(entry.Alerts)),
	}
	if view.ID == "" {
		view.ID = id
	}
	for _, v := range entry.Vehicles {
		view.Vehicles = append(view.Vehicles, VehicleView{
			ID:        v.ID,
			Label:     v.Label,
			RouteID:   v.RouteID,
			Latitude:  v.Latitude,
			Longitude: v.Longitude,
		})
	}
	ref := now.Unix()
	for _, a := range entry.Alerts {
		view.Alerts = append(view.Alerts, AlertView{
			ID:       a.ID,
			Header:   a.Header,
			Effect:   a.Effect,
			IsActive: insights.IsActiveAt(a.Start, a.End, ref),
		})
	}
	return view, nil
}

// Summary aggregates statistics over the whole history
type Summary struct {
	TotalSnapshots   int           `json:"totalSnapshots"`
	FirstSnapshotAt  *int64        `json:"firstSnapshotAt"`
	LastSnapshotAt   *int64        `json:"lastSnapshotAt"`
	VehicleCount     metrics.Stats `json:"vehicleCount"`
	AlertCount       metrics.Stats `json:"alertCount"`
	SampledSnapshots int           `json:"sampledSnapshots"`
	UniqueVehicles   int           `json:"uniqueVehicles"`
	UniqueAlerts     int           `json:"uniqueAlerts"`
}

// Summary computes count statistics over every index entry and distinct
// vehicle and alert ids over the newest entries. Entries that cannot be
// read are skipped.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	index, err := s.store.ListIndex(ctx)
	if err != nil {
		return nil, persistErr("list index", err)
	}

	summary := &Summary{TotalSnapshots: len(index)}
	if len(index) == 0 {
		return summary, nil
	}

	var vehicleStats, alertStats metrics.Welford
	first, last := index[0].Timestamp, index[0].Timestamp
	for _, e := range index {
		vehicleStats.Add(float64(e.Vehicles()))
		alertStats.Add(float64(e.Alerts()))
		first = min(first, e.Timestamp)
		last = max(last, e.Timestamp)
	}
	summary.FirstSnapshotAt = &first
	summary.LastSnapshotAt = &last
	summary.VehicleCount = vehicleStats.Stats()
	summary.AlertCount = alertStats.Stats()

	newest := make([]IndexEntry, len(index))
	copy(newest, index)
	sort.SliceStable(newest, func(i, j int) bool {
		return newest[i].Timestamp > newest[j].Timestamp
	})
	if len(newest) > s.sampleSize {
		newest = newest[:s.sampleSize]
	}

	vehicleIDs := make(map[string]struct{})
	alertIDs := make(map[string]struct{})
	for _, e := range newest {
		id := e.ResolvedID()
		entry, err := s.readEntry(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("failed to sample history: %w", ctx.Err())
			}
			log.Printf("History: Warning: skipping entry %s in summary: %v", id, err)
			continue
		}
		summary.SampledSnapshots++
		for _, v := range entry.Vehicles {
			vehicleIDs[v.ID] = struct{}{}
		}
		for _, a := range entry.Alerts {
			alertIDs[a.ID] = struct{}{}
		}
	}
	summary.UniqueVehicles = len(vehicleIDs)
	summary.UniqueAlerts = len(alertIDs)
	return summary, nil
}
