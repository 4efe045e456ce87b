package types

import "time"

type CollectionStats struct {
	LastUpdate     time.Time      `json:"last_update"`
	TotalSnapshots int64          `json:"total_snapshots"`
	ActiveFlights  int            `json:"active_flights"`
	UniquePilots   int            `json:"unique_pilots"`
	AircraftTypes  map[string]int `json:"aircraft_types"`
	FeedClients    int            `json:"feed_clients"`
	StartTime      time.Time      `json:"start_time"`
}
