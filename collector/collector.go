package collector

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/vainnor/active-flights/metrics"
	"github.com/vainnor/active-flights/types"
)

type Snapshotter interface {
	List() []types.FlightRecord
}

type Broadcaster interface {
	Broadcast(flights []types.FlightRecord) error
	Clients() int
}

// Collector periodically snapshots the registry, keeps running statistics
// and pushes each snapshot to the live feed.
type Collector struct {
	registry Snapshotter
	feed     Broadcaster
	logger   *zap.Logger
	cron     *cron.Cron

	mu    sync.RWMutex
	stats types.CollectionStats
}

func NewCollector(registry Snapshotter, feed Broadcaster, logger *zap.Logger) *Collector {
	return &Collector{
		registry: registry,
		feed:     feed,
		logger:   logger,
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		stats: types.CollectionStats{
			AircraftTypes: map[string]int{},
			StartTime:     time.Now(),
		},
	}
}

// Start schedules collection every feedInterval and a summary log line every
// reportInterval.
func (c *Collector) Start(feedInterval, reportInterval time.Duration) error {
	if _, err := c.cron.AddFunc(every(feedInterval), c.Collect); err != nil {
		return fmt.Errorf("error scheduling collection: %w", err)
	}
	if _, err := c.cron.AddFunc(every(reportInterval), c.Report); err != nil {
		return fmt.Errorf("error scheduling report: %w", err)
	}
	c.cron.Start()
	return nil
}

// Stop waits for running jobs to finish or ctx to expire.
func (c *Collector) Stop(ctx context.Context) error {
	select {
	case <-c.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Collector) GetStats() types.CollectionStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := c.stats
	stats.AircraftTypes = make(map[string]int, len(c.stats.AircraftTypes))
	for k, v := range c.stats.AircraftTypes {
		stats.AircraftTypes[k] = v
	}
	return stats
}

// Collect takes one snapshot of the registry.
func (c *Collector) Collect() {
	flights := c.registry.List()

	aircraft := make(map[string]int)
	var pilots []any
	for _, f := range flights {
		if t, ok := f[types.FieldAircraftType]; ok {
			aircraft[fmt.Sprint(t)]++
		}
		if u, ok := f.Username(); ok && !containsValue(pilots, u) {
			pilots = append(pilots, u)
		}
	}

	clients := 0
	if c.feed != nil {
		if err := c.feed.Broadcast(flights); err != nil {
			c.logger.Error("error broadcasting snapshot", zap.Error(err))
		}
		clients = c.feed.Clients()
	}
	metrics.SetActiveFlights(len(flights))

	c.mu.Lock()
	c.stats.LastUpdate = time.Now()
	c.stats.TotalSnapshots++
	c.stats.ActiveFlights = len(flights)
	c.stats.UniquePilots = len(pilots)
	c.stats.AircraftTypes = aircraft
	c.stats.FeedClients = clients
	c.mu.Unlock()
}

func (c *Collector) Report() {
	stats := c.GetStats()
	c.logger.Info("collection update",
		zap.Int("active_flights", stats.ActiveFlights),
		zap.Int("unique_pilots", stats.UniquePilots),
		zap.Int("feed_clients", stats.FeedClients),
		zap.Int64("total_snapshots", stats.TotalSnapshots),
		zap.Duration("running_for", time.Since(stats.StartTime).Round(time.Second)))
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// Usernames are not necessarily comparable, so a map cannot hold them.
func containsValue(values []any, v any) bool {
	for _, existing := range values {
		if reflect.DeepEqual(existing, v) {
			return true
		}
	}
	return false
}
