package monitoring

import (
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	ws "micropost-be/internal/websocket"
)

// Stats is a point-in-time snapshot of host and application state,
// served by /health and pushed to the feed as "system.stats".
type Stats struct {
	CPUPercent    float64   `json:"cpuPercent"`
	MemoryPercent float64   `json:"memoryPercent"`
	UserCount     int64     `json:"userCount"`
	PostCount     int64     `json:"postCount"`
	UptimeSeconds int64     `json:"uptimeSeconds"`
	CollectedAt   time.Time `json:"collectedAt"`
}

// StatUpdater periodically collects a stats snapshot and broadcasts it.
type StatUpdater struct {
	db     *sql.DB
	hub    *ws.Hub
	ticker *time.Ticker
	done   chan bool

	mu       sync.RWMutex
	snapshot Stats
	started  time.Time
}

// NewStatUpdater creates a new StatUpdater. The hub may be nil (tests).
func NewStatUpdater(db *sql.DB, hub *ws.Hub) *StatUpdater {
	return &StatUpdater{
		db:      db,
		hub:     hub,
		done:    make(chan bool),
		started: time.Now(),
	}
}

// Run starts the periodic updates.
func (su *StatUpdater) Run() {
	log.Info().Msg("Starting background stat updater...")
	su.ticker = time.NewTicker(30 * time.Second)
	defer su.ticker.Stop()

	// Run once immediately on start
	su.collect()

	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater.")
			return
		case <-su.ticker.C:
			su.collect()
		}
	}
}

// Stop halts the periodic updates.
func (su *StatUpdater) Stop() {
	su.done <- true
}

// Snapshot returns the most recent stats snapshot.
func (su *StatUpdater) Snapshot() Stats {
	su.mu.RLock()
	defer su.mu.RUnlock()
	return su.snapshot
}

func (su *StatUpdater) collect() {
	stats := Stats{
		UptimeSeconds: int64(time.Since(su.started).Seconds()),
		CollectedAt:   time.Now().UTC(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUPercent = percents[0]
	} else if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: failed to read CPU usage")
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
	} else {
		log.Warn().Err(err).Msg("StatUpdater: failed to read memory usage")
	}

	if err := su.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&stats.UserCount); err != nil {
		log.Warn().Err(err).Msg("StatUpdater: failed to count users")
	}
	if err := su.db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&stats.PostCount); err != nil {
		log.Warn().Err(err).Msg("StatUpdater: failed to count posts")
	}

	su.mu.Lock()
	su.snapshot = stats
	su.mu.Unlock()

	if su.hub != nil {
		su.hub.Broadcast <- ws.NewStatsMessage(stats)
	}
}
