package monitoring

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"micropost-be/internal/geoip"
	"micropost-be/internal/services"
)

// ProfileEnricher periodically re-attempts geolocation enrichment for
// profiles whose lookup succeeded with partial data (private addresses,
// bogons). It is strictly best-effort and never touches the request path.
type ProfileEnricher struct {
	userSvc  services.UserServiceProvider
	geo      geoip.LookupProvider
	schedule cron.Schedule
	ticker   *time.Ticker
	done     chan bool
}

// NewProfileEnricher creates an enricher. The sweep cadence is a
// standard cron spec.
func NewProfileEnricher(userSvc services.UserServiceProvider, geo geoip.LookupProvider, spec string) (*ProfileEnricher, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, err
	}
	return &ProfileEnricher{
		userSvc:  userSvc,
		geo:      geo,
		schedule: schedule,
		done:     make(chan bool),
	}, nil
}

// Run starts the enricher's ticking loop.
func (e *ProfileEnricher) Run() {
	log.Info().Msg("Starting background profile enricher...")
	e.ticker = time.NewTicker(1 * time.Minute)
	defer e.ticker.Stop()

	nextRun := e.schedule.Next(time.Now())
	for {
		select {
		case <-e.done:
			log.Info().Msg("Stopping background profile enricher.")
			return
		case <-e.ticker.C:
			if time.Now().After(nextRun) {
				e.sweep()
				nextRun = e.schedule.Next(time.Now())
			}
		}
	}
}

// Stop halts the enricher.
func (e *ProfileEnricher) Stop() {
	e.done <- true
}

// sweep re-resolves profiles with blank geolocation fields.
func (e *ProfileEnricher) sweep() {
	profiles, err := e.userSvc.ProfilesMissingLocation(50)
	if err != nil {
		log.Error().Err(err).Msg("Enricher: Failed to query incomplete profiles")
		return
	}
	if len(profiles) == 0 {
		return
	}
	log.Info().Int("count", len(profiles)).Msg("Enricher: re-attempting lookups for incomplete profiles")

	for _, profile := range profiles {
		if profile.LastIP == "" {
			continue // No address on record to resolve.
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		loc, err := e.geo.Lookup(ctx, profile.LastIP)
		cancel()
		if err != nil {
			// The collaborator is down; retry whole batch next sweep.
			log.Warn().Err(err).Msg("Enricher: lookup failed, deferring sweep")
			return
		}
		if loc.City == "" && loc.Region == "" && loc.Country == "" {
			continue // Still nothing to write.
		}
		if err := e.userSvc.SetProfileLocation(profile.UserID, loc); err != nil {
			log.Warn().Err(err).Str("user_id", profile.UserID).Msg("Enricher: failed to update profile")
		}
	}
}
