package monitoring

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"micropost-be/internal/database"
	"micropost-be/internal/geoip"
	"micropost-be/internal/services"
)

// emptyGeo succeeds with no data, the way lookups for private addresses do.
type emptyGeo struct{}

func (emptyGeo) Lookup(ctx context.Context, ip string) (geoip.Location, error) {
	return geoip.Location{}, nil
}

// flakyGeo fails its first call, then recovers.
type flakyGeo struct {
	calls int
}

func (g *flakyGeo) Lookup(ctx context.Context, ip string) (geoip.Location, error) {
	g.calls++
	if g.calls == 1 {
		return geoip.Location{}, geoip.ErrUnavailable
	}
	return geoip.Location{City: "Oslo", Region: "Oslo", Country: "NO"}, nil
}

func newEnricherFixture(t *testing.T, geo geoip.LookupProvider) (*ProfileEnricher, *services.UserService, *sql.DB) {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { db.Close() })

	userSvc := services.NewUserService(db, emptyGeo{}, services.NewEventService(db, nil))
	enricher, err := NewProfileEnricher(userSvc, geo, "*/10 * * * *")
	require.NoError(t, err)
	return enricher, userSvc, db
}

func TestSweepFillsBlankProfileWhenLookupRecovers(t *testing.T) {
	geo := &flakyGeo{}
	enricher, userSvc, _ := newEnricherFixture(t, geo)

	// Signup's lookup came back empty, leaving a blank profile behind.
	user, err := userSvc.Signup(context.Background(), "alice", "a@x.com", "pw123", "203.0.113.7")
	require.NoError(t, err)

	// Lookup down: the whole batch is deferred to the next sweep.
	enricher.sweep()
	profile, err := userSvc.GetOrCreateProfile(user.ID)
	require.NoError(t, err)
	assert.Empty(t, profile.City)
	assert.Equal(t, 1, geo.calls)

	// Lookup recovered: the blank profile gets filled.
	enricher.sweep()
	profile, err = userSvc.GetOrCreateProfile(user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Oslo", profile.City)
	assert.Equal(t, "NO", profile.Country)

	// Nothing left to re-resolve.
	missing, err := userSvc.ProfilesMissingLocation(10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestSweepSkipsProfilesWithoutAnAddress(t *testing.T) {
	geo := &flakyGeo{}
	enricher, userSvc, db := newEnricherFixture(t, geo)

	_, err := db.Exec("INSERT INTO users(id, username, email, password_hash) VALUES(?, ?, ?, ?)",
		"u-legacy", "legacy", "legacy@x.com", "x")
	require.NoError(t, err)

	// A profile created lazily has no address on record to resolve.
	_, err = userSvc.GetOrCreateProfile("u-legacy")
	require.NoError(t, err)

	enricher.sweep()
	assert.Zero(t, geo.calls)
}

func TestNewProfileEnricherRejectsBadSpec(t *testing.T) {
	_, err := NewProfileEnricher(nil, emptyGeo{}, "not a schedule")
	assert.Error(t, err)
}
