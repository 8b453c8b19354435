package updateengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittofs/pkg/updateengine/updateenginetest"
)

func TestDurationAndBytesAccountant_GetUpdateDuration_BeforeEnd_UsesWallNow(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	a := newDurationAndBytesAccountant(store, clock, testConfig())

	a.setStartTime(start)
	clock.AdvanceWall(10 * time.Minute)

	assert.Equal(t, 10*time.Minute, a.GetUpdateDuration())
}

func TestDurationAndBytesAccountant_GetUpdateDuration_AfterEnd_Freezes(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	a := newDurationAndBytesAccountant(store, clock, testConfig())
	a.setStartTime(start)

	clock.AdvanceWall(5 * time.Minute)
	a.setEndTime(clock.WallNow())
	clock.AdvanceWall(time.Hour)

	assert.Equal(t, 5*time.Minute, a.GetUpdateDuration())
}

func TestDurationAndBytesAccountant_GetUpdateDuration_ClampsDriftBeyondSlack(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	cfg := testConfig()
	cfg.ClockDriftSlack = time.Minute
	a := newDurationAndBytesAccountant(store, clock, cfg)
	a.setStartTime(start)

	clock.AdvanceWall(-10 * time.Minute) // wall clock jumps backwards past the start

	assert.Equal(t, time.Duration(0), a.GetUpdateDuration())
}

func TestDurationAndBytesAccountant_UptimeSurvivesReanchorAcrossFold(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	a := newDurationAndBytesAccountant(store, clock, testConfig())

	clock.AdvanceMonotonic(2 * time.Minute)
	a.CalculateUpdateDurationUptime()
	clock.AdvanceWall(30 * time.Minute) // wall-clock jump (e.g. NTP correction) must not affect uptime
	clock.AdvanceMonotonic(3 * time.Minute)
	a.CalculateUpdateDurationUptime()

	assert.Equal(t, 5*time.Minute, a.GetUpdateDurationUptime())
}

func TestDurationAndBytesAccountant_ResetUptime_ZeroesAndReanchors(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	a := newDurationAndBytesAccountant(store, clock, testConfig())
	clock.AdvanceMonotonic(5 * time.Minute)
	a.CalculateUpdateDurationUptime()
	require.Equal(t, 5*time.Minute, a.GetUpdateDurationUptime())

	a.resetUptime()

	assert.Equal(t, time.Duration(0), a.GetUpdateDurationUptime())

	micros, ok := store.GetInt64(keyUpdateDurationUptime)
	require.True(t, ok)
	assert.Equal(t, int64(0), micros)
}

func TestDurationAndBytesAccountant_UpdateBytesDownloaded_AccumulatesCurrentAndTotal(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	a := newDurationAndBytesAccountant(store, clock, testConfig())

	a.UpdateBytesDownloaded(SourceHTTPSServer, 100)
	a.UpdateBytesDownloaded(SourceHTTPSServer, 50)

	assert.Equal(t, int64(150), a.CurrentBytesDownloaded(SourceHTTPSServer))
	assert.Equal(t, int64(150), a.TotalBytesDownloaded(SourceHTTPSServer))
}

func TestDurationAndBytesAccountant_UpdateBytesDownloaded_SourceNoneIsSwallowed(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	a := newDurationAndBytesAccountant(store, clock, testConfig())

	a.UpdateBytesDownloaded(SourceNone, 999)

	assert.Equal(t, int64(999), a.CurrentBytesDownloaded(SourceNone))
	assert.False(t, store.Exists(keyCurrentBytesDownloaded(SourceNone)))
}

func TestDurationAndBytesAccountant_ResetCurrentBytes_LeavesTotalsAlone(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	a := newDurationAndBytesAccountant(store, clock, testConfig())
	a.UpdateBytesDownloaded(SourceHTTPServer, 200)

	a.resetCurrentBytes()

	assert.Equal(t, int64(0), a.CurrentBytesDownloaded(SourceHTTPServer))
	assert.Equal(t, int64(200), a.TotalBytesDownloaded(SourceHTTPServer))
}

func TestDurationAndBytesAccountant_ResetTotalBytes_ZeroesEverySource(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	a := newDurationAndBytesAccountant(store, clock, testConfig())
	a.UpdateBytesDownloaded(SourceHTTPSServer, 1)
	a.UpdateBytesDownloaded(SourceHTTPServer, 2)
	a.UpdateBytesDownloaded(SourceHTTPPeer, 3)

	a.resetTotalBytes()

	for _, src := range downloadSources {
		assert.Equalf(t, int64(0), a.TotalBytesDownloaded(src), "source %s", src)
	}
}

func TestDurationAndBytesAccountant_LoadsByteCountersFromStore(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(start)
	store := updateenginetest.NewStore()
	store.SetInt64(keyCurrentBytesDownloaded(SourceHTTPSServer), 42)
	store.SetInt64(keyTotalBytesDownloaded(SourceHTTPSServer), 4242)

	a := newDurationAndBytesAccountant(store, clock, testConfig())

	assert.Equal(t, int64(42), a.CurrentBytesDownloaded(SourceHTTPSServer))
	assert.Equal(t, int64(4242), a.TotalBytesDownloaded(SourceHTTPSServer))
}
