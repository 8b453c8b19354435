package updateengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittofs/pkg/updateengine/updateenginetest"
)

func newTestState(t *testing.T, clock *updateenginetest.Clock) (*PayloadState, *updateenginetest.Store, *updateenginetest.Store, *updateenginetest.MetricsSink) {
	t.Helper()
	store := updateenginetest.NewStore()
	powerwash := updateenginetest.NewStore()
	system := updateenginetest.NewSystemState()
	metrics := updateenginetest.NewMetricsSink()
	s := New(store, powerwash, system, clock, metrics, testConfig())
	return s, store, powerwash, metrics
}

func TestPayloadState_SetResponse_NewOfferResetsResponseScopedState(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, _, _ := newTestState(t, clock)

	s.SetResponse(sampleResponse())
	s.UpdateFailed(ErrOmahaError) // advances to URL index 1
	require.Equal(t, int64(1), s.sequencer.URLIndex())

	r2 := sampleResponse()
	r2.PayloadHashHex = "different-hash"
	s.SetResponse(r2)

	assert.Equal(t, int64(0), s.sequencer.URLIndex())
	assert.Equal(t, int64(2), s.NumResponsesSeen())
}

func TestPayloadState_SetResponse_SameOfferResumeDoesNotResetCounters(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, _, _ := newTestState(t, clock)

	s.SetResponse(sampleResponse())
	s.UpdateFailed(ErrOmahaError)
	require.Equal(t, int64(1), s.sequencer.URLIndex())

	s.SetResponse(sampleResponse())

	assert.Equal(t, int64(1), s.sequencer.URLIndex(), "re-offering the same response must not reset progress")
	assert.Equal(t, int64(1), s.NumResponsesSeen())
}

func TestPayloadState_UpdateFailed_RetryableErrorRetriesSameURLUntilThreshold(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, _, _ := newTestState(t, clock)
	s.config.MaxFailuresPerURL = 3
	s.sequencer.config.MaxFailuresPerURL = 3
	s.SetResponse(sampleResponse())

	s.UpdateFailed(ErrDownloadTransferError)
	s.UpdateFailed(ErrDownloadTransferError)
	assert.Equal(t, int64(0), s.sequencer.URLIndex(), "below threshold: same URL")

	s.UpdateFailed(ErrDownloadTransferError)
	assert.Equal(t, int64(1), s.sequencer.URLIndex(), "threshold crossed: advances")
}

func TestPayloadState_UpdateFailed_OmahaErrorAdvancesImmediately(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, _, _ := newTestState(t, clock)
	s.SetResponse(sampleResponse())

	s.UpdateFailed(ErrOmahaError)

	assert.Equal(t, int64(1), s.sequencer.URLIndex())
	assert.Equal(t, int64(0), s.URLFailureCount())
}

func TestPayloadState_UpdateFailed_FatalLocalClearsBytesAndEmitsMetricsButNoURLAdvance(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, _, metrics := newTestState(t, clock)
	s.SetResponse(sampleResponse())
	s.DownloadProgress(1000)
	require.Equal(t, int64(1000), s.CurrentBytesDownloaded(SourceHTTPSServer))

	s.UpdateFailed(ErrFatalLocal)

	assert.Equal(t, int64(0), s.sequencer.URLIndex())
	assert.Equal(t, int64(0), s.CurrentBytesDownloaded(SourceHTTPSServer))
	assert.NotEmpty(t, metrics.Times)
	assert.NotEmpty(t, metrics.Enums)
}

func TestPayloadState_UpdateFailed_UnknownCodeDefaultsToRetrySameURL(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, _, _ := newTestState(t, clock)
	s.config.MaxFailuresPerURL = 100
	s.sequencer.config.MaxFailuresPerURL = 100
	s.SetResponse(sampleResponse())

	s.UpdateFailed(UpdateErrorCode(999))

	assert.Equal(t, int64(0), s.sequencer.URLIndex())
	assert.Equal(t, int64(1), s.URLFailureCount())
}

func TestPayloadState_DownloadComplete_AdvancesAttemptAndClearsFailures(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, _, _ := newTestState(t, clock)
	r := sampleResponse()
	r.IsFullPayload = true
	s.SetResponse(r)
	s.UpdateFailed(ErrDownloadTransferError)

	s.DownloadComplete()

	assert.Equal(t, int64(1), s.PayloadAttemptNumber())
	assert.Equal(t, int64(1), s.FullPayloadAttemptNumber())
	assert.Equal(t, int64(0), s.URLFailureCount())
}

func TestPayloadState_UpdateSucceeded_ResetsTotalsAndResponseTracking(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, store, _, metrics := newTestState(t, clock)
	s.SetResponse(sampleResponse())
	s.DownloadProgress(500)
	clock.AdvanceWall(time.Hour)

	s.UpdateSucceeded()

	assert.Equal(t, int64(0), s.TotalBytesDownloaded(SourceHTTPSServer))
	assert.Equal(t, int64(0), s.NumResponsesSeen())
	assert.NotEmpty(t, metrics.Times)
	assert.NotEmpty(t, metrics.Counts)
	marker, ok := store.GetInt64(keySystemUpdatedMarker)
	require.True(t, ok)
	assert.Equal(t, clock.WallNow().UnixMicro(), marker)
}

func TestPayloadState_Rollback_BlacklistsVersionAndResetsResponseScopedState(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, powerwash, _ := newTestState(t, clock)
	s.system.(*updateenginetest.SystemState).RunningVersionValue = "14999.0.0"
	s.SetResponse(sampleResponse())
	s.UpdateFailed(ErrOmahaError)

	s.Rollback()

	assert.Equal(t, int64(0), s.sequencer.URLIndex())
	v, ok := powerwash.GetString(keyRollbackVersion)
	require.True(t, ok)
	assert.Equal(t, "14999.0.0", v)
}

func TestPayloadState_ResetUpdateStatus_IsIdempotent(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, _, _ := newTestState(t, clock)
	s.SetResponse(sampleResponse())
	s.UpdateFailed(ErrOmahaError)

	s.ResetUpdateStatus()
	snapshotAfterFirst := s.Snapshot()
	s.ResetUpdateStatus()
	snapshotAfterSecond := s.Snapshot()

	assert.Equal(t, snapshotAfterFirst.PayloadAttemptNumber, snapshotAfterSecond.PayloadAttemptNumber)
	assert.Equal(t, snapshotAfterFirst.URLSwitchCount, snapshotAfterSecond.URLSwitchCount)
}

func TestPayloadState_New_RunsBootReconciliationAtConstruction(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := updateenginetest.NewClock(now)
	store := updateenginetest.NewStore()
	powerwash := updateenginetest.NewStore()
	system := updateenginetest.NewSystemState()
	system.RunningVersionValue = "15001.0.0"
	metrics := updateenginetest.NewMetricsSink()

	writer := New(store, powerwash, system, clock, metrics, testConfig())
	writer.ExpectRebootInNewVersion("15001.0.0")
	writer.reboot.CreateSystemUpdatedMarkerFile(now)

	clock.AdvanceWall(time.Minute)
	_ = New(store, powerwash, system, clock, metrics, testConfig())

	require.NotEmpty(t, metrics.Times)
	assert.Equal(t, metricBootedIntoUpdate, metrics.Times[len(metrics.Times)-1].Name)
}

func TestPayloadState_Snapshot_ReflectsCurrentAccessors(t *testing.T) {
	t.Parallel()

	clock := updateenginetest.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s, _, _, _ := newTestState(t, clock)
	s.SetResponse(sampleResponse())
	s.DownloadProgress(256)

	snap := s.Snapshot()

	assert.Equal(t, s.ResponseSignature(), snap.ResponseSignature)
	assert.Equal(t, "https://a.example/payload.bin", snap.CurrentURL)
	assert.Equal(t, int64(256), snap.CurrentBytesDownloaded[SourceHTTPSServer])
}
