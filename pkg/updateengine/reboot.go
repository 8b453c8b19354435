package updateengine

import (
	"time"

	"github.com/marmos91/dittofs/internal/logger"
)

// RebootAndRollbackTracker counts reboots during an update, detects
// "booted into new version," emits the failed-boot-if-needed report,
// stores/clears the rollback blacklist version, and writes/reads the
// "system updated" marker.
type RebootAndRollbackTracker struct {
	store     PersistedStore
	powerwash PowerwashSafePersistedStore
	system    SystemState
	clock     Clock
	metrics   MetricsSink

	numReboots       int64
	previousBootID   string
	targetVersionUID string
	targetAttempts   int64
	rollbackVersion  string
}

func newRebootAndRollbackTracker(store PersistedStore, powerwash PowerwashSafePersistedStore, system SystemState, clock Clock, metrics MetricsSink) *RebootAndRollbackTracker {
	t := &RebootAndRollbackTracker{store: store, powerwash: powerwash, system: system, clock: clock, metrics: metrics}
	t.numReboots = getNonNegInt(store, keyNumReboots, 0)
	t.previousBootID, _ = store.GetString(keyPreviousBootID)
	t.targetVersionUID, _ = store.GetString(keyTargetVersionUID)
	t.targetAttempts = getNonNegInt(store, keyTargetVersionAttempts, 0)
	t.rollbackVersion, _ = powerwash.GetString(keyRollbackVersion)
	return t
}

// NumReboots returns num_reboots for the current attempt.
func (t *RebootAndRollbackTracker) NumReboots() int64 { return t.numReboots }

// RollbackVersion returns the powerwash-safe blacklisted version, if any.
func (t *RebootAndRollbackTracker) RollbackVersion() string { return t.rollbackVersion }

// UpdateEngineStarted is called at process startup (no reboot pending).
// It detects a boot-id change since the last run and reports a failed
// boot if the device never reached the expected target version.
func (t *RebootAndRollbackTracker) UpdateEngineStarted() {
	t.updateNumReboots()
	t.reportFailedBootIfNeeded()
}

func (t *RebootAndRollbackTracker) updateNumReboots() {
	current := t.system.BootID()
	if current == "" {
		return
	}
	if t.previousBootID != "" && current != t.previousBootID {
		t.numReboots++
		setInt(t.store, keyNumReboots, t.numReboots)
	}
	t.previousBootID = current
	t.store.SetString(keyPreviousBootID, current)
}

// ExpectRebootInNewVersion records, in normal prefs, the version the
// caller expects to be running after the next reboot.
func (t *RebootAndRollbackTracker) ExpectRebootInNewVersion(targetVersionUID string) {
	t.targetVersionUID = targetVersionUID
	t.targetAttempts = 0
	t.store.SetString(keyTargetVersionUID, targetVersionUID)
	setInt(t.store, keyTargetVersionAttempts, 0)
}

// reportFailedBootIfNeeded emits a metric and bumps the attempts counter
// when the device is running a version other than the one it expected
// to boot into; otherwise it clears the expectation.
func (t *RebootAndRollbackTracker) reportFailedBootIfNeeded() {
	if t.targetVersionUID == "" {
		return
	}
	running := t.system.RunningOSVersion()
	if running != t.targetVersionUID {
		t.metrics.SendCount(metricFailedBootAttempts, t.targetAttempts, 0, 100, 10)
		t.targetAttempts++
		setInt(t.store, keyTargetVersionAttempts, t.targetAttempts)
		logger.Warn("update engine: failed boot detected",
			"target_version", t.targetVersionUID, "running_version", running, "attempts", t.targetAttempts)
		return
	}
	t.clearTargetVersion()
}

func (t *RebootAndRollbackTracker) clearTargetVersion() {
	t.targetVersionUID = ""
	t.targetAttempts = 0
	t.store.Delete(keyTargetVersionUID)
	t.store.Delete(keyTargetVersionAttempts)
}

// CreateSystemUpdatedMarkerFile writes the current wall-clock time into
// the system-updated-marker key, called at UpdateSucceeded.
func (t *RebootAndRollbackTracker) CreateSystemUpdatedMarkerFile(now time.Time) {
	setInt(t.store, keySystemUpdatedMarker, now.UnixMicro())
}

// CheckForMarkerAtStartup runs at startup: if the marker is present and
// the booted-into version matches the target, it computes time-to-reboot,
// emits BootedIntoUpdate, and deletes the marker.
func (t *RebootAndRollbackTracker) CheckForMarkerAtStartup() {
	micros, ok := t.store.GetInt64(keySystemUpdatedMarker)
	if !ok || micros < 0 {
		return
	}
	if t.targetVersionUID == "" || t.system.RunningOSVersion() != t.targetVersionUID {
		return
	}
	markerTime := time.UnixMicro(micros).UTC()
	t.bootedIntoUpdate(t.clock.WallNow().Sub(markerTime))
	t.store.Delete(keySystemUpdatedMarker)
}

func (t *RebootAndRollbackTracker) bootedIntoUpdate(timeToReboot time.Duration) {
	t.metrics.SendTime(metricBootedIntoUpdate, timeToReboot, 0, 10*time.Minute, 50)
}

// Rollback sets rollback_version to the currently running OS version. The
// caller (PayloadState) also resets response-scoped counters since any
// in-flight offer becomes moot.
func (t *RebootAndRollbackTracker) Rollback() {
	t.rollbackVersion = t.system.RunningOSVersion()
	t.powerwash.SetString(keyRollbackVersion, t.rollbackVersion)
}

// ResetRollbackVersion clears rollback_version, called at UpdateSucceeded.
func (t *RebootAndRollbackTracker) ResetRollbackVersion() {
	t.rollbackVersion = ""
	t.powerwash.Delete(keyRollbackVersion)
}

func (t *RebootAndRollbackTracker) resetNumReboots() {
	t.numReboots = 0
	setInt(t.store, keyNumReboots, 0)
}
