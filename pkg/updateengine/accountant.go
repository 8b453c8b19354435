package updateengine

import "time"

// DurationAndBytesAccountant tracks update_timestamp_start/_end, the
// monotonic update_duration_uptime running-timestamp scheme, and the two
// byte-counter vectors (current-attempt, cumulative-since-last-success)
// per download source.
type DurationAndBytesAccountant struct {
	store  PersistedStore
	clock  Clock
	config Config

	timestampStart time.Time
	timestampEnd   time.Time

	durationUptime          time.Duration
	durationUptimeTimestamp time.Time

	currentBytes map[DownloadSource]int64
	totalBytes   map[DownloadSource]int64
}

func newDurationAndBytesAccountant(store PersistedStore, clock Clock, config Config) *DurationAndBytesAccountant {
	a := &DurationAndBytesAccountant{
		store:                   store,
		clock:                   clock,
		config:                  config,
		timestampEnd:            Epoch,
		durationUptimeTimestamp: clock.MonotonicNow(),
		currentBytes:            make(map[DownloadSource]int64, len(downloadSources)),
		totalBytes:              make(map[DownloadSource]int64, len(downloadSources)),
	}

	if micros, ok := store.GetInt64(keyUpdateTimestampStart); ok && micros >= 0 {
		a.timestampStart = time.UnixMicro(micros).UTC()
	} else {
		a.timestampStart = Epoch
	}
	if micros := getNonNegInt(store, keyUpdateDurationUptime, 0); micros > 0 {
		a.durationUptime = time.Duration(micros) * time.Microsecond
	}
	for _, src := range downloadSources {
		a.currentBytes[src] = getNonNegInt(store, keyCurrentBytesDownloaded(src), 0)
		a.totalBytes[src] = getNonNegInt(store, keyTotalBytesDownloaded(src), 0)
	}
	return a
}

// StartTime returns update_timestamp_start.
func (a *DurationAndBytesAccountant) StartTime() time.Time { return a.timestampStart }

// setStartTime anchors update_timestamp_start to now, called on a new
// response and on restart.
func (a *DurationAndBytesAccountant) setStartTime(now time.Time) {
	a.timestampStart = now
	setInt(a.store, keyUpdateTimestampStart, now.UnixMicro())
}

// setEndTime marks the attempt terminal, freezing GetUpdateDuration.
// UpdateSucceeded calls it; a fatal UpdateFailed does not, so after a
// fatal failure the duration keeps running against the wall clock.
// In-memory only, per spec §3.
func (a *DurationAndBytesAccountant) setEndTime(now time.Time) {
	a.timestampEnd = now
}

func (a *DurationAndBytesAccountant) clearEndTime() {
	a.timestampEnd = Epoch
}

// GetUpdateDuration returns end-start if the attempt is terminal, else
// now-start. A negative result (the wall clock behind the start time) is
// clamped to zero whether or not it exceeds config.ClockDriftSlack.
func (a *DurationAndBytesAccountant) GetUpdateDuration() time.Duration {
	end := a.timestampEnd
	if end == Epoch {
		end = a.clock.WallNow()
	}
	d := end.Sub(a.timestampStart)
	if d < -a.config.ClockDriftSlack {
		return 0
	}
	if d < 0 {
		return 0
	}
	return d
}

// GetUpdateDurationUptime returns the accumulated uptime plus the delta
// since the last re-anchor.
func (a *DurationAndBytesAccountant) GetUpdateDurationUptime() time.Duration {
	return a.durationUptime + a.clock.MonotonicNow().Sub(a.durationUptimeTimestamp)
}

// CalculateUpdateDurationUptime folds the delta since the last anchor into
// the persisted accumulator and re-anchors. Must be called on every
// terminal event and may be called periodically so the persisted
// accumulator converges across crashes.
func (a *DurationAndBytesAccountant) CalculateUpdateDurationUptime() {
	now := a.clock.MonotonicNow()
	a.durationUptime += now.Sub(a.durationUptimeTimestamp)
	a.durationUptimeTimestamp = now
	setInt(a.store, keyUpdateDurationUptime, a.durationUptime.Microseconds())
}

// reanchorUptime re-anchors the uptime baseline without folding elapsed
// time in, used by UpdateResumed / UpdateRestarted / a fresh attempt.
func (a *DurationAndBytesAccountant) reanchorUptime() {
	a.durationUptimeTimestamp = a.clock.MonotonicNow()
}

func (a *DurationAndBytesAccountant) resetUptime() {
	a.durationUptime = 0
	setInt(a.store, keyUpdateDurationUptime, 0)
	a.reanchorUptime()
}

// CurrentBytesDownloaded returns the current-attempt byte counter for src.
// An out-of-range/sentinel source resolves to 0.
func (a *DurationAndBytesAccountant) CurrentBytesDownloaded(src DownloadSource) int64 {
	return a.currentBytes[src]
}

// TotalBytesDownloaded returns the cumulative-since-last-success byte
// counter for src.
func (a *DurationAndBytesAccountant) TotalBytesDownloaded(src DownloadSource) int64 {
	return a.totalBytes[src]
}

// UpdateBytesDownloaded adds count bytes to both the current and total
// counters for src. Writes to the sentinel source are silently swallowed
// (never read externally) and persistence is skipped for it.
func (a *DurationAndBytesAccountant) UpdateBytesDownloaded(src DownloadSource, count int64) {
	a.currentBytes[src] += count
	a.totalBytes[src] += count
	if src == SourceNone {
		return
	}
	setInt(a.store, keyCurrentBytesDownloaded(src), a.currentBytes[src])
	setInt(a.store, keyTotalBytesDownloaded(src), a.totalBytes[src])
}

// resetCurrentBytes zeroes the current-attempt counters, called on
// SetResponse(new) and UpdateRestarted.
func (a *DurationAndBytesAccountant) resetCurrentBytes() {
	for _, src := range downloadSources {
		a.currentBytes[src] = 0
		setInt(a.store, keyCurrentBytesDownloaded(src), 0)
	}
}

// resetTotalBytes zeroes the cumulative counters, called only on
// UpdateSucceeded.
func (a *DurationAndBytesAccountant) resetTotalBytes() {
	for _, src := range downloadSources {
		a.totalBytes[src] = 0
		setInt(a.store, keyTotalBytesDownloaded(src), 0)
	}
}
