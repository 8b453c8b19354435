package updateengine

import (
	"time"

	"github.com/marmos91/dittofs/internal/logger"
)

// PayloadState is the composition root: it owns the five internal
// components and exposes the event methods an outer driver calls to
// advance the state machine. All event methods are expected to be called
// from a single goroutine — see the package doc comment.
type PayloadState struct {
	store     PersistedStore
	powerwash PowerwashSafePersistedStore
	system    SystemState
	clock     Clock
	metrics   MetricsSink
	config    Config

	response   *ResponseTracker
	sequencer  *AttemptSequencer
	backoff    *BackoffPolicy
	accountant *DurationAndBytesAccountant
	reboot     *RebootAndRollbackTracker

	firstProgressOfAttempt bool
}

// New constructs a PayloadState, loading every field from persistence,
// clamping backoff_expiry_time into range, and running the system-updated
// marker check. url_index is clamped against the candidate URL list, which
// stays empty until SetResponse supplies a response. Reboot counting and
// failed-boot reporting do not run here; UpdateEngineStarted runs them.
func New(store PersistedStore, powerwash PowerwashSafePersistedStore, system SystemState, clock Clock, metrics MetricsSink, config Config) *PayloadState {
	if metrics == nil {
		metrics = noopMetricsSink{}
	}

	s := &PayloadState{
		store:                  store,
		powerwash:              powerwash,
		system:                 system,
		clock:                  clock,
		metrics:                metrics,
		config:                 config,
		response:               newResponseTracker(store, system),
		sequencer:              newAttemptSequencer(store, config),
		backoff:                newBackoffPolicy(store, clock, config),
		accountant:             newDurationAndBytesAccountant(store, clock, config),
		reboot:                 newRebootAndRollbackTracker(store, powerwash, system, clock, metrics),
		firstProgressOfAttempt: true,
	}
	s.sequencer.clampURLIndex(s.response.CandidateURLs())
	s.reboot.CheckForMarkerAtStartup()
	return s
}

// --- event methods -------------------------------------------------------

// SetResponse records a new or repeated server response. If the signature
// matches what's persisted, this is a resume of the same offer: candidate
// URLs are recomputed and url_index is clamped, but no counter changes.
// Otherwise the new offer supersedes the old one: response-scoped state
// resets and num_responses_seen increments.
func (s *PayloadState) SetResponse(r Response) {
	s.response.response = &r
	sig, isNew := s.response.isNewResponse(r)

	if !isNew {
		s.response.recomputeCandidateURLs()
		s.sequencer.clampURLIndex(s.response.CandidateURLs())
		return
	}

	s.resetPersistedState()
	s.response.acceptNewSignature(sig)
	s.response.recomputeCandidateURLs()
	s.sequencer.clampURLIndex(s.response.CandidateURLs())

	now := s.clock.WallNow()
	s.accountant.setStartTime(now)
	s.accountant.resetUptime()
	s.firstProgressOfAttempt = true

	logger.Info("update engine: new response accepted",
		"response_signature", sig, "num_responses_seen", s.response.NumResponsesSeen(),
		"candidate_urls", len(s.response.CandidateURLs()))
}

// resetPersistedState zeroes every field scoped to the current response:
// attempt counters, url state, backoff expiry, and current-attempt bytes.
// It does not touch totals, num_responses_seen, num_reboots,
// update_timestamp_start, update_duration_uptime, or rollback_version.
func (s *PayloadState) resetPersistedState() {
	s.sequencer.resetResponseScoped()
	s.backoff.clearExpiry()
	s.accountant.resetCurrentBytes()
}

// DownloadProgress reports count additional bytes fetched from the
// current source. The uptime clock starts on the first progress event of
// a new attempt.
func (s *PayloadState) DownloadProgress(count int64) {
	if s.firstProgressOfAttempt {
		s.accountant.reanchorUptime()
		s.firstProgressOfAttempt = false
	}
	s.accountant.UpdateBytesDownloaded(s.sequencer.CurrentSource(), count)
}

// DownloadComplete marks the current URL's payload as fully fetched:
// advances the attempt counters, emits bytes-downloaded metrics, and
// resets the per-URL failure count.
func (s *PayloadState) DownloadComplete() {
	isFull := s.response.response != nil && s.response.response.IsFullPayload
	s.sequencer.incrementPayloadAttemptNumber()
	if isFull {
		s.sequencer.incrementFullPayloadAttemptNumber()
	}
	s.sequencer.resetOnDownloadComplete()

	src := s.sequencer.CurrentSource()
	s.metrics.SendCount(metricAttemptNumber, s.sequencer.PayloadAttemptNumber(), 0, 100, 20)
	s.metrics.SendCount(metricAttemptPayloadBytes, s.accountant.CurrentBytesDownloaded(src), 0, 1<<40, 50)
	if s.response.response != nil {
		s.metrics.SendCount(metricAttemptPayloadSize, s.response.response.PayloadSize>>20, 0, 1<<20, 50)
	}

	logger.Debug("update engine: download complete",
		"source", src.String(), "payload_attempt_number", s.sequencer.PayloadAttemptNumber())
}

// UpdateFailed classifies err and applies the matching action: retry the
// same URL, advance to the next URL, or terminate the attempt as fatal.
func (s *PayloadState) UpdateFailed(code UpdateErrorCode) {
	action := ClassifyError(code)
	switch action {
	case actionRetrySameURL:
		if s.sequencer.incrementFailureCount() {
			s.advanceURL()
		}
	case actionAdvanceURL:
		s.advanceURL()
	case actionFatal:
		s.accountant.resetCurrentBytes()
		s.emitFailureMetrics()
		logger.Error("update engine: fatal local failure, clearing in-flight bytes", "error_code", int(code))
	}
}

// emitFailureMetrics reports the duration metrics and a failure enum for
// a fatal, non-retryable local error. Unlike UpdateSucceeded this does not
// touch url-switch, attempt, or abandoned-count metrics: those describe a
// completed attempt, and a fatal local error does not advance the attempt.
func (s *PayloadState) emitFailureMetrics() {
	s.metrics.SendTime(metricAttemptDuration, s.accountant.GetUpdateDuration(), 0, 10*24*time.Hour, 50)
	s.metrics.SendEnum(metricAttemptResult, int(ErrFatalLocal), int(ErrFatalLocal))
}

func (s *PayloadState) advanceURL() {
	isFull := s.response.response != nil && s.response.response.IsFullPayload
	wrapped := s.sequencer.incrementURLIndex(s.response.CandidateURLs(), isFull)
	if wrapped {
		s.backoff.UpdateBackoffExpiryTime(s.sequencer.FullPayloadAttemptNumber())
	}
}

// UpdateSucceeded resets response-scoped counters plus total bytes,
// num_responses_seen, and num_reboots, marks the attempt terminal, and
// emits the full suite of success metrics and the system-updated marker.
func (s *PayloadState) UpdateSucceeded() {
	now := s.clock.WallNow()
	s.accountant.setEndTime(now)
	s.accountant.CalculateUpdateDurationUptime()

	s.emitSuccessMetrics()

	s.accountant.resetTotalBytes()
	s.response.resetOnSuccess()
	s.reboot.resetNumReboots()
	s.reboot.ResetRollbackVersion()
	s.resetPersistedState()

	s.reboot.CreateSystemUpdatedMarkerFile(now)

	logger.Info("update engine: update succeeded", "duration", s.accountant.GetUpdateDuration().String())
}

// emitSuccessMetrics reports duration, bytes, URL-switch count, attempt
// count, payload type, and abandoned-update count, per spec.md §4.3's
// UpdateSucceeded metrics list. Must run before the counters it reads are
// reset.
func (s *PayloadState) emitSuccessMetrics() {
	s.metrics.SendTime(metricAttemptDuration, s.accountant.GetUpdateDuration(), 0, 10*24*time.Hour, 50)
	s.metrics.SendTime(metricAttemptDurationUp, s.accountant.GetUpdateDurationUptime(), 0, 10*24*time.Hour, 50)
	s.metrics.SendCount(metricSucceedURLSwitches, s.sequencer.URLSwitchCount(), 0, 100, 20)
	s.metrics.SendCount(metricSucceedAttempts, s.sequencer.PayloadAttemptNumber(), 0, 100, 20)
	// numResponsesSeen includes the response that just succeeded; every
	// prior distinct response offered and not completed counts as abandoned.
	s.metrics.SendCount(metricSucceedAbandoned, s.response.NumResponsesSeen()-1, 0, 100, 20)
	payloadType := 0
	if s.response.response != nil && s.response.response.IsFullPayload {
		payloadType = 1
	}
	s.metrics.SendEnum(metricAttemptPayloadType, payloadType, 1)
}

// UpdateResumed re-anchors the uptime timestamp after the process resumes
// an in-progress download; no counters change.
func (s *PayloadState) UpdateResumed() {
	s.accountant.reanchorUptime()
	s.firstProgressOfAttempt = false
}

// UpdateRestarted treats the current response as a fresh attempt: current-
// attempt bytes zero, update_timestamp_start resets to now, and the
// uptime baseline re-anchors.
func (s *PayloadState) UpdateRestarted() {
	now := s.clock.WallNow()
	s.accountant.resetCurrentBytes()
	s.accountant.setStartTime(now)
	s.accountant.reanchorUptime()
	s.accountant.clearEndTime()
	s.firstProgressOfAttempt = true
}

// Rollback blacklists the currently running version in the powerwash-safe
// store and resets response-scoped counters, since any in-flight offer
// becomes moot.
func (s *PayloadState) Rollback() {
	s.reboot.Rollback()
	s.resetPersistedState()
	logger.Warn("update engine: rollback recorded", "rollback_version", s.reboot.RollbackVersion())
}

// ExpectRebootInNewVersion persists the version the caller expects to be
// running after the next reboot, plus a fresh reboot-attempts counter.
func (s *PayloadState) ExpectRebootInNewVersion(targetVersionUID string) {
	s.reboot.ExpectRebootInNewVersion(targetVersionUID)
}

// UpdateEngineStarted should be called once at process startup, after New,
// when no reboot into a new version is currently pending. It detects a
// boot-id change and reports a failed boot if the device never reached
// the expected target version.
func (s *PayloadState) UpdateEngineStarted() {
	s.reboot.UpdateEngineStarted()
}

// ResetUpdateStatus is the cooperative "forget the in-flight attempt"
// operation: it zeroes response-scoped counters without touching
// signatures or totals. Calling it twice is equivalent to calling it once.
func (s *PayloadState) ResetUpdateStatus() {
	s.resetPersistedState()
}

// --- read-only accessors ---------------------------------------------------

func (s *PayloadState) ResponseSignature() string { return s.response.Signature() }
func (s *PayloadState) PayloadAttemptNumber() int64 { return s.sequencer.PayloadAttemptNumber() }
func (s *PayloadState) FullPayloadAttemptNumber() int64 {
	return s.sequencer.FullPayloadAttemptNumber()
}
func (s *PayloadState) CurrentURL() string {
	return s.sequencer.CurrentURL(s.response.CandidateURLs())
}
func (s *PayloadState) URLFailureCount() int64        { return s.sequencer.URLFailureCount() }
func (s *PayloadState) URLSwitchCount() int64         { return s.sequencer.URLSwitchCount() }
func (s *PayloadState) NumResponsesSeen() int64       { return s.response.NumResponsesSeen() }
func (s *PayloadState) BackoffExpiryTime() time.Time  { return s.backoff.ExpiryTime() }
func (s *PayloadState) UpdateDuration() time.Duration { return s.accountant.GetUpdateDuration() }
func (s *PayloadState) NumReboots() int64             { return s.reboot.NumReboots() }
func (s *PayloadState) RollbackVersion() string       { return s.reboot.RollbackVersion() }

func (s *PayloadState) ShouldBackoffDownload() bool {
	return s.backoff.ShouldBackoffDownload(s.response.response)
}

func (s *PayloadState) UpdateDurationUptime() time.Duration {
	return s.accountant.GetUpdateDurationUptime()
}

// CalculateUpdateDurationUptime folds the uptime accumulated since the
// last anchor into the persisted accumulator. Terminal events call it
// internally; long-running hosts may also call it periodically so the
// persisted value converges even across crashes.
func (s *PayloadState) CalculateUpdateDurationUptime() {
	s.accountant.CalculateUpdateDurationUptime()
}

func (s *PayloadState) CurrentBytesDownloaded(src DownloadSource) int64 {
	return s.accountant.CurrentBytesDownloaded(src)
}

func (s *PayloadState) TotalBytesDownloaded(src DownloadSource) int64 {
	return s.accountant.TotalBytesDownloaded(src)
}

// Snapshot bundles every accessor above into one value, for debug tooling
// (the `dittofs-update status` CLI command) and for tests asserting
// whole-state invariants after an event sequence.
type Snapshot struct {
	ResponseSignature        string
	PayloadAttemptNumber     int64
	FullPayloadAttemptNumber int64
	CurrentURL               string
	URLFailureCount          int64
	URLSwitchCount           int64
	NumResponsesSeen         int64
	BackoffExpiryTime        time.Time
	ShouldBackoffDownload    bool
	UpdateDuration           time.Duration
	UpdateDurationUptime     time.Duration
	CurrentBytesDownloaded   map[DownloadSource]int64
	TotalBytesDownloaded     map[DownloadSource]int64
	NumReboots               int64
	RollbackVersion          string
}

func (s *PayloadState) Snapshot() Snapshot {
	cur := make(map[DownloadSource]int64, len(downloadSources))
	tot := make(map[DownloadSource]int64, len(downloadSources))
	for _, src := range downloadSources {
		cur[src] = s.CurrentBytesDownloaded(src)
		tot[src] = s.TotalBytesDownloaded(src)
	}
	return Snapshot{
		ResponseSignature:        s.ResponseSignature(),
		PayloadAttemptNumber:     s.PayloadAttemptNumber(),
		FullPayloadAttemptNumber: s.FullPayloadAttemptNumber(),
		CurrentURL:               s.CurrentURL(),
		URLFailureCount:          s.URLFailureCount(),
		URLSwitchCount:           s.URLSwitchCount(),
		NumResponsesSeen:         s.NumResponsesSeen(),
		BackoffExpiryTime:        s.BackoffExpiryTime(),
		ShouldBackoffDownload:    s.ShouldBackoffDownload(),
		UpdateDuration:           s.UpdateDuration(),
		UpdateDurationUptime:     s.UpdateDurationUptime(),
		CurrentBytesDownloaded:   cur,
		TotalBytesDownloaded:     tot,
		NumReboots:               s.NumReboots(),
		RollbackVersion:          s.RollbackVersion(),
	}
}
