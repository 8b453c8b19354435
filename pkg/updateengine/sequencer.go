package updateengine

// AttemptSequencer owns payload_attempt_number, full_payload_attempt_number,
// url_index, url_failure_count, url_switch_count, current_download_source,
// and the rules that advance them on failure, URL exhaustion, success, and
// new response.
type AttemptSequencer struct {
	store  PersistedStore
	config Config

	payloadAttemptNumber     int64
	fullPayloadAttemptNumber int64
	urlIndex                 int64
	urlFailureCount          int64
	urlSwitchCount           int64
	currentSource            DownloadSource
}

func newAttemptSequencer(store PersistedStore, config Config) *AttemptSequencer {
	s := &AttemptSequencer{store: store, config: config}
	s.payloadAttemptNumber = getNonNegInt(store, keyPayloadAttemptNumber, 0)
	s.fullPayloadAttemptNumber = getNonNegInt(store, keyFullPayloadAttemptNum, 0)
	s.urlIndex = getNonNegInt(store, keyCurrentURLIndex, 0)
	s.urlFailureCount = getNonNegInt(store, keyCurrentURLFailureCount, 0)
	s.urlSwitchCount = getNonNegInt(store, keyURLSwitchCount, 0)
	return s
}

// clampURLIndex enforces invariant 1: url_index < max(1, len(candidateURLs))
// whenever candidateURLs is non-empty.
func (s *AttemptSequencer) clampURLIndex(candidateURLs []PayloadURL) {
	if len(candidateURLs) == 0 {
		return
	}
	if s.urlIndex < 0 || s.urlIndex >= int64(len(candidateURLs)) {
		s.urlIndex = 0
		setInt(s.store, keyCurrentURLIndex, 0)
	}
	s.refreshCurrentSource(candidateURLs)
}

func (s *AttemptSequencer) refreshCurrentSource(candidateURLs []PayloadURL) {
	if int(s.urlIndex) < len(candidateURLs) {
		s.currentSource = candidateURLs[s.urlIndex].Source
	} else {
		s.currentSource = SourceNone
	}
}

// CurrentURL returns the URL string at url_index, or "" if there are no
// candidate URLs.
func (s *AttemptSequencer) CurrentURL(candidateURLs []PayloadURL) string {
	if len(candidateURLs) == 0 || int(s.urlIndex) >= len(candidateURLs) {
		return ""
	}
	return candidateURLs[s.urlIndex].URL
}

// CurrentSource returns the cached download source for the current URL.
func (s *AttemptSequencer) CurrentSource() DownloadSource { return s.currentSource }

func (s *AttemptSequencer) PayloadAttemptNumber() int64     { return s.payloadAttemptNumber }
func (s *AttemptSequencer) FullPayloadAttemptNumber() int64 { return s.fullPayloadAttemptNumber }
func (s *AttemptSequencer) URLIndex() int64                 { return s.urlIndex }
func (s *AttemptSequencer) URLFailureCount() int64          { return s.urlFailureCount }
func (s *AttemptSequencer) URLSwitchCount() int64           { return s.urlSwitchCount }

// incrementPayloadAttemptNumber advances the composite attempt counter.
func (s *AttemptSequencer) incrementPayloadAttemptNumber() {
	s.payloadAttemptNumber++
	setInt(s.store, keyPayloadAttemptNumber, s.payloadAttemptNumber)
}

// incrementFullPayloadAttemptNumber advances the full-payload-only
// attempt counter.
func (s *AttemptSequencer) incrementFullPayloadAttemptNumber() {
	s.fullPayloadAttemptNumber++
	setInt(s.store, keyFullPayloadAttemptNum, s.fullPayloadAttemptNumber)
}

// incrementURLIndex advances url_index by one, wrapping to 0 and bumping
// the attempt counters when it reaches the end of the candidate list.
// It reports the wrap so the caller can refresh backoff.
func (s *AttemptSequencer) incrementURLIndex(candidateURLs []PayloadURL, isFullPayload bool) (wrapped bool) {
	s.urlIndex++
	if len(candidateURLs) == 0 || s.urlIndex >= int64(len(candidateURLs)) {
		s.urlIndex = 0
		wrapped = true
		s.incrementPayloadAttemptNumber()
		if isFullPayload {
			s.incrementFullPayloadAttemptNumber()
		}
	}
	setInt(s.store, keyCurrentURLIndex, s.urlIndex)

	s.urlSwitchCount++
	setInt(s.store, keyURLSwitchCount, s.urlSwitchCount)

	s.urlFailureCount = 0
	setInt(s.store, keyCurrentURLFailureCount, 0)

	s.refreshCurrentSource(candidateURLs)
	return wrapped
}

// incrementFailureCount bumps url_failure_count and reports whether it
// just crossed the per-URL max-failure threshold (caller advances the URL).
func (s *AttemptSequencer) incrementFailureCount() (shouldAdvance bool) {
	s.urlFailureCount++
	setInt(s.store, keyCurrentURLFailureCount, s.urlFailureCount)
	return s.urlFailureCount >= int64(s.config.MaxFailuresPerURL)
}

// resetOnDownloadComplete clears the per-URL failure count after a
// successful download of the current payload (not the whole attempt).
func (s *AttemptSequencer) resetOnDownloadComplete() {
	s.urlFailureCount = 0
	setInt(s.store, keyCurrentURLFailureCount, 0)
}

// resetResponseScoped zeroes every counter scoped to the current
// response: ResetPersistedState from spec §4.2 step 4a, and the set
// Rollback and ResetUpdateStatus reuse.
func (s *AttemptSequencer) resetResponseScoped() {
	s.payloadAttemptNumber = 0
	s.fullPayloadAttemptNumber = 0
	s.urlIndex = 0
	s.urlFailureCount = 0
	s.urlSwitchCount = 0
	s.currentSource = SourceNone
	setInt(s.store, keyPayloadAttemptNumber, 0)
	setInt(s.store, keyFullPayloadAttemptNum, 0)
	setInt(s.store, keyCurrentURLIndex, 0)
	setInt(s.store, keyCurrentURLFailureCount, 0)
	setInt(s.store, keyURLSwitchCount, 0)
}
