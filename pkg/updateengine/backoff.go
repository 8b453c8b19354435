package updateengine

import (
	"math/rand"
	"time"
)

// BackoffPolicy computes backoff_expiry_time from the full payload attempt
// number with exponential growth, jitter, and a cap, and answers the "may
// I download now" query.
type BackoffPolicy struct {
	store  PersistedStore
	clock  Clock
	config Config
	rng    *rand.Rand

	expiry time.Time
}

func newBackoffPolicy(store PersistedStore, clock Clock, config Config) *BackoffPolicy {
	seed := clock.WallNow().UnixNano()
	b := &BackoffPolicy{store: store, clock: clock, config: config, rng: rand.New(rand.NewSource(seed))}
	b.expiry = b.loadClamped()
	return b
}

// loadClamped reads backoff-expiry-time and clamps a future instant to at
// most now + cap + jitter, per the open question in the design notes:
// clock jumps can leave a stale absolute instant arbitrarily far in the
// future. An instant already in the past is returned unchanged.
func (b *BackoffPolicy) loadClamped() time.Time {
	micros, ok := b.store.GetInt64(keyBackoffExpiryTime)
	if !ok || micros < 0 {
		return Epoch
	}
	t := time.UnixMicro(micros).UTC()
	now := b.clock.WallNow()
	maxDuration := b.maxPossibleDuration()
	if t.Before(now) && t != Epoch {
		return t // a past expiry is a legitimate "no longer backed off" state
	}
	if t.After(now.Add(maxDuration)) {
		return now.Add(maxDuration)
	}
	return t
}

func (b *BackoffPolicy) maxPossibleDuration() time.Duration {
	capDuration := time.Duration(b.config.BackoffCapDays) * 24 * time.Hour
	return capDuration + time.Duration(float64(capDuration)*b.config.BackoffJitterFrac)
}

// ExpiryTime returns the persisted backoff expiry instant.
func (b *BackoffPolicy) ExpiryTime() time.Time { return b.expiry }

// UpdateBackoffExpiryTime sets backoff_expiry_time from
// full_payload_attempt_number: base 2^(n-1) days for n>=1, capped at
// config.BackoffCapDays, ±jitterFrac uniform fuzz. n==0 clears the expiry.
func (b *BackoffPolicy) UpdateBackoffExpiryTime(fullPayloadAttemptNumber int64) {
	if fullPayloadAttemptNumber <= 0 {
		b.expiry = Epoch
		setInt(b.store, keyBackoffExpiryTime, Epoch.UnixMicro())
		return
	}

	capDays := float64(b.config.BackoffCapDays)
	days := exp2(fullPayloadAttemptNumber - 1)
	if days > capDays {
		days = capDays
	}
	base := time.Duration(days * 24 * float64(time.Hour))

	fuzzFrac := 1 + (b.rng.Float64()*2-1)*b.config.BackoffJitterFrac
	fuzzed := time.Duration(float64(base) * fuzzFrac)
	if fuzzed < 0 {
		fuzzed = 0
	}

	b.expiry = b.clock.WallNow().Add(fuzzed)
	setInt(b.store, keyBackoffExpiryTime, b.expiry.UnixMicro())
}

// exp2 returns 2^n for n>=0 as a float64, avoiding an import of math for
// a single call site.
func exp2(n int64) float64 {
	v := 1.0
	for i := int64(0); i < n; i++ {
		v *= 2
	}
	return v
}

// ShouldBackoffDownload reports whether download is currently forbidden.
// Backoff is disabled entirely for interactive/forced updates, and
// disabled for full payloads whose response carries a deadline hint.
func (b *BackoffPolicy) ShouldBackoffDownload(r *Response) bool {
	if r != nil {
		if r.Interactive {
			return false
		}
		if r.IsFullPayload && r.DeadlineHint != "" {
			return false
		}
	}
	return b.clock.WallNow().Before(b.expiry)
}

// clearExpiry resets backoff_expiry_time to the epoch, used by response
// resets and rollback.
func (b *BackoffPolicy) clearExpiry() {
	b.expiry = Epoch
	setInt(b.store, keyBackoffExpiryTime, Epoch.UnixMicro())
}
