package updateengine

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// sigSeparator cannot appear in any field folded into the signature
// (URLs are percent-encoded by the time they reach us; the rest are
// decimal numbers or hex digests), so a plain concatenation with this
// separator between fields cannot collide across different responses.
const sigSeparator = "\x1f"

// CalculateResponseSignature computes the canonical digest of the subset
// of a response that affects client behavior: manifest version, payload
// size, payload hash, metadata size and signature, and, for every
// payload URL in the response (before policy filtering) in order, the URL
// string plus its per-URL attributes.
//
// Two responses that differ only in fields not listed here (e.g. Version)
// produce the same signature and are
// treated as the same offer.
func CalculateResponseSignature(r Response) string {
	var b strings.Builder
	b.WriteString(r.ManifestVersion)
	b.WriteString(sigSeparator)
	b.WriteString(strconv.FormatInt(r.PayloadSize, 10))
	b.WriteString(sigSeparator)
	b.WriteString(r.PayloadHashHex)
	b.WriteString(sigSeparator)
	b.WriteString(strconv.FormatInt(r.MetadataSize, 10))
	b.WriteString(sigSeparator)
	b.WriteString(r.MetadataSignature)
	for _, u := range r.URLs {
		b.WriteString(sigSeparator)
		b.WriteString(u.URL)
		b.WriteString(sigSeparator)
		b.WriteString(strconv.Itoa(u.MaxFailures))
		b.WriteString(sigSeparator)
		b.WriteString(u.Source.String())
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ResponseTracker computes and stores the response signature, detects
// when a new response supersedes the current one, and derives the
// ordered candidate-URL list after device-policy filtering.
type ResponseTracker struct {
	store  PersistedStore
	system SystemState

	response         *Response
	signature        string
	candidateURLs    []PayloadURL
	numResponsesSeen int64
}

func newResponseTracker(store PersistedStore, system SystemState) *ResponseTracker {
	t := &ResponseTracker{store: store, system: system}
	t.signature, _ = store.GetString(keyResponseSignature)
	t.numResponsesSeen = getNonNegInt(store, keyNumResponsesSeen, 0)
	return t
}

// Signature returns the currently persisted response signature.
func (t *ResponseTracker) Signature() string { return t.signature }

// NumResponsesSeen returns the lifetime (since last success) count of
// distinct responses accepted via SetResponse.
func (t *ResponseTracker) NumResponsesSeen() int64 { return t.numResponsesSeen }

// CandidateURLs returns the policy-filtered URL list for the current
// response, in the response's own order. Deduplication is not performed.
func (t *ResponseTracker) CandidateURLs() []PayloadURL { return t.candidateURLs }

// Response returns the in-memory response value, or nil if none has been
// set this process lifetime (response_ is never persisted).
func (t *ResponseTracker) Response() *Response { return t.response }

func (t *ResponseTracker) recomputeCandidateURLs() {
	if t.response == nil {
		t.candidateURLs = nil
		return
	}
	filtered := make([]PayloadURL, 0, len(t.response.URLs))
	for _, u := range t.response.URLs {
		if t.system.HardwarePolicyAllows(u.URL) {
			filtered = append(filtered, u)
		}
	}
	t.candidateURLs = filtered
}

// isNewResponse reports whether r supersedes the currently tracked
// response (different signature from what's persisted).
func (t *ResponseTracker) isNewResponse(r Response) (sig string, isNew bool) {
	sig = CalculateResponseSignature(r)
	return sig, sig != t.signature
}

func (t *ResponseTracker) acceptNewSignature(sig string) {
	t.signature = sig
	t.store.SetString(keyResponseSignature, sig)
	t.numResponsesSeen++
	setInt(t.store, keyNumResponsesSeen, t.numResponsesSeen)
}

// resetOnSuccess clears the response counter that only resets when an
// update actually completes.
func (t *ResponseTracker) resetOnSuccess() {
	t.numResponsesSeen = 0
	setInt(t.store, keyNumResponsesSeen, 0)
}
