// Package updateengine implements the payload state machine that drives a
// device from "an update is offered" to "an update is applied and the
// device has rebooted into it".
//
// The package owns no network I/O, no byte transfer, and no signature
// verification: it is a pure transform over persisted counters driven by
// events from an external download/apply pipeline. See PayloadState for
// the composition root and the event methods it exposes.
//
// PayloadState holds no locks: its event methods are not safe for
// concurrent use. A failed PersistedStore write is not fatal to the core;
// the in-memory value stays authoritative for the rest of the process
// lifetime.
package updateengine

import "time"

// DownloadSource identifies where payload bytes are currently being
// fetched from. It is a closed enum with a sentinel "none" value used as
// an extra slot in the byte-counter maps, so an out-of-range or not-yet-
// determined source resolves to a counter that is writable but never
// read externally.
type DownloadSource int

const (
	// SourceNone is the sentinel "no source selected" value.
	SourceNone DownloadSource = iota
	SourceHTTPSServer
	SourceHTTPServer
	SourceHTTPPeer
)

// String renders the source the way it is persisted (and logged).
func (s DownloadSource) String() string {
	switch s {
	case SourceHTTPSServer:
		return "HttpsServer"
	case SourceHTTPServer:
		return "HttpServer"
	case SourceHTTPPeer:
		return "HttpPeer"
	default:
		return "None"
	}
}

// downloadSources lists every non-sentinel source, in the order the
// per-source byte-counter keys are enumerated (persistence, snapshots).
var downloadSources = []DownloadSource{SourceHTTPSServer, SourceHTTPServer, SourceHTTPPeer}

// PayloadURL is one candidate URL from a server response, already carrying
// the per-URL attributes the response signature folds in.
type PayloadURL struct {
	URL         string
	Source      DownloadSource
	MaxFailures int
}

// Response is the structured value the core receives from the (external)
// response parser. The core never parses wire bytes itself.
type Response struct {
	ManifestVersion   string
	PayloadSize       int64
	PayloadHashHex    string
	MetadataSize      int64
	MetadataSignature string
	URLs              []PayloadURL
	Version           string
	IsFullPayload     bool
	Interactive       bool
	DeadlineHint      string
}

// Clock is the pair of clocks the core consumes. Wall-clock is used for
// timestamps that must survive a reboot and make sense to a human
// (backoff expiry, attempt start/end); monotonic is used for uptime
// accounting that must be immune to wall-clock adjustments.
type Clock interface {
	WallNow() time.Time
	MonotonicNow() time.Time
}

// SystemState is the narrow capability interface the core uses to learn
// facts about the device it cannot derive itself.
type SystemState interface {
	BootID() string
	RunningOSVersion() string
	// HardwarePolicyAllows reports whether device policy permits
	// downloading from the given URL.
	HardwarePolicyAllows(url string) bool
	IsOfficialBuild() bool
}

// Epoch is the zero wall-clock instant used as "absent"/"not yet set" for
// every persisted timestamp field.
var Epoch = time.Unix(0, 0).UTC()
