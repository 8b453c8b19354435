package updateengine

// Driver is a thin, optional convenience wrapper that sequences calls to
// a PayloadState against a concrete PersistedStore. It is not part of the
// core — spec.md §1 names the sequencing caller as "an outer driver (not
// specified here)" — and carries no state beyond the PayloadState itself.
// It exists for the CLI command and integration tests, which otherwise
// have to re-derive the New/UpdateEngineStarted startup sequence by hand.
type Driver struct {
	*PayloadState
}

// NewDriver constructs a PayloadState and immediately runs the startup
// sequence an update client runs once per process launch.
func NewDriver(store PersistedStore, powerwash PowerwashSafePersistedStore, system SystemState, clock Clock, metrics MetricsSink, config Config) *Driver {
	state := New(store, powerwash, system, clock, metrics, config)
	state.UpdateEngineStarted()
	return &Driver{PayloadState: state}
}
