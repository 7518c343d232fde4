package dedup

const (
	PhaseScanning = "scanning"
	PhaseCleaning = "cleaning"
)

// Event is a progress notification. Current and Total are zero when the
// phase has no meaningful count.
type Event struct {
	Phase   string
	Message string
	Current int
	Total   int
}

// ProgressFunc receives progress events. It may be called from the goroutine
// running the scan or cleanup only, never concurrently.
type ProgressFunc func(Event)

func (f ProgressFunc) emit(ev Event) {
	if f != nil {
		f(ev)
	}
}
