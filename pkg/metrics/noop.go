package metrics

// Noop discards all observations.
type Noop struct{}

func (Noop) RecordCaptures(string, int)            {}
func (Noop) RecordFetchError(string)               {}
func (Noop) RecordStoreError(string)               {}
func (Noop) RecordCycle(string, float64, int, int) {}
func (Noop) RecordSchedulerState(string, string)   {}
func (Noop) RecordMerge(string, int, int, float64) {}
func (Noop) RecordError(string)                    {}
func (Noop) RecordLatency(string, float64)         {}
