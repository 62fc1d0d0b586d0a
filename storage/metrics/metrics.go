// Package metrics wraps github.com/rcrowley/go-metrics with one Meter
// per compaction/IO counter, so the LevelDB backend can report through
// a small surface without depending on go-metrics' global registry
// directly. The Badger backend does not report meters.
package metrics

import rcmetrics "github.com/rcrowley/go-metrics"

// DBMeters groups the per-backend counters storage/kv's LevelDB
// backend reports into.
type DBMeters struct {
	CompactionTime rcmetrics.Meter
	CompactionRead rcmetrics.Meter
	CompactionWrite rcmetrics.Meter
	DiskRead rcmetrics.Meter
	DiskWrite rcmetrics.Meter
}

func NewDBMeters(prefix string) *DBMeters {
	return &DBMeters{
		CompactionTime: rcmetrics.NewRegisteredMeter(prefix+"compaction/time", nil),
		CompactionRead: rcmetrics.NewRegisteredMeter(prefix+"compaction/read", nil),
		CompactionWrite: rcmetrics.NewRegisteredMeter(prefix+"compaction/write", nil),
		DiskRead: rcmetrics.NewRegisteredMeter(prefix+"disk/read", nil),
		DiskWrite: rcmetrics.NewRegisteredMeter(prefix+"disk/write", nil),
	}
}
