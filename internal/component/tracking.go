package component

// SourceFraction is one source's share of a tracked pool's contents.
type SourceFraction struct {
	Source   string
	Fraction float64
}

// TrackingRecord is one tracked pool's provenance breakdown at one
// reporting date.
type TrackingRecord struct {
	Date    float64
	Pool    string
	Value   float64
	Units   string
	Sources []SourceFraction
}

// Tracker is implemented by components that maintain tracked pools and
// accumulate provenance records after the tracking date.
type Tracker interface {
	TrackingRecords() []TrackingRecord
}
