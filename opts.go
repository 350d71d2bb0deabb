package sv

// Opts collects the tunable thresholds of the caller.  A single Opts value
// is threaded through every stage; there is no global mutable state.
type Opts struct {
	// BinSize is the width in bases of one depth window.
	BinSize int
	// MinDepthZScore is the minimum |z| needed to open a depth segment.  A
	// segment is extended through bins down to half this value (hysteresis).
	MinDepthZScore float64
	// MinCnvSize drops depth segments shorter than this many bases.
	MinCnvSize int
	// MaxClusterDistance is the greedy 1-D clustering window: an evidence
	// point farther than this from the running cluster start opens a new
	// cluster.
	MaxClusterDistance int
	// MinTotalSupport drops breakpoint clusters backed by fewer than this
	// many reads (pairs + splits).
	MinTotalSupport int
	// MinPairedEndSupport and MinSplitReadSupport gate the PASS filter: a
	// breakpoint call passes when either channel alone reaches its floor.
	MinPairedEndSupport int
	MinSplitReadSupport int
	// MinQuality gates the PASS filter for depth-only calls.
	MinQuality float64
	// MeanInsertSize is the library's expected fragment length, used to
	// classify insert-size outliers (DEL above ~2x, DUP below ~0.5x).
	MeanInsertSize int
}

// DefaultOpts are reasonable settings for a 30x short-read genome.
var DefaultOpts = Opts{
	BinSize:             1000,
	MinDepthZScore:      3.0,
	MinCnvSize:          1000,
	MaxClusterDistance:  500,
	MinTotalSupport:     4,
	MinPairedEndSupport: 4,
	MinSplitReadSupport: 2,
	MinQuality:          20,
	MeanInsertSize:      350,
}
