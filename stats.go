package sv

// Stats summarizes one caller run.
type Stats struct {
	// Contigs is the number of contigs with depth bins scanned.
	Contigs int
	// Bins is the total number of depth windows scanned.
	Bins int
	// DepthSegments is the number of copy-number segments surviving the
	// minimum-size filter and merge step.
	DepthSegments int
	// DepthOnlyCalls counts calls backed by depth signal alone.
	DepthOnlyCalls int
	// Calls counts emitted calls by type.
	Calls [NumTypes]int
	// Pass and Filtered partition the emitted calls by filter status.
	Pass     int
	Filtered int
}

// Merge adds the field values of the two Stats objects and creates new
// Stats.
func (s Stats) Merge(o Stats) Stats {
	s.Contigs += o.Contigs
	s.Bins += o.Bins
	s.DepthSegments += o.DepthSegments
	s.DepthOnlyCalls += o.DepthOnlyCalls
	for i, n := range o.Calls {
		s.Calls[i] += n
	}
	s.Pass += o.Pass
	s.Filtered += o.Filtered
	return s
}
