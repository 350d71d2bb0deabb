package sv

import (
	"context"
	"fmt"
	"sort"

	"github.com/grailbio/base/traverse"
)

// Input bundles the artifacts of the external collaborators: binned depth
// counts and contig lengths from the alignment-depth scanner, library
// statistics from the stats collector, and mapping evidence from the
// evidence extractor.
type Input struct {
	// DepthBins maps contig name to its dense per-window read counts; bin i
	// covers [i*BinSize, (i+1)*BinSize).
	DepthBins map[string][]int
	// ContigLengths maps contig name to length in bases.  A missing entry
	// falls back to bins*BinSize.
	ContigLengths map[string]int
	// MeanCoverage and ReadLength describe the sequencing library.
	MeanCoverage float64
	ReadLength   float64
	Evidence     Evidence
}

// Caller runs the full depth + breakpoint pipeline.  Thread compatible; one
// Caller may serve many Call invocations.
type Caller struct {
	opts Opts
}

// New returns a Caller with the given thresholds.
func New(opts Opts) *Caller {
	return &Caller{opts: opts}
}

// Call produces the unified, sorted call list for one sample.  Contigs are
// segmented in parallel; ctx is consulted only at contig boundaries so the
// inner scans stay deterministic and side-effect free.
func (c *Caller) Call(ctx context.Context, in Input) ([]Call, Stats, error) {
	contigs := make([]string, 0, len(in.DepthBins))
	for name := range in.DepthBins {
		contigs = append(contigs, name)
	}
	sort.Strings(contigs)

	segsByContig := make([][]DepthSegment, len(contigs))
	statsByContig := make([]Stats, len(contigs))
	err := traverse.Each(len(contigs), func(i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := contigs[i]
		bins := in.DepthBins[name]
		segsByContig[i] = SegmentContig(name, bins, in.ContigLengths[name], in.MeanCoverage, in.ReadLength, c.opts)
		statsByContig[i] = Stats{Contigs: 1, Bins: len(bins)}
		return nil
	})
	if err != nil {
		return nil, Stats{}, err
	}
	var stats Stats
	var segs []DepthSegment
	for i := range contigs {
		stats = stats.Merge(statsByContig[i])
		segs = append(segs, segsByContig[i]...)
	}
	segs = MergeNearbySegments(segs, c.opts.BinSize)
	stats.DepthSegments = len(segs)

	calls := ClusterEvidence(in.Evidence, segs, c.opts)
	AssignIDs(calls)
	for i := range calls {
		stats.Calls[calls[i].Type]++
		if calls[i].Filter == FilterPass {
			stats.Pass++
		} else {
			stats.Filtered++
		}
		if calls[i].PESupport == 0 && calls[i].SRSupport == 0 {
			stats.DepthOnlyCalls++
		}
	}
	return calls, stats, nil
}

// CallSVs is a one-shot convenience wrapper around New(opts).Call.
func CallSVs(ctx context.Context, in Input, opts Opts) ([]Call, Stats, error) {
	return New(opts).Call(ctx, in)
}

// AssignIDs gives each call a per-type sequential ID ("DEL00001", ...).
// Call it after the final sort so IDs are stable for identical input.
func AssignIDs(calls []Call) {
	var counters [NumTypes]int
	for i := range calls {
		counters[calls[i].Type]++
		calls[i].ID = fmt.Sprintf("%s%05d", calls[i].Type, counters[calls[i].Type])
	}
}
