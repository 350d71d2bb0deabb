// Package sv detects structural variants in a single aligned sample by
// combining two independent evidence channels: per-window read-depth
// anomalies (copy-number signal) and discordant-pair/split-read mapping
// signatures (breakpoint signal).  The package is a pure transformation
// layer: it consumes binned read counts and evidence lists produced by
// external scanners, and produces a normalized list of Calls.  Serialization
// to VCF lives in encoding/vcfio.
package sv

import (
	"sort"
)

// Type is the structural-variant class of a segment or call.
type Type int

const (
	// DEL is a deletion (copy-number loss or breakpoint-joined gap).
	DEL Type = iota
	// DUP is a duplication (copy-number gain, typically tandem).
	DUP
	// INV is an inversion.
	INV
	// INS is an insertion of novel sequence.
	INS
	// BND is a breakend: one side of an inter-chromosomal or complex
	// rearrangement.
	BND
	// NumTypes is the number of variant classes; usable as an array bound.
	NumTypes
)

var typeNames = [NumTypes]string{"DEL", "DUP", "INV", "INS", "BND"}

func (t Type) String() string {
	if t < 0 || t >= NumTypes {
		return "???"
	}
	return typeNames[t]
}

// Filter values attached to a Call.  FilterPass marks a call that survived
// all thresholds.
const (
	FilterPass       = "PASS"
	FilterLowQual    = "LowQual"
	FilterLowSupport = "LowSupport"
)

// PairReason says why a read pair was flagged as discordant by the upstream
// evidence extractor.
type PairReason int

const (
	// InsertSizeOutlier: the pair maps in the expected orientation but the
	// implied fragment length is far outside the library distribution.
	InsertSizeOutlier PairReason = iota
	// WrongOrientation: the two ends do not face each other.
	WrongOrientation
	// InterChromosomal: the two ends map to different chromosomes.
	InterChromosomal
)

// DiscordantPair is one read pair whose mapping deviates from the library
// model.  Positions are 0-based.  Strands are '+' or '-'.
type DiscordantPair struct {
	Chrom1  string
	Pos1    int
	Strand1 byte
	Chrom2  string
	Pos2    int
	Strand2 byte
	// InsertSize is the observed fragment length implied by the mapping; 0
	// for inter-chromosomal pairs.
	InsertSize int
	// MapQ is the lower of the two ends' mapping qualities.
	MapQ   byte
	Reason PairReason
}

// SplitRead is one read whose alignment is split across two loci.  The
// primary locus is the anchor; the supplementary locus is the candidate
// breakpoint partner.
type SplitRead struct {
	Chrom      string
	Pos        int
	Strand     byte
	MateChrom  string
	MatePos    int
	MateStrand byte
	MapQ       byte
}

// Evidence is the full set of mapping-based SV evidence for one sample,
// partitioned by whether a pair spans two chromosomes.  Use AddPair rather
// than appending directly so the partitioning invariant holds.
type Evidence struct {
	// Pairs holds intra-chromosomal discordant pairs (Chrom1 == Chrom2).
	Pairs []DiscordantPair
	// InterChrom holds pairs whose ends map to different chromosomes.
	InterChrom []DiscordantPair
	// Splits holds split-read breakpoint candidates.
	Splits []SplitRead
}

// AddPair files p under Pairs or InterChrom depending on its chromosomes.
func (e *Evidence) AddPair(p DiscordantPair) {
	if p.Chrom1 != p.Chrom2 {
		p.Reason = InterChromosomal
		e.InterChrom = append(e.InterChrom, p)
		return
	}
	e.Pairs = append(e.Pairs, p)
}

// AddSplit appends a split-read observation.
func (e *Evidence) AddSplit(s SplitRead) {
	e.Splits = append(e.Splits, s)
}

// DepthSegment is a maximal run of depth bins whose coverage deviates from
// the sample mean in one direction.  Coordinates are 0-based half-open.
// REQUIRES: End > Start, NumBins >= 1.
type DepthSegment struct {
	Contig    string
	Start     int
	End       int
	MeanDepth float64
	Log2Ratio float64
	ZScore    float64
	NumBins   int
	Type      Type // DEL or DUP only
}

// CI is a confidence interval around a breakpoint, expressed as signed
// offsets from the reported position (Lo <= 0 <= Hi).
type CI struct {
	Lo, Hi int
}

// Call is one structural-variant call, the canonical output unit of this
// package.
type Call struct {
	// ID is assigned after the final sort (e.g. "DEL00001"); empty until
	// then.
	ID    string
	Chrom string
	// Start and End are 0-based half-open; for BND, End == Start.
	Start int
	End   int
	Type  Type
	// Len is signed: negative for DEL, positive for DUP/INS, 0 for BND.
	Len     int
	CIPos   CI
	CIEnd   CI
	Quality float64
	// PESupport and SRSupport count the discordant pairs and split reads
	// backing the call; both 0 for depth-only calls.
	PESupport int
	SRSupport int
	// RelativeDepth is observed/expected coverage over the locus (2^log2
	// ratio).  0 means no depth evidence contributed.
	RelativeDepth float64
	// MateChrom/MatePos locate the partner locus of a BND.
	MateChrom string
	MatePos   int
	Filter    string
	Genotype  string
}

// SortCalls orders calls by (chrom, start), the order required of all
// outputs.  Ties break on end then type so the order is total and runs are
// reproducible.
func SortCalls(calls []Call) {
	sort.Slice(calls, func(i, j int) bool {
		a, b := &calls[i], &calls[j]
		if a.Chrom != b.Chrom {
			return a.Chrom < b.Chrom
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.Type < b.Type
	})
}
