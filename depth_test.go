package sv

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func testDepthOpts() Opts {
	opts := DefaultOpts
	opts.BinSize = 1000
	opts.MinDepthZScore = 3.0
	opts.MinCnvSize = 1000
	return opts
}

func TestSegmentContigDup(t *testing.T) {
	// Expected reads per bin is 2*1000/150 = 13.33, so bins 3-5 sit far
	// above the mean and bins 0-2, 6-7 just below it.
	opts := testDepthOpts()
	bins := []int{10, 10, 10, 50, 52, 48, 10, 10}
	segs := SegmentContig("chr1", bins, 8000, 2, 150, opts)
	expect.EQ(t, len(segs), 1)
	seg := segs[0]
	expect.EQ(t, seg.Contig, "chr1")
	expect.EQ(t, seg.Start, 3000)
	expect.EQ(t, seg.End, 6000)
	expect.EQ(t, seg.Type, DUP)
	expect.EQ(t, seg.NumBins, 3)
	expect.EQ(t, seg.MeanDepth, 50.0)
	expect.True(t, seg.Log2Ratio > 1.5)
	expect.True(t, seg.ZScore > 0)
}

func TestSegmentThresholdBoundary(t *testing.T) {
	// coverage 10, read length 100, bin 1000 => expected 100 reads, sd 10.
	// A bin count of 130 is exactly z = MinDepthZScore; 129 is just below.
	opts := testDepthOpts()
	flat := func(count int) []int {
		bins := make([]int, 10)
		for i := range bins {
			bins[i] = 100
		}
		bins[5] = count
		return bins
	}
	segs := SegmentContig("chr1", flat(129), 10000, 10, 100, opts)
	expect.EQ(t, len(segs), 0)

	segs = SegmentContig("chr1", flat(130), 10000, 10, 100, opts)
	expect.EQ(t, len(segs), 1)
	expect.EQ(t, segs[0].Start, 5000)
	expect.EQ(t, segs[0].End, 6000)
	expect.EQ(t, segs[0].Type, DUP)
}

func TestSegmentMinCnvSize(t *testing.T) {
	// One extreme bin never survives a 2kb size floor.
	opts := testDepthOpts()
	opts.MinCnvSize = 2000
	bins := []int{100, 100, 100, 100, 100, 10000, 100, 100, 100, 100}
	segs := SegmentContig("chr1", bins, 10000, 10, 100, opts)
	expect.EQ(t, len(segs), 0)
}

func TestSegmentHysteresisGap(t *testing.T) {
	opts := testDepthOpts()
	// Expected 100/bin.  A single dip to baseline inside a long gain is
	// bridged because at least 2 of the 3 bins past the dip still qualify.
	bins := []int{100, 400, 400, 400, 100, 400, 400, 400, 100, 100}
	segs := SegmentContig("chr1", bins, 10000, 10, 100, opts)
	expect.EQ(t, len(segs), 1)
	expect.EQ(t, segs[0].Start, 1000)
	expect.EQ(t, segs[0].End, 8000)
	expect.EQ(t, segs[0].NumBins, 7)

	// Without qualifying bins past the dip the segment closes at the dip.
	bins = []int{100, 400, 400, 400, 100, 100, 100, 100, 100, 100}
	segs = SegmentContig("chr1", bins, 10000, 10, 100, opts)
	expect.EQ(t, len(segs), 1)
	expect.EQ(t, segs[0].Start, 1000)
	expect.EQ(t, segs[0].End, 4000)
}

func TestSegmentZeroExpected(t *testing.T) {
	// With no coverage model every z is 0 and nothing is emitted.
	opts := testDepthOpts()
	segs := SegmentContig("chr1", []int{500, 500, 500}, 3000, 0, 100, opts)
	expect.EQ(t, len(segs), 0)
}

func TestSegmentClampsToContigLength(t *testing.T) {
	opts := testDepthOpts()
	bins := []int{100, 100, 400, 400}
	segs := SegmentContig("chr1", bins, 3500, 10, 100, opts)
	expect.EQ(t, len(segs), 1)
	expect.EQ(t, segs[0].Start, 2000)
	expect.EQ(t, segs[0].End, 3500)
}

func TestMergeNearbySegments(t *testing.T) {
	segs := []DepthSegment{
		{Contig: "chr1", Start: 0, End: 2000, MeanDepth: 10, Log2Ratio: -1, ZScore: -4, NumBins: 2, Type: DEL},
		{Contig: "chr1", Start: 3000, End: 4000, MeanDepth: 16, Log2Ratio: -0.4, ZScore: -3, NumBins: 1, Type: DEL},
		{Contig: "chr1", Start: 20000, End: 21000, MeanDepth: 12, Log2Ratio: -0.8, ZScore: -3.5, NumBins: 1, Type: DEL},
		{Contig: "chr2", Start: 0, End: 1000, MeanDepth: 80, Log2Ratio: 1, ZScore: 5, NumBins: 1, Type: DUP},
	}
	merged := MergeNearbySegments(segs, 1000)
	expect.EQ(t, len(merged), 3)
	expect.EQ(t, merged[0].Start, 0)
	expect.EQ(t, merged[0].End, 4000)
	expect.EQ(t, merged[0].NumBins, 3)
	// NumBins-weighted means: (10*2+16*1)/3 and (-4*2-3*1)/3.
	expect.EQ(t, merged[0].MeanDepth, 12.0)
	expect.True(t, math.Abs(merged[0].ZScore-(-11.0/3)) < 1e-12)
	// The distant DEL and the chr2 DUP stay separate.
	expect.EQ(t, merged[1].Start, 20000)
	expect.EQ(t, merged[2].Contig, "chr2")
}

func TestMergeNearbySegmentsIdempotent(t *testing.T) {
	segs := []DepthSegment{
		{Contig: "chr1", Start: 5000, End: 6000, MeanDepth: 40, Log2Ratio: 1, ZScore: 4, NumBins: 1, Type: DUP},
		{Contig: "chr1", Start: 0, End: 2000, MeanDepth: 42, Log2Ratio: 1.1, ZScore: 4.2, NumBins: 2, Type: DUP},
		{Contig: "chr1", Start: 2500, End: 4000, MeanDepth: 44, Log2Ratio: 1.2, ZScore: 4.4, NumBins: 2, Type: DUP},
	}
	once := MergeNearbySegments(segs, 1000)
	twice := MergeNearbySegments(once, 1000)
	expect.EQ(t, twice, once)
}

func TestCallsFromSegments(t *testing.T) {
	opts := testDepthOpts()
	opts.MinQuality = 20
	segs := []DepthSegment{
		{Contig: "chr1", Start: 1000, End: 5000, MeanDepth: 2, Log2Ratio: -2.5, ZScore: -8, NumBins: 4, Type: DEL},
		{Contig: "chr1", Start: 9000, End: 11000, MeanDepth: 20, Log2Ratio: 0.4, ZScore: -1.5, NumBins: 2, Type: DEL},
		{Contig: "chr2", Start: 0, End: 3000, MeanDepth: 60, Log2Ratio: 1.8, ZScore: 30, NumBins: 3, Type: DUP},
	}
	calls := CallsFromSegments(segs, opts)
	expect.EQ(t, len(calls), 3)

	del := calls[0]
	expect.EQ(t, del.Type, DEL)
	expect.EQ(t, del.Len, -4000)
	expect.EQ(t, del.Quality, 80.0)
	expect.EQ(t, del.Genotype, "1/1") // log2 < -0.9
	expect.EQ(t, del.Filter, FilterPass)
	expect.EQ(t, del.CIPos, CI{-500, 500})
	expect.EQ(t, del.CIEnd, CI{-500, 500})

	weak := calls[1]
	expect.EQ(t, weak.Quality, 15.0)
	expect.EQ(t, weak.Filter, FilterLowQual)
	expect.EQ(t, weak.Genotype, "0/1")

	dup := calls[2]
	expect.EQ(t, dup.Type, DUP)
	expect.EQ(t, dup.Len, 3000)
	expect.EQ(t, dup.Quality, 99.0) // capped
	expect.EQ(t, dup.Genotype, "1/1")
	expect.True(t, math.Abs(dup.RelativeDepth-math.Exp2(1.8)) < 1e-12)
}

func TestCallsFromSegmentsCIFloor(t *testing.T) {
	opts := testDepthOpts()
	opts.BinSize = 100 // half-bin would be 50; the floor is 100
	calls := CallsFromSegments([]DepthSegment{
		{Contig: "chr1", Start: 0, End: 1000, MeanDepth: 1, Log2Ratio: -3, ZScore: -5, NumBins: 10, Type: DEL},
	}, opts)
	expect.EQ(t, calls[0].CIPos, CI{-100, 100})
}
