package sv

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Depth segmentation: converts binned read counts into copy-number segments
// by scanning z-scores against a Poisson-like variance model.

// ExpectedReadsPerBin is the read count one depth window should see given
// the sample's mean coverage and read length.
func ExpectedReadsPerBin(meanCoverage, readLength float64, binSize int) float64 {
	if readLength <= 0 {
		return 0
	}
	return meanCoverage * float64(binSize) / readLength
}

// binZScore standardizes an observed bin count.  Variance is approximated by
// the expected count (Poisson), floored at 1 so near-zero expectations do
// not blow up the score.  A non-positive expectation yields z = 0: with no
// coverage model there is no deviation to measure.
func binZScore(observed, expected float64) float64 {
	if expected <= 0 {
		return 0
	}
	return (observed - expected) / math.Sqrt(math.Max(expected, 1.0))
}

// qualifies reports whether z extends a segment of the given direction: same
// sign, and magnitude at least half the opening threshold.  The halved
// extension threshold is the hysteresis that keeps single noisy bins from
// fragmenting a true segment.
func qualifies(z float64, positive bool, opts Opts) bool {
	if positive {
		return z > 0 && z >= 0.5*opts.MinDepthZScore
	}
	return z < 0 && -z >= 0.5*opts.MinDepthZScore
}

// SegmentContig scans one contig's depth bins left to right and returns the
// copy-number segments found.  Bin i covers [i*BinSize, (i+1)*BinSize);
// segment bounds are clamped to contigLength.  A contigLength <= 0 is
// treated as len(bins)*BinSize.
func SegmentContig(contig string, bins []int, contigLength int, meanCoverage, readLength float64, opts Opts) []DepthSegment {
	if len(bins) == 0 {
		return nil
	}
	if contigLength <= 0 {
		contigLength = len(bins) * opts.BinSize
	}
	expected := ExpectedReadsPerBin(meanCoverage, readLength, opts.BinSize)
	depths := make([]float64, len(bins))
	zs := make([]float64, len(bins))
	for i, n := range bins {
		depths[i] = float64(n)
		zs[i] = binZScore(depths[i], expected)
	}

	var segs []DepthSegment
	i := 0
	for i < len(zs) {
		if math.Abs(zs[i]) < opts.MinDepthZScore {
			i++
			continue
		}
		positive := zs[i] > 0
		end := i + 1
		for end < len(zs) {
			if qualifies(zs[end], positive, opts) {
				end++
				continue
			}
			// The immediate next bin fails the extension test.  Look ahead
			// up to 3 further bins; if at least 2 of them still qualify, the
			// failure is a transient drop inside a real CNV and the gap bin
			// joins the segment.
			ok := 0
			for k := end + 1; k <= end+3 && k < len(zs); k++ {
				if qualifies(zs[k], positive, opts) {
					ok++
				}
			}
			if ok < 2 {
				break
			}
			end++
		}
		if seg, keep := closeSegment(contig, depths, zs, i, end, expected, contigLength, opts); keep {
			segs = append(segs, seg)
		}
		i = end
	}
	return segs
}

// closeSegment materializes bins [first, last) as a DepthSegment, or reports
// keep=false when the segment is below the minimum CNV size.
func closeSegment(contig string, depths, zs []float64, first, last int, expected float64, contigLength int, opts Opts) (DepthSegment, bool) {
	start := first * opts.BinSize
	end := last * opts.BinSize
	if end > contigLength {
		end = contigLength
	}
	if start > contigLength {
		start = contigLength
	}
	if end-start < opts.MinCnvSize {
		return DepthSegment{}, false
	}
	meanDepth := stat.Mean(depths[first:last], nil)
	meanZ := stat.Mean(zs[first:last], nil)
	// Floor the depth so an all-zero deletion does not produce -Inf.
	log2Ratio := math.Log2(math.Max(meanDepth, 0.01) / expected)
	typ := DEL
	if meanZ > 0 {
		typ = DUP
	}
	return DepthSegment{
		Contig:    contig,
		Start:     start,
		End:       end,
		MeanDepth: meanDepth,
		Log2Ratio: log2Ratio,
		ZScore:    meanZ,
		NumBins:   last - first,
		Type:      typ,
	}, true
}

// SegmentDepth runs SegmentContig over every contig in bins, in contig name
// order.  Contigs absent from contigLengths fall back to bins*BinSize.
func SegmentDepth(bins map[string][]int, contigLengths map[string]int, meanCoverage, readLength float64, opts Opts) []DepthSegment {
	contigs := make([]string, 0, len(bins))
	for c := range bins {
		contigs = append(contigs, c)
	}
	sort.Strings(contigs)
	var segs []DepthSegment
	for _, c := range contigs {
		segs = append(segs, SegmentContig(c, bins[c], contigLengths[c], meanCoverage, readLength, opts)...)
	}
	return segs
}

// MergeNearbySegments joins consecutive segments of the same contig and type
// separated by at most maxGap bases.  Merged statistics are NumBins-weighted
// means, so the operation is idempotent.  The input is not modified.
func MergeNearbySegments(segs []DepthSegment, maxGap int) []DepthSegment {
	if len(segs) == 0 {
		return nil
	}
	sorted := make([]DepthSegment, len(segs))
	copy(sorted, segs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Contig != sorted[j].Contig {
			return sorted[i].Contig < sorted[j].Contig
		}
		return sorted[i].Start < sorted[j].Start
	})

	merged := make([]DepthSegment, 0, len(sorted))
	cur := sorted[0]
	for _, s := range sorted[1:] {
		if s.Contig == cur.Contig && s.Type == cur.Type && s.Start-cur.End <= maxGap {
			w1 := float64(cur.NumBins)
			w2 := float64(s.NumBins)
			wSum := w1 + w2
			cur.MeanDepth = (cur.MeanDepth*w1 + s.MeanDepth*w2) / wSum
			cur.ZScore = (cur.ZScore*w1 + s.ZScore*w2) / wSum
			cur.Log2Ratio = (cur.Log2Ratio*w1 + s.Log2Ratio*w2) / wSum
			cur.NumBins += s.NumBins
			if s.End > cur.End {
				cur.End = s.End
			}
			continue
		}
		merged = append(merged, cur)
		cur = s
	}
	return append(merged, cur)
}

// CallsFromSegments maps depth segments to depth-only calls.  Quality is
// |z|*10 capped at 99; the confidence interval half-width is half a bin,
// floored at 100 bases; extreme log2 ratios are genotyped homozygous.
func CallsFromSegments(segs []DepthSegment, opts Opts) []Call {
	halfWidth := opts.BinSize / 2
	if halfWidth < 100 {
		halfWidth = 100
	}
	calls := make([]Call, 0, len(segs))
	for _, seg := range segs {
		quality := math.Min(math.Abs(seg.ZScore)*10, 99)
		length := seg.End - seg.Start
		if seg.Type == DEL {
			length = -length
		}
		genotype := "0/1"
		if (seg.Type == DEL && seg.Log2Ratio < -0.9) || (seg.Type == DUP && seg.Log2Ratio > 0.7) {
			genotype = "1/1"
		}
		filter := FilterPass
		if quality < opts.MinQuality {
			filter = FilterLowQual
		}
		calls = append(calls, Call{
			Chrom:         seg.Contig,
			Start:         seg.Start,
			End:           seg.End,
			Type:          seg.Type,
			Len:           length,
			CIPos:         CI{-halfWidth, halfWidth},
			CIEnd:         CI{-halfWidth, halfWidth},
			Quality:       quality,
			RelativeDepth: math.Exp2(seg.Log2Ratio),
			Filter:        filter,
			Genotype:      genotype,
		})
	}
	return calls
}
