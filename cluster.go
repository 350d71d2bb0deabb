package sv

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Breakpoint clustering: converts discordant-pair and split-read evidence
// into clusters via a greedy left-to-right scan, classifies each cluster
// into an SV type, and reconciles the result with depth-only calls.

// breakpointCluster accumulates the evidence points of one cluster during
// the scan.  It exists only while clustering runs; calls are the durable
// representation.
type breakpointCluster struct {
	chrom  string
	pairs  []DiscordantPair
	splits []SplitRead
	// positions holds each member's anchor position; matePositions holds
	// the partner positions recorded in discordant pairs.
	positions     []float64
	matePositions []float64
	mapQSum       int
}

func (c *breakpointCluster) peSupport() int    { return len(c.pairs) }
func (c *breakpointCluster) srSupport() int    { return len(c.splits) }
func (c *breakpointCluster) totalSupport() int { return len(c.pairs) + len(c.splits) }

// meanMapQ averages mapping quality across all contributing evidence, 0 when
// the upstream extractor supplied none.
func (c *breakpointCluster) meanMapQ() float64 {
	n := c.totalSupport()
	if n == 0 {
		return 0
	}
	return float64(c.mapQSum) / float64(n)
}

// position is the cluster's reported breakpoint: the mean of member anchor
// positions.
func (c *breakpointCluster) position() int {
	return int(stat.Mean(c.positions, nil))
}

// ci derives the confidence interval from the spread of positions around
// pos.
func ci(positions []float64, pos int) CI {
	lo, hi := 0, 0
	for _, p := range positions {
		off := int(p) - pos
		if off < lo {
			lo = off
		}
		if off > hi {
			hi = off
		}
	}
	return CI{lo, hi}
}

// inferType classifies a non-translocation cluster from its strand and
// insert-size patterns.  Same-strand pairs past half the evidence signal an
// inversion; otherwise insert-size outliers separate deletions (fragments
// stretched past ~2x the library mean) from tandem duplications (compressed
// below ~0.5x).  With no decisive signal the cluster defaults to DEL, the
// most common event class.
func (c *breakpointCluster) inferType(opts Opts) Type {
	sameStrand := 0
	insertSum := 0.0
	insertN := 0
	for _, p := range c.pairs {
		if p.Strand1 == p.Strand2 {
			sameStrand++
		}
		if p.Reason == InsertSizeOutlier && p.InsertSize > 0 {
			insertSum += float64(p.InsertSize)
			insertN++
		}
	}
	if 2*sameStrand > c.totalSupport() {
		return INV
	}
	if insertN > 0 && opts.MeanInsertSize > 0 {
		mean := insertSum / float64(insertN)
		if mean > 2*float64(opts.MeanInsertSize) {
			return DEL
		}
		if mean < 0.5*float64(opts.MeanInsertSize) {
			return DUP
		}
	}
	return DEL
}

// evidencePoint is one entry of the merged, position-sorted evidence stream
// for a chromosome.
type evidencePoint struct {
	pos    int
	isPair bool
	pair   DiscordantPair
	split  SplitRead
}

// clusterPoints runs the greedy 1-D pass over position-sorted points: a
// point farther than MaxClusterDistance from the running cluster's start
// position closes it and opens a new one.  No state is shared across
// clusters.
func clusterPoints(chrom string, points []evidencePoint, opts Opts) []*breakpointCluster {
	var clusters []*breakpointCluster
	var cur *breakpointCluster
	clusterStart := 0
	for _, pt := range points {
		if cur == nil || pt.pos-clusterStart > opts.MaxClusterDistance {
			cur = &breakpointCluster{chrom: chrom}
			clusters = append(clusters, cur)
			clusterStart = pt.pos
		}
		cur.positions = append(cur.positions, float64(pt.pos))
		if pt.isPair {
			cur.pairs = append(cur.pairs, pt.pair)
			cur.matePositions = append(cur.matePositions, float64(pt.pair.Pos2))
			cur.mapQSum += int(pt.pair.MapQ)
		} else {
			cur.splits = append(cur.splits, pt.split)
			cur.mapQSum += int(pt.split.MapQ)
		}
	}
	return clusters
}

// breakpointQuality scores a cluster from its support counts and mapping
// quality, capped at 99.
func breakpointQuality(totalSupport int, meanMapQ float64) float64 {
	q := float64(totalSupport)*5 + meanMapQ*0.5
	if q > 99 {
		q = 99
	}
	return q
}

// breakpointCalls clusters the intra-chromosomal evidence of one sample and
// returns one call per surviving cluster.
func breakpointCalls(pairs []DiscordantPair, splits []SplitRead, opts Opts) []Call {
	byChrom := map[string][]evidencePoint{}
	for _, p := range pairs {
		byChrom[p.Chrom1] = append(byChrom[p.Chrom1], evidencePoint{pos: p.Pos1, isPair: true, pair: p})
	}
	for _, s := range splits {
		byChrom[s.Chrom] = append(byChrom[s.Chrom], evidencePoint{pos: s.Pos, split: s})
	}
	chroms := make([]string, 0, len(byChrom))
	for c := range byChrom {
		chroms = append(chroms, c)
	}
	sort.Strings(chroms)

	var calls []Call
	for _, chrom := range chroms {
		points := byChrom[chrom]
		sort.SliceStable(points, func(i, j int) bool { return points[i].pos < points[j].pos })
		for _, c := range clusterPoints(chrom, points, opts) {
			if c.totalSupport() < opts.MinTotalSupport {
				continue
			}
			calls = append(calls, c.toCall(opts))
		}
	}
	return calls
}

// toCall materializes one intra-chromosomal cluster as a Call.  The far
// breakpoint is estimated from the mean of mate-side positions recorded in
// discordant pairs; with no usable mate positions the call conservatively
// spans MaxClusterDistance.
func (c *breakpointCluster) toCall(opts Opts) Call {
	pos := c.position()
	typ := c.inferType(opts)
	end := 0
	ciEnd := ci(c.positions, pos)
	if len(c.matePositions) > 0 {
		end = int(stat.Mean(c.matePositions, nil))
	}
	if end <= pos {
		end = pos + opts.MaxClusterDistance
	} else {
		ciEnd = ci(c.matePositions, end)
	}

	length := end - pos
	if typ == DEL {
		length = -length
	}
	total := c.totalSupport()
	genotype := "0/1"
	if total >= 10 {
		genotype = "1/1"
	}
	filter := FilterLowSupport
	if c.peSupport() >= opts.MinPairedEndSupport || c.srSupport() >= opts.MinSplitReadSupport {
		filter = FilterPass
	}
	return Call{
		Chrom:     c.chrom,
		Start:     pos,
		End:       end,
		Type:      typ,
		Len:       length,
		CIPos:     ci(c.positions, pos),
		CIEnd:     ciEnd,
		Quality:   breakpointQuality(total, c.meanMapQ()),
		PESupport: c.peSupport(),
		SRSupport: c.srSupport(),
		Filter:    filter,
		Genotype:  genotype,
	}
}

// translocationCalls clusters inter-chromosomal pairs into breakend calls.
// Pairs are grouped by unordered chromosome pair, normalized so the
// lexically smaller chromosome anchors the cluster, then clustered by anchor
// position with the same greedy pass used intra-chromosomally.
func translocationCalls(interChrom []DiscordantPair, opts Opts) []Call {
	type chromPair struct{ a, b string }
	groups := map[chromPair][]DiscordantPair{}
	for _, p := range interChrom {
		if p.Chrom2 < p.Chrom1 {
			p.Chrom1, p.Chrom2 = p.Chrom2, p.Chrom1
			p.Pos1, p.Pos2 = p.Pos2, p.Pos1
			p.Strand1, p.Strand2 = p.Strand2, p.Strand1
		}
		key := chromPair{p.Chrom1, p.Chrom2}
		groups[key] = append(groups[key], p)
	}
	keys := make([]chromPair, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].a != keys[j].a {
			return keys[i].a < keys[j].a
		}
		return keys[i].b < keys[j].b
	})

	var calls []Call
	for _, key := range keys {
		pairs := groups[key]
		points := make([]evidencePoint, len(pairs))
		for i, p := range pairs {
			points[i] = evidencePoint{pos: p.Pos1, isPair: true, pair: p}
		}
		sort.SliceStable(points, func(i, j int) bool { return points[i].pos < points[j].pos })
		for _, c := range clusterPoints(key.a, points, opts) {
			pos := c.position()
			matePos := int(stat.Mean(c.matePositions, nil))
			total := c.totalSupport()
			genotype := "0/1"
			if total >= 10 {
				genotype = "1/1"
			}
			filter := FilterLowSupport
			if c.peSupport() >= opts.MinPairedEndSupport {
				filter = FilterPass
			}
			calls = append(calls, Call{
				Chrom:     key.a,
				Start:     pos,
				End:       pos,
				Type:      BND,
				CIPos:     ci(c.positions, pos),
				CIEnd:     ci(c.matePositions, matePos),
				Quality:   breakpointQuality(total, c.meanMapQ()),
				PESupport: c.peSupport(),
				MateChrom: key.b,
				MatePos:   matePos,
				Filter:    filter,
				Genotype:  genotype,
			})
		}
	}
	return calls
}

// ClusterEvidence converts mapping evidence into breakpoint calls and
// reconciles them with depth segments: a depth call overlapping a PE/SR call
// of the same chromosome and type contributes its relative depth to that
// call instead of appearing separately, so corroborated loci are reported
// once.  The returned calls are sorted by (chrom, start); IDs are not yet
// assigned.
func ClusterEvidence(ev Evidence, depthSegments []DepthSegment, opts Opts) []Call {
	calls := translocationCalls(ev.InterChrom, opts)
	calls = append(calls, breakpointCalls(ev.Pairs, ev.Splits, opts)...)
	calls = integrateDepthCalls(calls, CallsFromSegments(depthSegments, opts))
	SortCalls(calls)
	return calls
}
