package sv

import (
	"sort"

	"github.com/biogo/store/interval"
)

// Depth/breakpoint reconciliation.  Depth-only calls are indexed in interval
// trees keyed by (chrom, type); each PE/SR call may consume at most one
// overlapping depth call, inheriting its relative depth.  Unconsumed depth
// calls are emitted on their own.

// depthIval lets a depth call live in a biogo interval tree.  The tree key
// is the call's index in the depth slice.
type depthIval struct {
	start, end int
	id         uintptr
}

// Overlap uses the half-open intersection test: [a,b) and [c,d) overlap iff
// b > c && a < d.
func (iv depthIval) Overlap(b interval.IntRange) bool {
	return iv.end > b.Start && iv.start < b.End
}
func (iv depthIval) ID() uintptr { return iv.id }
func (iv depthIval) Range() interval.IntRange {
	return interval.IntRange{Start: iv.start, End: iv.end}
}

type chromType struct {
	chrom string
	typ   Type
}

// integrateDepthCalls merges depthCalls into pesrCalls and returns the
// combined list, unsorted.  Neither input slice is retained.
func integrateDepthCalls(pesrCalls, depthCalls []Call) []Call {
	trees := map[chromType]*interval.IntTree{}
	for i, dc := range depthCalls {
		key := chromType{dc.Chrom, dc.Type}
		t := trees[key]
		if t == nil {
			t = &interval.IntTree{}
			trees[key] = t
		}
		// Insert is keyed by ID, so per-index IDs keep all calls distinct
		// even with identical ranges.
		_ = t.Insert(depthIval{start: dc.Start, end: dc.End, id: uintptr(i)}, false)
	}

	consumed := make([]bool, len(depthCalls))
	out := make([]Call, 0, len(pesrCalls)+len(depthCalls))
	for _, call := range pesrCalls {
		t := trees[chromType{call.Chrom, call.Type}]
		if t != nil {
			hits := t.Get(depthIval{start: call.Start, end: call.End})
			// Tree results come back in an order tied to tree shape; pick
			// the leftmost unconsumed hit so the pairing is reproducible.
			sort.Slice(hits, func(i, j int) bool {
				ri, rj := hits[i].Range(), hits[j].Range()
				if ri.Start != rj.Start {
					return ri.Start < rj.Start
				}
				return hits[i].ID() < hits[j].ID()
			})
			for _, hit := range hits {
				idx := int(hit.ID())
				if consumed[idx] {
					continue
				}
				consumed[idx] = true
				call.RelativeDepth = depthCalls[idx].RelativeDepth
				break
			}
		}
		out = append(out, call)
	}
	for i, dc := range depthCalls {
		if !consumed[i] {
			out = append(out, dc)
		}
	}
	return out
}
