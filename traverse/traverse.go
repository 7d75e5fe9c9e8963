// Copyright 2024 The Erigon Authors
// (history-reader temporal-read shape this file generalizes)
// Copyright 2026 The Quackgraph Authors
// (modifications)
// This file is part of Quackgraph.
//
// Quackgraph is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Quackgraph is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Quackgraph. If not, see <http://www.gnu.org/licenses/>.

// Package traverse implements single-hop and bounded-BFS traversal over a
// topology.Topology (spec.md C4): deduplicated single-hop reads, a
// depth-bounded breadth-first search with cycle avoidance, and per-hop
// temporal filtering.
//
// The visited-set bookkeeping mirrors the pattern the teacher uses for a
// stateful, time-bound reader (core/state/history_reader_v3.go's
// HistoryReaderV3, which pins a txNum and answers GetAsOf queries against
// it): here a single `at` timestamp is pinned for the whole call and every
// hop is answered "as of" that instant.
package traverse

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/quackgraph/quackgraph/intern"
	"github.com/quackgraph/quackgraph/topology"
)

// Reader is the read surface traverse needs from a topology. topology.Topology
// satisfies it directly; tests can substitute a fake.
type Reader interface {
	ActiveOut(h intern.Handle, et topology.EType, at int64) []intern.Handle
	ActiveIn(h intern.Handle, et topology.EType, at int64) []intern.Handle
}

func active(r Reader, h intern.Handle, et topology.EType, dir topology.Direction, at int64) []intern.Handle {
	if dir == topology.In {
		return r.ActiveIn(h, et, at)
	}
	return r.ActiveOut(h, et, at)
}

// Hop performs a single-hop traversal from seeds, deduplicating results
// within the call. Result order is unspecified.
func Hop(r Reader, seeds []intern.Handle, et topology.EType, dir topology.Direction, at int64) []intern.Handle {
	seen := roaring.New()
	out := make([]intern.Handle, 0, len(seeds))
	for _, s := range seeds {
		for _, h := range active(r, s, et, dir, at) {
			if seen.CheckedAdd(h) {
				out = append(out, h)
			}
		}
	}
	return out
}

// Bounded performs a breadth-first search from seeds out to max hops,
// emitting every node whose shortest depth d satisfies min <= d <= max. It
// is a forest walk: a node is enqueued at most once, at its shortest depth,
// so cycles back to an already-visited node (including the seeds
// themselves) never re-emit it. If max == 0 or min > max, the result is
// empty. Each hop is filtered by the (et, dir, at) temporal/tombstone rule
// (spec.md §4.4).
func Bounded(r Reader, seeds []intern.Handle, et topology.EType, dir topology.Direction, min, max uint32, at int64) []intern.Handle {
	if max == 0 || min > max {
		return nil
	}

	visited := roaring.New()
	for _, s := range seeds {
		visited.Add(s)
	}

	out := make([]intern.Handle, 0)
	frontier := append([]intern.Handle(nil), seeds...)
	for depth := uint32(1); depth <= max && len(frontier) > 0; depth++ {
		next := make([]intern.Handle, 0)
		for _, h := range frontier {
			for _, cand := range active(r, h, et, dir, at) {
				if !visited.CheckedAdd(cand) {
					continue
				}
				next = append(next, cand)
			}
		}
		if depth >= min {
			out = append(out, next...)
		}
		frontier = next
	}
	return out
}
