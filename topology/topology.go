// Copyright 2026 The Quackgraph Authors
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

// Package topology implements the mutable compressed-adjacency structure
// (spec.md C2): per-direction adjacency lists keyed by intern.Handle, a
// tombstone bitset, time-bounded edge visibility, and compaction into
// sorted, deduplicated CSR-shaped lists.
package topology

import (
	"math"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quackgraph/quackgraph/intern"
)

// Forever is the sentinel valid_to value meaning "still active".
const Forever int64 = math.MaxInt64

// Now is the sentinel callers pass as `at` to mean "the present moment":
// active_out/active_in reduce to checking ValidTo == Forever, which is both
// the fast path and the path that respects tombstones.
const Now int64 = math.MaxInt64

// EType is the dense handle for an edge-type label, issued by a dedicated
// intern.Interner (spec.md's "edge-type dictionary").
type EType = intern.Handle

// Direction selects which adjacency list a traversal reads from.
type Direction int

const (
	Out Direction = iota
	In
)

// Record is one edge endpoint as stored in an adjacency list: for an
// outgoing record, End is the destination; for an incoming record, End is
// the source. A logical deletion closes the validity interval of the
// existing record: CloseEdge sets its ValidTo in place, and no other
// operation changes a stored record's fields.
type Record struct {
	End       intern.Handle
	EType     EType
	ValidFrom int64
	ValidTo   int64
}

func (r Record) activeAt(at int64) bool {
	if at == Now {
		return r.ValidTo == Forever
	}
	return r.ValidFrom <= at && at < r.ValidTo
}

// Option configures a Topology at construction time.
type Option func(*Topology)

// WithCapacityHint pre-sizes the adjacency slices and tombstone bitmap for
// an expected node count, avoiding early geometric-growth steps.
func WithCapacityHint(n int) Option {
	return func(t *Topology) {
		if n > 0 {
			t.ensureCapacity(uint64(n))
		}
	}
}

// WithActiveCacheSize sets the size of the memoization cache for
// ActiveOut/ActiveIn at Now (default 4096 entries; 0 disables caching).
func WithActiveCacheSize(n int) Option {
	return func(t *Topology) {
		t.cacheSize = n
	}
}

// Topology is the mutable adjacency index. The zero value is not usable;
// construct with New.
type Topology struct {
	mu sync.RWMutex

	outgoing [][]Record
	incoming [][]Record

	tombstones *roaring.Bitmap

	cacheSize int
	cache     *lru.Cache[activeKey, []intern.Handle]
	// generation is bumped on every mutation; it is folded into cache keys
	// so stale entries are simply never looked up again rather than having
	// to be actively evicted.
	generation uint64

	// compactedRecords counts total records immediately after the last
	// Compact call, for Stats().
	compactedRecords int
}

type activeKey struct {
	gen   uint64
	h     intern.Handle
	et    EType
	dir   Direction
	atNow bool
}

// New returns an empty Topology.
func New(opts ...Option) *Topology {
	t := &Topology{
		tombstones: roaring.New(),
		cacheSize:  4096,
	}
	for _, o := range opts {
		o(t)
	}
	if t.cacheSize > 0 {
		c, _ := lru.New[activeKey, []intern.Handle](t.cacheSize)
		t.cache = c
	}
	return t
}

// ensureCapacity grows outgoing/incoming so index h is addressable. Callers
// must hold mu for writing.
func (t *Topology) ensureCapacity(hPlus1 uint64) {
	if hPlus1 <= uint64(len(t.outgoing)) {
		return
	}
	newCap, ok := growCapacity(uint64(cap(t.outgoing)), hPlus1)
	if !ok {
		// Overflow is unreachable for handle spaces that fit in uint32, but
		// spec §7 requires growth to be all-or-nothing rather than panic.
		newCap = hPlus1
	}
	grownOut := make([][]Record, hPlus1, newCap)
	copy(grownOut, t.outgoing)
	t.outgoing = grownOut

	grownIn := make([][]Record, hPlus1, newCap)
	copy(grownIn, t.incoming)
	t.incoming = grownIn
}

// EnsureCapacity grows the topology so handle h is addressable.
func (t *Topology) EnsureCapacity(h intern.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ensureCapacity(uint64(h) + 1)
}

func (t *Topology) bumpGeneration() {
	t.generation++
}

// InsertEdge appends an edge record to both adjacency lists. Duplicates are
// tolerated until Compact; idempotency is not enforced here (spec.md §4.2).
func (t *Topology) InsertEdge(src, dst intern.Handle, et EType, validFrom, validTo int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	max := src
	if dst > max {
		max = dst
	}
	t.ensureCapacity(uint64(max) + 1)

	t.outgoing[src] = append(t.outgoing[src], Record{End: dst, EType: et, ValidFrom: validFrom, ValidTo: validTo})
	t.incoming[dst] = append(t.incoming[dst], Record{End: src, EType: et, ValidFrom: validFrom, ValidTo: validTo})
	t.bumpGeneration()
}

// TombstoneNode marks h logically deleted as of now. Edges are untouched.
func (t *Topology) TombstoneNode(h intern.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tombstones.Add(h)
	t.bumpGeneration()
}

// ReviveNode clears h's tombstone bit.
func (t *Topology) ReviveNode(h intern.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tombstones.Remove(h)
	t.bumpGeneration()
}

// IsTombstoned reports whether h is currently tombstoned.
func (t *Topology) IsTombstoned(h intern.Handle) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tombstones.Contains(h)
}

// CloseEdge finds the active record (ValidTo == Forever) for (src, dst, et)
// — the oldest one if several exist, which should not happen under correct
// coordinator discipline — and closes it at validTo. Returns false if no
// active record was found.
func (t *Topology) CloseEdge(src, dst intern.Handle, et EType, validTo int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(src) >= len(t.outgoing) || int(dst) >= len(t.incoming) {
		return false
	}

	outIdx := oldestActive(t.outgoing[src], dst, et)
	if outIdx < 0 {
		return false
	}
	inIdx := oldestActive(t.incoming[dst], src, et)
	if inIdx < 0 {
		return false
	}
	t.outgoing[src][outIdx].ValidTo = validTo
	t.incoming[dst][inIdx].ValidTo = validTo
	t.bumpGeneration()
	return true
}

func oldestActive(records []Record, end intern.Handle, et EType) int {
	best := -1
	for i, r := range records {
		if r.End != end || r.EType != et || r.ValidTo != Forever {
			continue
		}
		if best < 0 || records[i].ValidFrom < records[best].ValidFrom {
			best = i
		}
	}
	return best
}

// ActiveOut returns the destination handles reachable from src via edges of
// type et whose validity interval covers at. When at == Now, tombstoned
// destinations are excluded; for historical at, tombstone status is ignored
// (spec.md §4.2 edge visibility rule).
func (t *Topology) ActiveOut(src intern.Handle, et EType, at int64) []intern.Handle {
	return t.active(src, et, Out, at)
}

// ActiveIn is ActiveOut's mirror over incoming edges.
func (t *Topology) ActiveIn(dst intern.Handle, et EType, at int64) []intern.Handle {
	return t.active(dst, et, In, at)
}

func (t *Topology) active(h intern.Handle, et EType, dir Direction, at int64) []intern.Handle {
	key := activeKey{h: h, et: et, dir: dir, atNow: at == Now}
	t.mu.RLock()
	if t.cache != nil && key.atNow {
		key.gen = t.generation
		if cached, ok := t.cache.Get(key); ok {
			t.mu.RUnlock()
			return cached
		}
	}

	var list []Record
	switch dir {
	case Out:
		if int(h) < len(t.outgoing) {
			list = t.outgoing[h]
		}
	case In:
		if int(h) < len(t.incoming) {
			list = t.incoming[h]
		}
	}

	seen := make(map[intern.Handle]struct{}, len(list))
	out := make([]intern.Handle, 0, len(list))
	for _, r := range list {
		if r.EType != et || !r.activeAt(at) {
			continue
		}
		if _, dup := seen[r.End]; dup {
			continue
		}
		if at == Now && t.tombstones.Contains(r.End) {
			continue
		}
		seen[r.End] = struct{}{}
		out = append(out, r.End)
	}
	t.mu.RUnlock()

	if t.cache != nil && key.atNow {
		t.mu.Lock()
		if key.gen == t.generation {
			t.cache.Add(key, out)
		}
		t.mu.Unlock()
	}
	return out
}

// Compact sorts each adjacency list by (EType, End, ValidFrom, ValidTo) and
// removes exact duplicates, then rebuilds the incoming index from outgoing
// so any asymmetry introduced by a raw bulk load is repaired. Idempotent.
func (t *Topology) Compact() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for h := range t.outgoing {
		t.outgoing[h] = compactList(t.outgoing[h])
	}

	rebuilt := make([][]Record, len(t.incoming))
	for src, records := range t.outgoing {
		for _, r := range records {
			if int(r.End) >= len(rebuilt) {
				grown := make([][]Record, r.End+1)
				copy(grown, rebuilt)
				rebuilt = grown
			}
			rebuilt[r.End] = append(rebuilt[r.End], Record{End: intern.Handle(src), EType: r.EType, ValidFrom: r.ValidFrom, ValidTo: r.ValidTo})
		}
	}
	for h := range rebuilt {
		rebuilt[h] = compactList(rebuilt[h])
	}
	if len(rebuilt) < len(t.outgoing) {
		grown := make([][]Record, len(t.outgoing))
		copy(grown, rebuilt)
		rebuilt = grown
	}
	t.incoming = rebuilt

	total := 0
	for _, r := range t.outgoing {
		total += len(r)
	}
	t.compactedRecords = total

	if t.cache != nil {
		t.cache.Purge()
	}
	t.bumpGeneration()
}

func compactList(records []Record) []Record {
	if len(records) == 0 {
		return records
	}
	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.EType != b.EType {
			return a.EType < b.EType
		}
		if a.End != b.End {
			return a.End < b.End
		}
		if a.ValidFrom != b.ValidFrom {
			return a.ValidFrom < b.ValidFrom
		}
		return a.ValidTo < b.ValidTo
	})
	out := sorted[:1]
	for _, r := range sorted[1:] {
		last := out[len(out)-1]
		if r == last {
			continue
		}
		out = append(out, r)
	}
	return out
}

// NodeCount returns one past the highest handle this topology can address.
func (t *Topology) NodeCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.outgoing)
}

// Stats reports introspection counters a write-coordinator can use to decide
// when to trigger Compact (SPEC_FULL.md supplemented feature #1).
type Stats struct {
	Nodes             int
	Tombstoned        uint64
	OutgoingRecords   int
	IncomingRecords   int
	RecordsAtLastCompaction int
}

func (t *Topology) StatsSnapshot() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := Stats{Nodes: len(t.outgoing), Tombstoned: t.tombstones.GetCardinality(), RecordsAtLastCompaction: t.compactedRecords}
	for _, r := range t.outgoing {
		s.OutgoingRecords += len(r)
	}
	for _, r := range t.incoming {
		s.IncomingRecords += len(r)
	}
	return s
}

// Snapshot exposes the raw adjacency for the snapshot codec (package
// snapshot) and test helpers. The returned slices must be treated read-only.
func (t *Topology) Snapshot() (outgoing, incoming [][]Record, tombstones *roaring.Bitmap) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.outgoing, t.incoming, t.tombstones.Clone()
}

// Restore replaces the topology's contents wholesale — used only by
// snapshot.Load to rehydrate a freshly constructed Topology.
func (t *Topology) Restore(outgoing, incoming [][]Record, tombstones *roaring.Bitmap) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.outgoing = outgoing
	t.incoming = incoming
	t.tombstones = tombstones
	if t.cache != nil {
		t.cache.Purge()
	}
	t.bumpGeneration()
}
