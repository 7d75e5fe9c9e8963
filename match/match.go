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

// Package match implements backtracking subgraph isomorphism over a pattern
// of edge constraints with variable seeds (spec.md C5). Matching only ever
// runs against the current ("now") topology; historical matching is
// deferred (spec.md §4.5).
package match

import (
	"errors"
	"fmt"

	"github.com/quackgraph/quackgraph/intern"
	"github.com/quackgraph/quackgraph/topology"
)

// ErrUnboundConstraint is the core's PatternError::Unbound: a pattern
// constraint whose both ends are unbound when the search reaches it.
var ErrUnboundConstraint = errors.New("match: pattern constraint has both ends unbound")

// Constraint is one pattern edge: an edge of type EType must exist from the
// handle bound to variable Src to the handle bound to variable Dst.
type Constraint struct {
	Src, Dst uint32
	EType    topology.EType
}

// Pattern is an ordered list of edge constraints. Variables are 0-indexed;
// variable 0 is always the seed variable.
type Pattern struct {
	Constraints []Constraint
}

// NumVars returns 1 + max(var id) referenced by the pattern.
func (p Pattern) NumVars() int {
	max := 0
	for _, c := range p.Constraints {
		if int(c.Src) > max {
			max = int(c.Src)
		}
		if int(c.Dst) > max {
			max = int(c.Dst)
		}
	}
	return max + 1
}

// Validate reports ErrUnboundConstraint if the first constraint referencing
// a variable pair leaves the search with no bound endpoint to expand from —
// spec.md §4.5 says an implementation "may reject" such patterns; this
// formalizes that as an eager check rather than discovering it mid-backtrack
// (SPEC_FULL.md supplemented feature #3).
func (p Pattern) Validate() error {
	bound := map[uint32]bool{0: true}
	for i, c := range p.Constraints {
		sBound, dBound := bound[c.Src], bound[c.Dst]
		if !sBound && !dBound {
			return fmt.Errorf("%w: constraint %d (var %d -> var %d)", ErrUnboundConstraint, i, c.Src, c.Dst)
		}
		bound[c.Src] = true
		bound[c.Dst] = true
	}
	return nil
}

// Reader is the read surface match needs from a topology.
type Reader interface {
	ActiveOut(h intern.Handle, et topology.EType, at int64) []intern.Handle
	ActiveIn(h intern.Handle, et topology.EType, at int64) []intern.Handle
}

// hasActiveEdge reports whether an active edge of type et exists from src to
// dst at Now.
func hasActiveEdge(r Reader, src, dst intern.Handle, et topology.EType) bool {
	for _, cand := range r.ActiveOut(src, et, topology.Now) {
		if cand == dst {
			return true
		}
	}
	return false
}

// Find runs Pattern against r once per seed, returning every complete,
// injective assignment (subgraph, not homomorphism: no two variables bind to
// the same handle). maxResults <= 0 means unbounded.
func Find(r Reader, p Pattern, seeds []intern.Handle, maxResults int) ([][]intern.Handle, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.NumVars()

	var results [][]intern.Handle
	full := func() bool { return maxResults > 0 && len(results) >= maxResults }

	for _, seed := range seeds {
		if full() {
			break
		}
		assign := make([]intern.Handle, n)
		bound := make([]bool, n)
		used := make(map[intern.Handle]bool, n)

		assign[0] = seed
		bound[0] = true
		used[seed] = true

		search(r, p, assign, bound, used, 0, &results, maxResults)
	}
	return results, nil
}

func search(r Reader, p Pattern, assign []intern.Handle, bound []bool, used map[intern.Handle]bool, idx int, results *[][]intern.Handle, maxResults int) {
	if maxResults > 0 && len(*results) >= maxResults {
		return
	}
	if idx == len(p.Constraints) {
		out := make([]intern.Handle, len(assign))
		copy(out, assign)
		*results = append(*results, out)
		return
	}

	c := p.Constraints[idx]
	sBound, dBound := bound[c.Src], bound[c.Dst]

	switch {
	case sBound && dBound:
		if hasActiveEdge(r, assign[c.Src], assign[c.Dst], c.EType) {
			search(r, p, assign, bound, used, idx+1, results, maxResults)
		}
	case sBound && !dBound:
		for _, cand := range r.ActiveOut(assign[c.Src], c.EType, topology.Now) {
			if used[cand] {
				continue
			}
			assign[c.Dst], bound[c.Dst], used[cand] = cand, true, true
			search(r, p, assign, bound, used, idx+1, results, maxResults)
			bound[c.Dst], used[cand] = false, false
			if maxResults > 0 && len(*results) >= maxResults {
				return
			}
		}
	case !sBound && dBound:
		for _, cand := range r.ActiveIn(assign[c.Dst], c.EType, topology.Now) {
			if used[cand] {
				continue
			}
			assign[c.Src], bound[c.Src], used[cand] = cand, true, true
			search(r, p, assign, bound, used, idx+1, results, maxResults)
			bound[c.Src], used[cand] = false, false
			if maxResults > 0 && len(*results) >= maxResults {
				return
			}
		}
	default:
		// Both ends unbound: Pattern.Validate should have already rejected
		// this, but guard it here too in case constraints were mutated
		// after validation.
	}
}
