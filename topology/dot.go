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

package topology

import (
	"fmt"
	"strconv"

	"github.com/emicklei/dot"

	"github.com/quackgraph/quackgraph/intern"
)

// NameResolver maps a handle to its display label for DOT export. Nil means
// "use the numeric handle".
type NameResolver func(intern.Handle) string

// DOT renders the outgoing adjacency restricted to scope (nil means every
// node currently addressable) as Graphviz DOT, for debugging traversal and
// match results (SPEC_FULL.md supplemented feature #2). This is a diagnostic
// export, not a query operation: it draws only records that are still open
// (ValidTo == Forever), ignores ValidFrom, and applies no tombstone filtering.
func (t *Topology) DOT(scope []intern.Handle, resolveEType NameResolver, resolveNode NameResolver) string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	g := dot.NewGraph(dot.Directed)
	include := func(h intern.Handle) bool { return true }
	if scope != nil {
		set := make(map[intern.Handle]struct{}, len(scope))
		for _, h := range scope {
			set[h] = struct{}{}
		}
		include = func(h intern.Handle) bool {
			_, ok := set[h]
			return ok
		}
	}

	label := func(h intern.Handle) string {
		if resolveNode != nil {
			return resolveNode(h)
		}
		return strconv.FormatUint(uint64(h), 10)
	}
	nodes := make(map[intern.Handle]dot.Node, len(t.outgoing))
	nodeFor := func(h intern.Handle) dot.Node {
		if n, ok := nodes[h]; ok {
			return n
		}
		n := g.Node(label(h))
		nodes[h] = n
		return n
	}

	for src, records := range t.outgoing {
		h := intern.Handle(src)
		if !include(h) {
			continue
		}
		for _, r := range records {
			if !include(r.End) || r.ValidTo != Forever {
				continue
			}
			etLabel := fmt.Sprintf("%d", r.EType)
			if resolveEType != nil {
				etLabel = resolveEType(r.EType)
			}
			nodeFor(h).Edge(nodeFor(r.End), etLabel)
		}
	}
	return g.String()
}
