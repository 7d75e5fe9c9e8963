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

// Package quackgraph is the embedded, read-optimized graph index described
// by spec.md: a facade tying together two string interners (nodes and edge
// types), a mutable topology, Arrow IPC hydration, bounded traversal,
// pattern matching, and the binary snapshot codec. It indexes topology
// only — node and edge properties live in a caller-supplied PropertyStore
// (spec.md §1's external collaborator boundary).
package quackgraph

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/quackgraph/quackgraph/hydrate"
	"github.com/quackgraph/quackgraph/intern"
	"github.com/quackgraph/quackgraph/match"
	"github.com/quackgraph/quackgraph/snapshot"
	"github.com/quackgraph/quackgraph/topology"
	"github.com/quackgraph/quackgraph/traverse"
)

//go:generate go run go.uber.org/mock/mockgen -source=quackgraph.go -destination=mocks/property_store.go -package=mocks

// PropertyStore is the external collaborator boundary: quackgraph resolves
// a node or edge to its handle and topology, then defers to a PropertyStore
// for anything beyond identity and adjacency. A nil PropertyStore is valid —
// callers that only need topology never have to supply one.
type PropertyStore interface {
	NodeProperties(ctx context.Context, node string) (map[string]any, error)
	EdgeProperties(ctx context.Context, src, dst, etype string) (map[string]any, error)
}

// Option configures a Graph at construction time.
type Option func(*Graph)

// WithLogger attaches a zap logger used for hydration and snapshot activity
// (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(g *Graph) { g.logger = l }
}

// WithPropertyStore attaches the external property collaborator.
func WithPropertyStore(ps PropertyStore) Option {
	return func(g *Graph) { g.properties = ps }
}

// WithTopologyOptions forwards construction-time options to the underlying
// topology.Topology (capacity hints, cache sizing).
func WithTopologyOptions(opts ...topology.Option) Option {
	return func(g *Graph) { g.topoOpts = append(g.topoOpts, opts...) }
}

// Graph is the top-level handle SPEC_FULL.md's callers hold. The zero value
// is not usable; construct with New.
type Graph struct {
	Nodes  *intern.Interner
	Etypes *intern.Interner
	Topo   *topology.Topology

	logger     *zap.Logger
	properties PropertyStore
	topoOpts   []topology.Option
}

// New returns an empty Graph.
func New(opts ...Option) *Graph {
	g := &Graph{logger: zap.NewNop()}
	for _, o := range opts {
		o(g)
	}
	g.Nodes = intern.New(0)
	g.Etypes = intern.New(0)
	g.Topo = topology.New(g.topoOpts...)
	return g
}

// InternNode returns the handle for node id s, interning it on first sight.
func (g *Graph) InternNode(s string) intern.Handle { return g.Nodes.Intern(s) }

// InternEType returns the handle for edge-type label s, interning it on
// first sight.
func (g *Graph) InternEType(s string) intern.Handle { return g.Etypes.Intern(s) }

// ResolveNode returns the node id for h.
func (g *Graph) ResolveNode(h intern.Handle) (string, error) { return g.Nodes.ResolveErr(h) }

// ResolveEType returns the edge-type label for h.
func (g *Graph) ResolveEType(h intern.Handle) (string, error) { return g.Etypes.ResolveErr(h) }

// InsertEdge inserts an edge of type etype from src to dst, valid over
// [validFrom, validTo). Endpoints and the edge type must already be handles
// from InternNode/InternEType.
func (g *Graph) InsertEdge(src, dst intern.Handle, etype intern.Handle, validFrom, validTo int64) {
	g.Topo.InsertEdge(src, dst, etype, validFrom, validTo)
}

// CloseEdge closes the currently-open edge (src, dst, etype) at validTo.
func (g *Graph) CloseEdge(src, dst intern.Handle, etype intern.Handle, validTo int64) bool {
	return g.Topo.CloseEdge(src, dst, etype, validTo)
}

// TombstoneNode, ReviveNode, and IsTombstoned forward to the topology.
func (g *Graph) TombstoneNode(h intern.Handle) { g.Topo.TombstoneNode(h) }
func (g *Graph) ReviveNode(h intern.Handle)    { g.Topo.ReviveNode(h) }
func (g *Graph) IsTombstoned(h intern.Handle) bool { return g.Topo.IsTombstoned(h) }

// Compact rebuilds the topology's adjacency lists (spec.md §4.2).
func (g *Graph) Compact() { g.Topo.Compact() }

// Stats reports the current introspection counters.
func (g *Graph) Stats() topology.Stats { return g.Topo.StatsSnapshot() }

// Hop performs a single, deduplicated hop from seeds.
func (g *Graph) Hop(seeds []intern.Handle, etype intern.Handle, dir topology.Direction, at int64) []intern.Handle {
	return traverse.Hop(g.Topo, seeds, etype, dir, at)
}

// TraverseBounded performs a depth-bounded BFS from seeds, out to [min, max]
// hops (spec.md C4).
func (g *Graph) TraverseBounded(seeds []intern.Handle, etype intern.Handle, dir topology.Direction, min, max uint32, at int64) []intern.Handle {
	return traverse.Bounded(g.Topo, seeds, etype, dir, min, max, at)
}

// Match runs pattern p seeded at seeds against the current topology
// (spec.md C5).
func (g *Graph) Match(p match.Pattern, seeds []intern.Handle, maxResults int) ([][]intern.Handle, error) {
	return match.Find(g.Topo, p, seeds, maxResults)
}

// LoadArrowBatch hydrates the graph from an Arrow IPC record-batch stream
// (spec.md C3), returning the number of edges inserted.
func (g *Graph) LoadArrowBatch(ctx context.Context, r io.Reader, opts ...hydrate.Option) (int, error) {
	opts = append([]hydrate.Option{hydrate.WithLogger(g.logger)}, opts...)
	return hydrate.Hydrate(ctx, r, g.Nodes, g.Etypes, g.Topo, opts...)
}

// Save serializes the graph to path (spec.md C6).
func (g *Graph) Save(path string, opts ...snapshot.SaveOption) error {
	opts = append([]snapshot.SaveOption{snapshot.WithLogger(g.logger)}, opts...)
	return snapshot.Save(path, g.Nodes, g.Etypes, g.Topo, opts...)
}

// Load rehydrates a Graph previously written by Save.
func Load(path string, opts ...Option) (*Graph, error) {
	g := &Graph{logger: zap.NewNop()}
	for _, o := range opts {
		o(g)
	}

	res, err := snapshot.Load(path, snapshot.WithLoadLogger(g.logger))
	if err != nil {
		return nil, fmt.Errorf("quackgraph: load %s: %w", path, err)
	}
	g.Nodes = res.Interner
	g.Etypes = res.ETypes
	g.Topo = res.Topology
	return g, nil
}

// DOT renders scope (nil means everything) as Graphviz DOT with node ids and
// edge-type labels resolved through the graph's interners (SPEC_FULL.md
// supplemented feature #2).
func (g *Graph) DOT(scope []intern.Handle) string {
	resolve := func(in *intern.Interner) topology.NameResolver {
		return func(h intern.Handle) string {
			s, ok := in.Resolve(h)
			if !ok {
				return fmt.Sprintf("?%d", h)
			}
			return s
		}
	}
	return g.Topo.DOT(scope, resolve(g.Etypes), resolve(g.Nodes))
}

// Properties returns the attached PropertyStore, or nil if none was
// configured.
func (g *Graph) Properties() PropertyStore { return g.properties }
