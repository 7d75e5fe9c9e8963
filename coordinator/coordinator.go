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

// Package coordinator implements the Write-Coordinator contract (spec.md
// C7): it is not a core component but the caller-side discipline the core
// assumes — serialized writes, durable-first ordering, and read isolation —
// wrapped around a *quackgraph.Graph.
package coordinator

import (
	"context"
	"fmt"
	"io"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/quackgraph/quackgraph"
	"github.com/quackgraph/quackgraph/hydrate"
	"github.com/quackgraph/quackgraph/intern"
)

// DurableWriter commits one mutation to the durable store of record. It runs
// before the corresponding in-memory mutation (spec.md §4.7's
// durable-first-ordering clause) and must not itself touch the core.
type DurableWriter func() error

// Option configures a Coordinator at construction time.
type Option func(*Coordinator)

// WithLogger attaches a zap logger (default: no-op).
func WithLogger(l *zap.Logger) Option { return func(c *Coordinator) { c.logger = l } }

// Coordinator serializes mutation against a single *quackgraph.Graph and
// isolates readers from an in-flight writer with a readers-writer lock —
// the "per-instance mutex-equivalent" spec.md §4.7 requires. The core itself
// spawns no threads and enforces none of this; it all happens here.
type Coordinator struct {
	mu     sync.RWMutex
	g      *quackgraph.Graph
	logger *zap.Logger
}

// New wraps g. The Coordinator assumes it is the only writer of g; any
// direct mutation of g bypassing the Coordinator voids the contract.
func New(g *quackgraph.Graph, opts ...Option) *Coordinator {
	c := &Coordinator{g: g, logger: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Write enforces durable-first ordering: commit runs first, with the core
// untouched; only if it succeeds does mutate run against the graph under an
// exclusive lock. If mutate fails after a successful commit, the graph is
// divergent from the durable store — the Coordinator cannot repair this
// itself (spec.md says recovery is the coordinator's responsibility via
// re-hydration, which here means the caller reloading from source of truth).
func (c *Coordinator) Write(commit DurableWriter, mutate func(*quackgraph.Graph) error) error {
	if err := commit(); err != nil {
		return pkgerrors.Wrap(err, "coordinator: durable commit failed, core untouched")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := mutate(c.g); err != nil {
		c.logger.Error("core mutation failed after durable commit; core is now divergent and must be re-hydrated", zap.Error(err))
		return fmt.Errorf("coordinator: core divergent after durable commit: %w", err)
	}
	return nil
}

// Read runs fn against the graph under a shared lock, so it can never
// observe a mutation from an in-flight Write mid-way through (spec.md
// §4.7's read-isolation clause; §5's "publish any mutation before a reader
// begins").
func (c *Coordinator) Read(fn func(*quackgraph.Graph)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.g)
}

// InsertEdge serializes one insert_edge mutation behind commit.
func (c *Coordinator) InsertEdge(commit DurableWriter, src, dst, etype intern.Handle, validFrom, validTo int64) error {
	return c.Write(commit, func(g *quackgraph.Graph) error {
		g.InsertEdge(src, dst, etype, validFrom, validTo)
		return nil
	})
}

// CloseEdge serializes one close_edge mutation behind commit.
func (c *Coordinator) CloseEdge(commit DurableWriter, src, dst, etype intern.Handle, validTo int64) error {
	return c.Write(commit, func(g *quackgraph.Graph) error {
		g.CloseEdge(src, dst, etype, validTo)
		return nil
	})
}

// TombstoneNode serializes one tombstone_node mutation behind commit.
func (c *Coordinator) TombstoneNode(commit DurableWriter, h intern.Handle) error {
	return c.Write(commit, func(g *quackgraph.Graph) error {
		g.TombstoneNode(h)
		return nil
	})
}

// ReviveNode serializes one revive mutation behind commit.
func (c *Coordinator) ReviveNode(commit DurableWriter, h intern.Handle) error {
	return c.Write(commit, func(g *quackgraph.Graph) error {
		g.ReviveNode(h)
		return nil
	})
}

// LoadArrowBatch serializes one load_arrow_batch mutation behind commit,
// returning the number of edges inserted.
func (c *Coordinator) LoadArrowBatch(ctx context.Context, commit DurableWriter, r io.Reader, opts ...hydrate.Option) (int, error) {
	var n int
	err := c.Write(commit, func(g *quackgraph.Graph) error {
		var err error
		n, err = g.LoadArrowBatch(ctx, r, opts...)
		return err
	})
	return n, err
}

// Compact serializes a compact pass behind commit. Most durable stores have
// nothing to commit for a compaction (it doesn't change logical content),
// so callers typically pass a commit that just returns nil.
func (c *Coordinator) Compact(commit DurableWriter) error {
	return c.Write(commit, func(g *quackgraph.Graph) error {
		g.Compact()
		return nil
	})
}
