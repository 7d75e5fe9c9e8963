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

package snapshot_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quackgraph/quackgraph/intern"
	"github.com/quackgraph/quackgraph/snapshot"
	"github.com/quackgraph/quackgraph/topology"
	"github.com/quackgraph/quackgraph/traverse"
)

func buildChain(t *testing.T) (*intern.Interner, *intern.Interner, *topology.Topology, map[string]intern.Handle) {
	t.Helper()
	nodes := intern.New(0)
	etypes := intern.New(0)
	A, B, C, D, E := nodes.Intern("A"), nodes.Intern("B"), nodes.Intern("C"), nodes.Intern("D"), nodes.Intern("E")
	next := etypes.Intern("NEXT")
	topo := topology.New()
	topo.InsertEdge(A, B, next, 0, topology.Forever)
	topo.InsertEdge(B, C, next, 0, topology.Forever)
	topo.InsertEdge(C, D, next, 0, topology.Forever)
	topo.InsertEdge(D, E, next, 0, topology.Forever)
	topo.Compact()
	return nodes, etypes, topo, map[string]intern.Handle{"A": A, "B": B, "C": C, "D": D, "E": E, "NEXT": next}
}

// S6 — snapshot round trip.
func TestSaveLoadRoundTrip(t *testing.T) {
	nodes, etypes, topo, h := buildChain(t)
	path := filepath.Join(t.TempDir(), "snap.qgph")

	require.NoError(t, snapshot.Save(path, nodes, etypes, topo))

	got, err := snapshot.Load(path)
	require.NoError(t, err)

	before := traverse.Bounded(topo, []intern.Handle{h["A"]}, h["NEXT"], topology.Out, 1, 10, topology.Now)
	after := traverse.Bounded(got.Topology, []intern.Handle{h["A"]}, h["NEXT"], topology.Out, 1, 10, topology.Now)
	require.ElementsMatch(t, before, after)

	aStr, ok := got.Interner.Lookup("A")
	require.True(t, ok)
	require.Equal(t, h["A"], aStr)
}

func TestSaveLoadRoundTripZstd(t *testing.T) {
	nodes, etypes, topo, h := buildChain(t)
	path := filepath.Join(t.TempDir(), "snap.qgph.zst")

	require.NoError(t, snapshot.Save(path, nodes, etypes, topo, snapshot.WithZstd()))

	got, err := snapshot.Load(path)
	require.NoError(t, err)

	before := traverse.Bounded(topo, []intern.Handle{h["A"]}, h["NEXT"], topology.Out, 1, 10, topology.Now)
	after := traverse.Bounded(got.Topology, []intern.Handle{h["A"]}, h["NEXT"], topology.Out, 1, 10, topology.Now)
	require.ElementsMatch(t, before, after)
}

func TestLoadRejectsCorruptChecksum(t *testing.T) {
	nodes, etypes, topo, _ := buildChain(t)
	path := filepath.Join(t.TempDir(), "snap.qgph")
	require.NoError(t, snapshot.Save(path, nodes, etypes, topo))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = snapshot.Load(path)
	require.ErrorIs(t, err, snapshot.ErrCorrupt)
}

func TestLoadRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.qgph")
	require.NoError(t, os.WriteFile(path, []byte("NOPE0000000000000000"), 0o644))

	_, err := snapshot.Load(path)
	require.ErrorIs(t, err, snapshot.ErrCorrupt)
}

func TestLoadRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.qgph")
	require.NoError(t, os.WriteFile(path, []byte("QG"), 0o644))

	_, err := snapshot.Load(path)
	require.ErrorIs(t, err, snapshot.ErrCorrupt)
}

func TestSaveIsAtomicNoTmpFileLeftBehind(t *testing.T) {
	nodes, etypes, topo, _ := buildChain(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "snap.qgph")
	require.NoError(t, snapshot.Save(path, nodes, etypes, topo))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".quackgraph-snapshot-")
	}
}

func TestSaveLoadEmptyTopology(t *testing.T) {
	nodes := intern.New(0)
	etypes := intern.New(0)
	topo := topology.New()
	path := filepath.Join(t.TempDir(), "empty.qgph")

	require.NoError(t, snapshot.Save(path, nodes, etypes, topo))
	got, err := snapshot.Load(path)
	require.NoError(t, err)
	require.Equal(t, 0, got.Topology.NodeCount())
}
