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

package hydrate_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/stretchr/testify/require"

	"github.com/quackgraph/quackgraph/hydrate"
	"github.com/quackgraph/quackgraph/intern"
	"github.com/quackgraph/quackgraph/topology"
)

var edgeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "source", Type: arrow.BinaryTypes.String},
	{Name: "target", Type: arrow.BinaryTypes.String},
	{Name: "type", Type: arrow.BinaryTypes.String},
	{Name: "valid_from", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	{Name: "valid_to", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
}, nil)

// edgeSchemaFloat64 mirrors edgeSchema but encodes the timestamp columns as
// float64 microseconds, the alternate column type spec.md §4.3/§6 requires
// the Hydrator to accept.
var edgeSchemaFloat64 = arrow.NewSchema([]arrow.Field{
	{Name: "source", Type: arrow.BinaryTypes.String},
	{Name: "target", Type: arrow.BinaryTypes.String},
	{Name: "type", Type: arrow.BinaryTypes.String},
	{Name: "valid_from", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	{Name: "valid_to", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
}, nil)

func encodeBatchFloat64(t *testing.T, sources, targets, types []string, validFrom, validTo []float64, validToNull []bool) []byte {
	t.Helper()
	pool := memory.NewGoAllocator()
	b := array.NewRecordBuilder(pool, edgeSchemaFloat64)
	defer b.Release()

	b.Field(0).(*array.StringBuilder).AppendValues(sources, nil)
	b.Field(1).(*array.StringBuilder).AppendValues(targets, nil)
	b.Field(2).(*array.StringBuilder).AppendValues(types, nil)
	b.Field(3).(*array.Float64Builder).AppendValues(validFrom, nil)

	toBuilder := b.Field(4).(*array.Float64Builder)
	for i, v := range validTo {
		if validToNull != nil && validToNull[i] {
			toBuilder.AppendNull()
		} else {
			toBuilder.Append(v)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(edgeSchemaFloat64))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func encodeBatch(t *testing.T, sources, targets, types []string, validFrom, validTo []int64, validToNull []bool) []byte {
	t.Helper()
	pool := memory.NewGoAllocator()
	b := array.NewRecordBuilder(pool, edgeSchema)
	defer b.Release()

	b.Field(0).(*array.StringBuilder).AppendValues(sources, nil)
	b.Field(1).(*array.StringBuilder).AppendValues(targets, nil)
	b.Field(2).(*array.StringBuilder).AppendValues(types, nil)
	b.Field(3).(*array.Int64Builder).AppendValues(validFrom, nil)

	toBuilder := b.Field(4).(*array.Int64Builder)
	for i, v := range validTo {
		if validToNull != nil && validToNull[i] {
			toBuilder.AppendNull()
		} else {
			toBuilder.Append(v)
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(edgeSchema))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestHydrateInsertsEdges(t *testing.T) {
	data := encodeBatch(t,
		[]string{"A", "B", "C"},
		[]string{"B", "C", "A"},
		[]string{"NEXT", "NEXT", "NEXT"},
		[]int64{0, 0, 0},
		[]int64{0, 0, 0},
		[]bool{true, true, true},
	)

	nodes := intern.New(0)
	etypes := intern.New(0)
	topo := topology.New()

	n, err := hydrate.Hydrate(context.Background(), bytes.NewReader(data), nodes, etypes, topo)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	a, _ := nodes.Lookup("A")
	next, _ := etypes.Lookup("NEXT")
	require.Equal(t, []intern.Handle{a + 1}, topo.ActiveOut(a, next, topology.Now))
}

func TestHydrateValidToDefaultsToForeverWhenNull(t *testing.T) {
	data := encodeBatch(t, []string{"A"}, []string{"B"}, []string{"T"}, []int64{5}, []int64{0}, []bool{true})

	nodes := intern.New(0)
	etypes := intern.New(0)
	topo := topology.New()
	_, err := hydrate.Hydrate(context.Background(), bytes.NewReader(data), nodes, etypes, topo)
	require.NoError(t, err)

	a, _ := nodes.Lookup("A")
	tt, _ := etypes.Lookup("T")
	require.NotEmpty(t, topo.ActiveOut(a, tt, topology.Now))
}

func TestHydrateAcceptsFloat64Timestamps(t *testing.T) {
	data := encodeBatchFloat64(t,
		[]string{"A", "B"},
		[]string{"B", "C"},
		[]string{"NEXT", "NEXT"},
		[]float64{1000, 2000.7},
		[]float64{0, 0},
		[]bool{true, true},
	)

	nodes := intern.New(0)
	etypes := intern.New(0)
	topo := topology.New()

	n, err := hydrate.Hydrate(context.Background(), bytes.NewReader(data), nodes, etypes, topo)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	a, _ := nodes.Lookup("A")
	next, _ := etypes.Lookup("NEXT")
	require.Equal(t, []intern.Handle{a + 1}, topo.ActiveOut(a, next, topology.Now))
	require.Empty(t, topo.ActiveOut(a, next, 500))
	require.Equal(t, []intern.Handle{a + 1}, topo.ActiveOut(a, next, 1500))
}

func TestHydrateRejectsMissingColumn(t *testing.T) {
	pool := memory.NewGoAllocator()
	badSchema := arrow.NewSchema([]arrow.Field{
		{Name: "source", Type: arrow.BinaryTypes.String},
	}, nil)
	b := array.NewRecordBuilder(pool, badSchema)
	defer b.Release()
	b.Field(0).(*array.StringBuilder).Append("A")
	rec := b.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(badSchema))
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	nodes := intern.New(0)
	etypes := intern.New(0)
	topo := topology.New()
	_, err := hydrate.Hydrate(context.Background(), bytes.NewReader(buf.Bytes()), nodes, etypes, topo)
	require.Error(t, err)
	var hErr *hydrate.HydrationError
	require.ErrorAs(t, err, &hErr)
	require.Equal(t, hydrate.Schema, hErr.Kind)
}

func TestHydrateRejectsMalformedStream(t *testing.T) {
	nodes := intern.New(0)
	etypes := intern.New(0)
	topo := topology.New()
	_, err := hydrate.Hydrate(context.Background(), bytes.NewReader([]byte("not an arrow stream")), nodes, etypes, topo)
	require.Error(t, err)
	var hErr *hydrate.HydrationError
	require.ErrorAs(t, err, &hErr)
	require.Equal(t, hydrate.Decode, hErr.Kind)
}

func TestHydrateRespectsContextCancellation(t *testing.T) {
	data := encodeBatch(t, []string{"A"}, []string{"B"}, []string{"T"}, []int64{0}, []int64{0}, []bool{true})

	nodes := intern.New(0)
	etypes := intern.New(0)
	topo := topology.New()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := hydrate.Hydrate(ctx, bytes.NewReader(data), nodes, etypes, topo)
	require.Error(t, err)
}
