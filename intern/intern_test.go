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

package intern_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quackgraph/quackgraph/intern"
)

func TestInternIdempotent(t *testing.T) {
	in := intern.New(0)
	h1 := in.Intern("alice")
	h2 := in.Intern("alice")
	require.Equal(t, h1, h2)
	require.Equal(t, 1, in.Len())
}

func TestInternDistinctHandles(t *testing.T) {
	in := intern.New(0)
	a := in.Intern("a")
	b := in.Intern("b")
	require.NotEqual(t, a, b)
	require.Equal(t, 2, in.Len())
}

// Invariant 1 (spec.md §8): for every handle h < interner.Len(),
// intern(resolve(h)) == h.
func TestInvariantInternResolveRoundTrip(t *testing.T) {
	in := intern.New(0)
	names := []string{"A", "B", "C", "D", "E"}
	for _, n := range names {
		in.Intern(n)
	}
	for h := uint32(0); h < uint32(in.Len()); h++ {
		s, ok := in.Resolve(h)
		require.True(t, ok)
		require.Equal(t, h, in.Intern(s))
	}
}

func TestLookupMiss(t *testing.T) {
	in := intern.New(0)
	_, ok := in.Lookup("nope")
	require.False(t, ok)
}

func TestResolveErrOutOfRange(t *testing.T) {
	in := intern.New(0)
	in.Intern("x")
	_, err := in.ResolveErr(5)
	require.Error(t, err)
	require.True(t, errors.Is(err, intern.ErrUnknownHandle))
}

func TestInternConcurrentSameString(t *testing.T) {
	in := intern.New(0)
	var wg sync.WaitGroup
	handles := make([]intern.Handle, 64)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = in.Intern("shared")
		}(i)
	}
	wg.Wait()
	for _, h := range handles {
		require.Equal(t, handles[0], h)
	}
	require.Equal(t, 1, in.Len())
}
