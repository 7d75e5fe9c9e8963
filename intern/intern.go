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

// Package intern implements a bidirectional string<->handle interner: the
// bijection between opaque string identifiers (node ids, edge-type labels)
// and dense uint32 handles that the rest of quackgraph addresses nodes by.
//
// Handles are append-only and never reassigned. There is no delete: the
// trade-off (string memory retained for the life of the process even for
// tombstoned nodes) is accepted in exchange for handle stability across
// compaction and snapshot round-trips.
package intern

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownHandle is returned by ResolveErr when a handle is out of range —
// the core's UnknownHandle error kind (spec §6).
var ErrUnknownHandle = errors.New("intern: unknown handle")

// Handle is a dense, non-negative integer identifying an interned string.
// Once issued by Intern, a handle is never reassigned to a different string.
type Handle = uint32

// Interner is a thread-safe string<->Handle bijection. The zero value is not
// usable; construct with New.
type Interner struct {
	mu      sync.RWMutex
	forward map[string]Handle
	reverse []string
}

// New returns an empty Interner pre-sized for capacity entries.
func New(capacityHint int) *Interner {
	if capacityHint < 0 {
		capacityHint = 0
	}
	return &Interner{
		forward: make(map[string]Handle, capacityHint),
		reverse: make([]string, 0, capacityHint),
	}
}

// Intern returns the handle for s, interning it if this is the first time s
// has been seen. O(1) average.
func (in *Interner) Intern(s string) Handle {
	in.mu.RLock()
	if h, ok := in.forward[s]; ok {
		in.mu.RUnlock()
		return h
	}
	in.mu.RUnlock()

	in.mu.Lock()
	defer in.mu.Unlock()
	// Re-check: another writer may have interned s while we waited for the lock.
	if h, ok := in.forward[s]; ok {
		return h
	}
	h := Handle(len(in.reverse))
	in.reverse = append(in.reverse, s)
	in.forward[s] = h
	return h
}

// Lookup returns the handle for s without interning it. ok is false if s has
// never been interned.
func (in *Interner) Lookup(s string) (h Handle, ok bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	h, ok = in.forward[s]
	return h, ok
}

// Resolve returns the string for h. ok is false if h is out of range
// (h >= Len()); callers that want an error value instead should use
// ResolveErr.
func (in *Interner) Resolve(h Handle) (s string, ok bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if int(h) >= len(in.reverse) {
		return "", false
	}
	return in.reverse[h], true
}

// ResolveErr is Resolve, but returns ErrUnknownHandle instead of a boolean
// when h is out of range.
func (in *Interner) ResolveErr(h Handle) (string, error) {
	s, ok := in.Resolve(h)
	if !ok {
		return "", fmt.Errorf("%w: %d (len=%d)", ErrUnknownHandle, h, in.Len())
	}
	return s, nil
}

// Len returns the current handle count (one past the highest issued handle).
func (in *Interner) Len() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.reverse)
}
