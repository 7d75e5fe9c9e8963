// Copyright 2017 The go-ethereum Authors
// (original work)
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

package topology

import "math/bits"

// safeMul returns x*y and whether the multiplication overflowed uint64.
func safeMul(x, y uint64) (uint64, bool) {
	hi, lo := bits.Mul64(x, y)
	return lo, hi != 0
}

// safeAdd returns x+y and whether the addition overflowed uint64.
func safeAdd(x, y uint64) (uint64, bool) {
	sum, carryOut := bits.Add64(x, y, 0)
	return sum, carryOut != 0
}

// growCapacity returns the next geometric capacity that is >= need, growing
// from cur by roughly 1.5x each step. AllocError-equivalent (spec §7,
// "capacity growth never fails") is represented by the bool return: growth is
// never expected to overflow in practice (handle space is uint32-bounded),
// but the check keeps the guarantee explicit rather than silently wrapping.
func growCapacity(cur, need uint64) (uint64, bool) {
	if need <= cur {
		return cur, true
	}
	next := cur
	if next == 0 {
		next = 16
	}
	for next < need {
		grown, overflow := safeMul(next, 3)
		if overflow {
			return 0, false
		}
		grown /= 2
		if grown <= next {
			grown, overflow = safeAdd(next, 1)
			if overflow {
				return 0, false
			}
		}
		next = grown
	}
	return next, true
}
