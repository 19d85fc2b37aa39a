// Copyright 2014 The Cayley Authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kv

// primeTable is a precomputed, ascending table of primes used to size the
// main bucket region: spec section 4.1 calls for "a prime (via a
// precomputed prime table) near 80% * slots/A". Each entry is roughly 1.3x
// the previous one so the table covers several orders of magnitude without
// being enormous.
var primeTable = []uint64{
	11, 17, 23, 31, 41, 53, 67, 89, 113, 149,
	193, 251, 331, 431, 563, 733, 953, 1237, 1609, 2089,
	2719, 3539, 4603, 5987, 7789, 10133, 13177, 17137, 22273, 28961,
	37649, 48973, 63659, 82759, 107581, 139871, 181739, 236261, 307147, 399283,
	519067, 674789, 877213, 1140389, 1482499, 1927279, 2505457, 3257101, 4234247, 5504503,
	7155851, 9302627, 12093421, 15721439, 20437873, 26569237, 34540001, 44902031, 58372631, 75884407,
	98649763, 128244659, 166718087, 216733519, 281753609, 366279673, 476163577, 618986509, 804682891, 1046087767,
}

func isPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint64(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// NearestPrimeAtMost returns a prime <= n (2 when n < 2). Within
// primeTable's range it returns the largest table entry <= n, which need
// not be the largest prime <= n (100 gives 89, not 97). Below the table's
// first entry and beyond its last it finds the largest prime <= n by trial
// division, which only ever runs once, at store construction.
func NearestPrimeAtMost(n uint64) uint64 {
	if n < 2 {
		return 2
	}
	if n < primeTable[0] {
		for c := n; c >= 2; c-- {
			if isPrime(c) {
				return c
			}
		}
		return 2
	}
	if n <= primeTable[len(primeTable)-1] {
		best := primeTable[0]
		for _, p := range primeTable {
			if p > n {
				break
			}
			best = p
		}
		return best
	}
	for c := n; c >= 2; c-- {
		if isPrime(c) {
			return c
		}
	}
	return 2
}
