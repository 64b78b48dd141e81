package container

import (
	"github.com/cespare/xxhash/v2"
)

const (
	mapInitialBuckets = 8
	mapMaxLoadNum     = 3
	mapMaxLoadDen     = 4
)

// StringHash hashes a string key with xxhash, the ecosystem replacement
// this codebase uses in place of the original's inline SipHash/Wang-mix
// hash_string.
func StringHash(s string) uint64 {
	return xxhash.Sum64String(s)
}

// BytesHash hashes a byte-slice key with xxhash, the ecosystem replacement
// for the original's hash_bytes.
func BytesHash(b []byte) uint64 {
	return xxhash.Sum64(b)
}

// IntHash hashes an int key (a file descriptor, say) with xxhash over its
// bytes, for Map[int, V] keys.
func IntHash(i int) uint64 {
	u := uint64(i)
	var b [8]byte
	for j := range b {
		b[j] = byte(u >> (8 * j))
	}
	return xxhash.Sum64(b[:])
}

// Map is an open-addressing hash map with linear probing and
// backward-shift deletion. K must hash deterministically via the supplied
// hash function; two equal keys must hash identically.
type Map[K comparable, V any] struct {
	hash func(K) uint64

	keys []K
	vals []V
	used []bool // used[i] tells whether keys[i]/vals[i] holds a live entry
	count int

	buckets []int32 // index into keys/vals, or -1 if empty
}

// NewMap creates an empty map using hash to derive bucket positions from
// keys.
func NewMap[K comparable, V any](hash func(K) uint64) *Map[K, V] {
	m := &Map[K, V]{hash: hash}
	m.initBuckets(mapInitialBuckets)
	return m
}

func (m *Map[K, V]) initBuckets(n int) {
	m.buckets = make([]int32, n)
	for i := range m.buckets {
		m.buckets[i] = -1
	}
}

// getBucketIndex walks the probe sequence for key starting from its home
// bucket, stepping backward through the table (matching the original's
// decrementing-probe convention) until it finds either a bucket holding
// key or an empty bucket where key would be inserted.
func (m *Map[K, V]) getBucketIndex(key K) int {
	n := len(m.buckets)
	start := int(m.hash(key) % uint64(n))
	i := start
	for {
		kv := m.buckets[i]
		if kv == -1 {
			return i
		}
		if m.keys[kv] == key {
			return i
		}
		i--
		if i < 0 {
			i = n - 1
		}
		if i == start {
			return -1 // table full of collisions; callers must grow first
		}
	}
}

func (m *Map[K, V]) growIfNeeded() {
	if (m.count+1)*mapMaxLoadDen <= len(m.buckets)*mapMaxLoadNum {
		return
	}
	newN := len(m.buckets) * 2
	if newN == 0 {
		newN = mapInitialBuckets
	}
	m.initBuckets(newN)
	for i, used := range m.used {
		if !used {
			continue
		}
		bi := m.getBucketIndex(m.keys[i])
		m.buckets[bi] = int32(i)
	}
}

// Set inserts or overwrites the value for key.
func (m *Map[K, V]) Set(key K, val V) {
	m.growIfNeeded()
	bi := m.getBucketIndex(key)
	if bi < 0 {
		// Shouldn't happen after growIfNeeded, but guard against a
		// pathological all-collisions table anyway.
		m.initBuckets(len(m.buckets) * 2)
		for i, used := range m.used {
			if used {
				m.buckets[m.getBucketIndex(m.keys[i])] = int32(i)
			}
		}
		bi = m.getBucketIndex(key)
	}

	if kv := m.buckets[bi]; kv != -1 {
		m.vals[kv] = val
		return
	}

	idx := len(m.keys)
	m.keys = append(m.keys, key)
	m.vals = append(m.vals, val)
	m.used = append(m.used, true)
	m.buckets[bi] = int32(idx)
	m.count++
}

// Get returns the value for key and whether it was present, replacing the
// keys[-1]/vals[-1] default-slot trick with an explicit boolean.
func (m *Map[K, V]) Get(key K) (V, bool) {
	bi := m.getBucketIndex(key)
	if bi < 0 || m.buckets[bi] == -1 {
		var zero V
		return zero, false
	}
	return m.vals[m.buckets[bi]], true
}

// IsSet reports whether key has an entry in the map.
func (m *Map[K, V]) IsSet(key K) bool {
	_, ok := m.Get(key)
	return ok
}

// Delete removes key if present and reports whether it was. Deletion uses
// two passes over the probe sequence (the explicit redesign the invariants
// call for in place of the original's single goto-based loop): the first
// finds key's bucket and empties it, the second walks on through the probe
// run (in the probe's own decrementing direction) re-homing any entry that
// was only reachable through the now-empty bucket. The kv pair is then
// removed by swapping the last live pair into its slot.
func (m *Map[K, V]) Delete(key K) bool {
	bi := m.getBucketIndex(key)
	if bi < 0 || m.buckets[bi] == -1 {
		return false
	}

	removedKV := m.buckets[bi]
	m.buckets[bi] = -1
	n := len(m.buckets)

	// Backward-shift: continue walking the probe chain in the same
	// direction the probe itself steps (decrementing, wrapping) from bi,
	// re-homing any entry that was only reachable through the bucket we
	// just emptied.
	j := bi
	for {
		j--
		if j < 0 {
			j = n - 1
		}
		kv := m.buckets[j]
		if kv == -1 {
			break
		}
		home := int(m.hash(m.keys[kv]) % uint64(n))
		// Does the probe from home pass through j before reaching bi?
		// In a backward-stepping probe, that's true when bi lies on the
		// backward path from home to j (inclusive of home, exclusive of j).
		if probeCrosses(home, j, bi, n) {
			m.buckets[bi] = kv
			m.buckets[j] = -1
			bi = j
		}
	}

	m.swapOutKV(removedKV)
	m.count--
	return true
}

// probeCrosses reports whether a backward linear probe starting at home
// and currently sitting at cur would have passed through target before
// reaching cur.
func probeCrosses(home, cur, target, n int) bool {
	dist := func(a, b int) int {
		d := a - b
		if d < 0 {
			d += n
		}
		return d
	}
	return dist(home, target) <= dist(home, cur)
}

// swapOutKV removes the kv pair at index i by swapping the last live pair
// into its place and fixing up that pair's bucket entry.
func (m *Map[K, V]) swapOutKV(i int32) {
	last := int32(len(m.keys) - 1)
	if i != last {
		lastKey := m.keys[last]
		m.keys[i] = m.keys[last]
		m.vals[i] = m.vals[last]
		bi := m.getBucketIndex(lastKey)
		m.buckets[bi] = i
	}
	m.keys = m.keys[:last]
	m.vals = m.vals[:last]
	m.used = m.used[:last]
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.count
}

// Each calls fn for every live entry, in the order the entries were
// inserted (Set on a fresh key appends to keys/vals). A Delete reshuffles
// that order for the swapped-in entry, so callers relying on insertion
// order — the query and named-capture dicts do — must not interleave
// Delete calls with iteration.
func (m *Map[K, V]) Each(fn func(K, V)) {
	for i := range m.keys {
		fn(m.keys[i], m.vals[i])
	}
}
