package tissue

import (
	"math"
	"sort"
)

// DefaultBucketSize is the bucket edge used when none is configured.
const DefaultBucketSize = 20

// MaxNeighborhoodRadius is the largest radius a config may declare.
// Larger queries are still answered, by scanning every bucket.
const MaxNeighborhoodRadius = math.MaxInt32

type bucketKey struct {
	bx, by int
}

// NeighborhoodIndex is a uniform bucket grid over occupied positions. It
// is updated in place as cells move and divide so that every query sees
// the occupancy committed so far in the current step.
type NeighborhoodIndex struct {
	size    int
	buckets map[bucketKey][]Neighbor
	count   int
}

// NewNeighborhoodIndex creates an empty index with the given bucket edge.
func NewNeighborhoodIndex(bucketSize int) *NeighborhoodIndex {
	if bucketSize <= 0 {
		bucketSize = DefaultBucketSize
	}
	return &NeighborhoodIndex{
		size:    bucketSize,
		buckets: make(map[bucketKey][]Neighbor),
	}
}

// floorDiv rounds toward negative infinity so buckets tile negative
// coordinates without a double-width bucket at the origin.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func (ni *NeighborhoodIndex) keyOf(p Position) bucketKey {
	return bucketKey{bx: floorDiv(p.X, ni.size), by: floorDiv(p.Y, ni.size)}
}

// Len returns the number of indexed positions.
func (ni *NeighborhoodIndex) Len() int {
	return ni.count
}

// Insert adds an occupied position. Callers guarantee p is not already indexed.
func (ni *NeighborhoodIndex) Insert(p Position, t CellType) {
	k := ni.keyOf(p)
	ni.buckets[k] = append(ni.buckets[k], Neighbor{Position: p, Type: t})
	ni.count++
}

// Remove drops p from the index. It reports whether p was present.
func (ni *NeighborhoodIndex) Remove(p Position) bool {
	k := ni.keyOf(p)
	bucket := ni.buckets[k]
	for i, n := range bucket {
		if n.Position != p {
			continue
		}
		// keep insertion order so queries stay deterministic
		copy(bucket[i:], bucket[i+1:])
		bucket = bucket[:len(bucket)-1]
		if len(bucket) == 0 {
			delete(ni.buckets, k)
		} else {
			ni.buckets[k] = bucket
		}
		ni.count--
		return true
	}
	return false
}

// Move relocates the entry at from to to.
func (ni *NeighborhoodIndex) Move(from, to Position, t CellType) bool {
	if !ni.Remove(from) {
		return false
	}
	ni.Insert(to, t)
	return true
}

// Query returns every indexed position within Euclidean distance radius
// of center, excluding center itself. Results are ordered by bucket
// (row-major from the lowest bucket) and insertion order inside a bucket.
func (ni *NeighborhoodIndex) Query(center Position, radius float64) []Neighbor {
	if radius < 0 || math.IsNaN(radius) {
		return nil
	}
	unbounded := radius > MaxNeighborhoodRadius
	var lo, hi bucketKey
	if !unbounded {
		reach := int(math.Floor(radius))
		lo = ni.keyOf(Position{X: center.X - reach, Y: center.Y - reach})
		hi = ni.keyOf(Position{X: center.X + reach, Y: center.Y + reach})
	}

	var out []Neighbor
	span := float64(hi.bx-lo.bx+1) * float64(hi.by-lo.by+1)
	if unbounded || span > float64(len(ni.buckets)) {
		// sparse index: scanning the buckets that exist is cheaper
		keys := make([]bucketKey, 0, len(ni.buckets))
		for k := range ni.buckets {
			if unbounded || (k.bx >= lo.bx && k.bx <= hi.bx && k.by >= lo.by && k.by <= hi.by) {
				keys = append(keys, k)
			}
		}
		sort.Slice(keys, func(i, j int) bool {
			if keys[i].by != keys[j].by {
				return keys[i].by < keys[j].by
			}
			return keys[i].bx < keys[j].bx
		})
		for _, k := range keys {
			out = ni.collect(out, k, center, radius)
		}
		return out
	}

	for by := lo.by; by <= hi.by; by++ {
		for bx := lo.bx; bx <= hi.bx; bx++ {
			out = ni.collect(out, bucketKey{bx: bx, by: by}, center, radius)
		}
	}
	return out
}

func (ni *NeighborhoodIndex) collect(out []Neighbor, k bucketKey, center Position, radius float64) []Neighbor {
	for _, n := range ni.buckets[k] {
		if n.Position == center {
			continue
		}
		if center.Distance(n.Position) <= radius {
			out = append(out, n)
		}
	}
	return out
}
