package index

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// ANN tuning. Below ivfThreshold entries an exhaustive scan is faster
// than maintaining coarse cells, so the structure degrades to flat
// search transparently.
const (
	ivfThreshold  = 256
	kmeansIters   = 8
	defaultProbes = 4
)

// Neighbor is one approximate-nearest-neighbor result.
type Neighbor struct {
	SongID     string
	Similarity float64 // cosine similarity in [-1, 1]
}

type annEntry struct {
	songID string
	vector []float64 // unit-normalized
}

// annIndex is an IVF-flat structure over unit vectors: entries are
// bucketed by nearest coarse centroid at build time, and queries scan
// only the closest few cells. With unit vectors, cosine similarity
// reduces to a dot product.
type annIndex struct {
	entries   []annEntry
	centroids [][]float64
	cells     [][]int // entry indices per centroid
	probes    int
}

// buildANN constructs the structure from (songID, descriptor) pairs.
// Vectors are copied and normalized; zero vectors are kept but can
// never win a similarity contest.
func buildANN(ids []string, vectors [][]float64) *annIndex {
	ix := &annIndex{probes: defaultProbes}
	for i, id := range ids {
		v := make([]float64, len(vectors[i]))
		copy(v, vectors[i])
		if n := floats.Norm(v, 2); n > 0 {
			floats.Scale(1/n, v)
		}
		ix.entries = append(ix.entries, annEntry{songID: id, vector: v})
	}

	if len(ix.entries) >= ivfThreshold {
		ix.train()
	}
	return ix
}

// train runs a few rounds of spherical k-means with a fixed seed so
// rebuilding the same catalog yields the same cells.
func (ix *annIndex) train() {
	n := len(ix.entries)
	k := int(math.Sqrt(float64(n)))
	if k < 2 {
		return
	}
	dim := len(ix.entries[0].vector)

	rng := rand.New(rand.NewSource(1))
	centroids := make([][]float64, k)
	for i, p := range rng.Perm(n)[:k] {
		c := make([]float64, dim)
		copy(c, ix.entries[p].vector)
		centroids[i] = c
	}

	assign := make([]int, n)
	for iter := 0; iter < kmeansIters; iter++ {
		for i, e := range ix.entries {
			assign[i] = nearestCentroid(centroids, e.vector)
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, e := range ix.entries {
			floats.Add(sums[assign[i]], e.vector)
			counts[assign[i]]++
		}
		for i := range centroids {
			if counts[i] == 0 {
				continue // keep the old centroid for empty cells
			}
			if norm := floats.Norm(sums[i], 2); norm > 0 {
				floats.Scale(1/norm, sums[i])
			}
			centroids[i] = sums[i]
		}
	}

	cells := make([][]int, k)
	for i, e := range ix.entries {
		c := nearestCentroid(centroids, e.vector)
		cells[c] = append(cells[c], i)
		assign[i] = c
	}

	ix.centroids = centroids
	ix.cells = cells
}

func nearestCentroid(centroids [][]float64, v []float64) int {
	best, bestDot := 0, math.Inf(-1)
	for i, c := range centroids {
		if d := floats.Dot(c, v); d > bestDot {
			bestDot = d
			best = i
		}
	}
	return best
}

// query returns the top-k entries by cosine similarity. Flat scan when
// untrained, otherwise the probes nearest cells are scanned.
func (ix *annIndex) query(descriptor []float64, k int) []Neighbor {
	if ix == nil || len(ix.entries) == 0 || k <= 0 {
		return nil
	}

	q := make([]float64, len(descriptor))
	copy(q, descriptor)
	if n := floats.Norm(q, 2); n > 0 {
		floats.Scale(1/n, q)
	}

	var candidates []int
	if ix.centroids == nil {
		candidates = make([]int, len(ix.entries))
		for i := range candidates {
			candidates[i] = i
		}
	} else {
		order := make([]int, len(ix.centroids))
		for i := range order {
			order[i] = i
		}
		sort.Slice(order, func(a, b int) bool {
			return floats.Dot(ix.centroids[order[a]], q) > floats.Dot(ix.centroids[order[b]], q)
		})
		probes := ix.probes
		if probes > len(order) {
			probes = len(order)
		}
		for _, c := range order[:probes] {
			candidates = append(candidates, ix.cells[c]...)
		}
	}

	neighbors := make([]Neighbor, 0, len(candidates))
	for _, i := range candidates {
		e := ix.entries[i]
		neighbors = append(neighbors, Neighbor{
			SongID:     e.songID,
			Similarity: floats.Dot(e.vector, q),
		})
	}
	sort.Slice(neighbors, func(a, b int) bool {
		return neighbors[a].Similarity > neighbors[b].Similarity
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}
