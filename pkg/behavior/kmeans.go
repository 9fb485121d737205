package behavior

import (
	"math"
)

// kMeans is a small Lloyd's-algorithm clusterer over Euclidean distance.
// Initial centroids are picked at evenly spaced sample indices so a
// given feature matrix always clusters the same way.
type kMeans struct {
	k       int
	maxIter int
}

func newKMeans(k int) *kMeans {
	return &kMeans{k: k, maxIter: 100}
}

// fitPredict clusters the rows of data and returns one cluster index
// per row. When there are fewer rows than clusters, each row gets its
// own cluster.
func (m *kMeans) fitPredict(data [][]float64) []int {
	n := len(data)
	if n == 0 {
		return nil
	}

	k := m.k
	if k > n {
		k = n
	}

	dims := len(data[0])

	centroids := make([][]float64, k)
	for c := 0; c < k; c++ {
		centroids[c] = append([]float64(nil), data[c*n/k]...)
	}

	assignments := make([]int, n)

	for iter := 0; iter < m.maxIter; iter++ {
		changed := false
		for i, row := range data {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				if d := squaredDistance(row, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed && iter > 0 {
			break
		}

		// Re-fit centroids from the current assignments. Empty clusters
		// keep their previous centroid.
		sums := make([][]float64, k)
		counts := make([]int, k)
		for c := range sums {
			sums[c] = make([]float64, dims)
		}
		for i, row := range data {
			c := assignments[i]
			counts[c]++
			for j, v := range row {
				sums[c][j] += v
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				continue
			}
			for j := range sums[c] {
				centroids[c][j] = sums[c][j] / float64(counts[c])
			}
		}
	}

	return assignments
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
