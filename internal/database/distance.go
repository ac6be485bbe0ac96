package database

import "math"

// EuclideanDistance computes the L2 distance between two vectors.
// Vectors of different length are infinitely far apart.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// NearestPerson scans persons in order and returns the index of the entry
// closest to query together with its distance. The first entry wins ties.
// Returns -1 when no entry has the query's dimension.
func NearestPerson(persons []StoredPerson, query []float32) (int, float64) {
	best := -1
	bestDist := math.Inf(1)
	for i := range persons {
		if len(persons[i].Embedding) != len(query) {
			continue
		}
		d := EuclideanDistance(persons[i].Embedding, query)
		if best < 0 || d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best, bestDist
}
