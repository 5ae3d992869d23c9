// Package eval holds offline retrieval quality metrics.
package eval

import "math"

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

// PrecisionAtK is the share of distinct retrieved chunks that are relevant.
func PrecisionAtK(retrieved, relevant []string) float64 {
	if len(retrieved) == 0 {
		return 0
	}

	relevantSet := toSet(relevant)
	retrievedSet := toSet(retrieved)

	hits := 0
	for r := range retrievedSet {
		if relevantSet[r] {
			hits++
		}
	}
	return round3(float64(hits) / float64(len(retrievedSet)))
}

// Recall is the share of distinct relevant chunks that were retrieved.
func Recall(retrieved, relevant []string) float64 {
	if len(relevant) == 0 {
		return 0
	}

	relevantSet := toSet(relevant)
	retrievedSet := toSet(retrieved)

	hits := 0
	for r := range relevantSet {
		if retrievedSet[r] {
			hits++
		}
	}
	return round3(float64(hits) / float64(len(relevantSet)))
}

func AverageDistance(distances []float64) float64 {
	if len(distances) == 0 {
		return 0
	}

	sum := 0.0
	for _, d := range distances {
		sum += d
	}
	return round3(sum / float64(len(distances)))
}
