package pipeline

import (
	"math"
	"strings"
)

// Allocate splits target cards across sections in proportion to their text length.
// The result is aligned with texts and sums to target; every entry is at least 1
// whenever target >= len(texts). Ties are broken by lowest index.
func Allocate(texts []string, target int) []int {
	quotas := make([]int, len(texts))
	if len(texts) == 0 || target <= 0 {
		return quotas
	}

	weights := make([]int, len(texts))
	total := 0
	for i, t := range texts {
		weights[i] = max(1, len(strings.TrimSpace(t)))
		total += weights[i]
	}

	sum := 0
	for i, w := range weights {
		share := math.Floor(float64(w)/float64(total)*float64(target) + 0.5)
		quotas[i] = max(1, int(share))
		sum += quotas[i]
	}

	for sum > target {
		quotas[indexOfMax(quotas)]--
		sum--
	}
	for sum < target {
		quotas[indexOfMin(quotas)]++
		sum++
	}
	return quotas
}

func indexOfMax(xs []int) int {
	best := 0
	for i, x := range xs {
		if x > xs[best] {
			best = i
		}
	}
	return best
}

func indexOfMin(xs []int) int {
	best := 0
	for i, x := range xs {
		if x < xs[best] {
			best = i
		}
	}
	return best
}
