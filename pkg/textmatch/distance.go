package textmatch

import "unicode/utf8"

// LevenshteinDistance returns the minimum number of single-rune insertions,
// deletions and substitutions that turn a into b. Comparison is exact and
// case-sensitive.
//
// It keeps a single row sized to the shorter input, so extra memory is
// O(min(|a|, |b|)) and time is O(|a|·|b|).
func LevenshteinDistance(a, b string) int {
	if a == b {
		return 0
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if la > lb {
		a, b = b, a
		la = lb
	}
	if la == 0 {
		return utf8.RuneCountInString(b)
	}

	short := []rune(a)
	row := make([]int, la+1)
	for i := range row {
		row[i] = i
	}

	j := 0
	for _, rb := range b {
		j++
		diag := row[0]
		row[0] = j
		for i, ra := range short {
			above := row[i+1]
			cost := 1
			if ra == rb {
				cost = 0
			}
			row[i+1] = min(above+1, row[i]+1, diag+cost)
			diag = above
		}
	}
	return row[la]
}

// SimilarityForPair returns 1 - distance/max(len(a), len(b)) with lengths
// counted in runes. Two empty strings are identical (1); an empty string
// against a non-empty one scores 0. The result is symmetric and lies in [0, 1].
func SimilarityForPair(a, b string) float64 {
	sim, _ := pairScore(a, b)
	return sim
}

// pairScore returns the similarity of a and b together with the edit
// distance it was derived from.
func pairScore(a, b string) (float64, int) {
	if a == "" && b == "" {
		return 1, 0
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	if a == "" || b == "" {
		return 0, max(la, lb)
	}
	d := LevenshteinDistance(a, b)
	return 1 - float64(d)/float64(max(la, lb)), d
}
