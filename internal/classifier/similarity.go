package classifier

import "strings"

// Similarity scores how alike two product names are, in [0, 1]. The score
// is the classic longest-matching-blocks ratio: 2*M / (len(a)+len(b)),
// where M is the total length of all matching blocks. Whitespace is
// collapsed and comparison is case-insensitive.
func Similarity(a, b string) float64 {
	a = normalizeName(a)
	b = normalizeName(b)
	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	ra := []rune(a)
	rb := []rune(b)
	matched := matchingBlocks(ra, rb)
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

func normalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// matchingBlocks returns the total length of matching blocks between a and
// b: the longest common substring, then recursively the matches to its left
// and to its right.
func matchingBlocks(a, b []rune) int {
	ai, bi, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}

	total := size
	total += matchingBlocks(a[:ai], b[:bi])
	total += matchingBlocks(a[ai+size:], b[bi+size:])
	return total
}

// longestMatch finds the longest common substring of a and b using the
// standard dynamic-programming table, keeping only one row in memory.
func longestMatch(a, b []rune) (ai, bi, size int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > size {
					size = curr[j]
					ai = i - size
					bi = j - size
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return ai, bi, size
}
