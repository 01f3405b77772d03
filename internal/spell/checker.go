package spell

import (
	_ "embed"
	"strings"
	"unicode"
)

const (
	Engine      = "go-lexical-v1"
	maxDistance = 2
)

//go:embed words.txt
var defaultWords string

type Checker struct {
	// rank is the line of the first occurrence; lower is more frequent.
	rank  map[string]int
	words []string
}

func NewChecker() *Checker {
	return NewCheckerFromList(defaultWords)
}

// NewCheckerFromList builds a checker from a newline separated word list
// ordered from most to least frequent.
func NewCheckerFromList(list string) *Checker {
	c := &Checker{rank: make(map[string]int)}
	for _, line := range strings.Split(list, "\n") {
		w := strings.ToLower(strings.TrimSpace(line))
		if w == "" {
			continue
		}
		if _, ok := c.rank[w]; ok {
			continue
		}
		c.rank[w] = len(c.words)
		c.words = append(c.words, w)
	}
	return c
}

func (c *Checker) Size() int {
	return len(c.words)
}

// Known reports whether word is in the dictionary. Tokens without letters,
// or with digits in them, are always known.
func (c *Checker) Known(word string) bool {
	w := normalize(word)
	if w == "" || !hasLetter(w) || hasDigit(w) {
		return true
	}
	_, ok := c.rank[w]
	return ok
}

// Correction returns the closest dictionary word within two edits,
// preferring fewer edits and then more frequent words. Unknown words with
// no candidate come back unchanged.
func (c *Checker) Correction(word string) string {
	if c.Known(word) {
		return word
	}
	w := normalize(word)

	best := ""
	bestDist := maxDistance + 1
	bestRank := len(c.words)
	for i, cand := range c.words {
		if abs(len(cand)-len(w)) > maxDistance {
			continue
		}
		d := distance(w, cand)
		if d > maxDistance {
			continue
		}
		if d < bestDist || (d == bestDist && i < bestRank) {
			best, bestDist, bestRank = cand, d, i
		}
	}
	if best == "" {
		return word
	}
	return best
}

// Check maps every unknown word to its correction.
func (c *Checker) Check(words []string) map[string]string {
	out := make(map[string]string)
	for _, w := range words {
		if c.Known(w) {
			continue
		}
		out[w] = c.Correction(w)
	}
	return out
}

func normalize(word string) string {
	w := strings.ToLower(strings.TrimSpace(word))
	return strings.ReplaceAll(w, "’", "'")
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// distance is the optimal string alignment distance: insertions, deletions,
// substitutions and adjacent transpositions all cost one.
func distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev2 := make([]int, len(rb)+1)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				cur[j] = min(cur[j], prev2[j-2]+1)
			}
		}
		prev2, prev, cur = prev, cur, prev2
	}
	return prev[len(rb)]
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
