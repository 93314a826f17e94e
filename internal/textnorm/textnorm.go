// Package textnorm normalizes product names for lookups and scores fuzzy
// matches between them.
package textnorm

import (
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	separatorReplacer = strings.NewReplacer(
		"\u200c", " ", // zwnj
		"\u200f", " ", // rtl mark
		"\u200e", " ", // ltr mark
		",", " ",
		":", " ",
		";", " ",
		"/", " ",
		"\\", " ",
		"(", " ",
		")", " ",
		"[", " ",
		"]", " ",
		"{", " ",
		"}", " ",
		"-", " ",
		"_", " ",
		"+", " ",
		"*", " ",
	)
)

// Name folds case, applies NFKC and collapses separators so that
// "Paracetamol 500mg (Box)" and "paracetamol  500MG box" compare equal.
func Name(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	value = norm.NFKC.String(value)
	// Casers are stateful, so one is built per call.
	value = cases.Fold().String(value)
	value = separatorReplacer.Replace(value)
	return strings.Join(strings.Fields(value), " ")
}

// Key is the case-insensitive identity used for uniqueness checks. It only
// trims and folds case so it agrees with LOWER(TRIM(x)) in SQL.
func Key(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Similarity returns a 0..100 score derived from the Levenshtein distance of
// two normalized names. ok is false when the score is below threshold; the
// distance computation stops early in that case.
func Similarity(left, right string, threshold float64) (score float64, distance int, ok bool) {
	return similarityPercent([]rune(left), []rune(right), threshold)
}

func similarityPercent(left, right []rune, threshold float64) (float64, int, bool) {
	maxLen := max(len(left), len(right))
	if maxLen == 0 {
		return 100.0, 0, true
	}
	if threshold >= 100 {
		if string(left) == string(right) {
			return 100.0, 0, true
		}
		return 0, 1, false
	}
	maxDistance := int(math.Floor((100.0 - threshold) * float64(maxLen) / 100.0))
	if maxDistance < 1 {
		maxDistance = 1
	}
	if abs(len(left)-len(right)) > maxDistance {
		return 0, 0, false
	}
	distance, ok := levenshteinWithin(left, right, maxDistance)
	if !ok {
		return 0, distance, false
	}
	score := 100.0 * (1.0 - (float64(distance) / float64(maxLen)))
	return score, distance, score >= threshold
}

// levenshteinWithin computes the edit distance restricted to a diagonal band
// of width maxDistance.
func levenshteinWithin(left, right []rune, maxDistance int) (int, bool) {
	leftLen := len(left)
	rightLen := len(right)
	if leftLen == 0 {
		return rightLen, rightLen <= maxDistance
	}
	if rightLen == 0 {
		return leftLen, leftLen <= maxDistance
	}
	if abs(leftLen-rightLen) > maxDistance {
		return maxDistance + 1, false
	}

	prev := make([]int, rightLen+1)
	curr := make([]int, rightLen+1)
	for j := 0; j <= rightLen; j++ {
		prev[j] = j
	}

	for i := 1; i <= leftLen; i++ {
		start := max(1, i-maxDistance)
		end := min(rightLen, i+maxDistance)
		curr[0] = i
		rowMin := curr[0]
		for j := 1; j < start; j++ {
			curr[j] = maxDistance + 1
		}
		for j := start; j <= end; j++ {
			cost := 1
			if left[i-1] == right[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
			if curr[j] < rowMin {
				rowMin = curr[j]
			}
		}
		for j := end + 1; j <= rightLen; j++ {
			curr[j] = maxDistance + 1
		}
		if rowMin > maxDistance {
			return rowMin, false
		}
		prev, curr = curr, prev
	}
	distance := prev[rightLen]
	return distance, distance <= maxDistance
}

// Matcher finds the closest known name for an input, indexing candidates by
// their first rune to keep the scan short.
type Matcher struct {
	threshold float64
	exact     map[string]int64
	entries   []matchEntry
	byFirst   map[rune][]int
}

type matchEntry struct {
	id    int64
	runes []rune
}

func NewMatcher(threshold float64) *Matcher {
	return &Matcher{
		threshold: threshold,
		exact:     make(map[string]int64),
		byFirst:   make(map[rune][]int),
	}
}

// Add registers a candidate. The first candidate wins on duplicate names.
func (m *Matcher) Add(id int64, name string) {
	normalized := Name(name)
	if normalized == "" {
		return
	}
	if _, exists := m.exact[normalized]; exists {
		return
	}
	m.exact[normalized] = id
	runes := []rune(normalized)
	m.entries = append(m.entries, matchEntry{id: id, runes: runes})
	m.byFirst[runes[0]] = append(m.byFirst[runes[0]], len(m.entries)-1)
}

// Match returns the id for name. exact reports whether normalization alone
// was enough.
func (m *Matcher) Match(name string) (id int64, exact bool, ok bool) {
	normalized := Name(name)
	if normalized == "" {
		return 0, false, false
	}
	if id, found := m.exact[normalized]; found {
		return id, true, true
	}
	target := []rune(normalized)
	candidates := m.byFirst[target[0]]
	if len(candidates) == 0 {
		candidates = make([]int, len(m.entries))
		for i := range m.entries {
			candidates[i] = i
		}
	}

	bestScore := -1.0
	bestDistance := math.MaxInt
	var bestID int64
	for _, idx := range candidates {
		entry := m.entries[idx]
		score, distance, matched := similarityPercent(target, entry.runes, m.threshold)
		if !matched {
			continue
		}
		if score > bestScore || (score == bestScore && distance < bestDistance) {
			bestScore = score
			bestDistance = distance
			bestID = entry.id
		}
	}
	if bestScore >= m.threshold {
		return bestID, false, true
	}
	return 0, false, false
}

func abs(value int) int {
	if value < 0 {
		return -value
	}
	return value
}
