package server

import (
	"runtime"
	"sort"
	"strings"
	"sync"
)

// maxPatternLen keeps the bit-parallel state within one machine word.
const maxPatternLen = 63

type fuzzyHit struct {
	text   string
	errors int
}

// errorBudget is the number of typos tolerated for a query of m runes,
// capped at k. Short queries must match exactly.
func errorBudget(m, k int) int {
	return min(k, m/4)
}

// filterByBitapFuzzyParallel returns the texts containing pattern with at
// most k errors (insertions, deletions or substitutions), case-insensitive,
// best matches first and at most maxHits of them.
func filterByBitapFuzzyParallel(pattern string, texts []string, k, maxHits int) []string {
	patternRunes := []rune(strings.ToLower(pattern))
	if len(patternRunes) == 0 || maxHits <= 0 {
		return nil
	}
	if len(patternRunes) > maxPatternLen {
		patternRunes = patternRunes[:maxPatternLen]
	}
	m := len(patternRunes)
	k = errorBudget(m, k)

	masks := make(map[rune]uint64, m)
	for i, r := range patternRunes {
		masks[r] |= 1 << uint(i)
	}

	workers := min(runtime.GOMAXPROCS(0), len(texts))
	if workers == 0 {
		return nil
	}
	chunk := (len(texts) + workers - 1) / workers

	var mu sync.Mutex
	var hits []fuzzyHit
	var wg sync.WaitGroup
	for start := 0; start < len(texts); start += chunk {
		end := min(start+chunk, len(texts))
		wg.Add(1)
		go func(part []string) {
			defer wg.Done()
			var local []fuzzyHit
			for _, text := range part {
				if d := bitapFuzzyMatch(text, masks, m, k); d >= 0 {
					local = append(local, fuzzyHit{text: text, errors: d})
				}
			}
			mu.Lock()
			hits = append(hits, local...)
			mu.Unlock()
		}(texts[start:end])
	}
	wg.Wait()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].errors != hits[j].errors {
			return hits[i].errors < hits[j].errors
		}
		if len(hits[i].text) != len(hits[j].text) {
			return len(hits[i].text) < len(hits[j].text)
		}
		return hits[i].text < hits[j].text
	})
	if len(hits) == 0 {
		return nil
	}
	if len(hits) > maxHits {
		hits = hits[:maxHits]
	}
	filtered := make([]string, len(hits))
	for i, h := range hits {
		filtered[i] = h.text
	}
	return filtered
}

// bitapFuzzyMatch returns the fewest errors with which the pattern occurs
// in text, or -1 when it needs more than k.
func bitapFuzzyMatch(text string, masks map[rune]uint64, m, k int) int {
	highest := uint64(1) << uint(m-1)

	// r[d] bit i: pattern[:i+1] ends here with at most d errors.
	r := make([]uint64, k+1)
	for d := range r {
		r[d] = (uint64(1) << uint(d)) - 1
	}

	best := -1
	for _, c := range strings.ToLower(text) {
		charMask := masks[c]

		prev := r[0]
		r[0] = ((r[0] << 1) | 1) & charMask
		for d := 1; d <= k; d++ {
			old := r[d]
			match := ((old << 1) | 1) & charMask
			substitution := (prev << 1) | 1
			deletion := (r[d-1] << 1) | 1
			insertion := prev
			r[d] = match | substitution | deletion | insertion
			prev = old
		}

		for d := 0; d <= k; d++ {
			if r[d]&highest != 0 {
				if best < 0 || d < best {
					best = d
				}
				break
			}
		}
		if best == 0 {
			return 0
		}
	}
	return best
}
