// Package categorization assigns categories to transaction descriptions
// before any LLM is involved: exact multi-pattern matching over user rules
// and known merchants, with a Levenshtein fallback for noisy variants like
// "LIDL 0472" vs "LIDL".
package categorization

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Match is a categorization hit for a description.
type Match struct {
	Merchant     string
	CategorySlug string
	// Source is "rule", "merchant" or "fuzzy".
	Source string
}

type entry struct {
	pattern      string
	merchant     string
	categorySlug string
	isRule       bool
}

// Matcher runs an Aho-Corasick pass over all patterns at once, then a fuzzy
// pass when nothing matched exactly. Rebuildable when rules change.
type Matcher struct {
	mu       sync.RWMutex
	ac       *ahocorasick.Matcher
	patterns []string
	entries  []entry
}

func NewMatcher(rules []Rule, merchants []Merchant) *Matcher {
	m := &Matcher{}
	m.Build(rules, merchants)
	return m
}

// Build reconstructs the pattern automaton. Rules win over merchants when
// both match; among equals the longest pattern wins.
func (m *Matcher) Build(rules []Rule, merchants []Merchant) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make([]entry, 0, len(rules)+len(merchants))
	m.patterns = make([]string, 0, len(rules)+len(merchants))

	add := func(pattern, merchant, slug string, isRule bool) {
		norm := strings.ToUpper(strings.TrimSpace(strings.Trim(pattern, "%")))
		if norm == "" {
			return
		}
		m.patterns = append(m.patterns, norm)
		m.entries = append(m.entries, entry{
			pattern:      norm,
			merchant:     merchant,
			categorySlug: slug,
			isRule:       isRule,
		})
	}

	for _, r := range rules {
		add(r.Pattern, titleCase(strings.Trim(r.Pattern, "%")), r.CategorySlug, true)
	}
	for _, mc := range merchants {
		add(mc.Name, titleCase(mc.Name), mc.CategorySlug, false)
	}

	if len(m.patterns) == 0 {
		m.ac = nil
		return
	}
	m.ac = ahocorasick.NewStringMatcher(m.patterns)
}

// Match categorizes one description. Returns nil when neither the exact nor
// the fuzzy pass finds anything.
func (m *Matcher) Match(description string) *Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.entries) == 0 {
		return nil
	}

	upper := strings.ToUpper(description)

	if m.ac != nil {
		hits := m.ac.Match([]byte(upper))
		if best := m.pickBest(hits); best != nil {
			source := "merchant"
			if best.isRule {
				source = "rule"
			}
			return &Match{Merchant: best.merchant, CategorySlug: best.categorySlug, Source: source}
		}
	}

	return m.fuzzyMatch(upper)
}

// pickBest prefers rules, then longer patterns.
func (m *Matcher) pickBest(hits []int) *entry {
	var best *entry
	for _, idx := range hits {
		if idx < 0 || idx >= len(m.entries) {
			continue
		}
		e := &m.entries[idx]
		if best == nil {
			best = e
			continue
		}
		if e.isRule != best.isRule {
			if e.isRule {
				best = e
			}
			continue
		}
		if len(e.pattern) > len(best.pattern) {
			best = e
		}
	}
	return best
}

// fuzzyMatch compares each description token against the patterns and
// accepts small edit distances on reasonably long tokens.
func (m *Matcher) fuzzyMatch(upper string) *Match {
	tokens := strings.Fields(upper)

	var best *entry
	bestDist := 3 // anything at distance >= 3 is a different merchant

	for _, tok := range tokens {
		if len(tok) < 4 {
			continue
		}
		for i := range m.entries {
			e := &m.entries[i]
			if abs(len(e.pattern)-len(tok)) >= bestDist {
				continue
			}
			d := fuzzy.LevenshteinDistance(tok, e.pattern)
			if d < bestDist {
				bestDist = d
				best = e
			}
		}
	}

	if best == nil {
		return nil
	}
	return &Match{Merchant: best.merchant, CategorySlug: best.categorySlug, Source: "fuzzy"}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
