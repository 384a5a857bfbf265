// Package normalize maps raw extracted phrases to canonical attribute values.
package normalize

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/lattice-vc/scout/internal/domain/segment"
	"github.com/lattice-vc/scout/internal/vocab"
)

// Match is a successful normalization.
type Match struct {
	Canonical  string
	Confidence float64
}

// Config bounds the approximate matching policy.
type Config struct {
	// MinTokenOverlap is the fraction of query tokens that must appear in a
	// candidate for a token-overlap match (default 0.5, i.e. majority).
	MinTokenOverlap float64
	// MaxEditDistance accepts candidates within this Levenshtein distance
	// (default 2).
	MaxEditDistance int
	// MinFuzzyLen disables edit-distance matching for phrases shorter than
	// this, where 2 edits can rewrite the whole string (default 4).
	MinFuzzyLen int
}

func (c *Config) applyDefaults() {
	if c.MinTokenOverlap <= 0 {
		c.MinTokenOverlap = 0.5
	}
	if c.MaxEditDistance <= 0 {
		c.MaxEditDistance = 2
	}
	if c.MinFuzzyLen <= 0 {
		c.MinFuzzyLen = 4
	}
}

// Normalizer resolves raw phrases against a vocabulary snapshot.
// It is pure: identical (phrase, snapshot) pairs always produce the same
// answer, and recording unmatched phrases is the caller's concern.
type Normalizer struct {
	cfg Config
}

// New creates a normalizer.
func New(cfg Config) *Normalizer {
	cfg.applyDefaults()
	return &Normalizer{cfg: cfg}
}

// Normalize maps raw to the best canonical value of seg, or reports no match.
// Exact alias/canonical hits win immediately with confidence 1.0; otherwise
// candidates are scored by token overlap and bounded edit distance, ties
// broken by score then lexicographic canonical name.
func (n *Normalizer) Normalize(snap *vocab.Snapshot, seg segment.Segment, raw string) (Match, bool) {
	folded := vocab.Fold(raw)
	if folded == "" {
		return Match{}, false
	}

	if canonical, ok := snap.Lookup(seg, folded); ok {
		return Match{Canonical: canonical, Confidence: 1.0}, true
	}

	tokens := strings.Fields(folded)
	best := Match{}
	found := false

	// Candidates are scoped to the segment: a city name can never match an
	// industry, and cost stays bounded as the vocabulary grows.
	for _, candidate := range snap.Values(seg) {
		score, ok := n.score(folded, tokens, vocab.Fold(candidate))
		if !ok {
			continue
		}
		if !found || score > best.Confidence {
			best = Match{Canonical: candidate, Confidence: score}
			found = true
		}
	}
	return best, found
}

func (n *Normalizer) score(folded string, tokens []string, candidate string) (float64, bool) {
	candTokens := make(map[string]bool)
	for _, t := range strings.Fields(candidate) {
		candTokens[t] = true
	}

	overlap := 0
	for _, t := range tokens {
		if candTokens[t] {
			overlap++
		}
	}
	overlapRatio := float64(overlap) / float64(len(tokens))
	if overlapRatio > n.cfg.MinTokenOverlap {
		return overlapRatio, true
	}

	if len(folded) < n.cfg.MinFuzzyLen {
		return 0, false
	}
	dist := levenshtein.Distance(folded, candidate, nil)
	if dist > n.cfg.MaxEditDistance {
		return 0, false
	}
	longest := len(folded)
	if len(candidate) > longest {
		longest = len(candidate)
	}
	return 1.0 - float64(dist)/float64(longest), true
}
