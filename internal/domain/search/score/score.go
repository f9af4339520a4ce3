// Package score computes candidate relevance from distance and lexical signals.
package score

import (
	"strings"

	"github.com/kailas-cloud/shelfsearch/internal/domain/document"
	"github.com/kailas-cloud/shelfsearch/internal/domain/search/filter"
)

// Default bonus constants.
const (
	DefaultFilterBonus   = 0.1
	DefaultTokenBonus    = 0.05
	DefaultTokenBonusCap = 0.2
)

// Scorer combines vector distance with filter and token bonuses.
// The sum is unbounded; it is a ranking key, not a probability.
type Scorer struct {
	FilterBonus   float64
	TokenBonus    float64
	TokenBonusCap float64
}

// New returns a Scorer with the default constants.
func New() Scorer {
	return Scorer{
		FilterBonus:   DefaultFilterBonus,
		TokenBonus:    DefaultTokenBonus,
		TokenBonusCap: DefaultTokenBonusCap,
	}
}

// Score returns 1/(1+distance) plus FilterBonus per equality condition the
// metadata satisfies, plus TokenBonus per distinct token found in name or
// brand, the token part capped at TokenBonusCap.
func (s Scorer) Score(distance float64, m document.Metadata, f filter.Expression, tokens []string) float64 {
	if distance < 0 {
		distance = 0
	}
	v := 1 / (1 + distance)
	v += s.FilterBonus * float64(matchedEqualities(m, f))

	tokenBonus := s.TokenBonus * float64(matchedTokens(m, tokens))
	if tokenBonus > s.TokenBonusCap {
		tokenBonus = s.TokenBonusCap
	}
	return v + tokenBonus
}

func matchedEqualities(m document.Metadata, f filter.Expression) int {
	n := 0
	for _, c := range f.Conditions() {
		if c.IsMatch() && c.Matches(m) {
			n++
		}
	}
	return n
}

func matchedTokens(m document.Metadata, tokens []string) int {
	name := strings.ToLower(m.Name)
	brand := strings.ToLower(m.Brand)

	seen := make(map[string]struct{}, len(tokens))
	n := 0
	for _, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		if strings.Contains(name, tok) || strings.Contains(brand, tok) {
			n++
		}
	}
	return n
}
