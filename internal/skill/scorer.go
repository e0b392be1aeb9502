package skill

import (
	"strings"

	"github.com/tgifai/skillhunt/internal/config"
)

type weightedKeyword struct {
	term   string
	weight float64
}

// Scorer turns a scanner prior into a final quality score. It is pure: the
// result depends only on the candidate's Prior, text and popularity, so
// scoring a scored candidate again yields the same value.
type Scorer struct {
	keywords         []weightedKeyword
	popularityWeight float64
}

func NewScorer(cfg config.LearningConfig) *Scorer {
	s := &Scorer{popularityWeight: cfg.PopularityWeight}
	for _, kw := range cfg.Keywords {
		term, wildcard := wildcardTerm(kw)
		if term == "" {
			continue
		}
		w := cfg.KeywordWeight
		if wildcard {
			w = cfg.WildcardWeight
		}
		s.keywords = append(s.keywords, weightedKeyword{term: term, weight: w})
	}
	return s
}

func (s *Scorer) Score(c Candidate) Candidate {
	text := strings.ToLower(c.Text())

	score := c.Prior
	for _, kw := range s.keywords {
		if strings.Contains(text, kw.term) {
			score += kw.weight
		}
	}
	score += float64(c.Popularity()) / 100 * s.popularityWeight

	c.QualityScore = Clamp01(score)
	return c
}

// wildcardTerm strips a trailing "*" and reports whether one was present.
// "self-*" matches any text containing "self-".
func wildcardTerm(kw string) (string, bool) {
	kw = strings.ToLower(strings.TrimSpace(kw))
	if strings.HasSuffix(kw, "*") {
		return strings.TrimRight(kw, "*"), true
	}
	return kw, false
}
