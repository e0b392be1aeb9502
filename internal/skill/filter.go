package skill

import (
	"strings"

	"github.com/bytedance/gg/gslice"

	"github.com/tgifai/skillhunt/internal/config"
)

// NeedFilter accepts candidates that mention a wanted capability and none of
// the excluded topics. Exclusion always wins.
type NeedFilter struct {
	include []string
	exclude []string
}

func NewNeedFilter(cfg config.LearningConfig) *NeedFilter {
	f := &NeedFilter{}
	for _, kw := range cfg.Include {
		if term, _ := wildcardTerm(kw); term != "" {
			f.include = append(f.include, term)
		}
	}
	for _, kw := range cfg.Exclude {
		if term, _ := wildcardTerm(kw); term != "" {
			f.exclude = append(f.exclude, term)
		}
	}
	return f
}

func (f *NeedFilter) IsNeeded(c Candidate) bool {
	text := strings.ToLower(c.Text())
	contains := func(term string) bool { return strings.Contains(text, term) }

	if gslice.Any(f.exclude, contains) {
		return false
	}
	return gslice.Any(f.include, contains)
}

// Excluded returns the first exclusion term the candidate hits.
func (f *NeedFilter) Excluded(c Candidate) (string, bool) {
	text := strings.ToLower(c.Text())
	for _, term := range f.exclude {
		if strings.Contains(text, term) {
			return term, true
		}
	}
	return "", false
}
