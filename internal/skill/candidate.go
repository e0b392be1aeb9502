package skill

import "time"

// Source identifies the platform a candidate was found on.
type Source string

const (
	SourceMoltbook Source = "moltbook"
	SourceGitHub   Source = "github"
	SourceClawHub  Source = "clawhub"
)

// UntitledPlaceholder stands in for a missing title so dedup still has a key.
const UntitledPlaceholder = "Untitled"

// Candidate is a skill found on a platform, before any install decision.
//
// Prior is the scanner's provisional score and never changes after the scan;
// QualityScore is derived from it by Scorer and is always within [0,1].
type Candidate struct {
	ID           string    `json:"id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	Content      string    `json:"content,omitempty"`
	Author       string    `json:"author,omitempty"`
	Source       Source    `json:"source"`
	URL          string    `json:"url,omitempty"`
	CloneURL     string    `json:"clone_url,omitempty"`
	InstallURL   string    `json:"install_url,omitempty"`
	Votes        int       `json:"votes,omitempty"`
	Stars        int       `json:"stars,omitempty"`
	Prior        float64   `json:"prior"`
	QualityScore float64   `json:"quality_score"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// Text is the haystack used by keyword scoring and need filtering.
func (c Candidate) Text() string {
	return c.Title + " " + c.Description + " " + c.Content
}

// Popularity prefers stars and falls back to votes.
func (c Candidate) Popularity() int {
	if c.Stars > 0 {
		return c.Stars
	}
	if c.Votes > 0 {
		return c.Votes
	}
	return 0
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
