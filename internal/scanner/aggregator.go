package scanner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tgifai/skillhunt/internal/pkg/logs"
	"github.com/tgifai/skillhunt/internal/pkg/prometheus"
	"github.com/tgifai/skillhunt/internal/skill"
)

// Aggregator fans out to every scanner and merges the results.
type Aggregator struct {
	scanners []Scanner
	limit    int
}

// NewAggregator keeps scanners in the given order; that order decides which
// duplicate survives. limit <= 0 lets each scanner use its configured limit.
func NewAggregator(limit int, scanners ...Scanner) *Aggregator {
	return &Aggregator{scanners: scanners, limit: limit}
}

func (a *Aggregator) Scanners() []Scanner {
	return a.scanners
}

// ScanAll runs all scanners concurrently, concatenates their output in
// registration order and drops repeated titles.
func (a *Aggregator) ScanAll(ctx context.Context) []skill.Candidate {
	results := make([][]skill.Candidate, len(a.scanners))

	var eg errgroup.Group
	for i, s := range a.scanners {
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					logs.CtxError(ctx, "[aggregator] scanner %s panicked: %v", s.Source(), r)
				}
			}()
			results[i] = s.Scan(ctx, a.limit)
			return nil
		})
	}
	_ = eg.Wait()

	var merged []skill.Candidate
	for i, one := range results {
		src := a.scanners[i].Source()
		prometheus.CandidatesDiscovered.WithLabelValues(string(src)).Add(float64(len(one)))
		merged = append(merged, one...)
	}

	out := Dedup(merged)
	logs.CtxInfo(ctx, "[aggregator] %d candidates, %d after dedup", len(merged), len(out))
	return out
}

// Dedup keeps the first candidate for every exact title.
func Dedup(in []skill.Candidate) []skill.Candidate {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]skill.Candidate, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.Title]; ok {
			continue
		}
		seen[c.Title] = struct{}{}
		out = append(out, c)
	}
	return out
}
