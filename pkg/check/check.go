// Package check is the boundary around the scoring engine. It turns an idea
// into a Result that always carries something safe to publish: either a
// report or the fixed fallback outputs.
package check

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/realitycheck/pkg/scoring"
	"github.com/elonfeng/realitycheck/pkg/source"
)

// ErrEmptyIdea is returned when the idea text is blank.
var ErrEmptyIdea = errors.New("idea text is empty")

// Fallback output values published when the engine fails.
const (
	FallbackScore         = "0"
	FallbackReport        = "{}"
	FallbackTopCompetitor = "N/A"
)

// Runner queries the catalogs for an idea and scores the results.
type Runner struct {
	sources       map[source.SourceType]source.Source
	sourceTimeout time.Duration
	logger        *zap.Logger
}

// NewRunner creates a runner over the given adapters. Sources missing from
// the slice are skipped even if the depth asks for them.
func NewRunner(sources []source.Source, sourceTimeout time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	byType := make(map[source.SourceType]source.Source, len(sources))
	for _, s := range sources {
		byType[s.Name()] = s
	}
	return &Runner{
		sources:       byType,
		sourceTimeout: sourceTimeout,
		logger:        logger,
	}
}

// Sources returns the adapters queried at depth, in query order.
func (r *Runner) Sources(depth scoring.Depth) []source.Source {
	var out []source.Source
	for _, st := range depth.Sources() {
		if s, ok := r.sources[st]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Run extracts keywords, queries the depth's sources concurrently and
// computes the report. Source failures only reduce evidence; an error is
// returned for a blank idea or when the engine itself fails.
func (r *Runner) Run(ctx context.Context, idea string, depth scoring.Depth) (report *scoring.Report, err error) {
	idea = strings.TrimSpace(idea)
	if idea == "" {
		return nil, ErrEmptyIdea
	}

	defer func() {
		if p := recover(); p != nil {
			report = nil
			err = fmt.Errorf("scoring engine panic: %v", p)
		}
	}()

	keywords := scoring.ExtractKeywords(idea)
	if len(keywords) == 0 {
		return nil, fmt.Errorf("extract keywords: no terms in %q", idea)
	}
	r.logger.Info("keywords extracted", zap.Strings("keywords", keywords), zap.String("depth", string(depth)))

	sources := r.Sources(depth)
	results := source.Gather(ctx, sources, keywords, r.sourceTimeout, r.logger)
	for st, recs := range results {
		r.logger.Debug("source results", zap.String("source", string(st)), zap.Int("count", len(recs)))
	}

	report = scoring.ComputeSignal(idea, keywords, results, depth)
	r.logger.Info("reality signal computed",
		zap.Int("score", report.RealitySignal),
		zap.String("likelihood", string(report.DuplicateLikelihood)),
		zap.Int("similars", len(report.TopSimilars)))
	return report, nil
}

// Check runs the engine and wraps the outcome. A blank idea is still
// reported through Result.Err; callers that must halt on input errors check
// errors.Is(res.Err, ErrEmptyIdea) first.
func (r *Runner) Check(ctx context.Context, idea string, depth scoring.Depth) Result {
	report, err := r.Run(ctx, idea, depth)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Report: report}
}

// Result is either a report or a failure that degrades to the fallback
// outputs.
type Result struct {
	Report *scoring.Report
	Err    error
}

// Fallback reports whether the result must be published as the fallback.
func (r Result) Fallback() bool {
	return r.Err != nil || r.Report == nil
}

// Score returns the reality signal, or 0 for a fallback.
func (r Result) Score() int {
	if r.Fallback() {
		return 0
	}
	return r.Report.RealitySignal
}

// Outputs are the three values published to the host pipeline.
type Outputs struct {
	Score         string `json:"score"`
	Report        string `json:"report"`
	TopCompetitor string `json:"top-competitor"`
}

// Outputs renders the result for publishing. Any failure, including one
// while encoding the report, yields the fallback values.
func (r Result) Outputs() Outputs {
	fallback := Outputs{
		Score:         FallbackScore,
		Report:        FallbackReport,
		TopCompetitor: FallbackTopCompetitor,
	}
	if r.Fallback() {
		return fallback
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.Report); err != nil {
		return fallback
	}
	return Outputs{
		Score:         strconv.Itoa(r.Report.RealitySignal),
		Report:        strings.TrimSpace(buf.String()),
		TopCompetitor: r.Report.TopCompetitor(),
	}
}
