package eval

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"policy-rag/internal/contextutil"
	"policy-rag/internal/rag"
)

// Asker runs one question through the query pipeline.
type Asker interface {
	Ask(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error)
}

// Options configures a Runner.
type Options struct {
	RefusalText string
	// RequestsPerSecond paces model calls; zero or less disables pacing.
	RequestsPerSecond float64
	Burst             int
}

// Result is the scored outcome of one case.
type Result struct {
	Question   string        `json:"question"`
	Answer     string        `json:"answer"`
	Outcome    rag.Outcome   `json:"outcome"`
	Refused    bool          `json:"refused"`
	Grounded   bool          `json:"grounded"`
	CitationOK bool          `json:"citation_ok"`
	Contains   bool          `json:"contains_expected"`
	Latency    time.Duration `json:"latency_ns"`
}

// Report aggregates a run. Rates are fractions in [0, 1].
type Report struct {
	NumQuestions        int      `json:"num_questions"`
	Groundedness        float64  `json:"groundedness"`
	CitationAccuracy    float64  `json:"citation_accuracy"`
	ExpectedContainment float64  `json:"expected_containment"`
	Refusals            int      `json:"refusals"`
	LatencyP50Seconds   float64  `json:"latency_p50_s"`
	LatencyP90Seconds   float64  `json:"latency_p90_s"`
	LatencyP99Seconds   float64  `json:"latency_p99_s"`
	Results             []Result `json:"results,omitempty"`
}

// Runner feeds cases through an Asker and scores the answers.
type Runner struct {
	asker   Asker
	opts    Options
	limiter *rate.Limiter
}

// NewRunner creates a Runner.
func NewRunner(asker Asker, opts Options) *Runner {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Runner{
		asker:   asker,
		opts:    opts,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Run asks every case in order. Latency excludes time spent waiting on the
// rate limiter.
func (r *Runner) Run(ctx context.Context, cases []Case) (*Report, error) {
	logger := contextutil.LoggerFromContext(ctx)
	results := make([]Result, 0, len(cases))

	for i, c := range cases {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
		}

		start := time.Now()
		resp, err := r.asker.Ask(ctx, rag.AskRequest{Question: c.Question})
		latency := time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("failed to ask question %d: %w", i+1, err)
		}

		res := r.score(c, resp)
		res.Latency = latency
		results = append(results, res)

		logger.DebugContext(ctx, "eval case scored",
			"index", i+1,
			"outcome", resp.Outcome,
			"grounded", res.Grounded,
			"citation_ok", res.CitationOK,
			"latency", latency,
		)
	}

	return summarize(results), nil
}

// score applies the per-case checks. A refusal counts as grounded, and its
// citations pass only if no sources were claimed.
func (r *Runner) score(c Case, resp rag.AskResponse) Result {
	res := Result{
		Question: c.Question,
		Answer:   resp.Answer,
		Outcome:  resp.Outcome,
	}
	if c.ExpectedAnswer != "" {
		res.Contains = strings.Contains(strings.ToLower(resp.Answer), strings.ToLower(c.ExpectedAnswer))
	}

	if IsRefusal(resp.Answer, r.opts.RefusalText) {
		res.Refused = true
		res.Grounded = true
		res.CitationOK = len(resp.Sources) == 0
		return res
	}

	res.CitationOK = CitationsResolved(resp.Answer, resp.Sources)
	res.Grounded = Grounded(resp.Answer, resp.Docs)
	return res
}

func summarize(results []Result) *Report {
	report := &Report{NumQuestions: len(results), Results: results}
	if len(results) == 0 {
		return report
	}

	var grounded, cited, contained int
	latencies := make([]time.Duration, 0, len(results))
	for _, res := range results {
		if res.Grounded {
			grounded++
		}
		if res.CitationOK {
			cited++
		}
		if res.Contains {
			contained++
		}
		if res.Refused {
			report.Refusals++
		}
		latencies = append(latencies, res.Latency)
	}

	n := float64(len(results))
	report.Groundedness = float64(grounded) / n
	report.CitationAccuracy = float64(cited) / n
	report.ExpectedContainment = float64(contained) / n

	slices.Sort(latencies)
	report.LatencyP50Seconds = percentile(latencies, 50).Seconds()
	report.LatencyP90Seconds = percentile(latencies, 90).Seconds()
	report.LatencyP99Seconds = percentile(latencies, 99).Seconds()
	return report
}

// percentile picks the nearest-rank value from sorted.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.RoundToEven(p / 100 * float64(len(sorted)-1)))
	return sorted[idx]
}
