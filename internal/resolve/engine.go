package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"blackbox/internal/catalog"
	"blackbox/internal/platform/metrics"
)

// Disambiguator picks one entry id from a shortlist when heuristic scoring
// is confident enough to ask but not confident enough to act. Implementations
// return "" when none of the offered candidates fit.
type Disambiguator interface {
	Disambiguate(ctx context.Context, fragment string, candidates []catalog.Entry) (string, error)
}

// Params are the engine's thresholds and weights. Thresholds must satisfy
// Accept > LLM > Confirm; config validation enforces that before the engine
// ever sees them.
type Params struct {
	AcceptThreshold  float64
	LLMThreshold     float64
	ConfirmThreshold float64
	LiteralWeight    float64
	PhoneticWeight   float64
	TopK             int
	HeuristicBudget  time.Duration
}

// DefaultParams mirror the shipped configuration.
func DefaultParams() Params {
	return Params{
		AcceptThreshold:  0.88,
		LLMThreshold:     0.82,
		ConfirmThreshold: 0.75,
		LiteralWeight:    0.2,
		PhoneticWeight:   0.8,
		TopK:             3,
		HeuristicBudget:  200 * time.Millisecond,
	}
}

// scoreShard bounds how many entries one goroutine scores.
const scoreShard = 64

// Engine resolves fragments against the catalog.
type Engine struct {
	store      catalog.Store
	params     Params
	scorer     scorer
	tiers      []tier
	llm        Disambiguator
	llmTimeout time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// tier is one row of the resolution cascade. The first row whose floor the
// best score clears decides the outcome; adding or reordering tiers is a
// table edit, not new branching.
type tier struct {
	name   string
	floor  float64
	decide func(ctx context.Context, fragment string, ranked []Candidate) Outcome
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics attaches the daemon metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDisambiguator enables the model tier. Without it the engine degrades
// gracefully: scores in the model window fall through to confirmation.
func WithDisambiguator(d Disambiguator, timeout time.Duration) Option {
	return func(e *Engine) {
		e.llm = d
		e.llmTimeout = timeout
	}
}

// NewEngine builds a resolution engine over store.
func NewEngine(store catalog.Store, params Params, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, errors.New("resolve: catalog store is required")
	}
	if !(params.AcceptThreshold > params.LLMThreshold && params.LLMThreshold > params.ConfirmThreshold) {
		return nil, fmt.Errorf("resolve: thresholds must be ordered accept > llm > confirm (got %.2f, %.2f, %.2f)",
			params.AcceptThreshold, params.LLMThreshold, params.ConfirmThreshold)
	}
	if params.TopK <= 0 {
		params.TopK = DefaultParams().TopK
	}
	e := &Engine{
		store:  store,
		params: params,
		scorer: scorer{literalWeight: params.LiteralWeight, phoneticWeight: params.PhoneticWeight},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tiers = []tier{
		{name: "accept", floor: params.AcceptThreshold, decide: e.acceptTier},
		{name: "llm", floor: params.LLMThreshold, decide: e.modelTier},
		{name: "confirm", floor: params.ConfirmThreshold, decide: e.confirmTier},
	}
	return e, nil
}

// Resolve scores fragment against every catalog entry and runs the result
// through the tier cascade. A fragment that normalizes to nothing, or whose
// best score misses every floor, is Rejected.
func (e *Engine) Resolve(ctx context.Context, fragment string) (Outcome, error) {
	start := time.Now()

	norm := Normalize(fragment)
	if norm == "" {
		out := Outcome{Kind: Rejected, Source: SourceHeuristic}
		e.observe("none", out, start)
		return out, nil
	}

	ranked, err := e.rank(ctx, norm)
	if err != nil {
		return Outcome{}, err
	}
	if len(ranked) == 0 {
		out := Outcome{Kind: Rejected, Source: SourceHeuristic}
		e.observe("none", out, start)
		return out, nil
	}

	best := ranked[0].Score
	for _, t := range e.tiers {
		if best >= t.floor {
			out := t.decide(ctx, norm, ranked)
			e.observe(t.name, out, start)
			return out, nil
		}
	}

	out := Outcome{Kind: Rejected, Source: SourceHeuristic, Candidates: ranked}
	e.observe("none", out, start)
	return out, nil
}

// Probe is the heuristic-only variant used by intent parsing to evaluate
// candidate split points. It never consults the model and never records an
// outcome; it just reports the best candidate and its score.
func (e *Engine) Probe(ctx context.Context, fragment string) (Candidate, bool, error) {
	norm := Normalize(fragment)
	if norm == "" {
		return Candidate{}, false, nil
	}
	ranked, err := e.rank(ctx, norm)
	if err != nil || len(ranked) == 0 {
		return Candidate{}, false, err
	}
	return ranked[0], ranked[0].Score >= e.params.ConfirmThreshold, nil
}

// rank scores every entry concurrently in fixed-size shards and returns the
// top-k candidates in descending order. Entries are read-only during a turn,
// so shards share them without locking. The heuristic budget bounds the
// scoring pass; a partial ranking cannot be trusted, so blowing the budget
// fails the rank.
func (e *Engine) rank(ctx context.Context, norm string) ([]Candidate, error) {
	entries, err := e.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve: list catalog: %w", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	if e.params.HeuristicBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.params.HeuristicBudget)
		defer cancel()
	}

	scores := make([]Candidate, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	for lo := 0; lo < len(entries); lo += scoreShard {
		hi := min(lo+scoreShard, len(entries))
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				combined, literal := e.scorer.score(norm, entries[i])
				scores[i] = Candidate{EntryID: entries[i].ID, Score: combined, Literal: literal}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("resolve: scoring aborted: %w", err)
	}

	aliasCount := make(map[string]int, len(entries))
	for _, entry := range entries {
		aliasCount[entry.ID] = len(entry.Aliases)
	}
	sort.SliceStable(scores, func(i, j int) bool { return better(scores[i], scores[j], aliasCount) })

	k := min(e.params.TopK, len(scores))
	return scores[:k:k], nil
}

func (e *Engine) acceptTier(_ context.Context, _ string, ranked []Candidate) Outcome {
	return Outcome{Kind: Accepted, EntryID: ranked[0].EntryID, Source: SourceHeuristic, Candidates: ranked}
}

func (e *Engine) confirmTier(_ context.Context, _ string, ranked []Candidate) Outcome {
	return Outcome{Kind: NeedsConfirmation, EntryID: ranked[0].EntryID, Source: SourceHeuristic, Candidates: ranked}
}

// modelTier consults the local model with the shortlist. Any failure mode
// (disabled, timeout, error, empty pick, pick outside the shortlist) degrades
// to the confirmation tier; the model can upgrade an outcome, never block one.
func (e *Engine) modelTier(ctx context.Context, fragment string, ranked []Candidate) Outcome {
	if e.llm == nil {
		return e.confirmTier(ctx, fragment, ranked)
	}

	shortlist := make([]catalog.Entry, 0, len(ranked))
	for _, c := range ranked {
		entry, err := e.store.FindByID(ctx, c.EntryID)
		if err != nil {
			continue
		}
		shortlist = append(shortlist, entry)
	}

	llmCtx := ctx
	if e.llmTimeout > 0 {
		var cancel context.CancelFunc
		llmCtx, cancel = context.WithTimeout(ctx, e.llmTimeout)
		defer cancel()
	}

	chosen, err := e.llm.Disambiguate(llmCtx, fragment, shortlist)
	switch {
	case err != nil:
		result := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			result = "timeout"
		}
		e.countLLM(result)
		if e.logger != nil {
			e.logger.Warn("disambiguator failed, falling back to confirmation", "err", err)
		}
		return e.confirmTier(ctx, fragment, ranked)
	case chosen == "":
		e.countLLM("no_match")
		return e.confirmTier(ctx, fragment, ranked)
	}

	for _, c := range ranked {
		if c.EntryID == chosen {
			e.countLLM("chosen")
			return Outcome{Kind: Accepted, EntryID: chosen, Source: SourceLLM, Candidates: ranked}
		}
	}

	// A pick outside the shortlist is a hallucination; ignore it.
	e.countLLM("no_match")
	if e.logger != nil {
		e.logger.Warn("disambiguator picked an entry outside the shortlist", "chosen", chosen)
	}
	return e.confirmTier(ctx, fragment, ranked)
}

func (e *Engine) observe(tier string, out Outcome, start time.Time) {
	if e.metrics != nil {
		e.metrics.ObserveResolve(tier, out.Kind.String(), time.Since(start))
	}
	if e.logger != nil {
		e.logger.Debug("fragment resolved",
			"tier", tier, "kind", out.Kind.String(), "entry", out.EntryID, "duration", time.Since(start))
	}
}

func (e *Engine) countLLM(result string) {
	if e.metrics != nil {
		e.metrics.LLMCalls.WithLabelValues(result).Inc()
	}
}
