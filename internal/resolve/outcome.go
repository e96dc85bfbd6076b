// Package resolve turns a normalized spoken fragment into a catalog entry.
// Scoring is a blend of literal string similarity and phonetic similarity;
// the blended score then falls through an ordered tier table (accept, ask
// the local model, ask the user, reject) whose thresholds come from config.
package resolve

// Source records which tier produced a resolution.
type Source string

const (
	SourceHeuristic Source = "heuristic"
	SourceLLM       Source = "llm"
)

// Candidate is one scored catalog entry.
type Candidate struct {
	EntryID string
	Score   float64
	Literal float64
}

// OutcomeKind classifies the resolution result.
type OutcomeKind int

const (
	// Rejected means no entry scored above the confirmation floor. The
	// caller treats the fragment as a potential new site.
	Rejected OutcomeKind = iota

	// NeedsConfirmation means the best candidate is plausible but not
	// certain; the caller must ask the user before acting.
	NeedsConfirmation

	// Accepted means the best candidate can be acted on directly.
	Accepted
)

func (k OutcomeKind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case NeedsConfirmation:
		return "needs_confirmation"
	default:
		return "rejected"
	}
}

// Outcome is the full resolution result. EntryID is set for Accepted and
// NeedsConfirmation; Candidates holds the top-k ranking that produced it, in
// descending score order, for confirmation prompts and the disambiguator.
type Outcome struct {
	Kind       OutcomeKind
	EntryID    string
	Source     Source
	Candidates []Candidate
}
