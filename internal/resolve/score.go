package resolve

import (
	"github.com/antzucaro/matchr"

	"blackbox/internal/catalog"
)

// scorer blends literal and phonetic similarity. Weights come from config;
// the blend never undercuts a strong literal match because spelling evidence
// outranks sound evidence when both are present.
type scorer struct {
	literalWeight  float64
	phoneticWeight float64
}

// score rates entry against the normalized fragment. The literal component
// is the best Jaro-Winkler similarity over all aliases; the phonetic
// component compares double-metaphone codes (exact primary match 1.0, exact
// secondary match 0.9, primary within one edit 0.8).
func (s scorer) score(fragment string, e catalog.Entry) (combined, literal float64) {
	for _, alias := range e.Aliases {
		if sim := matchr.JaroWinkler(fragment, alias, false); sim > literal {
			literal = sim
		}
	}

	primary, secondary := matchr.DoubleMetaphone(fragment)
	var phonetic float64
	for _, code := range e.PhoneticCodes {
		switch {
		case primary != "" && code == primary:
			phonetic = max(phonetic, 1.0)
		case secondary != "" && code == secondary:
			phonetic = max(phonetic, 0.9)
		case primary != "" && withinOneEdit(code, primary):
			phonetic = max(phonetic, 0.8)
		}
	}

	combined = max(literal, s.literalWeight*literal+s.phoneticWeight*phonetic)
	return combined, literal
}

// withinOneEdit reports whether a and b differ by at most one insertion,
// deletion, or substitution. Metaphone codes are short, so the simple
// two-pointer scan is plenty.
func withinOneEdit(a, b string) bool {
	if a == b {
		return true
	}
	la, lb := len(a), len(b)
	if la-lb > 1 || lb-la > 1 {
		return false
	}
	if la > lb {
		a, b = b, a
		la, lb = lb, la
	}
	i, j, edits := 0, 0, 0
	for i < la && j < lb {
		if a[i] == b[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if la == lb {
			i++
		}
		j++
	}
	return edits+(lb-j) <= 1
}

// better orders candidates: higher blended score, then higher literal score,
// then fewer aliases (more specific entries win ties), then lexical id so
// the ranking is deterministic.
func better(a, b Candidate, aliasCount map[string]int) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Literal != b.Literal {
		return a.Literal > b.Literal
	}
	if aliasCount[a.EntryID] != aliasCount[b.EntryID] {
		return aliasCount[a.EntryID] < aliasCount[b.EntryID]
	}
	return a.EntryID < b.EntryID
}
