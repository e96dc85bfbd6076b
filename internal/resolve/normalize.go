package resolve

import "strings"

// fillerWords are discarded outright; they carry no signal for matching.
var fillerWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "my": {},
	"please": {}, "um": {}, "uh": {}, "er": {},
}

// spokenTLDs are domain suffixes users speak aloud ("gmail dot com"). They
// are stripped so the fragment compares against bare site aliases.
var spokenTLDs = map[string]struct{}{
	"com": {}, "org": {}, "net": {}, "edu": {}, "gov": {}, "mil": {}, "co": {},
}

// Normalize canonicalizes a spoken site fragment: lowercase, punctuation to
// spaces, filler words dropped, spoken domain suffixes dropped, whitespace
// collapsed. Returns "" when nothing usable remains.
func Normalize(fragment string) string {
	var b strings.Builder
	b.Grow(len(fragment))
	for _, r := range strings.ToLower(fragment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if _, filler := fillerWords[tok]; filler {
			continue
		}
		kept = append(kept, tok)
	}

	// "gmail dot com" and "gmail.com" both reduce to "gmail".
	for len(kept) > 1 {
		last := kept[len(kept)-1]
		if _, tld := spokenTLDs[last]; tld {
			kept = kept[:len(kept)-1]
			continue
		}
		if last == "dot" {
			kept = kept[:len(kept)-1]
			continue
		}
		break
	}

	return strings.Join(kept, " ")
}
