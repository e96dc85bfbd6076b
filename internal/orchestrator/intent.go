package orchestrator

import (
	"context"
	"strings"

	"blackbox/internal/resolve"
)

// Verb is the action the user asked for.
type Verb int

const (
	VerbUnknown Verb = iota
	VerbSave
	VerbRetrieve
	VerbDelete
	VerbList
	VerbLock
	VerbYes
	VerbNo
)

// Field selects which part of a record a save or retrieve touches.
type Field string

const (
	FieldPassword Field = "password"
	FieldUsername Field = "username"
	FieldMemo     Field = "memo"
)

// Intent is a parsed transcript: what to do, to which site, with what text.
type Intent struct {
	Verb         Verb
	Field        Field
	SiteFragment string
	Secret       string
}

// ProbeFunc rates a candidate site fragment heuristically. The parser uses
// it to pick the split between site words and secret words in save commands;
// it must never trigger the model tier.
type ProbeFunc func(ctx context.Context, fragment string) (resolve.Candidate, bool, error)

type parser struct {
	probe ProbeFunc
}

var (
	yesWords = wordSet("yes", "yeah", "yep", "sure", "correct", "right", "confirm", "ok", "okay", "please")
	noWords  = wordSet("no", "nope", "cancel", "stop", "never", "mind", "wrong")

	saveWords     = wordSet("save", "store", "set", "remember", "keep", "add")
	retrieveWords = wordSet("get", "retrieve", "read", "tell", "show", "what", "whats", "give")
	deleteWords   = wordSet("delete", "remove", "forget", "erase")

	passwordWords = wordSet("password", "passwords", "passphrase", "secret")
	usernameWords = wordSet("username", "usernames", "login", "user", "email")
	memoWords     = wordSet("memo", "note", "notes", "reminder")

	// Dropped when isolating a site fragment without an explicit "for".
	chatterWords = wordSet("the", "my", "a", "an", "please", "me", "is", "s", "whats", "what", "tell", "i", "do", "have")

	// Dropped from spoken secrets before storing them.
	secretFiller = wordSet("um", "uh", "er", "the", "please")
)

func wordSet(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}

// parse classifies the transcript and extracts the site fragment and, for
// saves, the secret text. Parsing is token based; the resolution engine does
// the heavy lifting for site names afterwards.
func (p parser) parse(ctx context.Context, transcript string) Intent {
	tokens := tokenize(transcript)
	if len(tokens) == 0 {
		return Intent{Verb: VerbUnknown, Field: FieldPassword}
	}

	if allIn(tokens, yesWords) {
		return Intent{Verb: VerbYes, Field: FieldPassword}
	}
	if allIn(tokens, noWords) {
		return Intent{Verb: VerbNo, Field: FieldPassword}
	}
	if contains(tokens, "lock") && !contains(tokens, "unlock") {
		return Intent{Verb: VerbLock, Field: FieldPassword}
	}
	if contains(tokens, "list") || (contains(tokens, "sites") && (contains(tokens, "what") || contains(tokens, "which"))) {
		return Intent{Verb: VerbList, Field: FieldPassword}
	}

	intent := Intent{Verb: classifyVerb(tokens), Field: classifyField(tokens)}
	if intent.Verb == VerbUnknown {
		return intent
	}

	tail, hasFor := afterSeparator(tokens)
	switch intent.Verb {
	case VerbSave:
		if !hasFor || len(tail) == 0 {
			return intent
		}
		site, secret := p.splitSiteSecret(ctx, tail)
		intent.SiteFragment = strings.Join(site, " ")
		intent.Secret = joinSecret(secret, intent.Field)
	case VerbRetrieve, VerbDelete:
		if hasFor && len(tail) > 0 {
			intent.SiteFragment = strings.Join(stripField(tail), " ")
		} else {
			intent.SiteFragment = strings.Join(siteResidue(tokens), " ")
		}
	}
	return intent
}

// tokenize lowercases, folds apostrophes ("what's" to "whats"), maps other
// punctuation to spaces, and splits on whitespace.
func tokenize(s string) []string {
	s = strings.ReplaceAll(strings.ToLower(s), "'", "")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Fields(b.String())
}

func classifyVerb(tokens []string) Verb {
	for _, tok := range tokens {
		switch {
		case in(tok, saveWords):
			return VerbSave
		case in(tok, deleteWords):
			return VerbDelete
		case in(tok, retrieveWords):
			return VerbRetrieve
		}
	}
	return VerbUnknown
}

func classifyField(tokens []string) Field {
	for _, tok := range tokens {
		switch {
		case in(tok, usernameWords):
			return FieldUsername
		case in(tok, memoWords):
			return FieldMemo
		}
	}
	return FieldPassword
}

// afterSeparator returns the tokens following the first "for" (or "on").
func afterSeparator(tokens []string) ([]string, bool) {
	for i, tok := range tokens {
		if tok == "for" || tok == "on" {
			return tokens[i+1:], true
		}
	}
	return nil, false
}

// splitSiteSecret tries every split of tail into site words followed by
// secret words and keeps the split whose site fragment probes best. Ties go
// to the longer site so "google mail secret99" prefers the two-word alias
// over "google" alone. When nothing probes above the floor the first token
// is the site; users name the site before the secret.
func (p parser) splitSiteSecret(ctx context.Context, tail []string) (site, secret []string) {
	if len(tail) == 1 {
		return tail, nil
	}

	bestK, bestScore := 1, -1.0
	for k := 1; k < len(tail); k++ {
		cand, ok, err := p.probe(ctx, strings.Join(tail[:k], " "))
		if err != nil || !ok {
			continue
		}
		if cand.Score >= bestScore {
			bestK, bestScore = k, cand.Score
		}
	}
	return tail[:bestK], tail[bestK:]
}

// joinSecret prepares the spoken secret for storage. Memos are kept verbatim
// with their spacing; passwords and usernames drop hesitation filler and are
// concatenated because the transcriber inserts spurious spaces into them.
func joinSecret(tokens []string, field Field) string {
	if field == FieldMemo {
		return strings.Join(tokens, " ")
	}
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if in(tok, secretFiller) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, "")
}

// stripField drops a trailing field word so "gmail password" and
// "password for gmail" both yield "gmail".
func stripField(tokens []string) []string {
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if in(tok, passwordWords) || in(tok, usernameWords) || in(tok, memoWords) {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

// siteResidue handles phrasings without "for" ("whats my gmail password") by
// removing verb, field, and chatter words; whatever is left names the site.
func siteResidue(tokens []string) []string {
	var kept []string
	for _, tok := range tokens {
		if in(tok, saveWords) || in(tok, retrieveWords) || in(tok, deleteWords) ||
			in(tok, passwordWords) || in(tok, usernameWords) || in(tok, memoWords) ||
			in(tok, chatterWords) {
			continue
		}
		kept = append(kept, tok)
	}
	return kept
}

func in(tok string, set map[string]struct{}) bool {
	_, ok := set[tok]
	return ok
}

func contains(tokens []string, want string) bool {
	for _, tok := range tokens {
		if tok == want {
			return true
		}
	}
	return false
}

func allIn(tokens []string, set map[string]struct{}) bool {
	for _, tok := range tokens {
		if !in(tok, set) {
			return false
		}
	}
	return len(tokens) > 0
}
