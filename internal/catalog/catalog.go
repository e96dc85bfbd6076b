// Package catalog holds the canonical sites and services the assistant can
// talk about. Entries are loaded once at startup and are immutable at
// runtime; the only mutation is appending a brand-new site after the user
// has explicitly confirmed it.
package catalog

import (
	"errors"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Entry is one canonical site with its speakable aliases and the
// double-metaphone codes precomputed from them.
type Entry struct {
	ID            string   `json:"id"`
	DisplayName   string   `json:"display_name"`
	Aliases       []string `json:"aliases"`
	PhoneticCodes []string `json:"-"`
}

// NewEntry builds a validated Entry, normalizing aliases and computing the
// phonetic codes. The id must be unique in the store; aliases must be
// non-empty.
func NewEntry(id, displayName string, aliases []string) (Entry, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Entry{}, errors.New("catalog: entry id must not be empty")
	}
	if displayName == "" {
		displayName = id
	}

	seen := make(map[string]struct{}, len(aliases)+1)
	cleaned := make([]string, 0, len(aliases)+1)
	for _, a := range append([]string{displayName}, aliases...) {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		cleaned = append(cleaned, a)
	}
	if len(cleaned) == 0 {
		return Entry{}, errors.New("catalog: entry needs at least one alias")
	}

	e := Entry{ID: id, DisplayName: displayName, Aliases: cleaned}
	e.PhoneticCodes = phoneticCodes(cleaned)
	return e, nil
}

// phoneticCodes returns the deduplicated double-metaphone codes (primary and
// secondary) of every alias. Codes drive the near-homophone tier of scoring.
func phoneticCodes(aliases []string) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, a := range aliases {
		primary, secondary := matchr.DoubleMetaphone(a)
		for _, c := range []string{primary, secondary} {
			if c == "" {
				continue
			}
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			codes = append(codes, c)
		}
	}
	sort.Strings(codes)
	return codes
}
