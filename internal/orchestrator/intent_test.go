package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"blackbox/internal/resolve"
)

// knownSiteProbe scores fragments against a fixed set of site names.
func knownSiteProbe(known map[string]float64) ProbeFunc {
	return func(_ context.Context, fragment string) (resolve.Candidate, bool, error) {
		score, ok := known[fragment]
		return resolve.Candidate{EntryID: fragment, Score: score}, ok, nil
	}
}

func TestParse(t *testing.T) {
	p := parser{probe: knownSiteProbe(map[string]float64{
		"gmail":       1.0,
		"google":      1.0,
		"google mail": 1.0,
		"netflix":     1.0,
	})}
	ctx := context.Background()

	tests := []struct {
		name string
		in   string
		want Intent
	}{
		{
			name: "save with secret",
			in:   "save password for gmail secret99",
			want: Intent{Verb: VerbSave, Field: FieldPassword, SiteFragment: "gmail", Secret: "secret99"},
		},
		{
			name: "save prefers the longest matching site",
			in:   "save password for google mail secret99",
			want: Intent{Verb: VerbSave, Field: FieldPassword, SiteFragment: "google mail", Secret: "secret99"},
		},
		{
			name: "spoken secret spaces are collapsed",
			in:   "store the password for netflix hunter 2",
			want: Intent{Verb: VerbSave, Field: FieldPassword, SiteFragment: "netflix", Secret: "hunter2"},
		},
		{
			name: "memo keeps its spacing",
			in:   "save memo for gmail backup codes in the drawer",
			want: Intent{Verb: VerbSave, Field: FieldMemo, SiteFragment: "gmail", Secret: "backup codes in the drawer"},
		},
		{
			name: "save without a secret",
			in:   "save password for gmail",
			want: Intent{Verb: VerbSave, Field: FieldPassword, SiteFragment: "gmail"},
		},
		{
			name: "retrieve with for",
			in:   "what's my password for gmail",
			want: Intent{Verb: VerbRetrieve, Field: FieldPassword, SiteFragment: "gmail"},
		},
		{
			name: "retrieve without for",
			in:   "what's my gmail password",
			want: Intent{Verb: VerbRetrieve, Field: FieldPassword, SiteFragment: "gmail"},
		},
		{
			name: "retrieve username",
			in:   "tell me my username for netflix",
			want: Intent{Verb: VerbRetrieve, Field: FieldUsername, SiteFragment: "netflix"},
		},
		{
			name: "delete",
			in:   "delete my password for gmail",
			want: Intent{Verb: VerbDelete, Field: FieldPassword, SiteFragment: "gmail"},
		},
		{
			name: "list",
			in:   "list my sites",
			want: Intent{Verb: VerbList, Field: FieldPassword},
		},
		{
			name: "what sites phrasing",
			in:   "what sites do I have",
			want: Intent{Verb: VerbList, Field: FieldPassword},
		},
		{
			name: "lock",
			in:   "lock the vault",
			want: Intent{Verb: VerbLock, Field: FieldPassword},
		},
		{
			name: "yes",
			in:   "yes please",
			want: Intent{Verb: VerbYes, Field: FieldPassword},
		},
		{
			name: "no",
			in:   "no cancel",
			want: Intent{Verb: VerbNo, Field: FieldPassword},
		},
		{
			name: "unparseable",
			in:   "make me a sandwich",
			want: Intent{Verb: VerbUnknown, Field: FieldPassword},
		},
		{
			name: "empty",
			in:   "",
			want: Intent{Verb: VerbUnknown, Field: FieldPassword},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.parse(ctx, tt.in))
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"whats", "my", "g", "mail", "password"},
		tokenize("What's my g-mail password?"))
	assert.Empty(t, tokenize("!!!"))
}
