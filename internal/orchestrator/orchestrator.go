// Package orchestrator drives one voice turn end to end: parse the
// transcript, resolve the site, run the vault operation, phrase the reply.
// It owns the confirmation turn-taking state, so a "yes" or "no" always
// refers to the question asked in the previous turn.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"blackbox/internal/catalog"
	"blackbox/internal/platform/metrics"
	"blackbox/internal/resolve"
	"blackbox/internal/vault"
	"blackbox/pkg/requestcontext"
)

// Response is one spoken reply. Sensitive marks replies that contain secret
// material; the transport must never log their text.
type Response struct {
	TurnID    string
	Text      string
	Sensitive bool
}

// DefaultTurnDeadline is the soft end-to-end budget for one turn.
const DefaultTurnDeadline = 4 * time.Second

type pendingKind int

const (
	pendingConfirmSite pendingKind = iota
	pendingNewSite
	pendingDelete
)

// pendingTurn is the question left open at the end of the previous turn.
type pendingTurn struct {
	kind    pendingKind
	intent  Intent
	siteID  string
	display string
}

// Orchestrator serializes voice turns over the engine, vault, and catalog.
type Orchestrator struct {
	engine   *resolve.Engine
	vault    *vault.Service
	catalog  catalog.Store
	parser   parser
	deadline time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu      sync.Mutex
	pending *pendingTurn
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger attaches a logger. Transcripts of sensitive turns are logged by
// length only.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// WithMetrics attaches the daemon metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTurnDeadline overrides the soft turn budget.
func WithTurnDeadline(d time.Duration) Option {
	return func(o *Orchestrator) { o.deadline = d }
}

// New wires an orchestrator over its collaborators.
func New(engine *resolve.Engine, vaultSvc *vault.Service, store catalog.Store, opts ...Option) (*Orchestrator, error) {
	if engine == nil || vaultSvc == nil || store == nil {
		return nil, errors.New("orchestrator: engine, vault, and catalog are required")
	}
	o := &Orchestrator{
		engine:   engine,
		vault:    vaultSvc,
		catalog:  store,
		parser:   parser{probe: engine.Probe},
		deadline: DefaultTurnDeadline,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// HandleTurn processes one transcript and returns the reply. Turns are
// serialized; a second call blocks until the first finishes. The deadline is
// soft: an overrun is logged and counted but the turn still completes.
func (o *Orchestrator) HandleTurn(ctx context.Context, transcript string) Response {
	turnID := uuid.NewString()
	ctx = requestcontext.WithTurnID(ctx, turnID)
	start := time.Now()

	o.mu.Lock()
	defer o.mu.Unlock()

	resp := o.handle(ctx, transcript)
	resp.TurnID = turnID

	elapsed := time.Since(start)
	overrun := o.deadline > 0 && elapsed > o.deadline
	if o.metrics != nil {
		o.metrics.ObserveTurn(elapsed, overrun)
	}
	if o.logger != nil {
		if overrun {
			o.logger.Warn("turn exceeded soft deadline",
				"turn_id", turnID, "elapsed", elapsed, "deadline", o.deadline)
		} else {
			o.logger.Debug("turn completed", "turn_id", turnID, "elapsed", elapsed)
		}
	}
	return resp
}

func (o *Orchestrator) handle(ctx context.Context, transcript string) Response {
	intent := o.parser.parse(ctx, transcript)

	if o.pending != nil {
		switch intent.Verb {
		case VerbYes:
			p := o.pending
			o.pending = nil
			return o.resolvePending(ctx, p)
		case VerbNo:
			o.pending = nil
			return say("Okay, never mind.")
		default:
			// A fresh command supersedes the open question.
			o.pending = nil
		}
	}

	switch intent.Verb {
	case VerbSave:
		return o.handleSave(ctx, intent)
	case VerbRetrieve:
		return o.handleRetrieve(ctx, intent)
	case VerbDelete:
		return o.handleDelete(ctx, intent)
	case VerbList:
		return o.handleList(ctx)
	case VerbLock:
		o.vault.Lock()
		return say("Vault locked.")
	case VerbYes, VerbNo:
		return say("There's nothing to confirm right now.")
	default:
		return say("Sorry, I didn't catch that. You can say save, get, delete, list, or lock.")
	}
}

func (o *Orchestrator) handleSave(ctx context.Context, intent Intent) Response {
	if intent.SiteFragment == "" {
		return say("Which site is that for? Say something like: save password for gmail, then the password.")
	}
	if intent.Secret == "" {
		return say(fmt.Sprintf("I didn't catch the %s to save for %s. Please repeat the whole command.",
			intent.Field, intent.SiteFragment))
	}

	outcome, err := o.engine.Resolve(ctx, intent.SiteFragment)
	if err != nil {
		return o.failure(ctx, err, intent.SiteFragment)
	}
	switch outcome.Kind {
	case resolve.Accepted:
		return o.doSave(ctx, outcome.EntryID, intent)
	case resolve.NeedsConfirmation:
		o.pending = &pendingTurn{
			kind: pendingConfirmSite, intent: intent,
			siteID: outcome.EntryID, display: o.displayName(ctx, outcome.EntryID),
		}
		return say(fmt.Sprintf("Did you mean %s?", o.pending.display))
	default:
		o.pending = &pendingTurn{kind: pendingNewSite, intent: intent, display: intent.SiteFragment}
		return say(fmt.Sprintf("I don't know %s yet. Should I add it as a new site?", intent.SiteFragment))
	}
}

func (o *Orchestrator) handleRetrieve(ctx context.Context, intent Intent) Response {
	if intent.SiteFragment == "" {
		return say("Which site do you want that for?")
	}

	outcome, err := o.engine.Resolve(ctx, intent.SiteFragment)
	if err != nil {
		return o.failure(ctx, err, intent.SiteFragment)
	}
	switch outcome.Kind {
	case resolve.Accepted:
		return o.doRetrieve(ctx, outcome.EntryID, intent)
	case resolve.NeedsConfirmation:
		o.pending = &pendingTurn{
			kind: pendingConfirmSite, intent: intent,
			siteID: outcome.EntryID, display: o.displayName(ctx, outcome.EntryID),
		}
		return say(fmt.Sprintf("Did you mean %s?", o.pending.display))
	default:
		return say(fmt.Sprintf("I don't know a site called %s.", intent.SiteFragment))
	}
}

func (o *Orchestrator) handleDelete(ctx context.Context, intent Intent) Response {
	if intent.SiteFragment == "" {
		return say("Which site do you want to delete?")
	}

	outcome, err := o.engine.Resolve(ctx, intent.SiteFragment)
	if err != nil {
		return o.failure(ctx, err, intent.SiteFragment)
	}
	switch outcome.Kind {
	case resolve.Accepted:
		display := o.displayName(ctx, outcome.EntryID)
		o.pending = &pendingTurn{kind: pendingDelete, intent: intent, siteID: outcome.EntryID, display: display}
		return say(fmt.Sprintf("Delete everything saved for %s?", display))
	case resolve.NeedsConfirmation:
		display := o.displayName(ctx, outcome.EntryID)
		o.pending = &pendingTurn{kind: pendingConfirmSite, intent: intent, siteID: outcome.EntryID, display: display}
		return say(fmt.Sprintf("Did you mean %s? Confirming will delete what's saved there.", display))
	default:
		return say(fmt.Sprintf("I don't know a site called %s.", intent.SiteFragment))
	}
}

func (o *Orchestrator) handleList(ctx context.Context) Response {
	infos, err := o.vault.List(ctx)
	if err != nil {
		return o.failure(ctx, err, "")
	}
	if len(infos) == 0 {
		return say("The vault is empty.")
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = o.displayName(ctx, info.SiteID)
	}
	return say(fmt.Sprintf("You have entries for %s.", joinSpoken(names)))
}

// resolvePending runs the action the user just confirmed.
func (o *Orchestrator) resolvePending(ctx context.Context, p *pendingTurn) Response {
	switch p.kind {
	case pendingNewSite:
		entry, err := catalog.NewEntry(slugify(p.intent.SiteFragment), p.intent.SiteFragment, nil)
		if err != nil {
			return o.failure(ctx, err, p.intent.SiteFragment)
		}
		if err := o.catalog.Append(ctx, entry); err != nil && !errors.Is(err, catalog.ErrConflict) {
			return o.failure(ctx, err, p.intent.SiteFragment)
		}
		return o.execute(ctx, entry.ID, p.intent)
	case pendingDelete:
		return o.doDelete(ctx, p.siteID, p.display)
	default:
		return o.execute(ctx, p.siteID, p.intent)
	}
}

// execute dispatches a confirmed intent against a known site id.
func (o *Orchestrator) execute(ctx context.Context, siteID string, intent Intent) Response {
	switch intent.Verb {
	case VerbSave:
		return o.doSave(ctx, siteID, intent)
	case VerbRetrieve:
		return o.doRetrieve(ctx, siteID, intent)
	case VerbDelete:
		return o.doDelete(ctx, siteID, o.displayName(ctx, siteID))
	default:
		return say("Sorry, I lost track of that. Please start over.")
	}
}

// doSave merges the new field into any existing record so saving a memo
// never clobbers the password.
func (o *Orchestrator) doSave(ctx context.Context, siteID string, intent Intent) Response {
	rec := &vault.ClearRecord{SiteID: siteID}
	existing, err := o.vault.Get(ctx, siteID)
	switch {
	case err == nil:
		rec = existing
	case errors.Is(err, vault.ErrNotFound):
	default:
		return o.failure(ctx, err, siteID)
	}
	defer rec.Wipe()

	secret := []byte(intent.Secret)
	switch intent.Field {
	case FieldUsername:
		rec.Username = secret
	case FieldMemo:
		rec.Memo = secret
	default:
		rec.Password = secret
	}

	if err := o.vault.Put(ctx, siteID, rec); err != nil {
		return o.failure(ctx, err, siteID)
	}
	return say(fmt.Sprintf("Saved the %s for %s.", intent.Field, o.displayName(ctx, siteID)))
}

func (o *Orchestrator) doRetrieve(ctx context.Context, siteID string, intent Intent) Response {
	display := o.displayName(ctx, siteID)
	var resp Response
	err := o.vault.WithRecord(ctx, siteID, func(rec *vault.ClearRecord) error {
		var value []byte
		switch intent.Field {
		case FieldUsername:
			value = rec.Username
		case FieldMemo:
			value = rec.Memo
		default:
			value = rec.Password
		}
		if len(value) == 0 {
			resp = say(fmt.Sprintf("There is no %s saved for %s.", intent.Field, display))
			return nil
		}
		resp = Response{
			Text:      fmt.Sprintf("Your %s for %s is %s.", intent.Field, display, value),
			Sensitive: true,
		}
		return nil
	})
	if err != nil {
		return o.failure(ctx, err, siteID)
	}
	return resp
}

func (o *Orchestrator) doDelete(ctx context.Context, siteID, display string) Response {
	if err := o.vault.Delete(ctx, siteID); err != nil {
		return o.failure(ctx, err, siteID)
	}
	return say(fmt.Sprintf("Deleted everything saved for %s.", display))
}

// failure maps vault errors onto spoken replies. Unexpected errors are
// logged with the turn id and answered generically.
func (o *Orchestrator) failure(ctx context.Context, err error, site string) Response {
	switch {
	case errors.Is(err, vault.ErrLocked):
		return say("The vault is locked. Unlock it first.")
	case errors.Is(err, vault.ErrNotFound):
		if display := o.displayName(ctx, site); display != "" {
			return say(fmt.Sprintf("I don't have anything saved for %s.", display))
		}
		return say("I don't have anything saved for that site.")
	case errors.Is(err, vault.ErrCorruptData):
		return say("That record can't be read. It may be damaged.")
	default:
		if o.logger != nil {
			o.logger.Error("turn failed", "turn_id", requestcontext.TurnID(ctx), "err", err)
		}
		return say("Something went wrong. Please try again.")
	}
}

// displayName is best effort; the raw id is good enough for speech when the
// catalog lookup fails.
func (o *Orchestrator) displayName(ctx context.Context, siteID string) string {
	if siteID == "" {
		return ""
	}
	entry, err := o.catalog.FindByID(ctx, siteID)
	if err != nil {
		return siteID
	}
	return entry.DisplayName
}

func say(text string) Response {
	return Response{Text: text}
}

// slugify turns a spoken fragment into a catalog id.
func slugify(fragment string) string {
	return strings.ReplaceAll(strings.TrimSpace(strings.ToLower(fragment)), " ", "-")
}

// joinSpoken renders a list the way it should be read aloud.
func joinSpoken(names []string) string {
	switch len(names) {
	case 1:
		return names[0]
	case 2:
		return names[0] + " and " + names[1]
	default:
		return strings.Join(names[:len(names)-1], ", ") + ", and " + names[len(names)-1]
	}
}
