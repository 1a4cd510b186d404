package retrieval

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aliasmail/aliasmaild/internal/mailbox"
	"github.com/aliasmail/aliasmaild/pkg/models"
)

// CredentialManager supplies authorized clients for OAuth mailboxes.
type CredentialManager interface {
	EnsureValid(ctx context.Context, ownerID int64, address string) (*http.Client, error)
}

// TransportFactory builds transports for resolved backends.
type TransportFactory interface {
	ForIMAP(account *models.MailAccount) mailbox.Transport
	ForOAuth(address string, client *http.Client) mailbox.Transport
}

// Message is the rendered content of the selected message.
type Message struct {
	HTML     string
	Text     string // plain-text rendering for clients that cannot show HTML
	Received time.Time
}

// NotFound carries enough context for the caller to compose a
// human-readable "nothing recent" message.
type NotFound struct {
	Alias    string
	Platform string
	Window   time.Duration
}

// Result is the outcome of one retrieval: either a message or a
// structured not-found. Errors travel separately as typed errors.
type Result struct {
	Message  *Message
	NotFound *NotFound
}

// Found reports whether a message was selected.
func (r Result) Found() bool { return r.Message != nil }

// Orchestrator composes resolution, credentials, transport and matching
// into the single outward operation.
type Orchestrator struct {
	resolver   *Resolver
	creds      CredentialManager
	matcher    *Matcher
	transports TransportFactory
	window     time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewOrchestrator wires the retrieval pipeline.
func NewOrchestrator(resolver *Resolver, creds CredentialManager, matcher *Matcher, transports TransportFactory, window time.Duration, logger *slog.Logger) *Orchestrator {
	if window <= 0 {
		window = 12 * time.Hour
	}
	return &Orchestrator{
		resolver:   resolver,
		creds:      creds,
		matcher:    matcher,
		transports: transports,
		window:     window,
		logger:     logger.With("component", "retrieval"),
		now:        time.Now,
	}
}

// FetchLatest returns the most recent message for the alias that matches
// the platform's sender patterns within the recency window.
//
// Typed failures: BadAliasError, NoProviderError, credentials.Error,
// mailbox.ConnectionError, mailbox.TransportError. Messages that fail to
// parse are skipped, never fatal.
func (o *Orchestrator) FetchLatest(ctx context.Context, ownerID int64, alias, platformName string) (Result, error) {
	alias = strings.ToLower(strings.TrimSpace(alias))
	platformName = strings.ToLower(strings.TrimSpace(platformName))

	backend, err := o.resolver.Resolve(ctx, ownerID, alias)
	if err != nil {
		return Result{}, err
	}

	cutoff := o.now().Add(-o.window)
	log := o.logger.With("owner_id", ownerID, "alias", alias, "platform", platformName, "backend", backend.Kind.String())

	var transport mailbox.Transport
	var recipientAlias string
	switch backend.Kind {
	case BackendOAuth:
		client, err := o.creds.EnsureValid(ctx, ownerID, backend.Address)
		if err != nil {
			return Result{}, err
		}
		transport = o.transports.ForOAuth(backend.Address, client)
		recipientAlias = alias
	case BackendIMAP:
		// Dedicated mailbox: every message is addressed to the alias
		transport = o.transports.ForIMAP(backend.Account)
	case BackendCatchAll:
		transport = o.transports.ForIMAP(backend.Account)
		recipientAlias = alias
	}

	session, err := transport.Open(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Warn("failed to close mailbox session", "error", cerr)
		}
	}()

	raw, err := session.ListRecent(ctx, cutoff)
	if err != nil {
		return Result{}, err
	}

	criteria := Criteria{Platform: platformName, RecipientAlias: recipientAlias, Cutoff: cutoff}
	var candidates []*Candidate
	for _, rm := range raw {
		parsed, err := mailbox.Parse(rm.Raw)
		if err != nil {
			log.Warn("skipping unparseable message", "error", err)
			continue
		}
		if cand, ok := o.matcher.Match(parsed, criteria); ok {
			candidates = append(candidates, cand)
		}
	}

	best := Best(candidates)
	if best == nil {
		log.Info("no matching message", "listed", len(raw))
		return Result{NotFound: &NotFound{Alias: alias, Platform: platformName, Window: o.window}}, nil
	}

	log.Info("selected message", "received", best.Received, "listed", len(raw), "matched", len(candidates))
	return Result{Message: &Message{HTML: best.HTML, Text: best.Text, Received: best.Received}}, nil
}
