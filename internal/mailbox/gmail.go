package mailbox

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConfig holds parameters for the OAuth webmail transport.
type GmailConfig struct {
	Address    string       // mailbox address, for logging and errors
	HTTPClient *http.Client // authorized client from the credential manager
	ListLimit  int64        // bound on listed message ids
}

// GmailTransport opens request-scoped sessions against an
// OAuth-authenticated Gmail mailbox. It is always constructed from an
// authorized HTTP client, never from raw stored tokens.
type GmailTransport struct {
	config GmailConfig
	logger *slog.Logger
}

// NewGmailTransport creates a Gmail transport for one mailbox.
func NewGmailTransport(cfg GmailConfig, logger *slog.Logger) *GmailTransport {
	if cfg.ListLimit == 0 {
		cfg.ListLimit = 20
	}
	return &GmailTransport{
		config: cfg,
		logger: logger.With("mailbox", cfg.Address),
	}
}

func (t *GmailTransport) Open(ctx context.Context) (Session, error) {
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(t.config.HTTPClient))
	if err != nil {
		return nil, &ConnectionError{Mailbox: t.config.Address, Err: err}
	}
	return &gmailSession{svc: svc, config: t.config, logger: t.logger}, nil
}

type gmailSession struct {
	svc    *gmail.Service
	config GmailConfig
	logger *slog.Logger
}

// ListRecent lists a bounded number of recent message ids and fetches
// each body lazily in raw form. The newer_than query is hour-granular
// and rounded up so nothing after since is cut off; the matcher applies
// the exact cutoff.
func (s *gmailSession) ListRecent(ctx context.Context, since time.Time) ([]RawMessage, error) {
	query := newerThanQuery(since, time.Now())

	list, err := s.svc.Users.Messages.List("me").
		Q(query).
		MaxResults(s.config.ListLimit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, &TransportError{Mailbox: s.config.Address, Op: "list", Err: err}
	}

	var raw []RawMessage
	for _, m := range list.Messages {
		if m.Id == "" {
			continue
		}
		msg, err := s.svc.Users.Messages.Get("me", m.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return raw, &TransportError{Mailbox: s.config.Address, Op: "get", Err: err}
		}
		if msg.Raw == "" {
			continue
		}
		b, err := decodeRaw(msg.Raw)
		if err != nil {
			s.logger.Warn("failed to decode raw message", "id", m.Id, "error", err)
			continue
		}
		received := time.UnixMilli(msg.InternalDate)
		raw = append(raw, RawMessage{Raw: b, Received: received})
	}

	return raw, nil
}

// Close is a no-op: the Gmail session holds no connection of its own,
// only the request-scoped HTTP client.
func (s *gmailSession) Close() error { return nil }

func newerThanQuery(since, now time.Time) string {
	hours := int(math.Ceil(now.Sub(since).Hours()))
	if hours < 1 {
		hours = 1
	}
	return fmt.Sprintf("newer_than:%dh", hours)
}

func decodeRaw(raw string) ([]byte, error) {
	if b, err := base64.URLEncoding.DecodeString(raw); err == nil {
		return b, nil
	}
	return base64.RawURLEncoding.DecodeString(raw)
}
