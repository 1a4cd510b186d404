package mailbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
)

// IMAPConfig holds per-account connection parameters for an IMAP mailbox.
type IMAPConfig struct {
	Address     string // mailbox login (email address)
	Password    string
	Host        string
	Port        int
	UseTLS      bool
	DialTimeout time.Duration
}

// IMAPTransport opens request-scoped sessions against one IMAP mailbox.
type IMAPTransport struct {
	config IMAPConfig
	logger *slog.Logger
}

// NewIMAPTransport creates an IMAP transport for one account.
func NewIMAPTransport(cfg IMAPConfig, logger *slog.Logger) *IMAPTransport {
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 15 * time.Second
	}
	return &IMAPTransport{
		config: cfg,
		logger: logger.With("mailbox", cfg.Address),
	}
}

// Open dials the server, logs in and selects INBOX read-only. The dial
// timeout also acts as the authentication bound, so a dead server fails
// the request instead of hanging it.
func (t *IMAPTransport) Open(ctx context.Context) (Session, error) {
	addr := fmt.Sprintf("%s:%d", t.config.Host, t.config.Port)
	t.logger.Debug("connecting to IMAP server", "server", addr, "tls", t.config.UseTLS)

	dialer := &net.Dialer{Timeout: t.config.DialTimeout}

	var c *client.Client
	var err error
	if t.config.UseTLS {
		var conn *tls.Conn
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: t.config.Host})
		if err == nil {
			c, err = client.New(conn)
			if err != nil {
				conn.Close()
			}
		}
	} else {
		var conn net.Conn
		conn, err = dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			c, err = client.New(conn)
			if err != nil {
				conn.Close()
			}
		}
	}
	if err != nil {
		return nil, &ConnectionError{Mailbox: t.config.Address, Err: err}
	}

	c.Timeout = t.config.DialTimeout

	if err := c.Login(t.config.Address, t.config.Password); err != nil {
		c.Logout()
		return nil, &ConnectionError{Mailbox: t.config.Address, Err: fmt.Errorf("login: %w", err)}
	}

	if _, err := c.Select("INBOX", true); err != nil {
		c.Logout()
		return nil, &ConnectionError{Mailbox: t.config.Address, Err: fmt.Errorf("select INBOX: %w", err)}
	}

	return &imapSession{client: c, mailbox: t.config.Address, logger: t.logger}, nil
}

type imapSession struct {
	client  *client.Client
	mailbox string
	logger  *slog.Logger
}

// ListRecent issues a SINCE search and fetches full message bodies.
// IMAP SINCE has date granularity; the matcher applies the exact cutoff
// against the parsed Date header.
func (s *imapSession) ListRecent(ctx context.Context, since time.Time) ([]RawMessage, error) {
	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := s.client.UidSearch(criteria)
	if err != nil {
		return nil, &TransportError{Mailbox: s.mailbox, Op: "search", Err: err}
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek keeps the messages unread
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- s.client.UidFetch(seqSet, items, messages)
	}()

	var raw []RawMessage
	for msg := range messages {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		b, err := io.ReadAll(body)
		if err != nil {
			s.logger.Warn("failed to read message body", "uid", msg.Uid, "error", err)
			continue
		}
		raw = append(raw, RawMessage{Raw: b, Received: msg.InternalDate})
	}

	if err := <-done; err != nil {
		return raw, &TransportError{Mailbox: s.mailbox, Op: "fetch", Err: err}
	}

	return raw, nil
}

func (s *imapSession) Close() error {
	return s.client.Logout()
}
