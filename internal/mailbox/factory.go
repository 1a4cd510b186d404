package mailbox

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aliasmail/aliasmaild/pkg/models"
)

// Factory builds per-request transports from resolved backends.
type Factory struct {
	DialTimeout time.Duration
	ListLimit   int64
	Logger      *slog.Logger
}

// ForIMAP returns a transport for a stored IMAP account.
func (f *Factory) ForIMAP(account *models.MailAccount) Transport {
	return NewIMAPTransport(IMAPConfig{
		Address:     account.Address,
		Password:    account.Password,
		Host:        account.IMAPHost,
		Port:        account.IMAPPort,
		UseTLS:      account.UseTLS,
		DialTimeout: f.DialTimeout,
	}, f.Logger)
}

// ForOAuth returns a transport backed by an authorized HTTP client.
func (f *Factory) ForOAuth(address string, client *http.Client) Transport {
	return NewGmailTransport(GmailConfig{
		Address:    address,
		HTTPClient: client,
		ListLimit:  f.ListLimit,
	}, f.Logger)
}
