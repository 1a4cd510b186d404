package mailbox

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// ParsedMessage is a normalized view of one message: the headers and
// body variants the matcher needs, nothing else.
type ParsedMessage struct {
	FromAddress string
	FromName    string
	ToAddresses []string
	Date        time.Time
	HTML        string
	Text        string
}

// Parse decodes raw message bytes into a ParsedMessage. A failure here
// is a per-message condition: the caller skips the message and moves on.
func Parse(raw []byte) (*ParsedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to create mail reader: %w", err)
	}

	msg := &ParsedMessage{}

	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.FromAddress = strings.ToLower(from[0].Address)
		msg.FromName = from[0].Name
	}
	if to, err := mr.Header.AddressList("To"); err == nil {
		for _, addr := range to {
			msg.ToAddresses = append(msg.ToAddresses, strings.ToLower(addr.Address))
		}
	}
	if date, err := mr.Header.Date(); err == nil {
		msg.Date = date
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Keep whatever parts were already read
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, err := io.ReadAll(part.Body)
			if err != nil {
				continue
			}

			if strings.HasPrefix(ct, "text/html") {
				msg.HTML = string(body)
			} else if strings.HasPrefix(ct, "text/plain") {
				msg.Text = string(body)
			}
		}
	}

	return msg, nil
}
