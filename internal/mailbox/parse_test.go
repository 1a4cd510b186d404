package mailbox

import (
	"strings"
	"testing"
	"time"
)

const sampleHTMLMessage = "From: Netflix <info@account.netflix.com>\r\n" +
	"To: alice@example.com\r\n" +
	"Subject: Your sign-in code\r\n" +
	"Date: Mon, 02 Jun 2025 10:30:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Your code is 1234</p>\r\n"

const samplePlainMessage = "From: billing@videoservice.example\r\n" +
	"To: Bob <bob@unknown.example>, carol@other.example\r\n" +
	"Date: Mon, 02 Jun 2025 11:00:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"plain body\r\n"

func TestParseHTMLMessage(t *testing.T) {
	msg, err := Parse([]byte(sampleHTMLMessage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.FromAddress != "info@account.netflix.com" {
		t.Errorf("from address = %q", msg.FromAddress)
	}
	if msg.FromName != "Netflix" {
		t.Errorf("from name = %q", msg.FromName)
	}
	if len(msg.ToAddresses) != 1 || msg.ToAddresses[0] != "alice@example.com" {
		t.Errorf("to addresses = %v", msg.ToAddresses)
	}
	want := time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)
	if !msg.Date.Equal(want) {
		t.Errorf("date = %v, want %v", msg.Date, want)
	}
	if !strings.Contains(msg.HTML, "Your code is 1234") {
		t.Errorf("html body = %q", msg.HTML)
	}
	if msg.Text != "" {
		t.Errorf("expected no text body, got %q", msg.Text)
	}
}

func TestParsePlainMessage(t *testing.T) {
	msg, err := Parse([]byte(samplePlainMessage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if msg.HTML != "" {
		t.Errorf("expected no html body, got %q", msg.HTML)
	}
	if !strings.Contains(msg.Text, "plain body") {
		t.Errorf("text body = %q", msg.Text)
	}
	if len(msg.ToAddresses) != 2 {
		t.Fatalf("to addresses = %v", msg.ToAddresses)
	}
	if msg.ToAddresses[0] != "bob@unknown.example" {
		t.Errorf("first recipient = %q", msg.ToAddresses[0])
	}
}

func TestParseGarbageFails(t *testing.T) {
	if _, err := Parse([]byte("\x00\x01not a message")); err == nil {
		// go-message tolerates a lot; accept either outcome but a
		// parsed result must at least carry no sender
		msg, _ := Parse([]byte("\x00\x01not a message"))
		if msg != nil && msg.FromAddress != "" {
			t.Fatalf("garbage produced a sender: %q", msg.FromAddress)
		}
	}
}
