package retrieval

import (
	"strings"
	"time"

	"github.com/aliasmail/aliasmaild/internal/mailbox"
	"github.com/aliasmail/aliasmaild/internal/parser"
	"github.com/aliasmail/aliasmaild/internal/platform"
)

// placeholderBody is rendered when a message has no usable body part.
const placeholderBody = "<p>message has no renderable content</p>"

// Criteria are the per-request matching constraints.
type Criteria struct {
	Platform       string
	RecipientAlias string // empty for dedicated mailboxes: no recipient check
	Cutoff         time.Time
}

// Candidate is one message that passed the match predicate.
type Candidate struct {
	HTML     string
	Text     string // plain-text rendering of the body
	Received time.Time
}

// Matcher decides whether a decoded message satisfies the criteria and
// extracts its displayable content.
type Matcher struct {
	rules platform.RuleSet
}

// NewMatcher creates a matcher over a sender rule set.
func NewMatcher(rules platform.RuleSet) *Matcher {
	return &Matcher{rules: rules}
}

// Match applies the predicate: received after the cutoff, recipient
// contains the alias when one is set, and the sender display text or
// address contains a platform pattern. Unknown platforms have no
// patterns and never match.
func (m *Matcher) Match(msg *mailbox.ParsedMessage, c Criteria) (*Candidate, bool) {
	if !msg.Date.After(c.Cutoff) {
		return nil, false
	}

	if c.RecipientAlias != "" {
		alias := strings.ToLower(c.RecipientAlias)
		found := false
		for _, to := range msg.ToAddresses {
			// Substring, not exact match: tolerates secondary-address
			// formatting like name+tag@ or quoted forms
			if strings.Contains(strings.ToLower(to), alias) {
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
	}

	patterns := m.rules.Patterns(c.Platform)
	if len(patterns) == 0 {
		return nil, false
	}
	fromName := strings.ToLower(msg.FromName)
	fromAddr := strings.ToLower(msg.FromAddress)
	matched := false
	for _, p := range patterns {
		if strings.Contains(fromName, p) || strings.Contains(fromAddr, p) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, false
	}

	html, text := renderBody(msg)
	return &Candidate{HTML: html, Text: text, Received: msg.Date}, true
}

// renderBody prefers the HTML part, falls back to the text part rendered
// as HTML, then to the placeholder. The plain-text rendering is derived
// from whichever part was chosen.
func renderBody(msg *mailbox.ParsedMessage) (html, text string) {
	if msg.HTML != "" {
		plain, err := parser.HTMLToText(msg.HTML)
		if err != nil || plain == "" {
			plain = strings.TrimSpace(msg.Text)
		}
		return msg.HTML, plain
	}
	if html := parser.TextToHTML(msg.Text); html != "" {
		return html, strings.TrimSpace(msg.Text)
	}
	return placeholderBody, ""
}

// Best returns the candidate with the greatest received timestamp. Ties
// keep the earlier candidate, so the result is stable for a given input
// order.
func Best(candidates []*Candidate) *Candidate {
	var best *Candidate
	for _, c := range candidates {
		if best == nil || c.Received.After(best.Received) {
			best = c
		}
	}
	return best
}
