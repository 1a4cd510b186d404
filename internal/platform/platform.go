// Package platform holds the static per-platform sender pattern table.
// A platform is recognized in a message when the sender display text or
// address contains one of its patterns.
package platform

import "strings"

// RuleSet maps a platform identifier to its sender patterns.
type RuleSet map[string][]string

// Default returns the built-in rule set.
func Default() RuleSet {
	return RuleSet{
		"chatgpt": {
			"noreply@tm.openai.com",
			"chatgpt",
			"openai.com",
			"openai",
		},
		"disney": {
			"disneyplus@trx.mail2.disneyplus.com",
			"mail.disneyplus.com",
			"disneyplus.com",
			"disney+",
			"disneyplus",
		},
		"prime": {
			"account-update@primevideo.com",
			"no-reply@amazon.com",
			"amazon.com",
			"account-update@amazon.com",
		},
		"netflix": {
			"info@account.netflix.com",
			"info@mailer.netflix.com",
			"mailer.netflix.com",
			"netflix.com",
			"netflix",
		},
		"crunchyroll": {
			"hime@info.crunchyroll.com",
			"info.crunchyroll.com",
			"crunchyroll.com",
			"crunchyroll",
		},
	}
}

// Patterns returns the lowercased patterns for a platform. An unknown
// platform returns nil, so matching fails closed. Empty patterns are
// dropped: an empty substring would match every sender.
func (r RuleSet) Patterns(platform string) []string {
	raw, ok := r[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return nil
	}
	patterns := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}
