package parser

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	spaceRuns   = regexp.MustCompile(`[^\S\n]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
	// Zero-width and other invisible characters mail senders pad bodies with
	invisibleRunes = regexp.MustCompile(`[\x{200B}-\x{200D}\x{FEFF}\x{00AD}\x{034F}\x{061C}\x{2060}-\x{2064}\x{206A}-\x{206F}\x{FE00}-\x{FE0F}]+`)
)

// HTMLToText reduces an HTML message body to readable plain text.
// Script, style and head content is dropped, block elements become line
// breaks, runs of whitespace collapse.
func HTMLToText(html string) (string, error) {
	if html == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	doc.Find("script, style, head, meta, link").Remove()
	doc.Find("p, div, br, h1, h2, h3, h4, h5, h6, li, tr").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
	})

	text := invisibleRunes.ReplaceAllString(doc.Text(), "")
	text = spaceRuns.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	text = strings.Join(lines, "\n")
	text = newlineRuns.ReplaceAllString(text, "\n\n")

	return strings.TrimSpace(text), nil
}
