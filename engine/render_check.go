package engine

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// challengeMarkers appear on bot-check interstitials served with status 200.
var challengeMarkers = []string{
	"cf-browser-verification",
	"cf-challenge",
	"challenge-platform",
	"<title>just a moment...</title>",
	"attention required! | cloudflare",
	"checking your browser before accessing",
}

var reNoscript = regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`)

// NeedsBrowser reports whether markup fetched over plain HTTP is a bot
// challenge or a JavaScript shell that only a real browser can get past.
func NeedsBrowser(markup string) bool {
	lower := strings.ToLower(markup)
	for _, m := range challengeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}

	text := visibleText(markup)
	if len(text) < 200 {
		return true
	}
	if reNoscript.MatchString(lower) && len(text) < 1000 {
		return true
	}
	if strings.Count(lower, "<script") > 10 && len(text) < 500 {
		return true
	}
	return false
}

// visibleText returns the text inside <body>, skipping script, style and
// noscript content.
func visibleText(markup string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(markup))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "body":
				inBody = true
			case "script", "style", "noscript":
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			switch string(tn) {
			case "script", "style", "noscript":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}
