package browser

import (
	"errors"
	"strings"
	"time"
)

// ErrBlocked means the page was replaced by an anti-automation interstitial.
var ErrBlocked = errors.New("blocked or challenged")

var (
	blockedTitlePhrases = []string{
		"access denied",
		"attention required",
		"just a moment",
	}
	blockedBodyPhrases = []string{
		"verify you are a human",
		"are you human",
		"access denied",
		"unusual traffic from your computer",
		"press & hold to confirm",
	}
)

// Verdict is the outcome of an anti-automation check.
type Verdict struct {
	Blocked bool
	Phrase  string
}

// Probe inspects title and body text for challenge or denial phrases. It is
// plain text matching and will miss challenges that render no text.
func Probe(page Page) Verdict {
	title, _ := page.Title()
	if phrase := matchPhrase(title, blockedTitlePhrases); phrase != "" {
		return Verdict{Blocked: true, Phrase: phrase}
	}

	body, err := page.InnerText("body", 2*time.Second)
	if err != nil {
		body, _ = page.Content()
	}
	if phrase := matchPhrase(body, blockedBodyPhrases); phrase != "" {
		return Verdict{Blocked: true, Phrase: phrase}
	}

	return Verdict{}
}

// IsBlockedText applies the body phrase list to arbitrary text.
func IsBlockedText(text string) bool {
	return matchPhrase(text, blockedBodyPhrases) != ""
}

func matchPhrase(text string, phrases []string) string {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return p
		}
	}
	return ""
}
